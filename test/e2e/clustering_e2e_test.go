package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, env.server.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func trainingRecords(n int) []map[string]string {
	rng := rand.New(rand.NewSource(21))
	dests := []string{"Paris", "Rome", "Oslo", "Lima"}
	spont := []string{"yes", "no"}
	leave := []string{"weekend", "month", "year"}
	out := make([]map[string]string, n)
	for i := range out {
		out[i] = map[string]string{
			"_id":             fmt.Sprintf("u%d", i),
			"wantsToTravelTo": dests[rng.Intn(len(dests))],
			"isSpontanious":   spont[rng.Intn(len(spont))],
			"wantsToLeaveOn":  leave[rng.Intn(len(leave))],
		}
	}
	return out
}

// TestClusteringFlow runs the lifecycle in order: no model, train, inspect,
// assign.
func TestClusteringFlow(t *testing.T) {
	t.Run("predict before training", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, "/api/v1/predict", map[string]string{
			"wantstotravelto": "paris", "isspontanious": "yes", "wantstoleaveon": "weekend",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, string(body), "CLU_004")
	})

	var version string
	var groups int
	t.Run("train inline", func(t *testing.T) {
		seed := int64(17)
		resp, body := doJSON(t, http.MethodPost, "/api/v1/train", map[string]interface{}{
			"records": trainingRecords(150),
			"seed":    seed,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var sum struct {
			Version     string `json:"version"`
			RecordCount int    `json:"record_count"`
			GroupCount  int    `json:"group_count"`
			Seed        int64  `json:"seed"`
		}
		require.NoError(t, json.Unmarshal(body, &sum))
		assert.Equal(t, 150, sum.RecordCount)
		assert.Equal(t, seed, sum.Seed)
		assert.Positive(t, sum.GroupCount)
		version, groups = sum.Version, sum.GroupCount
	})
	require.NotEmpty(t, version)

	var firstLabel string
	t.Run("model", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, "/api/v1/model", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var m struct {
			Version string `json:"version"`
			Groups  []struct {
				Label string `json:"label"`
				Size  int    `json:"size"`
			} `json:"groups"`
		}
		require.NoError(t, json.Unmarshal(body, &m))
		assert.Equal(t, version, m.Version)
		require.Len(t, m.Groups, groups)

		total := 0
		for _, g := range m.Groups {
			total += g.Size
		}
		assert.Equal(t, 150, total)
		firstLabel = m.Groups[0].Label
	})

	t.Run("group detail", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, "/api/v1/groups/"+firstLabel, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Contains(t, string(body), `"centroid"`)

		resp, _ = doJSON(t, http.MethodGet, "/api/v1/groups/no-such-group", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("predict", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, "/api/v1/predict", map[string]string{
			"wantsToTravelTo": "PARIS ", "isSpontanious": "Yes", "wantsToLeaveOn": "weekend", "name": "Ada",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var res struct {
			AssignedCluster string            `json:"assigned_cluster"`
			Version         string            `json:"model_version"`
			UserData        map[string]string `json:"user_data"`
		}
		require.NoError(t, json.Unmarshal(body, &res))
		assert.NotEmpty(t, res.AssignedCluster)
		assert.Equal(t, version, res.Version)
		assert.Equal(t, "Ada", res.UserData["name"])
	})

	t.Run("legacy predict route", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, "/predict", map[string]string{
			"wantstotravelto": "oslo", "isspontanious": "no", "wantstoleaveon": "year",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("predict missing field", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, "/api/v1/predict", map[string]string{"wantstotravelto": "oslo"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(body), "isspontanious")
	})

	t.Run("matches need a member store", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, "/api/v1/members/u1/matches", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestProbesAndMetrics(t *testing.T) {
	resp, _ := doJSON(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, env.cfg.Metrics.Path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "e2e_"), "metrics are namespaced")
}

//Personal.AI order the ending
