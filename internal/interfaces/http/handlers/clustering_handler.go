package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	app "github.com/turtacn/TripMatch/internal/application/clustering"
	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/internal/infrastructure/ingest"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// ClusteringHandlerConfig bounds what the handler accepts.
type ClusteringHandlerConfig struct {
	// DataFile is trained on when POST /train names no file and no records.
	DataFile string
	// DataDir confines the "file" field of POST /train. Empty disables it.
	DataDir      string
	TrainTimeout time.Duration
	MaxBodyBytes int64
}

// ClusteringHandler serves training and assignment.
type ClusteringHandler struct {
	training   app.TrainingService
	assignment app.AssignmentService
	cfg        ClusteringHandlerConfig
	logger     logging.Logger
}

// NewClusteringHandler creates a ClusteringHandler. training may be nil on
// read-only replicas, in which case POST /train answers 503.
func NewClusteringHandler(training app.TrainingService, assignment app.AssignmentService, cfg ClusteringHandlerConfig, logger logging.Logger) *ClusteringHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.TrainTimeout <= 0 {
		cfg.TrainTimeout = 10 * time.Minute
	}
	return &ClusteringHandler{training: training, assignment: assignment, cfg: cfg, logger: logger.Named("http_clustering")}
}

// TrainRequest is the body of POST /api/v1/train. Records take precedence
// over File.
type TrainRequest struct {
	File    string              `json:"file,omitempty"`
	Records []map[string]string `json:"records,omitempty"`
	Seed    *int64              `json:"seed,omitempty"`
}

// PredictResponse is the body of a successful POST /api/v1/predict.
type PredictResponse struct {
	AssignedCluster string                 `json:"assigned_cluster"`
	Tier            string                 `json:"tier"`
	Version         string                 `json:"model_version"`
	UserData        map[string]interface{} `json:"user_data"`
}

// Train handles POST /api/v1/train.
func (h *ClusteringHandler) Train(w http.ResponseWriter, r *http.Request) {
	if h.training == nil {
		writeAppError(w, h.logger, errors.New(errors.ErrCodeServiceUnavailable, "training is disabled on this instance"))
		return
	}
	var req TrainRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeAppError(w, h.logger, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.TrainTimeout)
	defer cancel()
	opts := app.TrainOptions{Seed: req.Seed, Source: "api"}

	var (
		sum *app.TrainingSummary
		err error
	)
	switch {
	case len(req.Records) > 0:
		var records []ingest.Record
		records, err = inlineRecords(req.Records)
		if err == nil {
			sum, err = h.training.TrainFromRecords(ctx, records, opts)
		}
	default:
		var path string
		path, err = ingest.ResolveDataFile(h.cfg.DataDir, h.cfg.DataFile, req.File)
		if err == nil {
			sum, err = h.training.TrainFromFile(ctx, path, opts)
		}
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = errors.Wrap(err, errors.ErrCodeTimeout, "training exceeded its time limit")
		}
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func inlineRecords(rows []map[string]string) ([]ingest.Record, error) {
	out := make([]ingest.Record, len(rows))
	for i, row := range rows {
		v, err := preference.New(row)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSchemaViolation, "invalid record").WithDetail(fmt.Sprintf("index=%d", i))
		}
		id := strings.TrimSpace(row[ingest.IDColumn])
		if id == "" {
			id = strconv.Itoa(i)
		}
		out[i] = ingest.Record{ID: id, Vector: v}
	}
	return out, nil
}

// Predict handles POST /api/v1/predict. The body is a flat object holding
// the three preference columns, an optional "_id" and any other user data,
// which is echoed back.
func (h *ClusteringHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &body); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	req := app.AssignRequest{}
	for k, raw := range body {
		s, isString := raw.(string)
		if k == ingest.IDColumn {
			req.RecordID = strings.TrimSpace(s)
			continue
		}
		f, ok := preference.FieldForColumn(k)
		if !ok {
			continue
		}
		if !isString {
			writeAppError(w, h.logger, errors.Newf(errors.ErrCodeSchemaViolation, "field %s must be a string", f))
			return
		}
		switch f {
		case preference.FieldDestination:
			req.Destination = s
		case preference.FieldSpontaneous:
			req.Spontaneous = s
		case preference.FieldDepartureTiming:
			req.DepartureTiming = s
		}
	}

	res, err := h.assignment.Assign(r.Context(), req)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if !res.Found {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "no group matches the given preferences",
			Code:  "NO_MATCH",
		})
		return
	}
	writeJSON(w, http.StatusOK, PredictResponse{
		AssignedCluster: string(res.Label),
		Tier:            string(res.Tier),
		Version:         res.Version,
		UserData:        body,
	})
}

// GetModel handles GET /api/v1/model.
func (h *ClusteringHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.assignment.ActiveModel(r.Context())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetGroup handles GET /api/v1/groups/{label}.
func (h *ClusteringHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.assignment.Group(r.Context(), cluster.Label(chi.URLParam(r, "label")))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GetMatches handles GET /api/v1/members/{recordID}/matches.
func (h *ClusteringHandler) GetMatches(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 50, 500)
	res, err := h.assignment.Matches(r.Context(), chi.URLParam(r, "recordID"), limit, offset)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

//Personal.AI order the ending
