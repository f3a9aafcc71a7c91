package minio

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/internal/intelligence/clustering"
	"github.com/turtacn/TripMatch/internal/intelligence/common"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// Object layout under the models prefix.
const (
	ModelsPrefix      = "models/"
	LatestKey         = ModelsPrefix + "latest"
	centroidsObject   = "centroids.json"
	partitionObject   = "partition.json"
	manifestObject    = "manifest.json"
	jsonContentType   = "application/json"
	pointerContentTyp = "text/plain"
)

// ObjectStore is a flat key/value blob store. MinIOClient implements it, as
// does the local file store used for offline runs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Manifest is the model metadata stored beside the centroid table.
type Manifest struct {
	Version     string                 `json:"version"`
	TrainedAt   time.Time              `json:"trained_at"`
	GroupCount  int                    `json:"group_count"`
	RecordCount int                    `json:"record_count"`
	Seed        int64                  `json:"seed"`
	Silhouette  float64                `json:"silhouette"`
	Config      clustering.TrainConfig `json:"config"`
}

// ArtifactRepository persists trained models as JSON objects:
//
//	models/<version>/manifest.json
//	models/<version>/centroids.json
//	models/<version>/partition.json
//	models/latest                      (holds the active version)
//
// The latest pointer is written last, so a failed save never changes what
// LoadLatest returns.
type ArtifactRepository struct {
	store  ObjectStore
	logger logging.Logger
}

// NewArtifactRepository returns a repository over store.
func NewArtifactRepository(store ObjectStore, logger logging.Logger) *ArtifactRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ArtifactRepository{store: store, logger: logger.Named("artifacts")}
}

func modelKey(version, object string) string {
	return path.Join(ModelsPrefix, version, object)
}

func validVersion(version string) error {
	if version == "" || strings.ContainsAny(version, "/\\") {
		return errors.New(errors.ErrCodeValidation, "model version is required and must not contain path separators")
	}
	return nil
}

// Save stages the model and moves the latest pointer to it.
func (r *ArtifactRepository) Save(ctx context.Context, m *common.Model, members []cluster.Member) error {
	if err := r.Stage(ctx, m, members); err != nil {
		return err
	}
	return r.Promote(ctx, m.Version)
}

// Stage writes the model and its member assignments under their version
// without touching the latest pointer.
func (r *ArtifactRepository) Stage(ctx context.Context, m *common.Model, members []cluster.Member) error {
	if m == nil {
		return errors.New(errors.ErrCodeValidation, "model is required")
	}
	if err := validVersion(m.Version); err != nil {
		return err
	}

	manifest, err := json.Marshal(Manifest{
		Version:     m.Version,
		TrainedAt:   m.TrainedAt,
		GroupCount:  m.GroupCount,
		RecordCount: m.RecordCount,
		Seed:        m.Seed,
		Silhouette:  m.Silhouette,
		Config:      m.Config,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode manifest")
	}
	centroids, err := json.Marshal(m.Centroids)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode centroids")
	}
	partition, err := json.Marshal(members)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode partition")
	}

	for _, obj := range []struct {
		name string
		data []byte
	}{
		{centroidsObject, centroids},
		{partitionObject, partition},
		{manifestObject, manifest},
	} {
		if err := r.store.Put(ctx, modelKey(m.Version, obj.name), obj.data, jsonContentType); err != nil {
			return err
		}
	}

	r.logger.Info("model artifact staged",
		logging.String("version", m.Version),
		logging.Int("groups", m.GroupCount),
		logging.Int("members", len(members)))
	return nil
}

// Promote moves the latest pointer to a staged version.
func (r *ArtifactRepository) Promote(ctx context.Context, version string) error {
	if err := validVersion(version); err != nil {
		return err
	}
	if _, err := r.store.Get(ctx, modelKey(version, manifestObject)); err != nil {
		return err
	}
	if err := r.store.Put(ctx, LatestKey, []byte(version), pointerContentTyp); err != nil {
		return err
	}
	r.logger.Info("model artifact promoted", logging.String("version", version))
	return nil
}

// LatestVersion returns the version the latest pointer refers to.
func (r *ArtifactRepository) LatestVersion(ctx context.Context) (string, error) {
	data, err := r.store.Get(ctx, LatestKey)
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", errors.New(errors.ErrCodeArtifactNotFound, "latest pointer is empty")
	}
	return v, nil
}

// LoadLatest restores the model named by the latest pointer. It implements
// common.ModelLoader.
func (r *ArtifactRepository) LoadLatest(ctx context.Context) (*common.Model, error) {
	v, err := r.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	return r.Load(ctx, v)
}

// Load restores one model version.
func (r *ArtifactRepository) Load(ctx context.Context, version string) (*common.Model, error) {
	raw, err := r.store.Get(ctx, modelKey(version, manifestObject))
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode manifest").WithDetail(version)
	}

	raw, err = r.store.Get(ctx, modelKey(version, centroidsObject))
	if err != nil {
		return nil, err
	}
	var table cluster.CentroidTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode centroids").WithDetail(version)
	}

	return &common.Model{
		Version:     manifest.Version,
		TrainedAt:   manifest.TrainedAt,
		Centroids:   &table,
		GroupCount:  table.Len(),
		RecordCount: manifest.RecordCount,
		Seed:        manifest.Seed,
		Silhouette:  manifest.Silhouette,
		Config:      manifest.Config,
	}, nil
}

// LoadMembers returns the persisted assignments of a version.
func (r *ArtifactRepository) LoadMembers(ctx context.Context, version string) ([]cluster.Member, error) {
	raw, err := r.store.Get(ctx, modelKey(version, partitionObject))
	if err != nil {
		return nil, err
	}
	var members []cluster.Member
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode partition").WithDetail(version)
	}
	return members, nil
}

// Versions lists stored versions in ascending key order.
func (r *ArtifactRepository) Versions(ctx context.Context) ([]string, error) {
	keys, err := r.store.List(ctx, ModelsPrefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, ModelsPrefix)
		v, obj, ok := strings.Cut(rest, "/")
		if !ok || obj != manifestObject || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Delete removes a version. The active version cannot be deleted.
func (r *ArtifactRepository) Delete(ctx context.Context, version string) error {
	if latest, err := r.LatestVersion(ctx); err == nil && latest == version {
		return errors.Newf(errors.ErrCodeConflict, "version %s is the latest model", version)
	}
	for _, obj := range []string{manifestObject, centroidsObject, partitionObject} {
		if err := r.store.Delete(ctx, modelKey(version, obj)); err != nil {
			return err
		}
	}
	return nil
}

//Personal.AI order the ending
