package clustering

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/internal/infrastructure/database/redis"
	"github.com/turtacn/TripMatch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TripMatch/internal/intelligence/common"
	"github.com/turtacn/TripMatch/internal/intelligence/matcher"
	"github.com/turtacn/TripMatch/pkg/errors"
)

const (
	matchCachePrefix = "match:"
	matchCacheName   = "assignment"
	defaultMatchTTL  = 15 * time.Minute
)

// AssignmentService assigns preference vectors to groups of the active model.
type AssignmentService interface {
	Assign(ctx context.Context, req AssignRequest) (*AssignResult, error)
	Matches(ctx context.Context, recordID string, limit, offset int) (*MatchesResult, error)
	Group(ctx context.Context, label cluster.Label) (*GroupDetail, error)
	ActiveModel(ctx context.Context) (*ModelSummary, error)
}

// AssignRequest carries raw field values. They are normalized before
// matching. When RecordID is set and a member store is configured, a found
// assignment is persisted.
type AssignRequest struct {
	RecordID        string
	Destination     string
	Spontaneous     string
	DepartureTiming string
}

// AssignResult is the outcome of an assignment. Found is false when no tier
// matched; Label is then empty.
type AssignResult struct {
	Found    bool                       `json:"found"`
	Label    cluster.Label              `json:"label,omitempty"`
	Tier     matcher.Tier               `json:"tier"`
	Distance int                        `json:"distance"`
	Version  string                     `json:"version"`
	Vector   preference.AttributeVector `json:"vector"`
	Cached   bool                       `json:"cached"`
}

// MatchesResult lists the members sharing a record's group.
type MatchesResult struct {
	RecordID string           `json:"record_id"`
	Label    cluster.Label    `json:"label"`
	Matches  []cluster.Member `json:"matches"`
}

// GroupDetail describes one group of the active model.
type GroupDetail struct {
	Label    cluster.Label              `json:"label"`
	Centroid preference.AttributeVector `json:"centroid"`
	Size     int                        `json:"size"`
	Version  string                     `json:"version"`
}

// ModelSummary describes the active model.
type ModelSummary struct {
	Version     string                `json:"version"`
	TrainedAt   time.Time             `json:"trained_at"`
	GroupCount  int                   `json:"group_count"`
	RecordCount int                   `json:"record_count"`
	Seed        int64                 `json:"seed"`
	Silhouette  float64               `json:"silhouette"`
	Groups      []cluster.Centroid    `json:"groups"`
	History     []common.ModelVersion `json:"history"`
}

// cachedMatch is the cached part of an AssignResult.
type cachedMatch struct {
	Found    bool          `json:"found"`
	Label    cluster.Label `json:"label"`
	Tier     matcher.Tier  `json:"tier"`
	Distance int           `json:"distance"`
}

// AssignmentDeps wires an AssignmentService. Registry is required.
type AssignmentDeps struct {
	Registry common.ModelRegistry
	Policy   matcher.Policy
	Members  cluster.MemberRepository
	Cache    redis.Cache
	CacheTTL time.Duration
	Events   EventPublisher
	Metrics  *prometheus.AppMetrics
	Logger   logging.Logger
	Now      func() time.Time
}

type assignmentService struct {
	deps     AssignmentDeps
	assigner *matcher.Assigner
	logger   logging.Logger
}

// NewAssignmentService returns a service over deps.
func NewAssignmentService(deps AssignmentDeps) (AssignmentService, error) {
	if deps.Registry == nil {
		return nil, errors.New(errors.ErrCodeInternal, "assignment service requires a model registry")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = defaultMatchTTL
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &assignmentService{
		deps:     deps,
		assigner: matcher.NewAssigner(deps.Policy),
		logger:   deps.Logger.Named("assignment"),
	}, nil
}

func matchCacheKey(version string, v preference.AttributeVector) string {
	return matchCachePrefix + version + ":" + v.Key()
}

func (s *assignmentService) Assign(ctx context.Context, req AssignRequest) (*AssignResult, error) {
	v, err := preference.Of(req.Destination, req.Spontaneous, req.DepartureTiming)
	if err != nil {
		return nil, err
	}
	model, err := s.deps.Registry.Active(ctx)
	if err != nil {
		return nil, err
	}

	res := &AssignResult{Version: model.Version, Vector: v}
	key := matchCacheKey(model.Version, v)

	var hit cachedMatch
	if s.deps.Cache != nil {
		err := s.deps.Cache.Get(ctx, key, &hit)
		switch {
		case err == nil:
			res.Cached = true
		case stderrors.Is(err, redis.ErrCacheMiss):
		default:
			s.logger.Warn("assignment cache read failed", logging.Err(err))
		}
		prometheus.RecordCacheAccess(s.deps.Metrics, matchCacheName, res.Cached)
	}

	if !res.Cached {
		started := time.Now()
		m, found, err := s.assigner.Assign(v, model.Centroids)
		if err != nil {
			return nil, err
		}
		prometheus.RecordAssignment(s.deps.Metrics, string(m.Tier), time.Since(started))
		hit = cachedMatch{Found: found, Label: m.Label, Tier: m.Tier, Distance: m.Distance}

		if s.deps.Cache != nil {
			if err := s.deps.Cache.Set(ctx, key, hit, s.deps.CacheTTL); err != nil {
				s.logger.Warn("assignment cache write failed", logging.Err(err))
			}
		}
	}
	res.Found, res.Label, res.Tier, res.Distance = hit.Found, hit.Label, hit.Tier, hit.Distance

	if !res.Found {
		s.logger.Debug("no group matched", logging.String("vector", v.String()))
		return res, nil
	}

	at := s.deps.Now().UTC()
	if req.RecordID != "" && s.deps.Members != nil {
		member := cluster.Member{RecordID: req.RecordID, RunID: model.Version, Label: res.Label, Vector: v, AssignedAt: at}
		if err := s.deps.Members.UpsertMember(ctx, member); err != nil {
			return nil, err
		}
	}
	if err := publishEvent(ctx, s.deps.Events, kafka.TopicMemberAssigned, string(res.Label), kafka.EventMemberAssigned, kafka.MemberAssignedPayload{
		RecordID:        req.RecordID,
		Version:         model.Version,
		Label:           string(res.Label),
		Tier:            string(res.Tier),
		Destination:     v.Destination(),
		Spontaneous:     v.Spontaneous(),
		DepartureTiming: v.DepartureTiming(),
		AssignedAt:      at,
	}); err != nil {
		s.logger.Warn("member assigned event not published", logging.Err(err))
	}
	return res, nil
}

func (s *assignmentService) Matches(ctx context.Context, recordID string, limit, offset int) (*MatchesResult, error) {
	if s.deps.Members == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "member store is not configured")
	}
	if recordID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "record id is required")
	}
	self, err := s.deps.Members.GetMember(ctx, recordID)
	if err != nil {
		return nil, err
	}
	out, err := s.deps.Members.ListGroupMembers(ctx, self.Label, recordID, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []cluster.Member{}
	}
	return &MatchesResult{RecordID: recordID, Label: self.Label, Matches: out}, nil
}

func (s *assignmentService) Group(ctx context.Context, label cluster.Label) (*GroupDetail, error) {
	model, err := s.deps.Registry.Active(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := model.Centroids.Lookup(label)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeGroupNotFound, "group %s not found", label).WithDetail("version=" + model.Version)
	}
	return &GroupDetail{Label: c.Label, Centroid: c.Vector, Size: c.Size, Version: model.Version}, nil
}

func (s *assignmentService) ActiveModel(ctx context.Context) (*ModelSummary, error) {
	model, err := s.deps.Registry.Active(ctx)
	if err != nil {
		return nil, err
	}
	return &ModelSummary{
		Version:     model.Version,
		TrainedAt:   model.TrainedAt,
		GroupCount:  model.GroupCount,
		RecordCount: model.RecordCount,
		Seed:        model.Seed,
		Silhouette:  model.Silhouette,
		Groups:      model.Centroids.Entries(),
		History:     s.deps.Registry.Versions(ctx),
	}, nil
}

//Personal.AI order the ending
