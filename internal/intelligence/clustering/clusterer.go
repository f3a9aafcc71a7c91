package clustering

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/internal/intelligence/kmodes"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// State is a step of a training run.
type State uint8

const (
	StateUnpartitioned State = iota
	StateInitiallyPartitioned
	StateBalancing
	StateVerified
	StateLabelsNormalized
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateUnpartitioned:
		return "Unpartitioned"
	case StateInitiallyPartitioned:
		return "InitiallyPartitioned"
	case StateBalancing:
		return "Balancing"
	case StateVerified:
		return "Verified"
	case StateLabelsNormalized:
		return "LabelsNormalized"
	case StateTrained:
		return "Trained"
	default:
		return "Unknown"
	}
}

// VerificationReport describes the partition after balancing. Labels are the
// final, normalized ones.
type VerificationReport struct {
	Complete     bool                `json:"complete"`
	Unlabeled    []int               `json:"unlabeled,omitempty"`
	RecordCount  int                 `json:"record_count"`
	GroupCount   int                 `json:"group_count"`
	Distribution []cluster.GroupSize `json:"distribution"`
	// Undersized and Oversized list groups outside [MinGroupSize, MaxGroupSize].
	Undersized []cluster.GroupSize `json:"undersized,omitempty"`
	Oversized  []cluster.GroupSize `json:"oversized,omitempty"`
}

// Err returns an ErrCodePartitionIncomplete error when records are unlabeled.
func (r VerificationReport) Err() error {
	if r.Complete {
		return nil
	}
	return errors.Newf(errors.ErrCodePartitionIncomplete, "%d records have no group", len(r.Unlabeled))
}

// TrainResult is the output of a completed run.
type TrainResult struct {
	Partition *cluster.Partition
	Centroids *cluster.CentroidTable
	Report    VerificationReport

	Seed              int64
	InitialGroups     int
	InitialCost       int
	Silhouette        float64
	BalanceIterations int
	// Converged is false when the iteration budget ran out before the group
	// count stopped changing.
	Converged bool
	// Unresolved lists groups left outside the size band: those skipped by
	// the last balancing pass for lack of a merge or split target, and those
	// produced by the additional split rounds. Labels are the final ones.
	Unresolved PassStats
	// LabelMapping maps pre-normalization labels to final labels.
	LabelMapping map[cluster.Label]cluster.Label
	Duration     time.Duration
}

// Clusterer runs training. It is the explicit training context: every run
// owns its own random source and partition, and nothing is shared between
// Clusterers. A Clusterer is not safe for concurrent Train calls.
type Clusterer struct {
	cfg      TrainConfig
	logger   logging.Logger
	state    State
	observer func(State)
}

// Option customizes a Clusterer.
type Option func(*Clusterer)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Clusterer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(c *Clusterer) { c.observer = fn }
}

// NewClusterer validates cfg after applying defaults.
func NewClusterer(cfg TrainConfig, opts ...Option) (*Clusterer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Clusterer{cfg: cfg, logger: logging.NewNopLogger()}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.Named("clusterer")
	return c, nil
}

// Train is a one-shot NewClusterer(cfg).Train(ctx, records).
func Train(ctx context.Context, records []preference.AttributeVector, cfg TrainConfig, opts ...Option) (*TrainResult, error) {
	c, err := NewClusterer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return c.Train(ctx, records)
}

// Config returns the effective configuration.
func (c *Clusterer) Config() TrainConfig { return c.cfg }

// State returns the state reached by the last run.
func (c *Clusterer) State() State { return c.state }

func (c *Clusterer) enter(s State) {
	c.state = s
	if c.observer != nil {
		c.observer(s)
	}
}

// Train partitions records. Every record must carry every schema field. The
// run either reaches Trained or returns an error without a result.
func (c *Clusterer) Train(ctx context.Context, records []preference.AttributeVector) (*TrainResult, error) {
	started := time.Now()
	c.enter(StateUnpartitioned)

	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeNoRecords, "no records to cluster")
	}
	for i, r := range records {
		if !r.Complete() {
			return nil, errors.Newf(errors.ErrCodeSchemaViolation, "record %d is missing a required field", i).
				WithDetail("missing=" + strings.Join(r.Missing(), ","))
		}
	}

	seed := c.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	log := c.logger.With(logging.Int64("seed", seed), logging.Int("records", len(records)))

	// Unpartitioned → InitiallyPartitioned
	initial, err := kmodes.Run(ctx, records, kmodes.Config{
		K:        c.cfg.TargetInitialGroups,
		Restarts: c.cfg.InitRestarts,
		MaxIter:  c.cfg.MaxRounds,
		Rand:     rng,
	})
	if err != nil {
		return nil, err
	}
	partition := cluster.PartitionFromAssignments(initial.Assignments)
	silhouette := kmodes.Silhouette(records, initial.Assignments, c.cfg.SilhouetteSample, rng)
	c.enter(StateInitiallyPartitioned)
	log.Info("initial partition complete",
		logging.Int("groups", initial.K),
		logging.Int("cost", initial.Cost),
		logging.Int("iterations", initial.Iterations),
		logging.Float64("silhouette", silhouette))

	// InitiallyPartitioned → Balancing
	c.enter(StateBalancing)
	balancer := NewBalancer(c.cfg.MinGroupSize, c.cfg.MaxGroupSize, &KModesSplitter{
		Restarts: c.cfg.SplitRestarts,
		MaxIter:  c.cfg.MaxRounds,
		Rand:     rng,
	}, log)

	var last PassStats
	iterations, converged := 0, false
	for iterations < c.cfg.BalanceIterationBudget {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := partition.GroupCount()
		last, err = balancer.Balance(ctx, records, partition)
		if err != nil {
			return nil, err
		}
		iterations++
		after := partition.GroupCount()
		log.Debug("balance iteration",
			logging.Int("iteration", iterations),
			logging.Int("groups_before", before),
			logging.Int("groups_after", after),
			logging.Int("merged", last.Merged),
			logging.Int("split", last.Split))
		if after == before {
			converged = true
			break
		}
	}
	if !converged {
		log.Warn("balance iteration budget exhausted", logging.Int("budget", c.cfg.BalanceIterationBudget))
	}
	for r := 0; r < c.cfg.AdditionalSplitRounds; r++ {
		split, err := balancer.SplitPass(ctx, records, partition)
		if err != nil {
			return nil, err
		}
		last.Split += split.Split
		last.Unsplit = split.Unsplit
	}

	// Balancing → Verified
	report := c.verify(partition)
	c.enter(StateVerified)
	if !report.Complete {
		log.Error("partition incomplete", logging.Int("unlabeled", len(report.Unlabeled)))
	}
	addLeftovers(&last, report, log)

	// Verified → LabelsNormalized
	mapping := partition.NormalizeLabels()
	relabelReport(&report, mapping)
	relabelStats(&last, mapping)
	c.enter(StateLabelsNormalized)

	// LabelsNormalized → Trained
	centroids, err := cluster.DeriveCentroidTable(records, partition)
	if err != nil {
		return nil, err
	}
	c.enter(StateTrained)

	log.Info("training complete",
		logging.Int("groups", report.GroupCount),
		logging.Int("balance_iterations", iterations),
		logging.Bool("converged", converged),
		logging.Bool("complete", report.Complete),
		logging.Int("undersized", len(report.Undersized)),
		logging.Int("oversized", len(report.Oversized)),
		logging.Any("distribution", report.Distribution))

	return &TrainResult{
		Partition:         partition,
		Centroids:         centroids,
		Report:            report,
		Seed:              seed,
		InitialGroups:     initial.K,
		InitialCost:       initial.Cost,
		Silhouette:        silhouette,
		BalanceIterations: iterations,
		Converged:         converged,
		Unresolved:        last,
		LabelMapping:      mapping,
		Duration:          time.Since(started),
	}, nil
}

func (c *Clusterer) verify(p *cluster.Partition) VerificationReport {
	unlabeled := p.Unlabeled()
	dist := p.Distribution()
	r := VerificationReport{
		Complete:     len(unlabeled) == 0,
		Unlabeled:    unlabeled,
		RecordCount:  p.Len(),
		GroupCount:   len(dist),
		Distribution: dist,
	}
	for _, g := range dist {
		switch {
		case g.Size < c.cfg.MinGroupSize:
			r.Undersized = append(r.Undersized, g)
		case g.Size > c.cfg.MaxGroupSize:
			r.Oversized = append(r.Oversized, g)
		}
	}
	return r
}

// addLeftovers records groups the report still finds outside the size band
// that no balancing pass listed.
func addLeftovers(s *PassStats, r VerificationReport, log logging.Logger) {
	known := make(map[cluster.Label]bool, len(s.Unmerged)+len(s.Unsplit))
	for _, l := range s.Unmerged {
		known[l] = true
	}
	for _, l := range s.Unsplit {
		known[l] = true
	}
	for _, g := range r.Undersized {
		if known[g.Label] {
			continue
		}
		log.Warn("undersized group left after split rounds",
			logging.String("code", errors.ErrCodeEmptyGroupTarget.String()),
			logging.String("label", string(g.Label)),
			logging.Int("size", g.Size))
		s.Unmerged = append(s.Unmerged, g.Label)
	}
	for _, g := range r.Oversized {
		if !known[g.Label] {
			s.Unsplit = append(s.Unsplit, g.Label)
		}
	}
}

func relabelStats(s *PassStats, mapping map[cluster.Label]cluster.Label) {
	for _, list := range [][]cluster.Label{s.Unmerged, s.Unsplit} {
		for i, l := range list {
			if to, ok := mapping[l]; ok {
				list[i] = to
			}
		}
	}
}

func relabelReport(r *VerificationReport, mapping map[cluster.Label]cluster.Label) {
	for _, list := range [][]cluster.GroupSize{r.Distribution, r.Undersized, r.Oversized} {
		for i := range list {
			list[i].Label = mapping[list[i].Label]
		}
	}
}

//Personal.AI order the ending
