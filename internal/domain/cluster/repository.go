package cluster

import (
	"context"
	"encoding/json"
	"time"
)

// TrainingRun is the persisted summary of one published model.
type TrainingRun struct {
	RunID       string          `json:"run_id"`
	TrainedAt   time.Time       `json:"trained_at"`
	GroupCount  int             `json:"group_count"`
	RecordCount int             `json:"record_count"`
	Seed        int64           `json:"seed"`
	Silhouette  float64         `json:"silhouette"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// MemberRepository defines the persistence contract for group membership.
type MemberRepository interface {
	// SaveRun records run and replaces every stored assignment with members,
	// atomically.
	SaveRun(ctx context.Context, run TrainingRun, members []Member) error
	LatestRun(ctx context.Context) (*TrainingRun, error)

	// UpsertMember stores the assignment of a single record.
	UpsertMember(ctx context.Context, m Member) error
	GetMember(ctx context.Context, recordID string) (*Member, error)
	// ListGroupMembers pages through a group ordered by record id, leaving
	// out excludeRecordID when it is non-empty.
	ListGroupMembers(ctx context.Context, label Label, excludeRecordID string, limit, offset int) ([]Member, error)
	CountByGroup(ctx context.Context) ([]GroupSize, error)
}

//Personal.AI order the ending
