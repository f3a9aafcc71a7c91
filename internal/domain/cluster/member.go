package cluster

import (
	"time"

	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// Member is a persisted record-to-group assignment.
type Member struct {
	RecordID   string                     `json:"record_id"`
	RunID      string                     `json:"run_id"`
	Label      Label                      `json:"label"`
	Vector     preference.AttributeVector `json:"vector"`
	AssignedAt time.Time                  `json:"assigned_at"`
}

// NewMembers pairs record IDs with partition labels. ids and records must be
// index-aligned with p.
func NewMembers(runID string, ids []string, records []preference.AttributeVector, p *Partition, at time.Time) ([]Member, error) {
	if len(ids) != p.Len() || len(records) != p.Len() {
		return nil, errors.Newf(errors.ErrCodeInternal, "members: %d ids and %d records for a partition of %d", len(ids), len(records), p.Len())
	}
	out := make([]Member, p.Len())
	for i := range out {
		out[i] = Member{RecordID: ids[i], RunID: runID, Label: p.Label(i), Vector: records[i], AssignedAt: at}
	}
	return out, nil
}

//Personal.AI order the ending
