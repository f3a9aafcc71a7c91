package cluster

import (
	"encoding/json"
	"sort"

	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// Centroid is a group's representative vector.
type Centroid struct {
	Label  Label                      `json:"label"`
	Vector preference.AttributeVector `json:"vector"`
	Size   int                        `json:"size"`
}

// CentroidTable maps group label to centroid. Entries are kept in ascending
// label order, which is the scan order used for assignment. A table is
// immutable after construction and safe for concurrent reads.
type CentroidTable struct {
	entries []Centroid
	index   map[Label]int
}

// NewCentroidTable sorts entries by label and rejects duplicate labels and
// incomplete vectors.
func NewCentroidTable(entries []Centroid) (*CentroidTable, error) {
	sorted := make([]Centroid, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i].Label, sorted[j].Label) })

	index := make(map[Label]int, len(sorted))
	for i, c := range sorted {
		if c.Label == Unlabeled {
			return nil, errors.New(errors.ErrCodeValidation, "centroid has an empty label")
		}
		if _, dup := index[c.Label]; dup {
			return nil, errors.Newf(errors.ErrCodeValidation, "duplicate centroid label %q", c.Label)
		}
		if !c.Vector.Complete() {
			return nil, errors.Newf(errors.ErrCodeSchemaViolation, "centroid %q is missing fields", c.Label)
		}
		index[c.Label] = i
	}
	return &CentroidTable{entries: sorted, index: index}, nil
}

// DeriveCentroidTable computes one centroid per group of p over records.
func DeriveCentroidTable(records []preference.AttributeVector, p *Partition) (*CentroidTable, error) {
	if p.Len() != len(records) {
		return nil, errors.Newf(errors.ErrCodeInternal, "partition covers %d records, have %d", p.Len(), len(records))
	}
	groups := p.Groups()
	entries := make([]Centroid, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, Centroid{Label: g.Label, Vector: g.Centroid(records), Size: g.Size()})
	}
	return NewCentroidTable(entries)
}

// Len returns the number of centroids. A nil table is empty.
func (t *CentroidTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns the centroids in ascending label order.
func (t *CentroidTable) Entries() []Centroid {
	if t == nil {
		return nil
	}
	out := make([]Centroid, len(t.entries))
	copy(out, t.entries)
	return out
}

// Each calls fn for every centroid in ascending label order until fn returns false.
func (t *CentroidTable) Each(fn func(c Centroid) bool) {
	if t == nil {
		return
	}
	for _, c := range t.entries {
		if !fn(c) {
			return
		}
	}
}

// Lookup returns the centroid for l.
func (t *CentroidTable) Lookup(l Label) (Centroid, bool) {
	if t == nil {
		return Centroid{}, false
	}
	i, ok := t.index[l]
	if !ok {
		return Centroid{}, false
	}
	return t.entries[i], true
}

// Labels returns the labels in ascending order.
func (t *CentroidTable) Labels() []Label {
	if t == nil {
		return nil
	}
	out := make([]Label, len(t.entries))
	for i, c := range t.entries {
		out[i] = c.Label
	}
	return out
}

// MarshalJSON encodes the table as an array of centroids.
func (t *CentroidTable) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.entries)
}

// UnmarshalJSON decodes and validates an array of centroids.
func (t *CentroidTable) UnmarshalJSON(data []byte) error {
	var entries []Centroid
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "invalid centroid table")
	}
	parsed, err := NewCentroidTable(entries)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

//Personal.AI order the ending
