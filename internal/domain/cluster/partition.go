package cluster

import (
	"sort"

	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// Unlabeled marks a record without a group.
const Unlabeled Label = ""

// Group is a labeled set of record indices.
type Group struct {
	Label   Label `json:"label"`
	Members []int `json:"members"`
}

// Size returns the member count.
func (g Group) Size() int { return len(g.Members) }

// Centroid returns the field-wise mode of the group's members.
func (g Group) Centroid(records []preference.AttributeVector) preference.AttributeVector {
	return Mode(records, g.Members)
}

// GroupSize is one row of a size distribution.
type GroupSize struct {
	Label Label `json:"label"`
	Size  int   `json:"size"`
}

// Partition maps record index to group label. Record identity is the index
// of the record in the training input.
type Partition struct {
	labels []Label
}

// NewPartition returns a partition of n unlabeled records.
func NewPartition(n int) *Partition {
	return &Partition{labels: make([]Label, n)}
}

// PartitionFromAssignments builds a partition from integer group indices.
func PartitionFromAssignments(assignments []int) *Partition {
	p := NewPartition(len(assignments))
	for i, a := range assignments {
		p.labels[i] = IntLabel(a)
	}
	return p
}

// PartitionFromLabels copies labels into a new partition.
func PartitionFromLabels(labels []Label) *Partition {
	p := NewPartition(len(labels))
	copy(p.labels, labels)
	return p
}

// Len returns the number of records.
func (p *Partition) Len() int { return len(p.labels) }

// Label returns the label of record i.
func (p *Partition) Label(i int) Label { return p.labels[i] }

// Set labels record i.
func (p *Partition) Set(i int, l Label) { p.labels[i] = l }

// Labels returns a copy of the per-record labels.
func (p *Partition) Labels() []Label {
	out := make([]Label, len(p.labels))
	copy(out, p.labels)
	return out
}

// Clone returns a deep copy.
func (p *Partition) Clone() *Partition {
	return PartitionFromLabels(p.labels)
}

// Groups returns the non-empty groups in ascending label order. Unlabeled
// records are not part of any group.
func (p *Partition) Groups() []Group {
	byLabel := make(map[Label][]int)
	for i, l := range p.labels {
		if l == Unlabeled {
			continue
		}
		byLabel[l] = append(byLabel[l], i)
	}
	groups := make([]Group, 0, len(byLabel))
	for l, members := range byLabel {
		groups = append(groups, Group{Label: l, Members: members})
	}
	sort.Slice(groups, func(i, j int) bool { return Less(groups[i].Label, groups[j].Label) })
	return groups
}

// DistinctLabels returns the labels in use in ascending order.
func (p *Partition) DistinctLabels() []Label {
	seen := make(map[Label]struct{})
	for _, l := range p.labels {
		if l != Unlabeled {
			seen[l] = struct{}{}
		}
	}
	out := make([]Label, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// GroupCount returns the number of distinct labels in use.
func (p *Partition) GroupCount() int {
	seen := make(map[Label]struct{})
	for _, l := range p.labels {
		if l != Unlabeled {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}

// Members returns the indices of records labeled l.
func (p *Partition) Members(l Label) []int {
	var out []int
	for i, x := range p.labels {
		if x == l {
			out = append(out, i)
		}
	}
	return out
}

// Unlabeled returns the indices of records without a group.
func (p *Partition) Unlabeled() []int {
	var out []int
	for i, l := range p.labels {
		if l == Unlabeled {
			out = append(out, i)
		}
	}
	return out
}

// Distribution returns group sizes in ascending label order.
func (p *Partition) Distribution() []GroupSize {
	groups := p.Groups()
	out := make([]GroupSize, len(groups))
	for i, g := range groups {
		out[i] = GroupSize{Label: g.Label, Size: g.Size()}
	}
	return out
}

// Relabel applies mapping to every labeled record. Every label in use must
// have an entry; membership is unchanged.
func (p *Partition) Relabel(mapping map[Label]Label) error {
	for _, l := range p.DistinctLabels() {
		if _, ok := mapping[l]; !ok {
			return errors.Newf(errors.ErrCodeInternal, "relabel mapping has no entry for label %q", l)
		}
	}
	for i, l := range p.labels {
		if l != Unlabeled {
			p.labels[i] = mapping[l]
		}
	}
	return nil
}

// NormalizeLabels remaps the labels in use to the dense range 0..N-1 in
// ascending label order and returns the mapping applied.
func (p *Partition) NormalizeLabels() map[Label]Label {
	distinct := p.DistinctLabels()
	mapping := make(map[Label]Label, len(distinct))
	for i, l := range distinct {
		mapping[l] = IntLabel(i)
	}
	// Every label has an entry, so Relabel cannot fail here.
	_ = p.Relabel(mapping)
	return mapping
}

// ─────────────────────────────────────────────────────────────────────────────
// Mode
// ─────────────────────────────────────────────────────────────────────────────

// Mode returns the field-wise most frequent value over records[members].
// Ties go to the lexicographically smallest value. Absent values are not
// counted; a field absent on every member stays absent.
func Mode(records []preference.AttributeVector, members []int) preference.AttributeVector {
	var out [preference.NumFields]string
	for f := 0; f < preference.NumFields; f++ {
		counts := make(map[string]int)
		for _, m := range members {
			if v, ok := records[m].Get(preference.Field(f)); ok {
				counts[v]++
			}
		}
		best, bestN := "", 0
		for v, n := range counts {
			if n > bestN || (n == bestN && v < best) {
				best, bestN = v, n
			}
		}
		out[f] = best
	}
	return preference.FromValues(out)
}

//Personal.AI order the ending
