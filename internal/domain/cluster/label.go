// Package cluster models the output of training: group labels, the
// record-to-group Partition and the CentroidTable derived from it.
package cluster

import (
	"strconv"
	"strings"
)

// Label identifies a group. Trained models carry dense integer labels
// ("0", "1", ...). During balancing a split produces composite labels of the
// form "<parent>_<child>".
type Label string

const labelSep = "_"

// IntLabel returns the label for integer i.
func IntLabel(i int) Label {
	return Label(strconv.Itoa(i))
}

// Child returns the composite sub-label "<l>_<i>".
func (l Label) Child(i int) Label {
	return Label(string(l) + labelSep + strconv.Itoa(i))
}

// IsComposite reports whether l was produced by a split.
func (l Label) IsComposite() bool {
	return strings.Contains(string(l), labelSep)
}

// Int parses a non-composite label.
func (l Label) Int() (int, bool) {
	if l.IsComposite() {
		return 0, false
	}
	n, err := strconv.Atoi(string(l))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (l Label) String() string { return string(l) }

// Compare orders labels segment by segment. Numeric segments compare
// numerically and sort before non-numeric ones; a label sorts before its own
// children. So "2" < "10", "3" < "3_0" < "3_1" < "3_10" < "4".
func Compare(a, b Label) int {
	as := strings.Split(string(a), labelSep)
	bs := strings.Split(string(b), labelSep)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

// Less is Compare(a, b) < 0.
func Less(a, b Label) bool { return Compare(a, b) < 0 }

func compareSegment(a, b string) int {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return strings.Compare(a, b)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

//Personal.AI order the ending
