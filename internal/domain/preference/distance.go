package preference

// LocationMismatchWeight is the penalty for a destination mismatch under
// weighted distance. Every other field weighs 1.
const LocationMismatchWeight = 3

// DistanceMode selects a mismatch-counting policy.
type DistanceMode uint8

const (
	DistanceSimple DistanceMode = iota
	DistanceWeighted
)

func (m DistanceMode) String() string {
	switch m {
	case DistanceSimple:
		return "simple"
	case DistanceWeighted:
		return "weighted"
	default:
		return "unknown"
	}
}

// Weights assigns a mismatch penalty per field.
type Weights [NumFields]int

// UniformWeights counts every mismatch as 1.
var UniformWeights = Weights{1, 1, 1}

// LocationWeights counts a destination mismatch as LocationMismatchWeight.
var LocationWeights = Weights{LocationMismatchWeight, 1, 1}

// WeightedBy returns the mismatch score of a and b under w. A field absent on
// either side always counts as a mismatch.
func WeightedBy(w Weights, a, b AttributeVector) int {
	d := 0
	for i := 0; i < NumFields; i++ {
		if !a.present[i] || !b.present[i] || a.values[i] != b.values[i] {
			d += w[i]
		}
	}
	return d
}

// Simple is the Hamming distance over normalized fields, in [0, NumFields].
func Simple(a, b AttributeVector) int {
	return WeightedBy(UniformWeights, a, b)
}

// Weighted is Simple with the location field weighted by LocationMismatchWeight.
func Weighted(a, b AttributeVector) int {
	return WeightedBy(LocationWeights, a, b)
}

// Distance dispatches on mode.
func Distance(mode DistanceMode, a, b AttributeVector) int {
	if mode == DistanceWeighted {
		return Weighted(a, b)
	}
	return Simple(a, b)
}

//Personal.AI order the ending
