// Package preference defines the categorical travel-preference record shared by
// training and assignment: a fixed, schema-validated AttributeVector and the
// mismatch distances computed over it.
package preference

import (
	"encoding/json"
	"strings"

	"github.com/turtacn/TripMatch/pkg/errors"
)

// Field identifies one categorical attribute of the schema.
type Field uint8

const (
	FieldDestination Field = iota
	FieldSpontaneous
	FieldDepartureTiming

	// NumFields is the schema width.
	NumFields = 3
)

// Column names as they appear in ingested tables and API payloads. The
// spelling of "isspontanious" is the historical one and is kept as-is.
const (
	ColumnDestination     = "wantstotravelto"
	ColumnSpontaneous     = "isspontanious"
	ColumnDepartureTiming = "wantstoleaveon"
)

// LocationField is the field whose mismatch weighs more in weighted distance.
const LocationField = FieldDestination

var fieldColumns = [NumFields]string{ColumnDestination, ColumnSpontaneous, ColumnDepartureTiming}

// legacyColumns maps truncated headers produced by older exports.
var legacyColumns = map[string]string{
	"wantstotr":  ColumnDestination,
	"wantstole":  ColumnDepartureTiming,
	"isspontani": ColumnSpontaneous,
}

// Schema returns the fields in their fixed order.
func Schema() []Field {
	return []Field{FieldDestination, FieldSpontaneous, FieldDepartureTiming}
}

// Columns returns the column names in schema order.
func Columns() []string {
	out := make([]string, NumFields)
	copy(out, fieldColumns[:])
	return out
}

func (f Field) String() string {
	if f.IsValid() {
		return fieldColumns[f]
	}
	return "unknown"
}

func (f Field) IsValid() bool {
	return f < NumFields
}

// NormalizeColumn lower-cases a header, removes spaces and resolves legacy
// truncated names.
func NormalizeColumn(name string) string {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
	if canonical, ok := legacyColumns[n]; ok {
		return canonical
	}
	return n
}

// FieldForColumn resolves a (possibly un-normalized) column name to a Field.
func FieldForColumn(name string) (Field, bool) {
	n := NormalizeColumn(name)
	for i, c := range fieldColumns {
		if c == n {
			return Field(i), true
		}
	}
	return 0, false
}

// Normalize is the comparison form of a value: case-folded and trimmed.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// ─────────────────────────────────────────────────────────────────────────────
// AttributeVector
// ─────────────────────────────────────────────────────────────────────────────

// AttributeVector holds one record's normalized categorical values. It is
// immutable once constructed. The zero value has no fields present; distance
// functions treat absent fields as mismatches.
type AttributeVector struct {
	values  [NumFields]string
	present [NumFields]bool
}

// New builds an AttributeVector from raw named fields. Keys are matched after
// column normalization; unknown keys are ignored. A missing or blank required
// field yields ErrCodeSchemaViolation.
func New(raw map[string]string) (AttributeVector, error) {
	var v AttributeVector
	for k, val := range raw {
		f, ok := FieldForColumn(k)
		if !ok {
			continue
		}
		n := Normalize(val)
		if n == "" {
			continue
		}
		v.values[f] = n
		v.present[f] = true
	}
	if missing := v.Missing(); len(missing) > 0 {
		return AttributeVector{}, errors.New(errors.ErrCodeSchemaViolation, "record is missing a required field").
			WithDetail("missing=" + strings.Join(missing, ","))
	}
	return v, nil
}

// Of builds an AttributeVector from values in schema order.
func Of(destination, spontaneous, departureTiming string) (AttributeVector, error) {
	return New(map[string]string{
		ColumnDestination:     destination,
		ColumnSpontaneous:     spontaneous,
		ColumnDepartureTiming: departureTiming,
	})
}

// MustOf is Of for literals in tests and fixtures. It panics on a schema violation.
func MustOf(destination, spontaneous, departureTiming string) AttributeVector {
	v, err := Of(destination, spontaneous, departureTiming)
	if err != nil {
		panic(err)
	}
	return v
}

// FromValues builds a vector from already-normalized values; empty strings
// become absent fields. Used when reconstructing modes.
func FromValues(values [NumFields]string) AttributeVector {
	var v AttributeVector
	for i, val := range values {
		if val != "" {
			v.values[i] = val
			v.present[i] = true
		}
	}
	return v
}

// Get returns the normalized value of f and whether it is present.
func (v AttributeVector) Get(f Field) (string, bool) {
	if !f.IsValid() {
		return "", false
	}
	return v.values[f], v.present[f]
}

// Value returns the normalized value of f, or "" when absent.
func (v AttributeVector) Value(f Field) string {
	s, _ := v.Get(f)
	return s
}

// Destination, Spontaneous and DepartureTiming are shorthands for Value.
func (v AttributeVector) Destination() string     { return v.Value(FieldDestination) }
func (v AttributeVector) Spontaneous() string     { return v.Value(FieldSpontaneous) }
func (v AttributeVector) DepartureTiming() string { return v.Value(FieldDepartureTiming) }

// Values returns the normalized values in schema order.
func (v AttributeVector) Values() [NumFields]string {
	return v.values
}

// Complete reports whether every schema field is present.
func (v AttributeVector) Complete() bool {
	for _, p := range v.present {
		if !p {
			return false
		}
	}
	return true
}

// Missing lists the column names of absent fields.
func (v AttributeVector) Missing() []string {
	var out []string
	for i, p := range v.present {
		if !p {
			out = append(out, fieldColumns[i])
		}
	}
	return out
}

// Equal reports field-wise equality under normalization. Absent fields never
// compare equal, not even to each other.
func (v AttributeVector) Equal(o AttributeVector) bool {
	for i := 0; i < NumFields; i++ {
		if !v.present[i] || !o.present[i] || v.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// Key is a stable string form usable as a map or cache key.
func (v AttributeVector) Key() string {
	return strings.Join(v.values[:], "\x1f")
}

// Map returns the vector as column → normalized value.
func (v AttributeVector) Map() map[string]string {
	out := make(map[string]string, NumFields)
	for i, c := range fieldColumns {
		if v.present[i] {
			out[c] = v.values[i]
		}
	}
	return out
}

func (v AttributeVector) String() string {
	return strings.Join(v.values[:], "/")
}

// MarshalJSON encodes the vector as an object keyed by column name.
func (v AttributeVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

// UnmarshalJSON decodes and validates an object keyed by column name.
func (v *AttributeVector) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "invalid attribute vector")
	}
	parsed, err := New(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

//Personal.AI order the ending
