// README: Aligner places engineered features into the model's positional input vector.
package features

import (
	"fmt"
	"strings"
)

// Schema is the ordered list of column names the model was trained on.
type Schema []string

// Vector is a model input, positionally matching a Schema.
type Vector []float64

// NewSchema copies columns and rejects structurally unusable schemas (empty, blank or duplicate names).
func NewSchema(columns []string) (Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: expected columns list is empty", ErrSchemaMismatch)
	}
	seen := make(map[string]int, len(columns))
	out := make(Schema, len(columns))
	for i, c := range columns {
		name := strings.TrimSpace(c)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has an empty name", ErrSchemaMismatch, i)
		}
		if j, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: column %q appears at %d and %d", ErrSchemaMismatch, name, j, i)
		}
		seen[name] = i
		out[i] = name
	}
	return out, nil
}

// Equal reports whether both schemas list the same names in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Align returns one value per schema column: the feature value when present, else 0.
// Features not named by the schema are dropped.
func Align(f Features, schema Schema) Vector {
	v := make(Vector, len(schema))
	for i, name := range schema {
		v[i] = f[name]
	}
	return v
}

// Coverage describes how the derivable feature names and a schema overlap.
type Coverage struct {
	// Dropped are names Derive emits that the schema never reads.
	Dropped []string `json:"dropped"`
	// ZeroFilled are schema columns Derive never emits; Align always writes 0 for them.
	ZeroFilled []string `json:"zero_filled"`
}

// Complete is true when every derived name is consumed and every column is produced.
func (c Coverage) Complete() bool {
	return len(c.Dropped) == 0 && len(c.ZeroFilled) == 0
}

func (c Coverage) String() string {
	if c.Complete() {
		return "complete"
	}
	return fmt.Sprintf("dropped=[%s] zero_filled=[%s]",
		strings.Join(c.Dropped, ","), strings.Join(c.ZeroFilled, ","))
}

// CheckCoverage compares schema against Names().
func CheckCoverage(schema Schema) Coverage {
	derived := Names()
	inSchema := make(map[string]struct{}, len(schema))
	for _, c := range schema {
		inSchema[c] = struct{}{}
	}
	inDerived := make(map[string]struct{}, len(derived))
	for _, n := range derived {
		inDerived[n] = struct{}{}
	}

	var cov Coverage
	for _, n := range derived {
		if _, ok := inSchema[n]; !ok {
			cov.Dropped = append(cov.Dropped, n)
		}
	}
	for _, c := range schema {
		if _, ok := inDerived[c]; !ok {
			cov.ZeroFilled = append(cov.ZeroFilled, c)
		}
	}
	return cov
}

// RequireCoverage fails with ErrSchemaMismatch when coverage is incomplete.
func RequireCoverage(schema Schema) error {
	cov := CheckCoverage(schema)
	if cov.Complete() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, cov)
}
