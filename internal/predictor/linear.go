package predictor

import (
	"context"
	"fmt"
	"math"

	"taxieta/internal/modules/features"
)

type linearArtifact struct {
	Kind      Kind      `json:"kind"`
	Columns   []string  `json:"columns"`
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
}

// Linear computes intercept + Σ weight_i·x_i.
type Linear struct {
	columns   features.Schema
	intercept float64
	weights   []float64
}

func NewLinear(columns []string, intercept float64, weights []float64) (*Linear, error) {
	schema, err := features.NewSchema(columns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if len(weights) != len(schema) {
		return nil, fmt.Errorf("%w: %d weights for %d columns", ErrInvalidArtifact, len(weights), len(schema))
	}
	if !finite(intercept) {
		return nil, fmt.Errorf("%w: intercept is not finite", ErrInvalidArtifact)
	}
	for i, w := range weights {
		if !finite(w) {
			return nil, fmt.Errorf("%w: weight %d (%s) is not finite", ErrInvalidArtifact, i, schema[i])
		}
	}
	ws := make([]float64, len(weights))
	copy(ws, weights)
	return &Linear{columns: schema, intercept: intercept, weights: ws}, nil
}

func (m *Linear) Columns() features.Schema { return m.columns }

func (m *Linear) Predict(_ context.Context, v features.Vector) (float64, error) {
	if err := checkShape(v, m.columns); err != nil {
		return 0, err
	}
	y := m.intercept
	for i, x := range v {
		y += m.weights[i] * x
	}
	return y, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
