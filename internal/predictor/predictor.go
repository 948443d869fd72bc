// Package predictor wraps the pre-trained trip-duration regression artifact.
//
// A Predictor is loaded once at startup, is safe for concurrent use and keeps
// no state between calls. Its output is a log1p-scale duration in seconds.
package predictor

import (
	"context"
	"errors"
	"fmt"

	"taxieta/internal/modules/features"
)

var (
	ErrArtifactMissing      = errors.New("startup artifact missing")
	ErrInvalidArtifact      = errors.New("invalid model artifact")
	ErrVectorShape          = errors.New("input vector does not match model columns")
	ErrPredictorUnavailable = errors.New("predictor unavailable")
	ErrPredictionFailed     = errors.New("prediction failed")
)

type Predictor interface {
	// Predict returns the log-scale duration for one aligned input vector.
	Predict(ctx context.Context, v features.Vector) (float64, error)
	// Columns is the schema the artifact was trained with, or nil when the backend does not declare one.
	Columns() features.Schema
}

// Kind names a file artifact format.
type Kind string

const (
	KindLinear       Kind = "linear"
	KindTreeEnsemble Kind = "tree_ensemble"
)

func checkShape(v features.Vector, columns features.Schema) error {
	if len(v) != len(columns) {
		return fmt.Errorf("%w: got %d values for %d columns", ErrVectorShape, len(v), len(columns))
	}
	return nil
}
