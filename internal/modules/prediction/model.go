// README: Prediction record and the immutable runtime (schema, predictor, reference average) it is computed with.
package prediction

import (
	"errors"
	"fmt"
	"time"

	"taxieta/internal/modules/duration"
	"taxieta/internal/modules/features"
	"taxieta/internal/predictor"
	"taxieta/internal/types"
)

var (
	ErrNotFound   = errors.New("prediction not found")
	ErrBadRequest = errors.New("bad request")
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

// Runtime is built once at startup and shared read-only by every request.
type Runtime struct {
	Schema    features.Schema
	Predictor predictor.Predictor
	Average   float64
	Coverage  features.Coverage
}

// NewRuntime checks how the derivable feature names cover the expected columns.
// Gaps are recorded on the runtime; strict turns them into ErrSchemaMismatch.
func NewRuntime(a *predictor.Artifacts, strict bool) (Runtime, error) {
	if a == nil || a.Predictor == nil || len(a.Schema) == 0 {
		return Runtime{}, fmt.Errorf("%w: incomplete artifacts", predictor.ErrArtifactMissing)
	}
	cov := features.CheckCoverage(a.Schema)
	if strict && !cov.Complete() {
		return Runtime{}, fmt.Errorf("%w: %s", features.ErrSchemaMismatch, cov)
	}
	return Runtime{
		Schema:    a.Schema,
		Predictor: a.Predictor,
		Average:   a.Average,
		Coverage:  cov,
	}, nil
}

type Prediction struct {
	ID          types.ID           `json:"id"`
	Inputs      features.RawInputs `json:"inputs"`
	Features    features.Features  `json:"features"`
	LogDuration float64            `json:"log_duration"`
	Result      duration.Result    `json:"result"`
	Average     float64            `json:"average_seconds"`
	// Cached is true when the log duration came from the vector cache rather than the predictor.
	Cached    bool      `json:"cached"`
	CreatedAt time.Time `json:"created_at"`
}

// SchemaReport is what the service exposes about the model's expected columns.
type SchemaReport struct {
	Columns  []string          `json:"columns"`
	Derived  []string          `json:"derived"`
	Coverage features.Coverage `json:"coverage"`
	Average  float64           `json:"average_seconds"`
}
