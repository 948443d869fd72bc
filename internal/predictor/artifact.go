// README: Startup artifact loaders (model, expected columns, reference average); zstd-aware.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"taxieta/internal/modules/features"
)

const zstdSuffix = ".zst"

// maxArtifactBytes caps a decompressed artifact.
const maxArtifactBytes = 256 << 20

// Paths locates the three startup artifacts.
type Paths struct {
	Model   string
	Columns string
	Average string
}

// Artifacts are the process-wide, read-only inputs of the prediction pipeline.
type Artifacts struct {
	Schema    features.Schema
	Predictor Predictor
	Average   float64
}

type loadOptions struct {
	predictor Predictor
}

type LoadOption func(*loadOptions)

// WithPredictor skips reading Paths.Model and uses p instead (e.g. a remote backend).
func WithPredictor(p Predictor) LoadOption {
	return func(o *loadOptions) { o.predictor = p }
}

// LoadArtifacts reads all artifacts concurrently and checks that the model and
// the expected columns agree on names and order.
func LoadArtifacts(ctx context.Context, paths Paths, opts ...LoadOption) (*Artifacts, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		schema  features.Schema
		model   = o.predictor
		average float64
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		schema, err = LoadColumns(paths.Columns)
		return err
	})
	g.Go(func() error {
		var err error
		average, err = LoadAverage(paths.Average)
		return err
	})
	if model == nil {
		g.Go(func() error {
			var err error
			model, err = LoadModel(paths.Model)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cols := model.Columns(); cols != nil && !cols.Equal(schema) {
		return nil, fmt.Errorf("%w: model trained on %d columns %v, expected columns file lists %d %v",
			features.ErrSchemaMismatch, len(cols), []string(cols), len(schema), []string(schema))
	}
	return &Artifacts{Schema: schema, Predictor: model, Average: average}, nil
}

// LoadModel reads a JSON model artifact (optionally zstd-compressed).
func LoadModel(path string) (Predictor, error) {
	raw, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	return ParseModel(raw)
}

// ParseModel decodes a model artifact by its "kind" field.
func ParseModel(raw []byte) (Predictor, error) {
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	switch head.Kind {
	case KindLinear:
		var a linearArtifact
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
		return NewLinear(a.Columns, a.Intercept, a.Weights)
	case KindTreeEnsemble:
		var a treeEnsembleArtifact
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
		return newTreeEnsemble(a)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidArtifact, head.Kind)
	}
}

// LoadColumns reads the ordered expected feature names (a JSON array of strings).
func LoadColumns(path string) (features.Schema, error) {
	raw, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	var cols []string
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, fmt.Errorf("%w: columns %s: %v", ErrInvalidArtifact, path, err)
	}
	return features.NewSchema(cols)
}

// LoadAverage reads the reference average duration in seconds, either a bare
// JSON number or {"avg_duration_seconds": n}.
func LoadAverage(path string) (float64, error) {
	raw, err := readArtifact(path)
	if err != nil {
		return 0, err
	}
	var avg float64
	if err := json.Unmarshal(raw, &avg); err != nil {
		var wrapped struct {
			Seconds *float64 `json:"avg_duration_seconds"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil || wrapped.Seconds == nil {
			return 0, fmt.Errorf("%w: average %s: %v", ErrInvalidArtifact, path, err)
		}
		avg = *wrapped.Seconds
	}
	if math.IsNaN(avg) || math.IsInf(avg, 0) || avg < 0 {
		return 0, fmt.Errorf("%w: average %s must be a finite non-negative number, got %v", ErrInvalidArtifact, path, avg)
	}
	return avg, nil
}

func readArtifact(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrArtifactMissing)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactMissing, path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, zstdSuffix) {
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd %s: %v", ErrInvalidArtifact, path, err)
		}
		defer dec.Close()
		r = dec
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxArtifactBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidArtifact, path, err)
	}
	if n > maxArtifactBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidArtifact, path, maxArtifactBytes)
	}
	return buf.Bytes(), nil
}
