// README: Remote predictor; forwards aligned vectors to a model-serving endpoint behind a circuit breaker.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"taxieta/internal/modules/features"
)

type remoteRequest struct {
	Columns   []string    `json:"columns"`
	Instances [][]float64 `json:"instances"`
}

type remoteResponse struct {
	Predictions []float64 `json:"predictions"`
}

// Remote calls POST {endpoint}/predict. It sends the expected column names with
// every request so the server can reject a schema it was not trained on.
type Remote struct {
	endpoint string
	client   *http.Client
	schema   features.Schema
	breaker  *gobreaker.CircuitBreaker[float64]
}

type RemoteOption func(*Remote)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

// WithSchema sets the column names sent alongside each vector.
func WithSchema(s features.Schema) RemoteOption {
	return func(r *Remote) { r.schema = s }
}

func NewRemote(endpoint string, timeout time.Duration, opts ...RemoteOption) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &Remote{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breaker = gobreaker.NewCircuitBreaker[float64](gobreaker.Settings{
		Name:        "predictor:" + r.endpoint,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A rejected vector is the caller's problem, not an outage.
			return err == nil || errors.Is(err, ErrVectorShape)
		},
	})
	return r
}

func (r *Remote) Columns() features.Schema { return nil }

func (r *Remote) Predict(ctx context.Context, v features.Vector) (float64, error) {
	if r.schema != nil {
		if err := checkShape(v, r.schema); err != nil {
			return 0, err
		}
	}
	y, err := r.breaker.Execute(func() (float64, error) {
		return r.call(ctx, v)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	return y, err
}

func (r *Remote) call(ctx context.Context, v features.Vector) (float64, error) {
	body, err := json.Marshal(remoteRequest{Columns: r.schema, Instances: [][]float64{v}})
	if err != nil {
		return 0, fmt.Errorf("%w: marshal request: %v", ErrPredictionFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %v", ErrPredictionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%w: %s", ErrVectorShape, strings.TrimSpace(string(msg)))
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: model service returned %s", ErrPredictorUnavailable, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("%w: model service returned %s", ErrPredictionFailed, resp.Status)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrPredictionFailed, err)
	}
	if len(out.Predictions) != 1 {
		return 0, fmt.Errorf("%w: expected 1 prediction, got %d", ErrPredictionFailed, len(out.Predictions))
	}
	return out.Predictions[0], nil
}
