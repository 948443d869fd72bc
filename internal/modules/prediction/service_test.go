package prediction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxieta/internal/modules/duration"
	"taxieta/internal/modules/features"
	"taxieta/internal/predictor"
	"taxieta/internal/types"
)

// constPredictor returns a fixed log duration and remembers the last vector it saw.
type constPredictor struct {
	mu    sync.Mutex
	out   float64
	err   error
	calls int
	last  features.Vector
}

func (p *constPredictor) Predict(_ context.Context, v features.Vector) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = append(features.Vector(nil), v...)
	return p.out, p.err
}

func (p *constPredictor) Columns() features.Schema { return nil }

type mapCache struct {
	m      map[string]float64
	getErr error
	setErr error
}

func (c *mapCache) Get(_ context.Context, key string) (float64, bool, error) {
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, v float64) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.m[key] = v
	return nil
}

type failingStore struct{ *MemoryStore }

func (failingStore) Save(context.Context, *Prediction) error { return errors.New("db down") }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRuntime(t *testing.T, p predictor.Predictor) Runtime {
	t.Helper()
	schema, err := features.NewSchema(features.Names())
	require.NoError(t, err)
	rt, err := NewRuntime(&predictor.Artifacts{Schema: schema, Predictor: p, Average: 840}, true)
	require.NoError(t, err)
	return rt
}

func wednesdayTrip() features.RawInputs {
	return features.RawInputs{
		DistanceKm:    3.5,
		PickupHour:    14,
		PickupWeekday: features.Wednesday,
		PickupMonth:   6,
	}
}

func TestPredictEndToEnd(t *testing.T) {
	p := &constPredictor{out: duration.Encode(754)}
	svc := NewService(testRuntime(t, p), nil, nil, quietLogger())

	got, err := svc.Predict(context.Background(), wednesdayTrip())
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, 12, got.Result.Minutes)
	assert.Equal(t, 34, got.Result.Seconds)
	assert.False(t, got.Result.Degenerate)
	assert.False(t, got.Cached)
	assert.InDelta(t, 840.0, got.Average, 1e-9)

	assert.Equal(t, 2.0, got.Features[features.NamePickupWeekday])
	assert.Equal(t, 0.0, got.Features[features.NameIsWeekend])
	assert.Equal(t, 1.0, got.Features[features.Afternoon.FeatureName()])
	assert.Equal(t, 1.0, got.Features[features.Medium.FeatureName()])

	require.Len(t, p.last, len(features.Names()))
	assert.Equal(t, 3.5, p.last[0])

	stored, err := svc.Get(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Result, stored.Result)
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	p := &constPredictor{out: 5}
	svc := NewService(testRuntime(t, p), nil, nil, quietLogger())

	in := wednesdayTrip()
	in.PickupMonth = 13
	_, err := svc.Predict(context.Background(), in)
	assert.ErrorIs(t, err, features.ErrInvalidInput)
	assert.Zero(t, p.calls)
}

func TestPredictClampsNegativeDuration(t *testing.T) {
	svc := NewService(testRuntime(t, &constPredictor{out: -100}), nil, nil, quietLogger())

	got, err := svc.Predict(context.Background(), wednesdayTrip())
	require.NoError(t, err)
	assert.True(t, got.Result.Degenerate)
	assert.Zero(t, got.Result.DurationSeconds)
}

func TestPredictNonFiniteOutput(t *testing.T) {
	svc := NewService(testRuntime(t, &constPredictor{out: math.NaN()}), nil, nil, quietLogger())

	_, err := svc.Predict(context.Background(), wednesdayTrip())
	assert.ErrorIs(t, err, duration.ErrNonFinite)
}

func TestPredictRejectsRunawayOutput(t *testing.T) {
	svc := NewService(testRuntime(t, &constPredictor{out: 50}), nil, nil, quietLogger())

	_, err := svc.Predict(context.Background(), wednesdayTrip())
	assert.ErrorIs(t, err, duration.ErrOutOfRange)

	recent, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestPredictSampleArtifacts(t *testing.T) {
	a, err := predictor.LoadArtifacts(context.Background(), predictor.Paths{
		Model:   "../../../artifacts/model.json",
		Columns: "../../../artifacts/features_used.json",
		Average: "../../../artifacts/avg_duration.json",
	})
	require.NoError(t, err)
	rt, err := NewRuntime(a, true)
	require.NoError(t, err)
	svc := NewService(rt, nil, nil, quietLogger())

	got, err := svc.Predict(context.Background(), wednesdayTrip())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Result.Minutes, 0)
	assert.GreaterOrEqual(t, got.Result.Seconds, 0)
	assert.LessOrEqual(t, got.Result.Seconds, 59)

	far := wednesdayTrip()
	far.DistanceKm = 350
	_, err = svc.Predict(context.Background(), far)
	assert.ErrorIs(t, err, duration.ErrOutOfRange)
}

func TestPredictPropagatesPredictorError(t *testing.T) {
	p := &constPredictor{err: predictor.ErrPredictorUnavailable}
	svc := NewService(testRuntime(t, p), nil, nil, quietLogger())

	_, err := svc.Predict(context.Background(), wednesdayTrip())
	assert.ErrorIs(t, err, predictor.ErrPredictorUnavailable)
}

func TestPredictUsesCache(t *testing.T) {
	p := &constPredictor{out: duration.Encode(600)}
	cache := &mapCache{m: map[string]float64{}}
	svc := NewService(testRuntime(t, p), nil, cache, quietLogger())
	ctx := context.Background()

	first, err := svc.Predict(ctx, wednesdayTrip())
	require.NoError(t, err)
	second, err := svc.Predict(ctx, wednesdayTrip())
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result, second.Result)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPredictIgnoresCacheAndStoreFailures(t *testing.T) {
	p := &constPredictor{out: duration.Encode(600)}
	cache := &mapCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	store := failingStore{NewMemoryStore(4)}
	svc := NewService(testRuntime(t, p), store, cache, quietLogger())

	got, err := svc.Predict(context.Background(), wednesdayTrip())
	require.NoError(t, err)
	assert.Equal(t, 10, got.Result.Minutes)
	assert.Equal(t, 1, p.calls)
}

func TestRecentLimits(t *testing.T) {
	svc := NewService(testRuntime(t, &constPredictor{out: 6}), NewMemoryStore(200), nil, quietLogger())
	base := time.Date(2026, 6, 3, 14, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		_, err := svc.Predict(ctx, wednesdayTrip())
		require.NoError(t, err)
	}

	cases := []struct {
		limit, want int
	}{
		{0, DefaultRecentLimit},
		{-3, DefaultRecentLimit},
		{5, 5},
		{500, MaxRecentLimit},
	}
	for _, tc := range cases {
		got, err := svc.Recent(ctx, tc.limit)
		require.NoError(t, err)
		assert.Len(t, got, tc.want, "limit %d", tc.limit)
	}

	got, err := svc.Recent(ctx, 3)
	require.NoError(t, err)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
}

func TestGetUnknown(t *testing.T) {
	svc := NewService(testRuntime(t, &constPredictor{}), nil, nil, quietLogger())
	_, err := svc.Get(context.Background(), types.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestNewRuntimeCoverage(t *testing.T) {
	schema, err := features.NewSchema([]string{features.NameDistanceKm, "passenger_count"})
	require.NoError(t, err)
	a := &predictor.Artifacts{Schema: schema, Predictor: &constPredictor{}, Average: 1}

	_, err = NewRuntime(a, true)
	assert.ErrorIs(t, err, features.ErrSchemaMismatch)

	rt, err := NewRuntime(a, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"passenger_count"}, rt.Coverage.ZeroFilled)
	assert.Len(t, rt.Coverage.Dropped, len(features.Names())-1)

	_, err = NewRuntime(nil, false)
	assert.ErrorIs(t, err, predictor.ErrArtifactMissing)
}

func TestSchemaReport(t *testing.T) {
	svc := NewService(testRuntime(t, &constPredictor{}), nil, nil, quietLogger())
	rep := svc.Schema()
	assert.Equal(t, features.Names(), rep.Columns)
	assert.True(t, rep.Coverage.Complete())
	assert.InDelta(t, 840.0, rep.Average, 1e-9)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	var ids []types.ID
	for i := 0; i < 5; i++ {
		p := &Prediction{ID: types.NewID(), LogDuration: float64(i)}
		ids = append(ids, p.ID)
		require.NoError(t, s.Save(ctx, p))
	}

	_, err := s.Get(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, ids[1])
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []types.ID{ids[4], ids[3], ids[2]}, []types.ID{got[0].ID, got[1].ID, got[2].ID})
}

func TestVectorKeyDependsOnSchema(t *testing.T) {
	v := features.Vector{1, 2}
	a := VectorKey(features.Schema{"a", "b"}, v)
	assert.Equal(t, a, VectorKey(features.Schema{"a", "b"}, features.Vector{1, 2}))
	assert.NotEqual(t, a, VectorKey(features.Schema{"b", "a"}, v))
	assert.NotEqual(t, a, VectorKey(features.Schema{"a", "b"}, features.Vector{1, 2.0000001}))
}
