// README: Prediction service runs validate → derive → align → predict → decode and keeps a history.
package prediction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taxieta/internal/modules/duration"
	"taxieta/internal/modules/features"
	"taxieta/internal/types"
)

type Service struct {
	rt    Runtime
	store Store
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// NewService wires the pipeline. store defaults to an in-memory history; cache may be nil.
func NewService(rt Runtime, store Store, cache Cache, logger *slog.Logger) *Service {
	if store == nil {
		store = NewMemoryStore(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{rt: rt, store: store, cache: cache, log: logger, now: time.Now}
}

func (s *Service) Runtime() Runtime { return s.rt }

func (s *Service) Predict(ctx context.Context, in features.RawInputs) (*Prediction, error) {
	feats, err := features.Derive(in)
	if err != nil {
		return nil, err
	}
	vec := features.Align(feats, s.rt.Schema)

	logDur, cached, err := s.predictLog(ctx, vec)
	if err != nil {
		return nil, err
	}
	res, err := duration.Decode(logDur)
	if err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if res.Degenerate {
		s.log.Warn("negative duration clamped to zero", "log_duration", logDur, "distance_km", in.DistanceKm)
	}

	p := &Prediction{
		ID:          types.NewID(),
		Inputs:      in,
		Features:    feats,
		LogDuration: logDur,
		Result:      res,
		Average:     s.rt.Average,
		Cached:      cached,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Save(ctx, p); err != nil {
		s.log.Error("record prediction", "id", p.ID, "err", err)
	}
	return p, nil
}

func (s *Service) predictLog(ctx context.Context, vec features.Vector) (float64, bool, error) {
	var key string
	if s.cache != nil {
		key = VectorKey(s.rt.Schema, vec)
		v, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("prediction cache get", "err", err)
		} else if ok {
			return v, true, nil
		}
	}

	v, err := s.rt.Predictor.Predict(ctx, vec)
	if err != nil {
		return 0, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v); err != nil {
			s.log.Warn("prediction cache set", "err", err)
		}
	}
	return v, false, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Prediction, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.store.Get(ctx, id)
}

// Recent returns the newest predictions first. limit <= 0 means DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Prediction, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}
	return s.store.Recent(ctx, limit)
}

func (s *Service) Schema() SchemaReport {
	return SchemaReport{
		Columns:  append([]string(nil), s.rt.Schema...),
		Derived:  features.Names(),
		Coverage: s.rt.Coverage,
		Average:  s.rt.Average,
	}
}
