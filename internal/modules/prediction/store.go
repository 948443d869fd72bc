// README: Prediction history stores: PostgreSQL (pgxpool) and a bounded in-memory fallback.
package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxieta/internal/modules/duration"
	"taxieta/internal/modules/features"
	"taxieta/internal/types"
)

type Store interface {
	Save(ctx context.Context, p *Prediction) error
	Get(ctx context.Context, id types.ID) (*Prediction, error)
	Recent(ctx context.Context, limit int) ([]*Prediction, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Save(ctx context.Context, p *Prediction) error {
	feats, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO predictions (
            id, distance_km, pickup_hour, pickup_weekday, pickup_month, store_and_fwd,
            features, log_duration, duration_seconds, degenerate, average_seconds, created_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            $7, $8, $9, $10, $11, $12
        )`,
		string(p.ID),
		p.Inputs.DistanceKm,
		p.Inputs.PickupHour,
		int(p.Inputs.PickupWeekday),
		p.Inputs.PickupMonth,
		p.Inputs.StoreAndForward,
		feats,
		p.LogDuration,
		p.Result.DurationSeconds,
		p.Result.Degenerate,
		p.Average,
		p.CreatedAt,
	)
	return err
}

const selectPrediction = `
        SELECT id::text, distance_km, pickup_hour, pickup_weekday, pickup_month, store_and_fwd,
               features, log_duration, average_seconds, created_at
        FROM predictions`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Prediction, error) {
	row := s.db.QueryRow(ctx, selectPrediction+` WHERE id = $1`, string(id))
	p, err := scanPrediction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *PGStore) Recent(ctx context.Context, limit int) ([]*Prediction, error) {
	rows, err := s.db.Query(ctx, selectPrediction+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPrediction(row pgx.Row) (*Prediction, error) {
	var (
		p       Prediction
		id      string
		weekday int
		feats   []byte
	)
	err := row.Scan(
		&id, &p.Inputs.DistanceKm, &p.Inputs.PickupHour, &weekday, &p.Inputs.PickupMonth, &p.Inputs.StoreAndForward,
		&feats, &p.LogDuration, &p.Average, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = types.ID(id)
	p.Inputs.PickupWeekday = features.Weekday(weekday)
	if err := json.Unmarshal(feats, &p.Features); err != nil {
		return nil, fmt.Errorf("decode features of %s: %w", id, err)
	}
	// Stored rows were decodable when written.
	p.Result, err = duration.Decode(p.LogDuration)
	if err != nil {
		return nil, fmt.Errorf("decode duration of %s: %w", id, err)
	}
	return &p, nil
}

// MemoryStore keeps the newest capacity predictions in a ring.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	ring     []*Prediction
	next     int
	byID     map[types.ID]*Prediction
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{
		capacity: capacity,
		ring:     make([]*Prediction, 0, capacity),
		byID:     make(map[types.ID]*Prediction, capacity),
	}
}

func (s *MemoryStore) Save(_ context.Context, p *Prediction) error {
	cp := *p
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ring) < s.capacity {
		s.ring = append(s.ring, &cp)
	} else {
		delete(s.byID, s.ring[s.next].ID)
		s.ring[s.next] = &cp
	}
	s.next = (s.next + 1) % s.capacity
	s.byID[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]*Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.ring)
	if limit > n {
		limit = n
	}
	out := make([]*Prediction, 0, limit)
	for i := 1; i <= limit; i++ {
		cp := *s.ring[(s.next-i+s.capacity)%s.capacity]
		out = append(out, &cp)
	}
	return out, nil
}
