package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const snapshotTTL = 24 * time.Hour

// Snapshot is the persisted slice of a session: exactly the selections
// needed to resume the wizard after a reload. The undo history is
// deliberately not persisted.
type Snapshot struct {
	ServiceID  string `json:"serviceId"`
	ProviderID string `json:"providerId"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
}

// StateStore keeps one snapshot key per session in Redis. Written on
// every session mutation, cleared on successful commit.
type StateStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewStateStore creates a snapshot store.
func NewStateStore(client *redis.Client) *StateStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	return &StateStore{
		redis:  client,
		tracer: otel.Tracer("booking.internal.session.store"),
	}
}

// Save persists the snapshot for a session.
func (s *StateStore) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	ctx, span := s.tracer.Start(ctx, "session.save_snapshot")
	defer span.End()

	data, err := json.Marshal(snap)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, snapshotKey(sessionID), data, snapshotTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot for a session, or nil when none is stored.
func (s *StateStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "session.load_snapshot")
	defer span.End()

	data, err := s.redis.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: decode snapshot: %w", err)
	}
	return &snap, nil
}

// Clear removes the snapshot for a session.
func (s *StateStore) Clear(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "session.clear_snapshot")
	defer span.End()

	if err := s.redis.Del(ctx, snapshotKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: clear snapshot: %w", err)
	}
	return nil
}

func snapshotKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
