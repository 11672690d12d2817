package postgres

import (
	"context"
	"fmt"
)

// EventRepo implements ports.EventRepository. It is the durable record of
// processed provider events; the Redis dedup cache in front of it is only
// a fast path.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// WasProcessed reports whether the event was already fully handled.
func (r *EventRepo) WasProcessed(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return exists, nil
}

// MarkProcessed records a fully handled event. ON CONFLICT DO NOTHING makes
// re-marking a replayed event a no-op.
func (r *EventRepo) MarkProcessed(ctx context.Context, eventID string, eventType string) error {
	query := `INSERT INTO processed_events (event_id, event_type, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, eventID, eventType); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}
