package store

import (
	"context"
	"database/sql"

	"github.com/syncveil/apiserver/types"
)

// BreachEventRepository handles persistence for breach monitor events.
type BreachEventRepository struct {
	db *sql.DB
}

func NewBreachEventRepository(db *sql.DB) *BreachEventRepository {
	return &BreachEventRepository{db: db}
}

func (r *BreachEventRepository) Create(ctx context.Context, event types.BreachEvent) (types.BreachEvent, error) {
	const query = `
		INSERT INTO breach_events (user_id, kind, detail, observed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.UserID,
		event.Kind,
		event.Detail,
		event.ObservedAt,
	).Scan(&event.ID); err != nil {
		return types.BreachEvent{}, err
	}
	return event, nil
}

func (r *BreachEventRepository) ListByUser(ctx context.Context, userID, limit int) ([]types.BreachEvent, error) {
	const query = `
		SELECT id, user_id, kind, detail, observed_at
		FROM breach_events
		WHERE user_id = $1
		ORDER BY observed_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []types.BreachEvent{}
	for rows.Next() {
		var event types.BreachEvent
		if err := rows.Scan(&event.ID, &event.UserID, &event.Kind, &event.Detail, &event.ObservedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *BreachEventRepository) CountByUser(ctx context.Context, userID int) (int, error) {
	const query = `SELECT count(*) FROM breach_events WHERE user_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
