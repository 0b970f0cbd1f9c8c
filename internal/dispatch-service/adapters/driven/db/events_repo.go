package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/ports"

	"github.com/jackc/pgx/v5"
)

type EventsRepo struct {
	db *DB
}

func NewEventsRepo(db *DB) ports.IEventsRepo {
	return &EventsRepo{
		db: db,
	}
}

// Append bumps the channel counter and inserts the event in one transaction.
// The counter row lock orders concurrent appends to the same channel, so a
// reader can never see seq n+1 committed before seq n.
func (er *EventsRepo) Append(ctx context.Context, channel, eventType string, payload json.RawMessage) (model.Event, error) {
	tx, err := er.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Event{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx) // Safe rollback if not committed

	q1 := `INSERT INTO event_channels (channel, last_seq) VALUES ($1, 1)
		ON CONFLICT (channel) DO UPDATE SET last_seq = event_channels.last_seq + 1
		RETURNING last_seq`
	ev := model.Event{Channel: channel, Type: eventType, Payload: payload}
	if err := tx.QueryRow(ctx, q1, channel).Scan(&ev.ID); err != nil {
		return model.Event{}, fmt.Errorf("next sequence: %w", err)
	}

	q2 := `INSERT INTO events (channel, seq, type, payload) VALUES ($1, $2, $3, $4) RETURNING created_at`
	if err := tx.QueryRow(ctx, q2, channel, ev.ID, eventType, string(payload)).Scan(&ev.CreatedAt); err != nil {
		return model.Event{}, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Event{}, fmt.Errorf("commit append: %w", err)
	}
	return ev, nil
}

func (er *EventsRepo) Read(ctx context.Context, channel string, since int64, limit int) ([]model.Event, error) {
	q := `SELECT seq, type, payload, created_at
		FROM events
		WHERE channel = $1 AND seq > $2
		ORDER BY seq
		LIMIT $3`

	rows, err := er.db.Pool.Query(ctx, q, channel, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		ev := model.Event{Channel: channel}
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Prune deletes events older than the cutoff. Channel counters are kept.
func (er *EventsRepo) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := er.db.Pool.Exec(ctx, `DELETE FROM events WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return tag.RowsAffected(), nil
}
