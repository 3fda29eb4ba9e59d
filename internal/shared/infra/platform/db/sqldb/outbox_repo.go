package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/davicafu/promolab/internal/shared/domain"
)

// OutboxRepo implementa domain.OutboxRepository para SQLite y Postgres.
type OutboxRepo struct {
	db  *DB
	now func() time.Time
}

func NewOutboxRepo(db *DB) *OutboxRepo {
	return &OutboxRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const outboxColumns = `id, event_type, aggregate_id, payload, status, created_at, published_at`

// Append inserta el evento como PENDING. Usa la transacción del contexto si existe.
func (r *OutboxRepo) Append(ctx context.Context, eventType, aggregateID, payload string) (domain.OutboxEvent, error) {
	evt := domain.OutboxEvent{
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      domain.OutboxPending,
		CreatedAt:   r.now(),
	}

	err := r.db.Conn(ctx).QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO outbox_events (event_type, aggregate_id, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		evt.EventType, evt.AggregateID, evt.Payload, string(evt.Status), evt.CreatedAt,
	).Scan(&evt.ID)
	if err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("failed to insert outbox event: %w", MapError(err))
	}
	return evt, nil
}

// FetchPending devuelve los eventos PENDING en orden de creación.
func (r *OutboxRepo) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	return r.ListByStatus(ctx, domain.OutboxPending, limit)
}

func (r *OutboxRepo) ListByStatus(ctx context.Context, status domain.OutboxStatus, limit int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Conn(ctx).QueryContext(ctx, r.db.Rebind(
		`SELECT `+outboxColumns+`
		 FROM outbox_events
		 WHERE status = ?
		 ORDER BY id
		 LIMIT ?`), string(status), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		evt, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	return r.transition(ctx, id, domain.OutboxPublished, &at)
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id int64) error {
	return r.transition(ctx, id, domain.OutboxFailed, nil)
}

// transition solo toca filas PENDING: un evento nunca vuelve atrás.
func (r *OutboxRepo) transition(ctx context.Context, id int64, to domain.OutboxStatus, publishedAt *time.Time) error {
	var at sql.NullTime
	if publishedAt != nil {
		at = sql.NullTime{Time: publishedAt.UTC(), Valid: true}
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, r.db.Rebind(
		`UPDATE outbox_events SET status = ?, published_at = ?
		 WHERE id = ? AND status = ?`),
		string(to), at, id, string(domain.OutboxPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d as %s: %w", id, to, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected for outbox event %d: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox event %d: %w", id, domain.ErrOutboxTransition)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutbox(row rowScanner) (domain.OutboxEvent, error) {
	var evt domain.OutboxEvent
	var status string
	var publishedAt sql.NullTime
	if err := row.Scan(&evt.ID, &evt.EventType, &evt.AggregateID, &evt.Payload, &status, &evt.CreatedAt, &publishedAt); err != nil {
		return domain.OutboxEvent{}, err
	}
	evt.Status = domain.OutboxStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		evt.PublishedAt = &t
	}
	return evt, nil
}

// InitOutboxSchema crea la tabla outbox_events si no existe.
func InitOutboxSchema(ctx context.Context, db *DB) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS outbox_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			published_at DATETIME
		)`
	if db.Dialect() == Postgres {
		ddl = `
		CREATE TABLE IF NOT EXISTS outbox_events (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			published_at TIMESTAMPTZ
		)`
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create outbox_events: %w", err)
	}
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_outbox_events_status ON outbox_events (status, id)`)
	return err
}

// Verificación en tiempo de compilación.
var _ domain.OutboxRepository = (*OutboxRepo)(nil)
