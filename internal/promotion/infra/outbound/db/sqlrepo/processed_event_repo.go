package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davicafu/promolab/internal/promotion/domain"
	"github.com/davicafu/promolab/internal/shared/infra/platform/db/sqldb"
)

// ProcessedEventRepo persiste el ledger de idempotencia.
type ProcessedEventRepo struct {
	db *sqldb.DB
}

func NewProcessedEventRepo(db *sqldb.DB) *ProcessedEventRepo {
	return &ProcessedEventRepo{db: db}
}

func (r *ProcessedEventRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(1) FROM processed_events WHERE event_id = ?`, eventID)
}

func (r *ProcessedEventRepo) ExistsByPayloadHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	return r.exists(ctx, `SELECT COUNT(1) FROM processed_events WHERE payload_hash = ?`, hash)
}

func (r *ProcessedEventRepo) Insert(ctx context.Context, evt domain.ProcessedEvent) error {
	hash := sql.NullString{String: evt.PayloadHash, Valid: evt.PayloadHash != ""}
	_, err := r.db.Conn(ctx).ExecContext(ctx, r.db.Rebind(
		`INSERT INTO processed_events (event_id, payload_hash, status, processed_at) VALUES (?, ?, ?, ?)`),
		evt.EventID, hash, string(evt.Status), evt.ProcessedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert processed event %s: %w", evt.EventID, sqldb.MapError(err))
	}
	return nil
}

func (r *ProcessedEventRepo) GetByID(ctx context.Context, eventID string) (*domain.ProcessedEvent, error) {
	var (
		evt    domain.ProcessedEvent
		hash   sql.NullString
		status string
	)
	err := r.db.Conn(ctx).QueryRowContext(ctx, r.db.Rebind(
		`SELECT event_id, payload_hash, status, processed_at FROM processed_events WHERE event_id = ?`), eventID,
	).Scan(&evt.EventID, &hash, &status, &evt.ProcessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProcessedEventNotFound
		}
		return nil, err
	}
	evt.PayloadHash = hash.String
	evt.Status = domain.Outcome(status)
	evt.ProcessedAt = evt.ProcessedAt.UTC()
	return &evt, nil
}

func (r *ProcessedEventRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	var n int
	if err := r.db.Conn(ctx).QueryRowContext(ctx, r.db.Rebind(query), arg).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ domain.ProcessedEventRepository = (*ProcessedEventRepo)(nil)
