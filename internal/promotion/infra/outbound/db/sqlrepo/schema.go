package sqlrepo

import (
	"context"
	"fmt"

	"github.com/davicafu/promolab/internal/shared/infra/platform/db/sqldb"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS promotions (
		promo_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date DATETIME NOT NULL,
		expiry_date DATETIME NOT NULL,
		eligibility_rules TEXT NOT NULL DEFAULT '',
		reward_formula TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS promotion_applications (
		application_id TEXT PRIMARY KEY,
		promo_id TEXT NOT NULL,
		transaction_id INTEGER NOT NULL,
		issuer_id INTEGER NOT NULL,
		merchant_id INTEGER NOT NULL,
		cashback_amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		idempotency_key TEXT NOT NULL UNIQUE,
		applied_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processed_events (
		event_id TEXT PRIMARY KEY,
		payload_hash TEXT,
		status TEXT NOT NULL,
		processed_at DATETIME NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS promotions (
		promo_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TIMESTAMPTZ NOT NULL,
		expiry_date TIMESTAMPTZ NOT NULL,
		eligibility_rules TEXT NOT NULL DEFAULT '',
		reward_formula TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		CHECK (start_date < expiry_date)
	)`,
	`CREATE TABLE IF NOT EXISTS promotion_applications (
		application_id UUID PRIMARY KEY,
		promo_id TEXT NOT NULL,
		transaction_id BIGINT NOT NULL,
		issuer_id BIGINT NOT NULL,
		merchant_id BIGINT NOT NULL,
		cashback_amount NUMERIC(20,2) NOT NULL CHECK (cashback_amount >= 0),
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		idempotency_key TEXT NOT NULL UNIQUE,
		applied_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processed_events (
		event_id TEXT PRIMARY KEY,
		payload_hash TEXT,
		status TEXT NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL
	)`,
}

var commonIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_promotion_applications_txn ON promotion_applications (transaction_id)`,
	`CREATE INDEX IF NOT EXISTS idx_processed_events_hash ON processed_events (payload_hash)`,
}

// InitSchema crea las tablas del servicio (incluida outbox_events) si no existen.
func InitSchema(ctx context.Context, db *sqldb.DB) error {
	stmts := sqliteSchema
	if db.Dialect() == sqldb.Postgres {
		stmts = postgresSchema
	}
	for _, stmt := range append(stmts, commonIndexes...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return sqldb.InitOutboxSchema(ctx, db)
}
