package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/promolab/internal/promotion/domain"
)

// ApplicationAnalyticsRepo guarda el histórico de resultados de promociones en ClickHouse.
type ApplicationAnalyticsRepo struct {
	db  *sql.DB
	now func() time.Time
}

// OpenDB abre y verifica la conexión con ClickHouse.
func OpenDB(ctx context.Context, addr, dbName string) (*sql.DB, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return conn, nil
}

func NewApplicationAnalyticsRepo(db *sql.DB) *ApplicationAnalyticsRepo {
	return &ApplicationAnalyticsRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// LogBatch inserta el lote entero o nada.
func (r *ApplicationAnalyticsRepo) LogBatch(ctx context.Context, events []domain.PromotionOutcomeEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO promotion_outcomes_log
		(application_id, promo_id, transaction_id, issuer_account_id, merchant_account_id,
		 cashback_amount, currency, status, reason, applied_at, event_time)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	eventTime := r.now()
	for _, evt := range events {
		if _, err := stmt.ExecContext(ctx,
			evt.ApplicationID,
			evt.PromoID,
			evt.TransactionID,
			evt.IssuerAccountID,
			evt.MerchantAccountID,
			evt.CashbackAmount,
			evt.Currency,
			string(evt.Status),
			evt.Reason,
			evt.AppliedAt,
			eventTime,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for application %s: %w", evt.ApplicationID, err)
		}
	}
	return tx.Commit()
}

// GetDailyCashback agrega por día las aplicaciones y el cashback abonado en [start, end].
func (r *ApplicationAnalyticsRepo) GetDailyCashback(ctx context.Context, start, end time.Time) ([]domain.DailyCashback, error) {
	query := `
		SELECT
			toStartOfDay(applied_at) AS day,
			countIf(status = 'APPLIED') AS applied,
			countIf(status = 'FAILED') AS failed,
			sumIf(cashback_amount, status = 'APPLIED') AS paid
		FROM promotion_outcomes_log
		WHERE applied_at BETWEEN ? AND ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []domain.DailyCashback
	for rows.Next() {
		var d domain.DailyCashback
		if err := rows.Scan(&d.Day, &d.Applied, &d.Failed, &d.CashbackPaid); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// InitSchema crea la tabla si no existe. ReplacingMergeTree colapsa
// las reentregas del mismo application_id.
func (r *ApplicationAnalyticsRepo) InitSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS promotion_outcomes_log (
			application_id      UUID,
			promo_id            String,
			transaction_id      Int64,
			issuer_account_id   Int64,
			merchant_account_id Int64,
			cashback_amount     Decimal(20, 2),
			currency            LowCardinality(String),
			status              LowCardinality(String),
			reason              String,
			applied_at          DateTime64(3),
			event_time          DateTime64(3)
		) ENGINE = ReplacingMergeTree(event_time)
		PARTITION BY toYYYYMM(applied_at)
		ORDER BY (promo_id, application_id)
	`)
	return err
}

var _ domain.ApplicationAnalyticsRepository = (*ApplicationAnalyticsRepo)(nil)
