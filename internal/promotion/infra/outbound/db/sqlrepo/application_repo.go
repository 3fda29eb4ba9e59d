package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davicafu/promolab/internal/promotion/domain"
	"github.com/davicafu/promolab/internal/shared/infra/platform/db/sqldb"
)

type ApplicationRepo struct {
	db *sqldb.DB
}

func NewApplicationRepo(db *sqldb.DB) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

const applicationColumns = `application_id, promo_id, transaction_id, issuer_id, merchant_id,
	cashback_amount, currency, status, reason, idempotency_key, applied_at`

func (r *ApplicationRepo) ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error) {
	var n int
	err := r.db.Conn(ctx).QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(1) FROM promotion_applications WHERE idempotency_key = ?`), key,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserta la aplicación. Una clave de idempotencia repetida devuelve ErrConflict.
func (r *ApplicationRepo) Create(ctx context.Context, app *domain.PromotionApplication) error {
	reason := sql.NullString{String: app.Reason, Valid: app.Reason != ""}
	_, err := r.db.Conn(ctx).ExecContext(ctx, r.db.Rebind(
		`INSERT INTO promotion_applications (`+applicationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		app.ID.String(), app.PromoID, app.TransactionID, app.IssuerID, app.MerchantID,
		app.CashbackAmount.StringFixed(2), app.Currency, string(app.Status), reason,
		app.IdempotencyKey, app.AppliedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert promotion application %s: %w", app.IdempotencyKey, sqldb.MapError(err))
	}
	return nil
}

func (r *ApplicationRepo) ListByTransaction(ctx context.Context, transactionID int64) ([]domain.PromotionApplication, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, r.db.Rebind(
		`SELECT `+applicationColumns+` FROM promotion_applications
		 WHERE transaction_id = ? ORDER BY applied_at, promo_id`), transactionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []domain.PromotionApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func scanApplication(row scanner) (domain.PromotionApplication, error) {
	var (
		app    domain.PromotionApplication
		id     string
		amount decimal.Decimal
		status string
		reason sql.NullString
	)
	if err := row.Scan(&id, &app.PromoID, &app.TransactionID, &app.IssuerID, &app.MerchantID,
		&amount, &app.Currency, &status, &reason, &app.IdempotencyKey, &app.AppliedAt); err != nil {
		return domain.PromotionApplication{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.PromotionApplication{}, fmt.Errorf("invalid application id %q: %w", id, err)
	}
	app.ID = parsed
	app.CashbackAmount = amount
	app.Status = domain.ApplicationStatus(status)
	app.Reason = reason.String
	app.AppliedAt = app.AppliedAt.UTC()
	return app, nil
}

var _ domain.ApplicationRepository = (*ApplicationRepo)(nil)
