package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davicafu/promolab/internal/promotion/domain"
	"github.com/davicafu/promolab/internal/shared/infra/platform/db/sqldb"
)

type PromotionRepo struct {
	db *sqldb.DB
}

func NewPromotionRepo(db *sqldb.DB) *PromotionRepo {
	return &PromotionRepo{db: db}
}

const promotionColumns = `promo_id, name, description, start_date, expiry_date, eligibility_rules, reward_formula, status`

// ListCandidates: todo lo que no sea INACTIVE, por (start_date, promo_id).
// La ventana temporal se filtra en el catálogo.
func (r *PromotionRepo) ListCandidates(ctx context.Context) ([]domain.Promotion, error) {
	return r.query(ctx, `SELECT `+promotionColumns+` FROM promotions
		WHERE status <> ? ORDER BY start_date, promo_id`, string(domain.PromotionInactive))
}

func (r *PromotionRepo) List(ctx context.Context) ([]domain.Promotion, error) {
	return r.query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY start_date, promo_id`)
}

func (r *PromotionRepo) GetByID(ctx context.Context, id string) (*domain.Promotion, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+promotionColumns+` FROM promotions WHERE promo_id = ?`), id)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPromotionNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PromotionRepo) Upsert(ctx context.Context, p domain.Promotion) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, r.db.Rebind(
		`INSERT INTO promotions (`+promotionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (promo_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			start_date = excluded.start_date,
			expiry_date = excluded.expiry_date,
			eligibility_rules = excluded.eligibility_rules,
			reward_formula = excluded.reward_formula,
			status = excluded.status`),
		p.ID, p.Name, p.Description, p.StartDate.UTC(), p.ExpiryDate.UTC(), p.EligibilityRules, p.RewardFormula, string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("upsert promotion %s: %w", p.ID, err)
	}
	return nil
}

func (r *PromotionRepo) query(ctx context.Context, query string, args ...any) ([]domain.Promotion, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promos []domain.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPromotion(row scanner) (domain.Promotion, error) {
	var p domain.Promotion
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.ExpiryDate, &p.EligibilityRules, &p.RewardFormula, &status); err != nil {
		return domain.Promotion{}, err
	}
	p.Status = domain.PromotionStatus(status)
	p.StartDate = p.StartDate.UTC()
	p.ExpiryDate = p.ExpiryDate.UTC()
	return p, nil
}

var _ domain.PromotionRepository = (*PromotionRepo)(nil)
