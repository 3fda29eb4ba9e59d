package application

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/domain"
)

const currencyScale = 2

// PercentageCalculator: amount * cashbackPercent / 100, redondeo half-up a 2
// decimales y tope maxCashback. Cualquier fallo de parseo devuelve cero.
type PercentageCalculator struct {
	log *zap.Logger
}

func NewPercentageCalculator(log *zap.Logger) *PercentageCalculator {
	return &PercentageCalculator{log: log}
}

func (c *PercentageCalculator) Calculate(evt domain.TransactionPostedEvent, promo domain.Promotion) decimal.Decimal {
	formula, err := domain.ParseRewardFormula(promo.RewardFormula)
	if err != nil {
		c.log.Warn("Invalid reward formula, cashback set to zero",
			zap.String("promo_id", promo.ID),
			zap.Error(err),
		)
		return decimal.Zero
	}

	if !evt.Amount.IsPositive() {
		return decimal.Zero
	}

	cashback := evt.Amount.Mul(*formula.CashbackPercent).Shift(-2).Round(currencyScale)
	if cashback.GreaterThan(*formula.MaxCashback) {
		cashback = *formula.MaxCashback
	}
	return cashback.Round(currencyScale)
}

var _ domain.RewardCalculator = (*PercentageCalculator)(nil)
