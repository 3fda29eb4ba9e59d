package application

import (
	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/domain"
)

// EligibilityEvaluator aplica minAmount y merchantIds. Ante reglas ilegibles
// la promoción no es elegible (fail closed).
type EligibilityEvaluator struct {
	log *zap.Logger
}

func NewEligibilityEvaluator(log *zap.Logger) *EligibilityEvaluator {
	return &EligibilityEvaluator{log: log}
}

func (e *EligibilityEvaluator) Eligible(evt domain.TransactionPostedEvent, promo domain.Promotion) bool {
	if !promo.IsCandidate(evt.CreatedAt) {
		return false
	}

	rules, err := domain.ParseEligibilityRules(promo.EligibilityRules)
	if err != nil {
		e.log.Warn("Invalid eligibility rules, promotion skipped",
			zap.String("promo_id", promo.ID),
			zap.Error(err),
		)
		return false
	}

	if rules.MinAmount != nil && evt.Amount.LessThan(*rules.MinAmount) {
		return false
	}
	if rules.MerchantIDs != nil && !containsID(rules.MerchantIDs, evt.MerchantAccountID) {
		return false
	}
	return true
}

// Evaluate filtra conservando el orden de entrada.
func Evaluate(evaluator domain.RuleEvaluator, evt domain.TransactionPostedEvent, promos []domain.Promotion) []domain.Promotion {
	var matching []domain.Promotion
	for _, p := range promos {
		if evaluator.Eligible(evt, p) {
			matching = append(matching, p)
		}
	}
	return matching
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

var _ domain.RuleEvaluator = (*EligibilityEvaluator)(nil)
