package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PromotionStatus string

const (
	PromotionActive   PromotionStatus = "ACTIVE"
	PromotionInactive PromotionStatus = "INACTIVE"
	PromotionExpired  PromotionStatus = "EXPIRED"
)

// Promotion la gestiona un proceso externo; este servicio solo la lee.
type Promotion struct {
	ID               string          `json:"promoId" yaml:"promoId"`
	Name             string          `json:"name" yaml:"name"`
	Description      string          `json:"description,omitempty" yaml:"description"`
	StartDate        time.Time       `json:"startDate" yaml:"startDate"`
	ExpiryDate       time.Time       `json:"expiryDate" yaml:"expiryDate"`
	EligibilityRules string          `json:"eligibilityRules,omitempty" yaml:"eligibilityRules"`
	RewardFormula    string          `json:"rewardFormula,omitempty" yaml:"rewardFormula"`
	Status           PromotionStatus `json:"status" yaml:"status"`
}

// Validate comprueba las invariantes que garantiza el proceso de gestión.
func (p Promotion) Validate() error {
	if p.ID == "" {
		return ErrInvalidPromotion
	}
	if !p.StartDate.Before(p.ExpiryDate) {
		return ErrInvalidPromotionWindow
	}
	switch p.Status {
	case PromotionActive, PromotionInactive, PromotionExpired:
	default:
		return ErrInvalidPromotion
	}
	return nil
}

// InWindow: ventana semiabierta [start, expiry).
func (p Promotion) InWindow(at time.Time) bool {
	return !at.Before(p.StartDate) && at.Before(p.ExpiryDate)
}

// IsCandidate: solo INACTIVE excluye. EXPIRED sigue valiendo si la fecha cae en la ventana.
func (p Promotion) IsCandidate(at time.Time) bool {
	return p.Status != PromotionInactive && p.InWindow(at)
}

// EligibilityRules es el predicado mínimo de elegibilidad.
// Un campo ausente significa "sin restricción".
type EligibilityRules struct {
	MinAmount   *decimal.Decimal `json:"minAmount"`
	MerchantIDs []int64          `json:"merchantIds"`
}

func ParseEligibilityRules(raw string) (EligibilityRules, error) {
	var rules EligibilityRules
	if raw == "" {
		return rules, nil
	}
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return EligibilityRules{}, err
	}
	return rules, nil
}

// RewardFormula: porcentaje sobre el importe con tope.
type RewardFormula struct {
	CashbackPercent *decimal.Decimal `json:"cashbackPercent"`
	MaxCashback     *decimal.Decimal `json:"maxCashback"`
}

func ParseRewardFormula(raw string) (RewardFormula, error) {
	var formula RewardFormula
	if err := json.Unmarshal([]byte(raw), &formula); err != nil {
		return RewardFormula{}, err
	}
	if formula.CashbackPercent == nil || formula.MaxCashback == nil {
		return RewardFormula{}, ErrIncompleteRewardFormula
	}
	if formula.CashbackPercent.IsNegative() || formula.MaxCashback.IsNegative() {
		return RewardFormula{}, ErrIncompleteRewardFormula
	}
	return formula, nil
}
