package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ApplicationStatus string

const (
	ApplicationApplied ApplicationStatus = "APPLIED"
	ApplicationFailed  ApplicationStatus = "FAILED"
)

// PromotionApplication se crea una sola vez en estado terminal y no se modifica.
type PromotionApplication struct {
	ID             uuid.UUID         `json:"applicationId"`
	PromoID        string            `json:"promoId"`
	TransactionID  int64             `json:"transactionId"`
	IssuerID       int64             `json:"issuerId"`
	MerchantID     int64             `json:"merchantId"`
	CashbackAmount decimal.Decimal   `json:"cashbackAmount"`
	Currency       string            `json:"currency"`
	Status         ApplicationStatus `json:"status"`
	Reason         string            `json:"reason,omitempty"`
	IdempotencyKey string            `json:"idempotencyKey"`
	AppliedAt      time.Time         `json:"appliedAt"`
}

// IdempotencyKey = promoId:transactionId
func IdempotencyKey(promoID string, transactionID int64) string {
	return promoID + ":" + strconv.FormatInt(transactionID, 10)
}

// NewPromotionApplication construye la aplicación para un evento y una promoción.
// reason solo se conserva en estado FAILED.
func NewPromotionApplication(evt TransactionPostedEvent, promo Promotion, cashback decimal.Decimal, status ApplicationStatus, reason string, at time.Time) *PromotionApplication {
	if status != ApplicationFailed {
		reason = ""
	}
	return &PromotionApplication{
		ID:             uuid.New(),
		PromoID:        promo.ID,
		TransactionID:  evt.TransactionID,
		IssuerID:       evt.IssuerAccountID,
		MerchantID:     evt.MerchantAccountID,
		CashbackAmount: cashback,
		Currency:       evt.Currency,
		Status:         status,
		Reason:         reason,
		IdempotencyKey: IdempotencyKey(promo.ID, evt.TransactionID),
		AppliedAt:      at,
	}
}
