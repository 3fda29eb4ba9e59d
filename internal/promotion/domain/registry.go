package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sharedEvents "github.com/davicafu/promolab/internal/shared/domain/events"
)

// Eventos que este servicio publica vía outbox.
const (
	PromotionApplied = "promotion.applied"
	PromotionFailed  = "promotion.failed"
)

const PromotionTopic = "promotions"

func NewEventRegistry() sharedEvents.Registry {
	return sharedEvents.Registry{
		PromotionApplied: {Topic: PromotionTopic},
		PromotionFailed:  {Topic: PromotionTopic},
	}
}

// PromotionOutcomeEvent es el payload de promotion.applied / promotion.failed.
type PromotionOutcomeEvent struct {
	ApplicationID     uuid.UUID         `json:"applicationId"`
	PromoID           string            `json:"promoId"`
	TransactionID     int64             `json:"transactionId"`
	IssuerAccountID   int64             `json:"issuerAccountId"`
	MerchantAccountID int64             `json:"merchantAccountId"`
	CashbackAmount    decimal.Decimal   `json:"cashbackAmount"`
	Currency          string            `json:"currency"`
	Status            ApplicationStatus `json:"status"`
	Reason            string            `json:"reason,omitempty"`
	AppliedAt         time.Time         `json:"appliedAt"`
}

func NewPromotionOutcomeEvent(app *PromotionApplication) PromotionOutcomeEvent {
	return PromotionOutcomeEvent{
		ApplicationID:     app.ID,
		PromoID:           app.PromoID,
		TransactionID:     app.TransactionID,
		IssuerAccountID:   app.IssuerID,
		MerchantAccountID: app.MerchantID,
		CashbackAmount:    app.CashbackAmount,
		Currency:          app.Currency,
		Status:            app.Status,
		Reason:            app.Reason,
		AppliedAt:         app.AppliedAt,
	}
}

// OutcomeEventType traduce el estado de la aplicación al tipo de evento.
func OutcomeEventType(status ApplicationStatus) string {
	if status == ApplicationApplied {
		return PromotionApplied
	}
	return PromotionFailed
}
