package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de evento del sistema de crédito. Solo consumimos transaction.posted.
const (
	HoldCreated           = "hold.created"
	HoldExpired           = "hold.expired"
	HoldVoided            = "hold.voided"
	TransactionAuthorized = "transaction.authorized"
	TransactionPosted     = "transaction.posted"
	TransactionFailed     = "transaction.failed"
	TransactionInitiated  = "transaction.initiated"
)

type TransactionType string

const (
	TransactionInbound  TransactionType = "INBOUND"  // abono entrante: evaluable
	TransactionCashback TransactionType = "CASHBACK" // eco de un cashback nuestro
)

// TransactionPostedEvent es el cuerpo JSON del mensaje transaction.posted.
type TransactionPostedEvent struct {
	TransactionID     int64           `json:"transactionId"`
	Type              TransactionType `json:"type"`
	IssuerAccountID   int64           `json:"issuerAccountId"`
	MerchantAccountID int64           `json:"merchantAccountId"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

func (e TransactionPostedEvent) Validate() error {
	if e.TransactionID == 0 {
		return ErrInvalidEvent
	}
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// EventID identifica la ocurrencia lógica del evento: misma transacción, mismo id.
func EventID(eventType string, transactionID int64) string {
	return eventType + "-" + strconv.FormatInt(transactionID, 10)
}
