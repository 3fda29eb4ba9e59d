package domain

import "time"

// Outcome es el resultado terminal de procesar un transaction.posted.
type Outcome string

const (
	OutcomeIgnoredType       Outcome = "IGNORED_TYPE"
	OutcomeCashbackConfirmed Outcome = "CASHBACK_CONFIRMED"
	OutcomeNoPromo           Outcome = "NO_PROMO"
	OutcomeDuplicate         Outcome = "DUPLICATE"
	OutcomeNoCashback        Outcome = "NO_CASHBACK"
	OutcomeApplied           Outcome = "APPLIED"
	OutcomeFailed            Outcome = "FAILED"
)

// ProcessedEvent es una entrada del ledger de idempotencia. EventID es único.
type ProcessedEvent struct {
	EventID     string    `json:"eventId"`
	PayloadHash string    `json:"payloadHash,omitempty"`
	Status      Outcome   `json:"status"`
	ProcessedAt time.Time `json:"processedAt"`
}
