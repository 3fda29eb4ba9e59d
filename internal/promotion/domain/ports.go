package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrPromotionNotFound       = errors.New("promotion not found")
	ErrProcessedEventNotFound  = errors.New("processed event not found")
	ErrInvalidPromotion        = errors.New("invalid promotion")
	ErrInvalidPromotionWindow  = errors.New("promotion start date must be before expiry date")
	ErrIncompleteRewardFormula = errors.New("reward formula requires non-negative cashbackPercent and maxCashback")
	ErrInvalidEvent            = errors.New("invalid transaction event")
	ErrNegativeAmount          = errors.New("transaction amount must not be negative")
)

// --- Repositorios ---

type PromotionRepository interface {
	// ListCandidates devuelve las promociones no INACTIVE ordenadas por (start_date, promo_id).
	ListCandidates(ctx context.Context) ([]Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	GetByID(ctx context.Context, id string) (*Promotion, error)
	Upsert(ctx context.Context, p Promotion) error
}

type ApplicationRepository interface {
	ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error)
	// Create devuelve un error con sharedDomain.ErrConflict si la clave ya existe.
	Create(ctx context.Context, app *PromotionApplication) error
	ListByTransaction(ctx context.Context, transactionID int64) ([]PromotionApplication, error)
}

type ProcessedEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	ExistsByPayloadHash(ctx context.Context, hash string) (bool, error)
	// Insert devuelve un error con sharedDomain.ErrConflict si el eventId ya existe.
	Insert(ctx context.Context, evt ProcessedEvent) error
	GetByID(ctx context.Context, eventID string) (*ProcessedEvent, error)
}

// --- Estrategias de promoción ---

type RuleEvaluator interface {
	Eligible(evt TransactionPostedEvent, promo Promotion) bool
}

type RewardCalculator interface {
	Calculate(evt TransactionPostedEvent, promo Promotion) decimal.Decimal
}

// --- Servicio de crédito externo ---

// CashbackCredit es la orden de abono. Issuer y merchant ya vienen invertidos
// respecto al evento original.
type CashbackCredit struct {
	IssuerAccountID   int64
	MerchantAccountID int64
	Amount            decimal.Decimal
	Currency          string
}

type CreditClient interface {
	CreateCashback(ctx context.Context, credit CashbackCredit) error
}

// --- Analítica ---

type DailyCashback struct {
	Day          time.Time
	Applied      uint64
	Failed       uint64
	CashbackPaid decimal.Decimal
}

type ApplicationAnalyticsRepository interface {
	LogBatch(ctx context.Context, events []PromotionOutcomeEvent) error
	GetDailyCashback(ctx context.Context, start, end time.Time) ([]DailyCashback, error)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

const CandidatesCacheKey = "promotions:candidates"
