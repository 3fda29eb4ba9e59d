package credit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/promotion/domain"
	"github.com/davicafu/promolab/internal/shared/infra/platform/observability"
)

const cashbackPath = "/api/transactions/cashback"

// maxErrorBody limita lo que se copia del cuerpo de una respuesta de error.
const maxErrorBody = 512

type cashbackRequest struct {
	IssuerAccountID   int64       `json:"issuerAccountId"`
	MerchantAccountID int64       `json:"merchantAccountId"`
	Amount            json.Number `json:"amount"`
	Currency          string      `json:"currency"`
}

// HTTPCreditClient llama al servicio de transacciones para abonar el cashback.
type HTTPCreditClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     *zap.Logger
}

func NewHTTPCreditClient(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPCreditClient {
	return &HTTPCreditClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		log:     log.Named("credit"),
	}
}

// CreateCashback hace una sola llamada acotada por timeout. No reintenta.
func (c *HTTPCreditClient) CreateCashback(ctx context.Context, credit domain.CashbackCredit) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		var creditErr *domain.CreditError
		if errors.As(err, &creditErr) {
			result = creditErr.Kind
		}
		observability.CreditCallDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(cashbackRequest{
		IssuerAccountID:   credit.IssuerAccountID,
		MerchantAccountID: credit.MerchantAccountID,
		Amount:            json.Number(credit.Amount.StringFixed(2)),
		Currency:          credit.Currency,
	})
	if err != nil {
		return &domain.CreditError{Kind: domain.CreditTransportError, Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+cashbackPath, bytes.NewReader(body))
	if err != nil {
		return &domain.CreditError{Kind: domain.CreditTransportError, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn("cashback credit rejected",
			zap.Int("status", resp.StatusCode),
			zap.Int64("issuerAccountId", credit.IssuerAccountID),
			zap.Int64("merchantAccountId", credit.MerchantAccountID))
		return &domain.CreditError{
			Kind: domain.CreditHTTPStatusError,
			Err:  fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.CreditError{Kind: domain.CreditTimeoutError, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.CreditError{Kind: domain.CreditTimeoutError, Err: err}
	}
	return &domain.CreditError{Kind: domain.CreditTransportError, Err: err}
}

var _ domain.CreditClient = (*HTTPCreditClient)(nil)
