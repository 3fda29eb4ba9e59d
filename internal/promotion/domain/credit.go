package domain

import (
	"errors"
	"fmt"
)

// Clases de fallo de la llamada de abono.
const (
	CreditHTTPStatusError = "HTTPStatusError"
	CreditTransportError  = "TransportError"
	CreditTimeoutError    = "TimeoutError"
)

// CreditError clasifica un fallo del servicio de crédito.
type CreditError struct {
	Kind string
	Err  error
}

func (e *CreditError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CreditError) Unwrap() error {
	return e.Err
}

// FailureReason da el motivo persistido en una aplicación FAILED: "Tipo:mensaje".
func FailureReason(err error) string {
	var creditErr *CreditError
	if errors.As(err, &creditErr) {
		return creditErr.Kind + ":" + creditErr.Err.Error()
	}
	return "Error:" + err.Error()
}
