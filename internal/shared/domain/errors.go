package domain

import "errors"

var (
	// ErrConflict lo devuelven los repositorios ante una violación de unicidad.
	ErrConflict = errors.New("unique constraint conflict")
	// ErrOutboxTransition indica que el evento ya no estaba PENDING.
	ErrOutboxTransition = errors.New("outbox event is not pending")
)
