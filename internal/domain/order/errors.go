package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/ec-order-core/internal/model"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("order not found")
	ErrForbidden         = errors.New("not allowed to access this order")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidState      = errors.New("order is not in a valid state for this operation")
	ErrAlreadyConfirmed  = errors.New("order receipt already confirmed")
)

// ValidationError lists the offending fields of a rejected request.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(msg string, fields ...string) *ValidationError {
	return &ValidationError{Message: msg, Fields: fields}
}

// TransitionError is returned when the target status is not reachable from
// the current one.
type TransitionError struct {
	From    model.Status
	To      model.Status
	Allowed []model.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s (allowed: %v)", e.From, e.To, e.Allowed)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
