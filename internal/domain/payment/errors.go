package payment

import (
	"errors"
	"fmt"

	"github.com/example/ec-order-core/internal/domain/order"
)

var (
	ErrNotFound          = order.ErrNotFound
	ErrForbidden         = order.ErrForbidden
	ErrAlreadyProcessing = errors.New("payment is already being processed")
	ErrOrderNotPayable   = errors.New("order is not payable")
	ErrGateway           = errors.New("payment gateway error")
)

// GatewayError wraps a failure talking to the payment provider.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}
