package exchange

import (
	"errors"
	"fmt"
)

// RejectionError is a non-retryable exchange refusal: invalid quantity,
// insufficient balance, rule violation. Network and timeout errors are
// plain errors and remain retryable.
type RejectionError struct {
	Code int
	Msg  string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("exchange rejected order: %s (code=%d)", e.Msg, e.Code)
}

// ErrDuplicateToken signals that the client order id was already used. The
// original order exists on the exchange and should be reconciled, not
// resubmitted.
var ErrDuplicateToken = errors.New("duplicate client order id")

// ErrOrderNotFound is returned by GetOrderStatus when no order carries the
// requested client order id.
var ErrOrderNotFound = errors.New("order not found")

func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}
