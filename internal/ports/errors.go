package ports

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNotFound signals that the requested entity does not exist (yet).
// Discovery returns it while a period market has not been listed.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRedeemed signals that a position's payout was already
// claimed, by us or by anyone else. Callers treat it as success.
var ErrAlreadyRedeemed = errors.New("already redeemed")

// RejectedError is a definitive venue rejection of an order. It is not
// transient: retrying the same request will fail the same way.
type RejectedError struct {
	OrderID string
	Reason  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order %s rejected: %s", e.OrderID, e.Reason)
}

// TransientError wraps a failure worth retrying on the next tick:
// timeouts, 5xx responses, rate limits, dropped connections. State
// machines must not advance on a transient error.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as transient, preserving the chain. Returns nil
// for a nil err.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err should be retried rather than acted
// on. Network-level failures and context timeouts count as transient
// even when an adapter forgot to wrap them.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
