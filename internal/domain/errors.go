package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies execution and stream failures.
type ErrorKind int

const (
	KindMalformedEvent ErrorKind = iota + 1
	// KindUpstreamAPI covers the construction API and everything done before
	// broadcast, local signing of the returned bytes included.
	KindUpstreamAPI
	KindBroadcast
	KindOnchainRejection
	KindConfirmationTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedEvent:
		return "malformed_event"
	case KindUpstreamAPI:
		return "upstream_api_error"
	case KindBroadcast:
		return "broadcast_error"
	case KindOnchainRejection:
		return "onchain_rejected"
	case KindConfirmationTimeout:
		return "confirmation_timeout"
	default:
		return "unknown"
	}
}

// ErrMalformedEvent marks inbound frames that cannot be normalized.
var ErrMalformedEvent = &ExecutionError{Kind: KindMalformedEvent, Err: errors.New("malformed event")}

// ExecutionError is the typed failure returned by the execution gateway.
type ExecutionError struct {
	Kind ErrorKind
	// TxID is set when the transaction was broadcast before failing.
	TxID string
	Err  error
}

func NewExecutionError(kind ErrorKind, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Err: err}
}

func (e *ExecutionError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("%s (tx %s): %v", e.Kind, e.TxID, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is matches any ExecutionError of the same kind.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// KindOf extracts the ErrorKind from err.
func KindOf(err error) (ErrorKind, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind, true
	}

	return 0, false
}
