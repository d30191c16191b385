package jobs

import "errors"

// CancelledError signals cooperative cancellation: an operator flipped the
// job's persisted status to failed while it was processing, and the processor
// observed it at a periodic checkpoint. It is deliberately distinct from the
// host shutdown context so the two mechanisms cannot be conflated.
type CancelledError struct {
	Message string
}

func (e *CancelledError) Error() string {
	return e.Message
}

// IsCancelled reports whether err carries a cooperative cancellation signal.
// Parameters:
//   - err: error to inspect.
// Returns:
//   - bool: true when a *CancelledError is in the chain.
func IsCancelled(err error) bool {
	var cancelled *CancelledError
	return errors.As(err, &cancelled)
}
