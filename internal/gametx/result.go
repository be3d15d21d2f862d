package gametx

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotConfirmed is the uniform confirmation-timeout failure. It is distinct
// from an explicit rejection: the transaction may still have landed on the
// ledger even though no confirmation arrived before the deadline.
var ErrNotConfirmed = errors.New("transaction could not be found before the deadline; it may still be picked up by the game server")

// ErrUserCancelled is returned when the user declined signing. Never retried.
var ErrUserCancelled = errors.New("transaction cancelled by user")

// SupportError is the terminal failure after a denied or failed capacity
// delegation. The message is user-facing guidance.
type SupportError struct {
	Operation string
	Cause     string
}

func (e *SupportError) Error() string {
	return fmt.Sprintf("the account does not have enough transaction capacity and no delegation could be granted; please contact support (operation %s): %s", e.Operation, e.Cause)
}

// Result is the final outcome of a submit call: either the authoritative
// server confirmation, or a terminal failure.
type Result struct {
	Success       bool
	CorrelationID string
	TrxID         string          // ledger reference when known
	Info          json.RawMessage // server-reported transaction info from the push
	Err           error           // failure cause; nil on success
	TimedOut      bool            // confirmation deadline expired
	Cancelled     bool            // user declined signing
}
