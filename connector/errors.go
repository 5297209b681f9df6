package connector

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownEndpoint is returned by Connect for a network name outside
	// the supported set.
	ErrUnknownEndpoint = errors.New("unknown network endpoint")

	// ErrNotConnected is returned by operations that require a live session.
	ErrNotConnected = errors.New("not connected to a ledger network")

	// ErrAlreadyConnected is returned by Connect while a session is live or
	// being established.
	ErrAlreadyConnected = errors.New("connector already has an active session")
)

// ConnectError reports a connection attempt that exhausted its retry budget.
// It carries the last underlying transport error.
type ConnectError struct {
	Endpoint string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

// Unwrap returns the last underlying transport error.
func (e *ConnectError) Unwrap() error { return e.Err }

// SubmitError reports a failed transaction submission. Hash is empty when
// the failure happened before signing.
type SubmitError struct {
	Hash string
	Err  error
}

// Error implements the error interface.
func (e *SubmitError) Error() string {
	if e.Hash == "" {
		return fmt.Sprintf("submitting transaction: %v", e.Err)
	}
	return fmt.Sprintf("submitting transaction %s: %v", e.Hash, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SubmitError) Unwrap() error { return e.Err }
