package auth

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when an operation requires a stored
// credential and none exists for the user. User-recoverable via /login.
var ErrNotAuthenticated = errors.New("no stored credential for user")

// ErrUnknownState is returned when a callback presents a state token that
// is not tracked. This covers forged tokens and replays of already
// consumed tokens alike; the two cases are deliberately not distinguished.
var ErrUnknownState = errors.New("unknown or already consumed state parameter")

// FlowError indicates that an authorization flow could not be constructed,
// typically due to missing OAuth client configuration. Fatal to the login
// attempt and logged at error severity.
type FlowError struct {
	Reason string
	Err    error
}

// Error implements the error interface
func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authorization flow: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authorization flow: %s", e.Reason)
}

// Unwrap implements the errors.Unwrap interface
func (e *FlowError) Unwrap() error {
	return e.Err
}

// ProviderError wraps a failure reported by the identity or calendar
// provider. User carries the chat user the operation belonged to, so the
// callback handler can still notify them about a failed exchange.
type ProviderError struct {
	// Op is the operation that failed (e.g., "exchange", "listEvents")
	Op string

	// User is the chat user the operation was performed for, if known
	User UserID

	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.User != 0 {
		return fmt.Sprintf("provider %s (user: %d): %v", e.Op, e.User, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ProviderError) Unwrap() error {
	return e.Err
}
