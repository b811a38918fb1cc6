// Package link implements bank-account linking: minting a single-use
// link session from the backend, driving the external linking widget,
// and exchanging the widget's temporary credential for a durable
// connection recorded on the user's profile.
package link

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no signed-in user was present. No
	// network call is made in this case.
	ErrUnauthenticated = errors.New("link: user must be logged in to connect a bank account")

	// ErrBackendUnavailable means the backend liveness probe failed;
	// the session endpoint was never attempted.
	ErrBackendUnavailable = errors.New("link: cannot connect to backend server")

	// ErrMalformedResponse means the backend answered with a success
	// status but without the expected field.
	ErrMalformedResponse = errors.New("link: no link token received from server")

	// ErrFlowInFlight guards against overlapping invocations of the
	// same flow (double-click on the connect control).
	ErrFlowInFlight = errors.New("link: account linking already in progress")

	// ErrProfileWrite marks the case where the exchange succeeded but
	// the durable profile update did not. The exchange must not be
	// re-run; only the profile write is retried.
	ErrProfileWrite = errors.New("link: profile update failed")
)

// RemoteError is a non-success backend response, carrying the message
// from the structured {error, details} payload when one was parseable,
// or the raw body otherwise.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("link: backend rejected request (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("link: backend rejected request (status %d)", e.Status)
}

// Widget exit error codes with dedicated handling.
const CodeInvalidLinkToken = "INVALID_LINK_TOKEN"

// WidgetExitError reports a user-exit or error event from the external
// linking widget.
type WidgetExitError struct {
	Code           string
	DisplayMessage string
}

// SessionExpired reports whether the widget exited because the
// single-use link session was no longer valid; the user must
// re-initiate from scratch.
func (e *WidgetExitError) SessionExpired() bool {
	return e.Code == CodeInvalidLinkToken
}

func (e *WidgetExitError) Error() string {
	if e.SessionExpired() {
		return "link: session expired, please try again"
	}
	return fmt.Sprintf("link: widget exited: %s", e.DisplayMessage)
}
