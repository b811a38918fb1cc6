package link

import (
	"context"
	"errors"
)

// ErrWidgetClosed means the user dismissed the widget without
// completing or failing; the flow simply ends.
var ErrWidgetClosed = errors.New("link: widget closed before completing")

// WidgetEvent is the single terminal event a widget run produces:
// a temporary credential on success, or an exit.
type WidgetEvent struct {
	// PublicToken is the temporary credential issued on success,
	// to be exchanged server-side for a durable connection.
	PublicToken string

	// Exit is non-nil when the user exited with an error.
	Exit *WidgetExitError
}

// Widget abstracts the hosted account-linking UI. Open presents the
// widget with a single-use session token; the returned channel yields
// exactly one event. Feeding events through a channel keeps flow
// transitions testable without the real widget.
type Widget interface {
	Open(ctx context.Context, linkToken string) (<-chan WidgetEvent, error)
}
