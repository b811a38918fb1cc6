package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/liamba05/Fynnance/internal/logger"
)

// State is the flow's position in a single linking invocation.
type State int

const (
	StateIdle State = iota
	StateSessionRequested
	StateWidgetOpen
	StateExchangePending
	StateLinked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionRequested:
		return "session_requested"
	case StateWidgetOpen:
		return "widget_open"
	case StateExchangePending:
		return "exchange_pending"
	case StateLinked:
		return "linked"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// User-facing terminal messages.
const (
	MsgLinked           = "Bank account connected successfully!"
	MsgSessionExpired   = "Session expired. Please try again."
	MsgProfileWriteFail = "Bank account connected, but saving the connection failed. Please retry."
)

// SessionInitiator mints a single-use link session token.
type SessionInitiator interface {
	CreateSession(ctx context.Context) (string, error)
}

// TokenExchanger swaps a temporary credential for a durable
// connection identifier.
type TokenExchanger interface {
	Exchange(ctx context.Context, publicToken string) (string, error)
}

// ConnectionWriter persists the durable connection to the user's
// profile. Connected flag, connection id and timestamp land in one
// atomic update.
type ConnectionWriter interface {
	WriteConnection(ctx context.Context, connectionID string, at time.Time) error
}

// Notifier surfaces the user-visible message fired at every terminal
// transition.
type Notifier func(success bool, message string)

// Flow drives one account-linking invocation:
//
//	Idle -> SessionRequested -> WidgetOpen -> ExchangePending -> Linked
//
// with Failed terminal on any error. Linked and Failed are final for
// an invocation; calling Start again begins fresh with no residual
// state. Overlapping Starts are rejected with ErrFlowInFlight.
type Flow struct {
	initiator SessionInitiator
	exchanger TokenExchanger
	widget    Widget
	profile   ConnectionWriter
	notify    Notifier

	mu           sync.Mutex
	state        State
	running      bool
	connectionID string
	lastErr      error
}

func NewFlow(
	initiator SessionInitiator,
	exchanger TokenExchanger,
	widget Widget,
	profile ConnectionWriter,
	notify Notifier,
) *Flow {
	if notify == nil {
		notify = func(bool, string) {}
	}
	return &Flow{
		initiator: initiator,
		exchanger: exchanger,
		widget:    widget,
		profile:   profile,
		notify:    notify,
		state:     StateIdle,
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the terminal error of the last invocation, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Start runs the flow to a terminal state. It returns nil when the
// account is linked, or the terminal error otherwise. The in-flight
// guard makes a double-click a no-op rather than a second overlapping
// run.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrFlowInFlight
	}
	f.running = true
	f.state = StateSessionRequested
	f.connectionID = ""
	f.lastErr = nil
	f.mu.Unlock()

	err := f.run(ctx)

	f.mu.Lock()
	f.running = false
	if err != nil {
		f.state = StateFailed
		f.lastErr = err
	} else {
		f.state = StateLinked
	}
	f.mu.Unlock()

	if err != nil {
		logger.Error("account linking failed", map[string]any{
			"error": err.Error(),
		})
		f.notify(false, userMessage(err))
		return err
	}

	f.notify(true, MsgLinked)
	return nil
}

func (f *Flow) run(ctx context.Context) error {
	linkToken, err := f.initiator.CreateSession(ctx)
	if err != nil {
		return err
	}

	f.setState(StateWidgetOpen)

	events, err := f.widget.Open(ctx, linkToken)
	if err != nil {
		return err
	}

	var ev WidgetEvent
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev = <-events:
	}

	if ev.Exit != nil {
		return ev.Exit
	}
	if ev.PublicToken == "" {
		return ErrWidgetClosed
	}

	f.setState(StateExchangePending)

	connectionID, err := f.exchanger.Exchange(ctx, ev.PublicToken)
	if err != nil {
		return err
	}

	// Record the durable id before the profile write: if the write
	// fails the exchange is done and must not be re-run, so the id is
	// what RetryProfileWrite picks up.
	f.mu.Lock()
	f.connectionID = connectionID
	f.mu.Unlock()

	if err := f.profile.WriteConnection(ctx, connectionID, time.Now()); err != nil {
		return fmt.Errorf("%w: %v", ErrProfileWrite, err)
	}

	return nil
}

// RetryProfileWrite re-attempts only the profile update after an
// ErrProfileWrite terminal state. The external exchange already
// succeeded and is never repeated.
func (f *Flow) RetryProfileWrite(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrFlowInFlight
	}
	if f.state != StateFailed || !errors.Is(f.lastErr, ErrProfileWrite) || f.connectionID == "" {
		f.mu.Unlock()
		return errors.New("link: no failed profile write to retry")
	}
	connectionID := f.connectionID
	f.mu.Unlock()

	if err := f.profile.WriteConnection(ctx, connectionID, time.Now()); err != nil {
		err = fmt.Errorf("%w: %v", ErrProfileWrite, err)
		f.notify(false, userMessage(err))
		return err
	}

	f.mu.Lock()
	f.state = StateLinked
	f.lastErr = nil
	f.mu.Unlock()

	f.notify(true, MsgLinked)
	return nil
}

// userMessage maps a terminal error to the message shown to the user.
// An expired widget session gets its own message; other widget exits
// fall back to the widget's display text.
func userMessage(err error) string {
	var exit *WidgetExitError
	if errors.As(err, &exit) {
		if exit.SessionExpired() {
			return MsgSessionExpired
		}
		return "Error: " + exit.DisplayMessage
	}
	if errors.Is(err, ErrProfileWrite) {
		return MsgProfileWriteFail
	}
	return "Error connecting bank account: " + err.Error()
}
