package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInitiator struct {
	token string
	err   error
	calls int
}

func (f *fakeInitiator) CreateSession(ctx context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakeExchanger struct {
	itemID string
	err    error
	calls  int
	gotTok string
}

func (f *fakeExchanger) Exchange(ctx context.Context, publicToken string) (string, error) {
	f.calls++
	f.gotTok = publicToken
	if f.err != nil {
		return "", f.err
	}
	return f.itemID, nil
}

type fakeWidget struct {
	event    WidgetEvent
	gotToken string
	opens    int
}

func (f *fakeWidget) Open(ctx context.Context, linkToken string) (<-chan WidgetEvent, error) {
	f.opens++
	f.gotToken = linkToken
	ch := make(chan WidgetEvent, 1)
	ch <- f.event
	return ch, nil
}

type fakeWriter struct {
	err   error
	calls int
	gotID string
	wrote time.Time
}

func (f *fakeWriter) WriteConnection(ctx context.Context, connectionID string, at time.Time) error {
	f.calls++
	f.gotID = connectionID
	f.wrote = at
	return f.err
}

type capture struct {
	success  bool
	message  string
	notified int
}

func (c *capture) notify(success bool, message string) {
	c.success = success
	c.message = message
	c.notified++
}

func TestFlowLinksAccount(t *testing.T) {
	init := &fakeInitiator{token: "link-sandbox-123"}
	ex := &fakeExchanger{itemID: "item_abc"}
	w := &fakeWidget{event: WidgetEvent{PublicToken: "tok_123"}}
	pw := &fakeWriter{}
	notes := &capture{}

	f := NewFlow(init, ex, w, pw, notes.notify)
	err := f.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateLinked, f.State())

	// Exactly one widget open per session, one exchange with the
	// widget's credential, one profile write with the durable id.
	assert.Equal(t, 1, w.opens)
	assert.Equal(t, "link-sandbox-123", w.gotToken)
	assert.Equal(t, 1, ex.calls)
	assert.Equal(t, "tok_123", ex.gotTok)
	assert.Equal(t, 1, pw.calls)
	assert.Equal(t, "item_abc", pw.gotID)
	assert.WithinDuration(t, time.Now(), pw.wrote, time.Minute)

	assert.Equal(t, 1, notes.notified)
	assert.True(t, notes.success)
	assert.Equal(t, MsgLinked, notes.message)
}

func TestFlowExpiredSessionMessage(t *testing.T) {
	init := &fakeInitiator{token: "link-sandbox-123"}
	ex := &fakeExchanger{}
	w := &fakeWidget{event: WidgetEvent{Exit: &WidgetExitError{
		Code:           CodeInvalidLinkToken,
		DisplayMessage: "something went wrong",
	}}}
	pw := &fakeWriter{}
	notes := &capture{}

	f := NewFlow(init, ex, w, pw, notes.notify)
	err := f.Start(context.Background())

	var exit *WidgetExitError
	require.ErrorAs(t, err, &exit)
	assert.True(t, exit.SessionExpired())
	assert.Equal(t, StateFailed, f.State())

	// Distinct expired-session message, not the display-text fallback.
	assert.Equal(t, MsgSessionExpired, notes.message)
	assert.False(t, notes.success)
	assert.Equal(t, 0, ex.calls)
	assert.Equal(t, 0, pw.calls)
}

func TestFlowGenericWidgetExitMessage(t *testing.T) {
	init := &fakeInitiator{token: "link-sandbox-123"}
	w := &fakeWidget{event: WidgetEvent{Exit: &WidgetExitError{
		Code:           "INSTITUTION_ERROR",
		DisplayMessage: "institution not responding",
	}}}
	notes := &capture{}

	f := NewFlow(init, &fakeExchanger{}, w, &fakeWriter{}, notes.notify)
	err := f.Start(context.Background())

	require.Error(t, err)
	assert.Equal(t, "Error: institution not responding", notes.message)
}

func TestFlowSessionFailureIsTerminal(t *testing.T) {
	init := &fakeInitiator{err: ErrBackendUnavailable}
	w := &fakeWidget{}
	notes := &capture{}

	f := NewFlow(init, &fakeExchanger{}, w, &fakeWriter{}, notes.notify)
	err := f.Start(context.Background())

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, StateFailed, f.State())
	assert.Equal(t, 0, w.opens)
	assert.Equal(t, 1, notes.notified)
}

func TestFlowProfileWriteFailureIsDistinct(t *testing.T) {
	init := &fakeInitiator{token: "link-sandbox-123"}
	ex := &fakeExchanger{itemID: "item_abc"}
	w := &fakeWidget{event: WidgetEvent{PublicToken: "tok_123"}}
	pw := &fakeWriter{err: errors.New("store down")}
	notes := &capture{}

	f := NewFlow(init, ex, w, pw, notes.notify)
	err := f.Start(context.Background())

	assert.ErrorIs(t, err, ErrProfileWrite)
	assert.Equal(t, StateFailed, f.State())
	assert.Equal(t, MsgProfileWriteFail, notes.message)
	assert.Equal(t, 1, ex.calls)
}

func TestFlowRetryProfileWriteDoesNotReExchange(t *testing.T) {
	init := &fakeInitiator{token: "link-sandbox-123"}
	ex := &fakeExchanger{itemID: "item_abc"}
	w := &fakeWidget{event: WidgetEvent{PublicToken: "tok_123"}}
	pw := &fakeWriter{err: errors.New("store down")}
	notes := &capture{}

	f := NewFlow(init, ex, w, pw, notes.notify)
	require.Error(t, f.Start(context.Background()))

	pw.err = nil
	require.NoError(t, f.RetryProfileWrite(context.Background()))

	assert.Equal(t, StateLinked, f.State())
	assert.Equal(t, 1, ex.calls, "exchange must not be re-run")
	assert.Equal(t, 2, pw.calls)
	assert.Equal(t, "item_abc", pw.gotID)
	assert.True(t, notes.success)
}

func TestFlowRetryProfileWriteRequiresFailedWrite(t *testing.T) {
	f := NewFlow(&fakeInitiator{token: "t"}, &fakeExchanger{itemID: "i"},
		&fakeWidget{event: WidgetEvent{PublicToken: "p"}}, &fakeWriter{}, nil)

	require.NoError(t, f.Start(context.Background()))
	assert.Error(t, f.RetryProfileWrite(context.Background()))
}

func TestFlowRestartAfterFailureIsFresh(t *testing.T) {
	init := &fakeInitiator{err: ErrBackendUnavailable}
	ex := &fakeExchanger{itemID: "item_abc"}
	w := &fakeWidget{event: WidgetEvent{PublicToken: "tok_123"}}
	pw := &fakeWriter{}

	f := NewFlow(init, ex, w, pw, nil)
	require.Error(t, f.Start(context.Background()))
	require.Equal(t, StateFailed, f.State())

	// Session now succeeds; the new invocation must start from a
	// clean SessionRequested step with nothing left over.
	init.err = nil
	init.token = "link-sandbox-456"
	require.NoError(t, f.Start(context.Background()))

	assert.Equal(t, StateLinked, f.State())
	assert.NoError(t, f.Err())
	assert.Equal(t, 2, init.calls)
	assert.Equal(t, "link-sandbox-456", w.gotToken)
	assert.Equal(t, 1, pw.calls)
}

func TestFlowRejectsOverlappingStart(t *testing.T) {
	release := make(chan struct{})
	blocked := make(chan struct{})

	init := &blockingInitiator{release: release, entered: blocked}
	w := &fakeWidget{event: WidgetEvent{PublicToken: "tok_123"}}
	f := NewFlow(init, &fakeExchanger{itemID: "item_abc"}, w, &fakeWriter{}, nil)

	done := make(chan error, 1)
	go func() { done <- f.Start(context.Background()) }()

	<-blocked
	assert.ErrorIs(t, f.Start(context.Background()), ErrFlowInFlight)
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, StateLinked, f.State())
}

type blockingInitiator struct {
	release <-chan struct{}
	entered chan<- struct{}
}

func (b *blockingInitiator) CreateSession(ctx context.Context) (string, error) {
	b.entered <- struct{}{}
	<-b.release
	return "link-sandbox-123", nil
}
