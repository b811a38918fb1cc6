// Package chat keeps the assistant conversation: an append-only
// transcript forwarded whole to the completion endpoint, with replies
// rendered either as one block or as streamed fragments.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liamba05/Fynnance/internal/auth"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one transcript entry.
type Turn struct {
	ID   uuid.UUID
	Role Role
	Text string
}

var (
	// ErrTokenExpired means the identity token was rejected; the
	// caller should re-authenticate.
	ErrTokenExpired = errors.New("chat: identity token invalid or expired")

	// ErrRateLimited means the endpoint asked us to back off. Chat
	// calls are never retried automatically — an automatic retry
	// would compound the limit.
	ErrRateLimited = errors.New("chat: rate limited, try again later")
)

// Session holds an ordered transcript and forwards user turns to the
// completion endpoint. It follows UI event-loop semantics: one Send
// at a time, no internal locking.
type Session struct {
	endpoint   string
	tokens     auth.TokenSource
	client     *http.Client
	timeout    time.Duration
	onFragment func(string)

	turns []Turn
}

// NewSession creates a session. onFragment, when non-nil, receives
// streamed reply fragments in arrival order as they are appended.
func NewSession(endpoint string, tokens auth.TokenSource, httpClient *http.Client, timeout time.Duration, onFragment func(string)) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Session{
		endpoint:   endpoint,
		tokens:     tokens,
		client:     httpClient,
		timeout:    timeout,
		onFragment: onFragment,
	}
}

// Turns returns a copy of the transcript in order.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Reset clears the transcript in full; a new conversation starts
// empty. There is no partial deletion.
func (s *Session) Reset() {
	s.turns = nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Send appends the user turn, forwards the full transcript, and
// appends the assistant reply. No retry is applied to chat calls.
func (s *Session) Send(ctx context.Context, text string) (Turn, error) {
	// The user turn lands synchronously, before any network traffic,
	// and stays in the transcript even if the call fails.
	s.turns = append(s.turns, Turn{ID: uuid.New(), Role: RoleUser, Text: text})

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	token, err := s.tokens.IdentityToken(ctx)
	if err != nil {
		return Turn{}, fmt.Errorf("chat: failed to obtain identity token: %w", err)
	}

	messages := make([]wireMessage, 0, len(s.turns))
	for _, t := range s.turns {
		messages = append(messages, wireMessage{Role: string(t.Role), Content: t.Text})
	}

	body, err := json.Marshal(map[string]any{"messages": messages})
	if err != nil {
		return Turn{}, fmt.Errorf("chat: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Turn{}, fmt.Errorf("chat: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Turn{}, fmt.Errorf("chat: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Turn{}, ErrTokenExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		return Turn{}, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		raw, _ := io.ReadAll(resp.Body)
		return Turn{}, fmt.Errorf("chat: endpoint returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	reply := Turn{ID: uuid.New(), Role: RoleAssistant}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		text, err := s.readStream(resp.Body)
		if err != nil {
			return Turn{}, err
		}
		reply.Text = text
	} else {
		text, err := readWhole(resp.Body, resp.Header.Get("Content-Type"))
		if err != nil {
			return Turn{}, err
		}
		reply.Text = text
		if s.onFragment != nil && text != "" {
			s.onFragment(text)
		}
	}

	s.turns = append(s.turns, reply)
	return reply, nil
}

// readStream consumes `data: <fragment>` frames, delivering each
// fragment in arrival order before returning the assembled text.
func (s *Session) readStream(r io.Reader) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	// A fragment line can exceed bufio's 64KB default.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		fragment := strings.TrimPrefix(line, "data: ")
		b.WriteString(fragment)
		if s.onFragment != nil {
			s.onFragment(fragment)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("chat: stream read failed: %w", err)
	}
	return b.String(), nil
}

// readWhole handles the non-streamed shapes: a JSON {content} payload
// or a plain text body.
func readWhole(r io.Reader, contentType string) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("chat: failed to read response: %w", err)
	}

	if strings.Contains(contentType, "application/json") {
		var payload struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return "", fmt.Errorf("chat: failed to decode response: %w", err)
		}
		return payload.Content, nil
	}

	return string(raw), nil
}
