package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one completion-endpoint message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Upstream streams completions from an OpenAI-compatible endpoint.
type Upstream struct {
	url     string
	key     string
	model   string
	client  *http.Client
	timeout time.Duration
}

func NewUpstream(url, key, model string, timeout time.Duration) *Upstream {
	return &Upstream{
		url:     url,
		key:     key,
		model:   model,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Stream requests a streamed completion and hands each content delta
// to emit in arrival order. A non-nil error from emit aborts the
// stream.
func (u *Upstream) Stream(ctx context.Context, messages []Message, emit func(fragment string) error) error {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	body, err := json.Marshal(map[string]any{
		"model":    u.model,
		"messages": messages,
		"stream":   true,
	})
	if err != nil {
		return fmt.Errorf("chat: failed to encode upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat: failed to build upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat: upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat: upstream returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	scanner := bufio.NewScanner(resp.Body)
	// A delta frame can exceed bufio's 64KB default.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // tolerate malformed keepalive frames
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := emit(content); err != nil {
				return err
			}
		}
		if chunk.Choices[0].FinishReason == "stop" {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("chat: upstream stream read failed: %w", err)
	}
	return nil
}
