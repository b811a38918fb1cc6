package chat

import (
	"context"
	"fmt"
	"net/http"

	"github.com/liamba05/Fynnance/internal/logger"
	"github.com/liamba05/Fynnance/internal/middleware"
	"github.com/liamba05/Fynnance/internal/profile"

	"github.com/gin-gonic/gin"
)

const systemPrompt = "You are Fynn, an all-around financial analyst for the user's " +
	"financing, budgeting, and investments. You will provide the user with " +
	"financial advice and information. If you need more information to answer, " +
	"ask the user follow-up questions before answering."

// Completer produces a streamed completion.
type Completer interface {
	Stream(ctx context.Context, messages []Message, emit func(fragment string) error) error
}

// ProfileReader supplies the user context woven into the prompt.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
}

// FinancialContext renders a snapshot of the user's linked finances
// for the prompt.
type FinancialContext interface {
	Summary(ctx context.Context, userID, itemID string) (string, error)
}

type Handler struct {
	upstream  Completer
	profiles  ProfileReader
	financial FinancialContext
}

func NewHandler(upstream Completer, profiles ProfileReader, financial FinancialContext) *Handler {
	return &Handler{upstream: upstream, profiles: profiles, financial: financial}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/chat", h.chat)
}

type chatRequest struct {
	Messages []Message `json:"messages"`
}

// chat proxies the transcript to the completion endpoint, prepending
// the Fynn system prompt and the user's stored goals and preferences,
// and streams the reply back as data frames.
func (h *Handler) chat(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages are required"})
		return
	}

	messages := h.contextMessages(c.Request.Context(), userID)
	messages = append(messages, req.Messages...)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")

	wrote := false
	err := h.upstream.Stream(c.Request.Context(), messages, func(fragment string) error {
		wrote = true
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", fragment); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		logger.Error("chat completion failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		if !wrote {
			c.JSON(http.StatusBadGateway, gin.H{"error": "completion failed"})
		}
		return
	}
}

// contextMessages builds the system messages for a user. Profile
// trouble degrades to the bare system prompt rather than failing the
// chat.
func (h *Handler) contextMessages(ctx context.Context, userID string) []Message {
	messages := []Message{{Role: "system", Content: systemPrompt}}

	p, err := h.profiles.Get(ctx, userID)
	if err != nil {
		logger.Warn("could not load user context for chat", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return messages
	}

	if p.Goals != "" {
		messages = append(messages, Message{
			Role: "system",
			Content: "The user has provided their financial goals: " + p.Goals +
				". These should be your overarching focus as their financial advisor.",
		})
	}
	if p.Preferences != "" {
		messages = append(messages, Message{
			Role: "system",
			Content: "The user has indicated these communication preferences: " + p.Preferences +
				". Adapt your responses to match them in detail level, risk tolerance, and style.",
		})
	}

	// Weave in the linked-bank snapshot so advice is grounded in the
	// user's actual balances and spending. Trouble here degrades to a
	// chat without it.
	if h.financial != nil && p.BankConnected && p.BankConnectionID != nil {
		snapshot, err := h.financial.Summary(ctx, userID, *p.BankConnectionID)
		if err != nil {
			logger.Warn("could not load financial snapshot for chat", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
		} else if snapshot != "" {
			messages = append(messages, Message{
				Role: "system",
				Content: "Current snapshot of the user's linked finances:\n" + snapshot +
					"Use it to ground your advice, and do not invent figures beyond it.",
			})
		}
	}

	return messages
}
