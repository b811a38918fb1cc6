package bank

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/liamba05/Fynnance/internal/logger"
	"github.com/liamba05/Fynnance/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Aggregator is the slice of the provider client the handlers need.
type Aggregator interface {
	CreateLinkToken(ctx context.Context, userID string) (LinkToken, error)
	Exchange(ctx context.Context, publicToken string) (accessToken, itemID string, err error)
	Accounts(ctx context.Context, accessToken string) ([]Account, error)
}

// TokenStore persists exchanged access tokens and looks them up for
// data fetches.
type TokenStore interface {
	Save(ctx context.Context, userID, itemID, accessToken string) error
	AccessToken(ctx context.Context, userID, itemID string) (string, error)
}

// ProfileBuilder assembles the full financial profile for an item.
type ProfileBuilder interface {
	Build(ctx context.Context, userID, itemID string, days int) (*FinancialProfile, error)
}

type Handler struct {
	aggregator Aggregator
	items      TokenStore
	profiles   ProfileBuilder
}

func NewHandler(aggregator Aggregator, items TokenStore, profiles ProfileBuilder) *Handler {
	return &Handler{aggregator: aggregator, items: items, profiles: profiles}
}

// RegisterRoutes mounts the linking endpoints on the bearer-protected
// API group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/create_link_token", h.createLinkToken)
	api.POST("/exchange_public_token", h.exchangePublicToken)
	api.GET("/accounts", h.accounts)
	api.GET("/financial_profile", h.financialProfile)
}

func (h *Handler) createLinkToken(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	token, err := h.aggregator.CreateLinkToken(c.Request.Context(), userID)
	if err != nil {
		logger.Error("link token create failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create link token",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"link_token": token.Token,
		"expiration": token.Expiration,
	})
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

func (h *Handler) exchangePublicToken(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PublicToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Public token is required"})
		return
	}

	accessToken, itemID, err := h.aggregator.Exchange(c.Request.Context(), req.PublicToken)
	if err != nil {
		logger.Error("public token exchange failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to exchange public token",
			"details": err.Error(),
		})
		return
	}

	if err := h.items.Save(c.Request.Context(), userID, itemID, accessToken); err != nil {
		logger.Error("access token store failed", map[string]any{
			"user_id": userID,
			"item_id": itemID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error during token exchange",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"item_id": itemID,
	})
}

func (h *Handler) accounts(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	itemID := c.Query("item_id")
	if itemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item id is required"})
		return
	}

	accessToken, err := h.items.AccessToken(c.Request.Context(), userID, itemID)
	if errors.Is(err, ErrNoLinkedItem) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No linked item found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to look up linked item",
			"details": err.Error(),
		})
		return
	}

	accounts, err := h.aggregator.Accounts(c.Request.Context(), accessToken)
	if err != nil {
		logger.Error("account fetch failed", map[string]any{
			"user_id": userID,
			"item_id": itemID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch accounts",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *Handler) financialProfile(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	itemID := c.Query("item_id")
	if itemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item id is required"})
		return
	}

	days := defaultTransactionsDays
	if raw := c.Query("transactions_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transactions_days"})
			return
		}
		days = parsed
	}

	p, err := h.profiles.Build(c.Request.Context(), userID, itemID, days)
	if errors.Is(err, ErrNoLinkedItem) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No linked item found"})
		return
	}
	if err != nil {
		logger.Error("financial profile build failed", map[string]any{
			"user_id": userID,
			"item_id": itemID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to build financial profile",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, p)
}
