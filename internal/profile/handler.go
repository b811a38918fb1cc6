package profile

import (
	"context"
	"errors"
	"net/http"

	"github.com/liamba05/Fynnance/internal/middleware"

	"github.com/gin-gonic/gin"
)

// FieldStore is the slice of the store the HTTP surface needs.
type FieldStore interface {
	GetField(ctx context.Context, userID, field string) (any, error)
	SetField(ctx context.Context, userID, field, value string) error
}

type Handler struct {
	store FieldStore
}

func NewHandler(store FieldStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the per-field profile endpoints on the
// bearer-protected API group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/user/:field", h.getField)
	api.PUT("/user/:field", h.putField)
}

func (h *Handler) getField(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	field := c.Param("field")

	value, err := h.store.GetField(c.Request.Context(), userID, field)
	if err != nil {
		if errors.Is(err, ErrUnknownField) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown field"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{field: value})
}

type putFieldRequest struct {
	Value string `json:"value"`
}

func (h *Handler) putField(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	field := c.Param("field")

	var req putFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.store.SetField(c.Request.Context(), userID, field, req.Value); err != nil {
		if errors.Is(err, ErrUnknownField) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown field"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
