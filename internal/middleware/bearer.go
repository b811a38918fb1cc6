package middleware

import (
	"net/http"
	"strings"

	"github.com/liamba05/Fynnance/internal/auth"

	"github.com/gin-gonic/gin"
)

// ContextUserID is the gin context key holding the authenticated
// user's internal ID on bearer-protected routes.
const ContextUserID = "userID"

// GinRequireBearer authenticates API requests carrying a short-lived
// identity token in the Authorization header. The token is verified
// on every request; nothing about it is cached.
func GinRequireBearer(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "No authentication token provided",
			})
			return
		}

		rawToken := strings.TrimPrefix(authHeader, "Bearer ")

		userID, err := verifier.Verify(c.Request.Context(), rawToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authentication token",
			})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}
