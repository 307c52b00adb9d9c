package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"paper-trade-go/internal/auth"
)

// RequireAuth validates the bearer token and stores the user id on the
// request context.
func RequireAuth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) uint {
	return c.MustGet("user_id").(uint)
}
