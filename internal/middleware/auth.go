package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pupfi-arcade-backend/internal/services"
	"pupfi-arcade-backend/internal/store"
)

// AuthMiddleware validates the bearer token and checks its session key
// against the account's current one, so rotated sessions die immediately.
func AuthMiddleware(jwtService *services.JWTService, accounts *services.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		acct, err := accounts.Get(c.Request.Context(), claims.UserID)
		if err != nil || acct.SessionKey != claims.SessionKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)

		c.Next()
	}
}

func RateLimitMiddleware(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var limit int
		var window time.Duration

		switch {
		case strings.HasSuffix(path, "/score"):
			limit = 120 // 120 score submissions per minute
			window = time.Minute
		case strings.HasSuffix(path, "/matches"):
			limit = 30 // 30 match creations per minute
			window = time.Minute
		case strings.HasSuffix(path, "/tip"):
			limit = 60 // 60 tips per minute
			window = time.Minute
		default:
			c.Next()
			return
		}

		allowed, err := st.CheckRateLimit(c.Request.Context(), userID, path, limit, window)
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
