package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"integrity-analyze-service/auth"
)

// CORSMiddleware handles CORS headers
func CORSMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AuthMiddleware validates bearer tokens on analysis routes. With required
// set, requests without a valid token get a 401; otherwise a bad or missing
// token just leaves the request anonymous, so unauthenticated clients can
// still run analyses while authenticated ones get identity in the context.
func AuthMiddleware(verifier *auth.Verifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if required {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		tokenString := extractToken(authHeader)
		if tokenString == "" {
			if required {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		user, err := verifier.VerifyToken(c.Request.Context(), tokenString)
		if err != nil {
			if required {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		c.Set("user_id", user.Subject)
		c.Set("email", user.Email)
		c.Set("role", user.Role)
		c.Next()
	}
}

// extractToken extracts the token from the Authorization header
func extractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
