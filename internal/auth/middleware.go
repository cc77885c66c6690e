package auth

import (
	"Circlet/internal/apperr"
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDKey = "auth.user_id"

// Middleware rejects requests without a verifiable bearer token.
func Middleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := verifier.Verify(TokenFromRequest(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"HttpStatusCode": http.StatusUnauthorized,
				"ResponseBody":   nil,
				"IsSuccess":      false,
				"Message":        apperr.ErrAuth.Message,
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
