package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/auth"
)

const identityKey = "identity"

// AuthMiddleware verifies the bearer token on every request and halts before
// any handler touches the store.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}

		ident, err := auth.VerifyToken(strings.TrimPrefix(h, "Bearer "), jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

func MustIdentity(c *gin.Context) *auth.Identity {
	v, _ := c.Get(identityKey)
	return v.(*auth.Identity)
}
