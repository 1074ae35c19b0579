package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const purchaseIDKey = "purchase_id"

// Middleware validates the access token from the Authorization header or the
// auth cookie and stores the granted purchase id on the request context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader(s.headerName))
		if token == "" {
			if cookie, err := c.Cookie(s.cookieName); err == nil {
				token = cookie
			}
		}
		purchaseID, err := s.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(purchaseIDKey, purchaseID)
		c.Next()
	}
}

// PurchaseIDFromContext returns the purchase id set by Middleware.
func PurchaseIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(purchaseIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return strings.TrimSpace(header)
}
