package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CSRFMiddleware enforces the double-submit cookie pattern on mutating
// requests: the CSRF header must match the CSRF cookie. Requests carrying an
// Authorization header are exempt; a browser never attaches that header on
// its own, so the cookie forgery the check guards against cannot occur.
func (s *Service) CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if c.GetHeader(s.headerName) != "" {
			c.Next()
			return
		}
		cookie, err := c.Cookie(s.csrfCookieName)
		if err != nil || cookie == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing csrf token"})
			return
		}
		header := c.GetHeader(s.csrfHeaderName)
		if header == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		c.Next()
	}
}
