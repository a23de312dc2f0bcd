package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultCSP = "default-src 'none'; frame-ancestors 'none'"
	// uploaded logos and photos are rendered by browsers straight from /static
	staticCSP = "default-src 'none'; img-src 'self'; frame-ancestors 'none'"
	docsCSP   = "default-src 'none'; script-src https://unpkg.com 'unsafe-inline'; style-src https://unpkg.com 'unsafe-inline'; img-src 'self' data:; connect-src 'self'; frame-ancestors 'none'"
)

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("X-XSS-Protection", "0")
		switch path := c.Request.URL.Path; {
		case strings.HasPrefix(path, "/static/"):
			c.Header("Content-Security-Policy", staticCSP)
		case path == "/docs":
			c.Header("Content-Security-Policy", docsCSP)
		default:
			c.Header("Content-Security-Policy", defaultCSP)
		}
		c.Next()
	}
}
