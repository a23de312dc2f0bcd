package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/foodsafety/internal/auth"
	"github.com/gin-gonic/gin"
)

// Authenticator is the slice of auth.Gateway the middleware needs; tests fake it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
	Authorize(p auth.Principal, permission string) error
}

type AuthMiddleware struct {
	gw       Authenticator
	log      *slog.Logger
	observer func(result string)
}

func NewAuthMiddleware(gw Authenticator, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{gw: gw, log: log, observer: func(string) {}}
}

// WithObserver receives "ok", "denied" or "error" for every bearer check.
func (m *AuthMiddleware) WithObserver(fn func(result string)) *AuthMiddleware {
	m.observer = fn
	return m
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"status":    false,
		"code":      code,
		"message":   message,
		"requestId": c.GetString(CtxRequestID),
	})
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c)
		if !ok {
			m.observer("denied")
			c.Header("WWW-Authenticate", "Bearer")
			abortJSON(c, http.StatusUnauthorized, "unauthenticated", "Not authenticated")
			return
		}

		p, err := m.gw.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				m.observer("denied")
				m.log.DebugContext(c.Request.Context(), "bearer rejected", "err", err)
				c.Header("WWW-Authenticate", "Bearer")
				abortJSON(c, http.StatusUnauthorized, "unauthenticated", "Could not validate credentials")
				return
			}

			m.observer("error")
			m.log.ErrorContext(c.Request.Context(), "authenticate failed", "err", err)
			abortJSON(c, http.StatusInternalServerError, "internal_error", "Could not validate credentials")
			return
		}

		m.observer("ok")

		c.Set(CtxPrincipal, p)
		c.Set(CtxUserID, p.UserID)

		c.Next()
	}
}

// RequirePermission must run after RequireAuth. It checks the permission
// snapshot carried in the token.
func (m *AuthMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthenticated", "Missing identity context")
			return
		}

		if err := m.gw.Authorize(p, permission); err != nil {
			abortJSON(c, http.StatusForbidden, "forbidden", "You are not authorized to perform this action")
			return
		}

		c.Next()
	}
}
