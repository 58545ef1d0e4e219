// README: Bearer-token auth middleware backed by redis sessions.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kilap/internal/modules/account"
	"kilap/internal/types"
)

const (
	ctxCallerID   = "caller_id"
	ctxCallerRole = "caller_role"
)

// SessionVerifier resolves a bearer token to a session. Implemented by
// account.Service; tests use a stub.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*account.Session, error)
}

// Auth rejects requests without a valid session and stores the caller's
// identity on the gin context for handlers downstream.
func Auth(verifier SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		sess, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(ctxCallerID, sess.UserID)
		c.Set(ctxCallerRole, sess.Role)
		c.Next()
	}
}

// RequireStaff runs after Auth and blocks customers from staff routes.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CallerRole(c).IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff only"})
			return
		}
		c.Next()
	}
}

func CallerID(c *gin.Context) types.ID {
	if v, ok := c.Get(ctxCallerID); ok {
		if id, ok := v.(types.ID); ok {
			return id
		}
	}
	return ""
}

func CallerRole(c *gin.Context) account.Role {
	if v, ok := c.Get(ctxCallerRole); ok {
		if r, ok := v.(account.Role); ok {
			return r
		}
	}
	return ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
