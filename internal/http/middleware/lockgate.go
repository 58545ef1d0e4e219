// README: Lock-enforcement gate; a staff member holding an open stage claim
// is pinned to that order's stage pages until they complete or release it.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"kilap/internal/modules/stage"
	"kilap/internal/types"
)

// ClaimSource answers "does this admin hold an open claim". Implemented by
// stage.Service over the action log; tests use a stub.
type ClaimSource interface {
	OpenClaim(ctx context.Context, adminID types.ID) (*stage.OpenClaim, error)
}

var stageSlugs = map[string]bool{
	"pickup":     true,
	"inspection": true,
	"delivery":   true,
}

// LockGate redirects a locked staff member to their claimed order on every
// staff path. While a claim is open the only reachable pages are the claimed
// order's stage page and its complete/cancel actions; the task queue and
// everything else answer 302 until the claim is completed or released.
func LockGate(claims ClaimSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		claim, err := claims.OpenClaim(c.Request.Context(), CallerID(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if claim == nil {
			c.Next()
			return
		}
		slug, number, ok := stagePath(c.Request.URL.Path)
		if ok && claim.Stage.Slug() == slug && claim.OrderNumber == number {
			c.Next()
			return
		}
		notice := fmt.Sprintf("selesaikan dulu order %s", claim.OrderNumber)
		target := fmt.Sprintf("/staff/%s/%s?notice=%s",
			claim.Stage.Slug(), claim.OrderNumber, url.QueryEscape(notice))
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

// stagePath extracts (slug, order number) from /staff/{slug}/{number}[/...].
func stagePath(p string) (string, string, bool) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < 3 || parts[0] != "staff" || !stageSlugs[parts[1]] {
		return "", "", false
	}
	return parts[1], parts[2], true
}
