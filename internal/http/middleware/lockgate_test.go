// README: Tests for the lock-enforcement gate.
package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"kilap/internal/http/middleware"
	"kilap/internal/modules/account"
	"kilap/internal/modules/stage"
	"kilap/internal/types"
)

// stubClaims is a test double for middleware.ClaimSource.
type stubClaims struct {
	claim *stage.OpenClaim
	err   error
}

func (s *stubClaims) OpenClaim(_ context.Context, _ types.ID) (*stage.OpenClaim, error) {
	return s.claim, s.err
}

func newGateRouter(claims middleware.ClaimSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	verifier := &stubVerifier{session: &account.Session{UserID: "staff-1", Role: account.RoleStaff}}
	staff := r.Group("/staff", middleware.Auth(verifier), middleware.RequireStaff(), middleware.LockGate(claims))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	staff.GET("/tasks", ok)
	staff.GET("/:slug/:number", ok)
	staff.POST("/:slug/:number", ok)
	staff.POST("/:slug/:number/complete", ok)
	staff.POST("/:slug/:number/cancel", ok)
	staff.POST("/orders", ok)
	staff.POST("/process/:number/complete", ok)
	return r
}

func doStaff(t *testing.T, r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLockGate_NoClaimPassesThrough(t *testing.T) {
	r := newGateRouter(&stubClaims{})
	for _, path := range []string{"/staff/tasks", "/staff/pickup/ORD260831-001"} {
		if w := doStaff(t, r, http.MethodGet, path); w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestLockGate_ClaimPinsToClaimedPage(t *testing.T) {
	claim := &stage.OpenClaim{
		OrderID:     "o1",
		OrderNumber: "ORD260831-001",
		Stage:       stage.StagePickup,
		AdminID:     "staff-1",
	}
	r := newGateRouter(&stubClaims{claim: claim})

	// The claimed order's own stage pages stay reachable.
	allowed := []string{
		"/staff/pickup/ORD260831-001",
		"/staff/pickup/ORD260831-001/complete",
		"/staff/pickup/ORD260831-001/cancel",
	}
	for _, path := range allowed {
		method := http.MethodGet
		if strings.HasSuffix(path, "complete") || strings.HasSuffix(path, "cancel") {
			method = http.MethodPost
		}
		if w := doStaff(t, r, method, path); w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}

	// Every other staff path redirects back to the claim: other stage pages,
	// the task queue, offline intake and the process bridge alike.
	blocked := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/staff/pickup/ORD260831-002"},
		{http.MethodGet, "/staff/inspection/ORD260831-001"},
		{http.MethodGet, "/staff/delivery/ORD260831-009"},
		{http.MethodGet, "/staff/tasks"},
		{http.MethodPost, "/staff/orders"},
		{http.MethodPost, "/staff/process/ORD260831-002/complete"},
	}
	for _, b := range blocked {
		path := b.path
		w := doStaff(t, r, b.method, path)
		if w.Code != http.StatusFound {
			t.Errorf("%s: expected 302, got %d", path, w.Code)
			continue
		}
		loc, err := url.Parse(w.Header().Get("Location"))
		if err != nil {
			t.Fatalf("parse location: %v", err)
		}
		if loc.Path != "/staff/pickup/ORD260831-001" {
			t.Errorf("%s: redirected to %s", path, loc.Path)
		}
		if loc.Query().Get("notice") == "" {
			t.Errorf("%s: redirect carries no notice", path)
		}
	}
}

func TestLockGate_InspectionSlugMapsToCheckStage(t *testing.T) {
	claim := &stage.OpenClaim{
		OrderID:     "o1",
		OrderNumber: "ORD260831-003",
		Stage:       stage.StageCheck,
		AdminID:     "staff-1",
	}
	r := newGateRouter(&stubClaims{claim: claim})

	if w := doStaff(t, r, http.MethodGet, "/staff/inspection/ORD260831-003"); w.Code != http.StatusOK {
		t.Errorf("claimed inspection page: expected 200, got %d", w.Code)
	}
	if w := doStaff(t, r, http.MethodGet, "/staff/pickup/ORD260831-003"); w.Code != http.StatusFound {
		t.Errorf("other stage of same order: expected 302, got %d", w.Code)
	}
}
