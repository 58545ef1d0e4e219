// README: Tests for bearer auth middleware and the staff gate.
package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"kilap/internal/http/middleware"
	"kilap/internal/modules/account"
)

// stubVerifier is a test double for middleware.SessionVerifier.
type stubVerifier struct {
	session *account.Session
	err     error
}

func (s *stubVerifier) Verify(_ context.Context, token string) (*account.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token == "" {
		return nil, account.ErrBadSession
	}
	return s.session, nil
}

func newAuthRouter(verifier middleware.SessionVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":   middleware.CallerID(c),
			"role": middleware.CallerRole(c),
		})
	})
	r.GET("/staff-only", middleware.RequireStaff(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newAuthRouter(&stubVerifier{session: &account.Session{UserID: "u1", Role: account.RoleCustomer}})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_WrongScheme(t *testing.T) {
	r := newAuthRouter(&stubVerifier{session: &account.Session{UserID: "u1", Role: account.RoleCustomer}})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ExpiredSession(t *testing.T) {
	r := newAuthRouter(&stubVerifier{err: account.ErrBadSession})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidTokenPopulatesCaller(t *testing.T) {
	r := newAuthRouter(&stubVerifier{session: &account.Session{UserID: "staff-1", Role: account.RoleStaff}})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ID != "staff-1" || body.Role != "staff" {
		t.Errorf("caller = %+v", body)
	}
}

func TestRequireStaff_BlocksCustomer(t *testing.T) {
	r := newAuthRouter(&stubVerifier{session: &account.Session{UserID: "u1", Role: account.RoleCustomer}})
	req := httptest.NewRequest(http.MethodGet, "/staff-only", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestRequireStaff_AllowsAdmin(t *testing.T) {
	r := newAuthRouter(&stubVerifier{session: &account.Session{UserID: "a1", Role: account.RoleAdmin}})
	req := httptest.NewRequest(http.MethodGet, "/staff-only", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
