// README: Rate limiter tests (redis-backed window plus fail-open behavior).
package middleware_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"kilap/internal/http/middleware"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("KILAP_REDIS_ADDR")
	if addr == "" {
		t.Skip("KILAP_REDIS_ADDR not set; skipping redis-backed tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

// newLimitedRouter mounts a registration-shaped endpoint behind the limiter.
// The handler echoes the submitted email to prove the identity extractor did
// not consume the request body.
func newLimitedRouter(rdb *redis.Client, name string, limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/register",
		middleware.RateLimit(rdb, name, limit, time.Hour, middleware.JSONField("email")),
		func(c *gin.Context) {
			var req struct {
				Email string `json:"email"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"email": req.Email})
		})
	return r
}

func postRegister(r *gin.Engine, email, remoteAddr string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"email":%q,"password":"rahasia123"}`, email)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitBucketsPerIdentityAndIP(t *testing.T) {
	rdb := setupTestRedis(t)
	// Unique limiter name per run keeps leftover redis keys out of the count.
	r := newLimitedRouter(rdb, "register-"+uuid.NewString()[:8], 2)

	for i := 0; i < 2; i++ {
		if w := postRegister(r, "budi@example.com", ""); w.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i+1, w.Code)
		}
	}
	if w := postRegister(r, "budi@example.com", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit: expected 429, got %d", w.Code)
	}

	// Another identity behind the same IP has its own bucket.
	if w := postRegister(r, "sari@example.com", ""); w.Code != http.StatusCreated {
		t.Fatalf("other email, same IP: expected 201, got %d", w.Code)
	}
	// The throttled identity from another IP counts separately too.
	if w := postRegister(r, "budi@example.com", "203.0.113.7:40000"); w.Code != http.StatusCreated {
		t.Fatalf("same email, other IP: expected 201, got %d", w.Code)
	}
	// And the original bucket is still shut.
	if w := postRegister(r, "budi@example.com", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("original bucket: expected 429, got %d", w.Code)
	}
}

func TestRateLimitFailsOpenAndKeepsBody(t *testing.T) {
	// A client nothing listens on: every redis call errors immediately.
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	r := newLimitedRouter(rdb, "register-down", 1)

	for i := 0; i < 3; i++ {
		w := postRegister(r, "budi@example.com", "")
		if w.Code != http.StatusCreated {
			t.Fatalf("request %d: expected fail-open 201, got %d", i+1, w.Code)
		}
		// The identity extractor read the body; the handler must still see it.
		if !strings.Contains(w.Body.String(), "budi@example.com") {
			t.Fatalf("request %d: handler lost the request body: %s", i+1, w.Body.String())
		}
	}
}
