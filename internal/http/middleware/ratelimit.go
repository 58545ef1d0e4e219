// README: Fixed-window rate limiting on redis INCR, keyed per identity+IP.
package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Identity extracts the submitted identity a limiter bucket keys on next to
// the client IP, so one NAT does not share a bucket and rotating IPs does
// not reset one identity's count. Empty string buckets by IP alone.
type Identity func(c *gin.Context) string

// JSONField reads one string field out of the request body without consuming
// it for the handler behind the middleware.
func JSONField(field string) Identity {
	return func(c *gin.Context) string {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return ""
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		var payload map[string]any
		if json.Unmarshal(body, &payload) != nil {
			return ""
		}
		val, _ := payload[field].(string)
		return strings.ToLower(strings.TrimSpace(val))
	}
}

// RateLimit allows `limit` requests per window per (identity, client IP) for
// one named route. Redis being down fails open: throttling is protection,
// not a correctness gate.
func RateLimit(rdb *redis.Client, name string, limit int, window time.Duration, identity Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if identity != nil {
			id = identity(c)
		}
		key := fmt.Sprintf("ratelimit:%s:%s:%s", name, id, c.ClientIP())
		ctx := c.Request.Context()

		n, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Printf("rate limiter unavailable: %v", err)
			c.Next()
			return
		}
		if n == 1 {
			rdb.Expire(ctx, key, window)
		}
		if n > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
