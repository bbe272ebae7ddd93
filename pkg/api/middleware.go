package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused per-client limiter sticks
// around before cleanup discards it.
const limiterIdleTTL = 10 * time.Minute

// requestLogger logs each request with method, path, status, and
// latency. SSE requests log on disconnect, which is expected.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			slog.Error("Request failed", attrs...)
		} else {
			slog.Info("Request handled", attrs...)
		}
	}
}

// clientRateLimit enforces a token-bucket limit per client IP.
type clientLimiters struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rps        rate.Limit
	burst      int
}

func clientRateLimit(rps float64, burst int) gin.HandlerFunc {
	cl := &clientLimiters{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rps:        rate.Limit(rps),
		burst:      burst,
	}

	return func(c *gin.Context) {
		if !cl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (cl *clientLimiters) allow(clientIP string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	limiter, ok := cl.limiters[clientIP]
	if !ok {
		limiter = rate.NewLimiter(cl.rps, cl.burst)
		cl.limiters[clientIP] = limiter
		cl.evictStaleLocked()
	}
	cl.lastAccess[clientIP] = time.Now()

	return limiter.Allow()
}

// evictStaleLocked drops limiters idle past the TTL. Runs only when a
// new client shows up, which bounds map growth without a background
// goroutine.
func (cl *clientLimiters) evictStaleLocked() {
	cutoff := time.Now().Add(-limiterIdleTTL)
	for ip, last := range cl.lastAccess {
		if last.Before(cutoff) {
			delete(cl.limiters, ip)
			delete(cl.lastAccess, ip)
		}
	}
}
