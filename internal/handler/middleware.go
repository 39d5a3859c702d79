package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"storefront-api/pkg/idle"
	"storefront-api/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestLogMiddleware tags each request with an id (kept from the client if
// sent) and logs it once it completes.
func requestLogMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// ClientLimiter hands out one token bucket per client IP. Buckets of clients
// that went quiet are dropped by Prune.
type ClientLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*clientEntry
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type clientEntry struct {
	limiter *rate.Limiter
	seen    idle.Stamp
}

func NewClientLimiter(perSecond float64, burst int) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ClientLimiter{
		limiters: make(map[string]*clientEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *ClientLimiter) get(ip string) *rate.Limiter {
	now := l.now()

	l.mu.RLock()
	entry, exists := l.limiters[ip]
	l.mu.RUnlock()
	if exists {
		entry.seen.Touch(now)
		return entry.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, exists = l.limiters[ip]; !exists {
		entry = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.seen.Touch(now)
	return entry.limiter
}

// Prune forgets clients not seen for longer than ttl and reports how many
// were dropped. A returning client starts with a full bucket.
func (l *ClientLimiter) Prune(ttl time.Duration) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, entry := range l.limiters {
		if entry.seen.Expired(now, ttl) {
			delete(l.limiters, ip)
			n++
		}
	}
	return n
}

func (l *ClientLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

// StartReaper runs Prune in the background until ctx is done. A
// non-positive ttl keeps every client.
func (l *ClientLimiter) StartReaper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	go idle.Sweep(ctx, idle.Interval(ttl), func() {
		if n := l.Prune(ttl); n > 0 {
			logger.Named("ratelimit").Debug().Int("pruned", n).Msg("dropped idle client limiters")
		}
	})
}

func (l *ClientLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.get(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests from your IP",
				"retry_after": "1 second",
				"ip":          ip,
			})
			return
		}
		c.Next()
	}
}

func (l *ClientLimiter) status(c *gin.Context) {
	ip := c.ClientIP()
	limiter := l.get(ip)

	c.JSON(http.StatusOK, gin.H{
		"ip":               ip,
		"limit_per_second": float64(limiter.Limit()),
		"burst_capacity":   limiter.Burst(),
		"tokens_available": limiter.Tokens(),
	})
}
