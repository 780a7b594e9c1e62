package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiters holds one token bucket per caller. Carrier webhooks and the
// TMS sync both retry aggressively on 5xx, so each caller gets its own
// budget instead of a shared one.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (cl *clientLimiters) get(key string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	l, ok := cl.limiters[key]
	if !ok {
		l = rate.NewLimiter(cl.limit, cl.burst)
		cl.limiters[key] = l
	}
	return l
}

// RateLimiter limits requests per caller. The caller key is taken from
// ipHeader when set (for deployments behind a proxy that strips the real
// client address), otherwise from the connection's client IP.
func RateLimiter(limit rate.Limit, burst int, ipHeader string) gin.HandlerFunc {
	limiters := newClientLimiters(limit, burst)
	return func(c *gin.Context) {
		key := ""
		if ipHeader != "" {
			key = c.GetHeader(ipHeader)
		}
		if key == "" {
			key = c.ClientIP()
		}
		if !limiters.get(key).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
