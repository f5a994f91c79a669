package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit returns per-client rate limiting middleware using token buckets.
// Clients are identified by the API key the auth middleware stored, or by
// IP address when auth is disabled.
//
// Token bucket algorithm: each client gets a bucket that fills at `rps` tokens/sec
// up to `burst` tokens. Each request consumes one token. If the bucket is empty,
// the request is rejected with 429. This protects the paid AI quota from a
// single noisy client; the classification service has its own global limit.
//
// sync.Mutex protects the map of limiters from concurrent goroutine access.
// A shared map with simple read/write is cleaner with a mutex than a channel.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		if rps <= 0 {
			c.Next()
			return
		}

		client := "ip:" + c.ClientIP()
		if key, ok := c.Get(ContextKeyAPIKey); ok {
			client = "key:" + key.(string) // Type assertion: any → string
		}

		mu.Lock()
		limiter, exists := limiters[client]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[client] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
