// Package middleware contains Gin middleware functions.
// Middleware in Gin is a handler that runs before (or after) your route handler.
// It calls c.Next() to proceed or c.Abort() to stop the chain.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyAPIKey is where the auth middleware stores the accepted key.
const ContextKeyAPIKey = "api_key"

// APIKeyAuth returns middleware that validates API keys.
// The key can be provided via X-API-Key header or api_key query param.
// Browsers cannot set headers on a websocket handshake, so the events
// endpoint relies on the query param.
//
// An empty key list disables the check. That is the local-kiosk setup where
// the server only listens on localhost.
func APIKeyAuth(validKeys []string) gin.HandlerFunc {
	return keyAuth(validKeys, http.StatusUnauthorized, "API key")
}

// AdminKeyAuth returns middleware that validates admin API keys.
// Unlike APIKeyAuth an empty list rejects everything: admin routes are never open.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	if len(adminKeys) == 0 {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin API disabled"})
		}
	}
	return keyAuth(adminKeys, http.StatusForbidden, "admin API key")
}

// keyAuth is the shared body of both middlewares. invalidStatus is what a
// present-but-wrong key gets; a missing key is always 401.
func keyAuth(keys []string, invalidStatus int, what string) gin.HandlerFunc {
	// Go doesn't have a built-in Set type, so we use map[string]struct{}.
	// struct{} takes zero bytes of memory.
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}

	return func(c *gin.Context) {
		if len(keySet) == 0 {
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("api_key")
		}

		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + what,
			})
			return
		}

		if _, ok := keySet[key]; !ok {
			c.AbortWithStatusJSON(invalidStatus, gin.H{
				"error": "invalid " + what,
			})
			return
		}

		// gin.Context is a request-scoped key-value store; the rate limiter reads this.
		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}
