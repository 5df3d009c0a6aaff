package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nyumbani/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyHeaderKey is the header clients send to deduplicate retried writes
const IdempotencyHeaderKey = "Idempotency-Key"

// IdempotencyMiddlewareConfig holds configuration for the idempotency middleware
type IdempotencyMiddlewareConfig struct {
	// Store records which keys have already been accepted
	Store shared.IdempotencyStore
	// TTL is how long an accepted key blocks replays
	TTL time.Duration
	// MaxKeyLength bounds the header value to keep store keys sane
	MaxKeyLength int
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultIdempotencyConfig returns default idempotency middleware configuration
func DefaultIdempotencyConfig(store shared.IdempotencyStore) IdempotencyMiddlewareConfig {
	return IdempotencyMiddlewareConfig{
		Store:        store,
		TTL:          24 * time.Hour,
		MaxKeyLength: 128,
		Logger:       nil,
	}
}

// Idempotency returns middleware that rejects replays of write requests
// carrying an Idempotency-Key header already seen for the same organization.
// Requests without the header pass through untouched.
func Idempotency(store shared.IdempotencyStore) gin.HandlerFunc {
	return IdempotencyWithConfig(DefaultIdempotencyConfig(store))
}

// IdempotencyWithConfig returns idempotency middleware with custom configuration
func IdempotencyWithConfig(cfg IdempotencyMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeaderKey)
		if key == "" {
			c.Next()
			return
		}

		if cfg.MaxKeyLength > 0 && len(key) > cfg.MaxKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION",
					"message": "Idempotency key is too long",
				},
			})
			return
		}

		// Keys are scoped per organization so organizations can never collide
		storeKey := "http:" + GetOrganizationID(c) + ":" + key

		isNew, err := cfg.Store.MarkProcessed(c.Request.Context(), storeKey, cfg.TTL)
		if err != nil {
			// Fail open: a broken store must not block writes
			if cfg.Logger != nil {
				cfg.Logger.Warn("idempotency check failed, processing anyway",
					zap.String("key", key),
					zap.Error(err),
				)
			}
			c.Next()
			return
		}

		if !isNew {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "CONFLICT",
					"message": "Duplicate request: this idempotency key has already been used",
				},
			})
			return
		}

		c.Next()
	}
}
