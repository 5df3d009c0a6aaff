package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nyumbani/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Keys used to store organization information in gin.Context
const (
	OrganizationIDKey     = "organization_id"
	OrganizationHeaderKey = "X-Org-ID"
)

// OrganizationMiddlewareConfig holds configuration for organization middleware
type OrganizationMiddlewareConfig struct {
	// HeaderEnabled enables X-Org-ID header extraction. This is a development
	// convenience only and must stay off in production, where the JWT claim is
	// the single source of the organization scope.
	HeaderEnabled bool
	// JWTEnabled enables JWT claim extraction (requires JWT middleware to run first)
	JWTEnabled bool
	// SkipPaths are paths that don't require organization context (e.g., health check)
	SkipPaths []string
	// Required determines if organization context is mandatory
	Required bool
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultOrganizationConfig returns default organization middleware configuration
func DefaultOrganizationConfig() OrganizationMiddlewareConfig {
	return OrganizationMiddlewareConfig{
		HeaderEnabled: false,
		JWTEnabled:    true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:      true,
		Logger:        nil,
	}
}

// OrganizationMiddleware extracts the organization scope from the request.
// Extraction order: JWT claims > X-Org-ID header (when enabled)
func OrganizationMiddleware() gin.HandlerFunc {
	return OrganizationMiddlewareWithConfig(DefaultOrganizationConfig())
}

// OrganizationMiddlewareWithConfig returns organization middleware with custom configuration
func OrganizationMiddlewareWithConfig(cfg OrganizationMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if path should be skipped
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		var orgID string
		var extractionMethod string

		// Priority 1: JWT claims (if JWT middleware has already run)
		if cfg.JWTEnabled {
			if jwtOrgID, exists := c.Get(JWTOrganizationIDKey); exists {
				if oid, ok := jwtOrgID.(string); ok && oid != "" {
					orgID = oid
					extractionMethod = "jwt"
				}
			}
		}

		// Priority 2: X-Org-ID header (development only)
		if orgID == "" && cfg.HeaderEnabled {
			if headerOrgID := c.GetHeader(OrganizationHeaderKey); headerOrgID != "" {
				orgID = headerOrgID
				extractionMethod = "header"
			}
		}

		// Validate organization ID format if present
		if orgID != "" {
			if _, err := uuid.Parse(orgID); err != nil {
				respondUnauthorized(c, "Invalid organization ID format")
				return
			}
		}

		// Check if organization is required
		if orgID == "" && cfg.Required {
			respondUnauthorized(c, "Organization identification required")
			return
		}

		// Set organization information in context
		if orgID != "" {
			// Set in gin context for easy access in handlers
			c.Set(OrganizationIDKey, orgID)

			// Set in request context for service layer access
			ctx := c.Request.Context()
			log := logger.FromContext(ctx)
			ctx, _ = logger.WithOrganizationID(ctx, log, orgID)
			c.Request = c.Request.WithContext(ctx)

			// Log extraction method for debugging
			if cfg.Logger != nil {
				cfg.Logger.Debug("Organization identified",
					zap.String("organization_id", orgID),
					zap.String("method", extractionMethod),
				)
			}
		}

		c.Next()
	}
}

// respondUnauthorized sends an unauthorized response
func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}

// GetOrganizationID retrieves the organization ID from gin.Context
func GetOrganizationID(c *gin.Context) string {
	if orgID, exists := c.Get(OrganizationIDKey); exists {
		if oid, ok := orgID.(string); ok {
			return oid
		}
	}
	return ""
}

// GetOrganizationUUID retrieves the organization ID as UUID from gin.Context
func GetOrganizationUUID(c *gin.Context) (uuid.UUID, error) {
	orgID := GetOrganizationID(c)
	if orgID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(orgID)
}

// MustGetOrganizationUUID retrieves the organization ID as UUID or panics if not found
// Use this only in handlers where the organization scope is guaranteed to exist
func MustGetOrganizationUUID(c *gin.Context) uuid.UUID {
	orgUUID, err := GetOrganizationUUID(c)
	if err != nil || orgUUID == uuid.Nil {
		panic("valid organization_id not found in context")
	}
	return orgUUID
}

// OptionalOrganizationMiddleware creates middleware that doesn't require an organization
func OptionalOrganizationMiddleware() gin.HandlerFunc {
	cfg := DefaultOrganizationConfig()
	cfg.Required = false
	return OrganizationMiddlewareWithConfig(cfg)
}
