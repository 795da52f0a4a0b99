package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
	"github.com/noah-isme/institute-compass-api/pkg/logger"
	"github.com/noah-isme/institute-compass-api/pkg/response"
)

// ContextUserKey is the gin context key storing the resolved *models.Identity.
const ContextUserKey = "currentUser"

// Authenticator turns a bearer token into the identity it was issued to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
}

// RequireAuthenticated protects routes by requiring a valid, unrevoked access token.
func RequireAuthenticated(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Abort(c, err)
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Abort(c, err)
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// OptionalAuthenticated attaches the identity when a valid token is present but never blocks.
func OptionalAuthenticated(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := bearerToken(c.GetHeader("Authorization")); err == nil {
			if identity, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				setIdentity(c, identity)
			}
		}
		c.Next()
	}
}

// IdentityFrom returns the identity attached by the auth middleware, or nil.
func IdentityFrom(c *gin.Context) *models.Identity {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	identity, _ := value.(*models.Identity)
	return identity
}

func setIdentity(c *gin.Context, identity *models.Identity) {
	c.Set(ContextUserKey, identity)
	c.Set(logger.ContextActorKey, identity.UserID)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
