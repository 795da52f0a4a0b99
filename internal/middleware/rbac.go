package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
	"github.com/noah-isme/institute-compass-api/pkg/response"
)

// RequireRoleIn lets the request through when the identity holds at least one of roles.
// It must run after RequireAuthenticated.
func RequireRoleIn(roles ...models.Role) gin.HandlerFunc {
	allowed := append([]models.Role(nil), roles...)
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if !identity.Roles.Intersects(allowed...) {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// Staff admits admins, directors and faculty.
func Staff() gin.HandlerFunc {
	return RequireRoleIn(models.StaffRoles...)
}

// AdminOnly admits admins.
func AdminOnly() gin.HandlerFunc {
	return RequireRoleIn(models.RoleAdmin)
}

// RequireSelfOrRoleIn admits the identity whose id equals the route param, or any of roles.
func RequireSelfOrRoleIn(param string, roles ...models.Role) gin.HandlerFunc {
	allowed := append([]models.Role(nil), roles...)
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if target := c.Param(param); target != "" && target == identity.UserID {
			c.Next()
			return
		}
		if !identity.Roles.Intersects(allowed...) {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
