package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
	"github.com/noah-isme/uni-sis-api/pkg/response"
)

// RequirePermission guards a route with a fine-grained permission check
// against the static role table.
func RequirePermission(table models.RolePermissions, perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)
		if !table.Allows(claims.Role, perm) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
