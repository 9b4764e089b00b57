package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Pipeline permissions carried in token claims.
const (
	// PermissionAdmin grants every pipeline operation.
	PermissionAdmin = "pipeline:admin"

	// PermissionOverrideWIP allows forcing a transition past a stage
	// WIP limit.
	PermissionOverrideWIP = "pipeline:override_wip"
)

// RequirePermission returns middleware that checks if the authenticated user
// has a specific permission from their token claims.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasPermission(c, permission) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": "FORBIDDEN", "message": "insufficient permissions",
			})
			return
		}
		c.Next()
	}
}

// HasPermission reports whether the request's token claims carry the
// permission. pipeline:admin implies everything.
func HasPermission(c *gin.Context, permission string) bool {
	perms, exists := c.Get("permissions")
	if !exists {
		return false
	}
	permList, ok := perms.([]string)
	if !ok {
		return false
	}
	if slices.Contains(permList, PermissionAdmin) {
		return true
	}
	return slices.Contains(permList, permission)
}
