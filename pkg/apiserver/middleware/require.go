package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prototrack/prototrack/pkg/authz"
)

// RequirePermission gates a route group behind one of the named
// capabilities. Runs after Auth.
func RequirePermission(perms *authz.Service, names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := Principal(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		if !perms.HasAnyPermission(c.Request.Context(), user, names...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}
