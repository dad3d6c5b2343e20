package middleware

import (
	"github.com/gin-gonic/gin"

	"catalogue/internal/core/security"
)

// RequirePermission aborts unless the operator holds perm. Admins hold every permission.
func RequirePermission(perm security.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := security.Require(c.Request.Context(), perm); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
