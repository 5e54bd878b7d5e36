package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	apperrors "supportportal.io/portal/internal/pkg/errors"
)

// Permissions returns the permission flags JWTAuth stored on the request.
func Permissions(c *gin.Context) ([]string, bool) {
	raw, ok := c.Get("permissions")
	if !ok {
		return nil, false
	}
	perms, ok := raw.([]string)
	return perms, ok
}

// RequirePermission admits the request when the caller holds any one of
// the listed role flags. The 403 body lists the flags that would have
// been accepted.
func RequirePermission(accepted ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		held, ok := Permissions(c)
		if !ok {
			deny(c, "no permissions on request", accepted)
			return
		}
		if slices.ContainsFunc(accepted, func(p string) bool { return slices.Contains(held, p) }) {
			c.Next()
			return
		}
		deny(c, "insufficient permissions", accepted)
	}
}

func deny(c *gin.Context, msg string, accepted []string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":    apperrors.CodeForbidden,
		"message": msg,
		"params":  gin.H{"required": accepted},
	})
}
