package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/pkg/errors"
	"github.com/charlesng35/campus/pkg/response"
)

// RequireRole lets the request through when the token carries any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Abort(c, errors.ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if claims.HasRole(role) {
				c.Next()
				return
			}
		}
		response.Abort(c, errors.ErrForbidden)
	}
}
