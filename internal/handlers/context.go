package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/middleware"
	"github.com/charlesng35/campus/internal/models"
	"github.com/charlesng35/campus/pkg/errors"
	"github.com/charlesng35/campus/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUser returns the caller's id and whether they hold the admin role.
// It writes a 401 and returns false when the request is unauthenticated.
func currentUser(c *gin.Context) (uint64, bool, bool) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok || claims.UserID == 0 {
		response.Error(c, errors.ErrUnauthorized)
		return 0, false, false
	}
	return claims.UserID, claims.HasRole(models.RoleAdmin), true
}

// requireSelfOrAdmin checks that the caller is userID or an administrator.
func requireSelfOrAdmin(c *gin.Context, userID uint64) bool {
	caller, admin, ok := currentUser(c)
	if !ok {
		return false
	}
	if caller != userID && !admin {
		response.Error(c, errors.NewForbidden("cannot access another user's notifications"))
		return false
	}
	return true
}
