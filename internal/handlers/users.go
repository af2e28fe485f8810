package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/services"
	"github.com/charlesng35/campus/pkg/response"
)

// UserHandler exposes account administration.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type userStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active disabled"`
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	items, total, err := h.users.List(requestContext(c), services.ListOptions{
		Limit:  parseIntQuery(c, "limit", 25),
		Offset: parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: int(total)})
}

// PUT /api/users/:id/status
func (h *UserHandler) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req userStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.users.SetStatus(requestContext(c), id, req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": req.Status})
}
