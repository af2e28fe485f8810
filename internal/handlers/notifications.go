package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/notifications"
	"github.com/charlesng35/campus/internal/services"
	appErrors "github.com/charlesng35/campus/pkg/errors"
	"github.com/charlesng35/campus/pkg/response"
)

// Resender re-enqueues an existing notification.
type Resender interface {
	Resend(ctx context.Context, id uint64) error
}

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	service  *services.NotificationService
	resender Resender
}

// NewNotificationHandler constructs a notification handler. A nil resender
// disables the resend endpoint.
func NewNotificationHandler(service *services.NotificationService, resender Resender) *NotificationHandler {
	return &NotificationHandler{service: service, resender: resender}
}

type createNotificationRequest struct {
	UserID  *uint64 `json:"user_id"`
	Type    string  `json:"type" validate:"omitempty,oneof=system course grade"`
	Title   string  `json:"title" validate:"required,max=255"`
	Content string  `json:"content" validate:"max=4000"`
}

// POST /api/notifications
func (h *NotificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.service.Create(requestContext(c), services.CreateNotificationInput{
		UserID:  req.UserID,
		Type:    req.Type,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// GET /api/notifications
func (h *NotificationHandler) ListMine(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	h.list(c, userID, false)
}

// GET /api/notifications/user/:id
func (h *NotificationHandler) ListForUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok || !requireSelfOrAdmin(c, userID) {
		return
	}
	h.list(c, userID, false)
}

// GET /api/notifications/user/:id/unread
func (h *NotificationHandler) ListUnread(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok || !requireSelfOrAdmin(c, userID) {
		return
	}
	h.list(c, userID, true)
}

func (h *NotificationHandler) list(c *gin.Context, userID uint64, unreadOnly bool) {
	ctx := requestContext(c)
	opts := services.ListOptions{
		Limit:  parseIntQuery(c, "limit", 25),
		Offset: parseIntQuery(c, "offset", 0),
	}

	var (
		items []services.NotificationDTO
		err   error
	)
	if unreadOnly {
		items, err = h.service.ListUnread(ctx, userID, opts)
	} else {
		items, err = h.service.ListForUser(ctx, userID, opts)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	unread, err := h.service.CountUnread(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	total := unread
	if !unreadOnly {
		if total, err = h.service.CountForUser(ctx, userID); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: int(total), Unread: int(unread)})
}

// PUT /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := h.authorizeRow(c)
	if !ok {
		return
	}
	dto, err := h.service.MarkRead(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// PUT /api/notifications/user/:id/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok || !requireSelfOrAdmin(c, userID) {
		return
	}
	changed, err := h.service.MarkAllRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": changed})
}

// DELETE /api/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := h.authorizeRow(c)
	if !ok {
		return
	}
	if err := h.service.Delete(requestContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/notifications/:id/resend
func (h *NotificationHandler) Resend(c *gin.Context) {
	if h.resender == nil {
		response.Error(c, appErrors.ErrQueueUnavailable)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	err := h.resender.Resend(requestContext(c), id)
	switch {
	case err == nil:
		response.Success(c, http.StatusAccepted, gin.H{"queued": true})
	case errors.Is(err, notifications.ErrNotificationNotFound):
		response.Error(c, appErrors.NewNotFound("notification"))
	default:
		response.Error(c, appErrors.ErrQueueUnavailable.WithInternal(err))
	}
}

// authorizeRow loads the notification named by :id and checks the caller owns
// it. Broadcast rows are managed by administrators.
func (h *NotificationHandler) authorizeRow(c *gin.Context) (uint64, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return 0, false
	}
	caller, admin, ok := currentUser(c)
	if !ok {
		return 0, false
	}

	dto, err := h.service.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return 0, false
	}
	if admin {
		return id, true
	}
	if dto.UserID == nil || *dto.UserID != caller {
		response.Error(c, appErrors.NewForbidden("notification belongs to another user"))
		return 0, false
	}
	return id, true
}
