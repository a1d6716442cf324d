package app

import (
	"errors"
	"net/http"
	"strconv"

	"crolars/internal/model"
	"crolars/internal/repository"
	"crolars/internal/service"
	"crolars/internal/util"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

type createNotificationRequest struct {
	UserID  string                 `json:"userId"`
	Type    string                 `json:"type" binding:"required,oneof=SOCIAL ACADEMIC GAMIFICATION MARKETPLACE SYSTEM"`
	Title   string                 `json:"title" binding:"required,max=255"`
	Message string                 `json:"message" binding:"max=2000"`
	Data    map[string]interface{} `json:"data"`
}

type announcementRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Message string `json:"message" binding:"required,max=2000"`
}

type feedUpdateRequest struct {
	UserID string `json:"userId"`
}

func (h *NotificationHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotificationNotFound):
		util.NotFound(c, "Notification not found")
	case errors.Is(err, service.ErrNotificationForbidden):
		util.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInvalidNotificationType):
		util.BadRequest(c, err.Error())
	default:
		util.InternalServerError(c, err.Error())
	}
}

// GetNotifications handles getting notifications for current user
// GET /api/v1/notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID := c.GetString("userID")

	// Get pagination parameters
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	notifications, err := h.notificationService.List(userID, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if notifications == nil {
		notifications = []*model.Notification{}
	}

	unread, err := h.notificationService.UnreadCount(userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Notifications retrieved successfully", gin.H{
		"notifications": notifications,
		"unreadCount":   unread,
		"limit":         limit,
		"offset":        offset,
	})
}

// MarkAsRead handles marking a notification as read
// PATCH /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	notificationID := c.Param("id")
	if notificationID == "" {
		util.BadRequest(c, "Notification ID is required")
		return
	}

	if err := h.notificationService.MarkAsRead(notificationID, c.GetString("userID")); err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Notification marked as read", nil)
}

// MarkAllAsRead handles marking all notifications as read
// PATCH /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	updated, err := h.notificationService.MarkAllAsRead(c.GetString("userID"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": updated})
}

// CreateNotification stores and pushes a notification. Only owners may
// target another user.
// POST /api/v1/notifications
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, validationMessage(err))
		return
	}

	userID := c.GetString("userID")
	target := userID
	if req.UserID != "" && req.UserID != userID {
		if !isOwner(c) {
			util.Forbidden(c, "Cannot create notifications for another user")
			return
		}
		target = req.UserID
	}

	notification, err := h.notificationService.Dispatch(target, req.Type, req.Title, req.Message, req.Data)
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Notification created", notification)
}

// DeleteNotification handles deleting a notification
// DELETE /api/v1/notifications/:id
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	if err := h.notificationService.Delete(c.Param("id"), c.GetString("userID")); err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Notification deleted", nil)
}

// GetPreferences returns the per-channel toggles
// GET /api/v1/notifications/preferences
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	pref, err := h.notificationService.GetPreferences(c.GetString("userID"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Preferences retrieved successfully", pref)
}

// UpdatePreferences applies a partial update
// PATCH /api/v1/notifications/preferences
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var req service.PreferenceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, validationMessage(err))
		return
	}

	pref, err := h.notificationService.UpdatePreferences(c.GetString("userID"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Preferences updated", pref)
}

// Announce broadcasts a system announcement
// POST /api/v1/admin/announcements
func (h *NotificationHandler) Announce(c *gin.Context) {
	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, validationMessage(err))
		return
	}

	h.notificationService.Announce(req.Title, req.Message)
	util.SuccessResponse(c, http.StatusAccepted, "Announcement sent", nil)
}

// SignalFeedUpdate tells one user, or everyone, that their feed changed
// POST /api/v1/admin/feed-updates
func (h *NotificationHandler) SignalFeedUpdate(c *gin.Context) {
	var req feedUpdateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.BadRequest(c, validationMessage(err))
			return
		}
	}

	h.notificationService.SignalFeedUpdate(req.UserID)
	util.SuccessResponse(c, http.StatusAccepted, "Feed update sent", nil)
}
