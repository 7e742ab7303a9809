package handlers

import (
	"net/http"
	"strconv"

	"gymserver/middlewares"
	"gymserver/models"
	"gymserver/notify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MarkReadRequest は既読にする通知IDのリスト
type MarkReadRequest struct {
	NotificationIDs []uint `json:"notification_ids"`
}

func (h *Handler) SendNotification(c *gin.Context) {
	var request notify.SendRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Warn("Send notification bind error", zap.Error(err))
		respondError(c, models.NewInvalidFormatError("Invalid request body"))
		return
	}

	notification, err := h.notifications.Send(c.Request.Context(), middlewares.IdentityFromContext(c), request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Notification sent", "notification": notification})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		respondError(c, models.NewInvalidFormatError("Page must be a number"))
		return
	}

	result, err := h.notifications.List(c.Request.Context(), middlewares.IdentityFromContext(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	var request MarkReadRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Warn("Mark read bind error", zap.Error(err))
		respondError(c, models.NewInvalidFormatError("Invalid request body"))
		return
	}

	count, err := h.notifications.MarkRead(c.Request.Context(), middlewares.IdentityFromContext(c), request.NotificationIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notifications marked as read", "count": count})
}
