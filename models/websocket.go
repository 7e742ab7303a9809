package models

import "time"

// NotificationPayload はWebSocketでクライアントに送る通知の形
type NotificationPayload struct {
	ID        uint      `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	IsRead    bool      `json:"isRead"`
}

// NewNotificationPayload は保存済みの通知からペイロードを作る
func NewNotificationPayload(n *Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
		IsRead:    n.IsRead,
	}
}
