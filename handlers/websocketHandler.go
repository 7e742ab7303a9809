package handlers

import (
	"net/http"
	"time"

	"gymserver/middlewares"
	"gymserver/models"
	"gymserver/notify"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	pongWait       = 60 * time.Second
	pingPeriod     = 10 * time.Second
	maxMessageSize = int64(512)
)

// NotificationSocket は受信者を検証してからWebSocketにアップグレードし、レジストリに登録する。
// 検証に失敗した場合は通常のHTTPエラーを返し、レジストリには触れない。
func (h *Handler) NotificationSocket(c *gin.Context) {
	identity := middlewares.IdentityFromContext(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": models.ErrCodeUnauthorized, "error": "Not authenticated"})
		return
	}
	if !identity.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"status": models.ErrCodeForbidden, "error": "Forbidden: Account is inactive"})
		return
	}

	recipientID, err := uuid.Parse(c.Param("recipientId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": models.ErrCodeInvalidFormat, "error": "Invalid recipient ID"})
		return
	}
	role := c.Param("recipientRole")
	if role != models.RoleMember && role != models.RoleTrainer && role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"status": models.ErrCodeInvalidRecipientRole, "error": "Invalid recipient role"})
		return
	}

	// 他人の通知チャネルには接続できない
	if identity.ID != recipientID || identity.Role != role {
		h.logger.Warn("WebSocket identity mismatch",
			zap.String("accountID", identity.ID.String()),
			zap.String("recipientID", recipientID.String()),
		)
		c.JSON(http.StatusForbidden, gin.H{"status": models.ErrCodeForbidden, "error": "Cannot subscribe to another account"})
		return
	}

	exists, err := h.directory.ActiveAccountExists(c.Request.Context(), role, recipientID)
	if err != nil {
		h.logger.Error("Failed to look up recipient", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": models.ErrCodePersistenceFailure, "error": "Database error"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"status": models.ErrCodeRecipientNotFound, "error": "Recipient not found or inactive"})
		return
	}

	// アップグレード失敗時は upgrader がHTTPエラーを書く
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := h.registry.Register(recipientID, role, conn)
	h.serveSocket(conn, client)
}

// serveSocket は切断されるまで読み続ける。クライアントからのメッセージは捨てる。
func (h *Handler) serveSocket(conn *websocket.Conn, client *notify.Client) {
	done := make(chan struct{})
	defer func() {
		close(done)
		h.registry.Release(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.keepAlive(client, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, notify.CloseSuperseded) {
				h.logger.Warn("WebSocket closed unexpectedly",
					zap.String("recipientID", client.RecipientID.String()),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// keepAlive は定期的にPingを送る。Pongが来なければ読み取りデッドラインで切れる。
func (h *Handler) keepAlive(client *notify.Client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				h.logger.Debug("Error sending ping", zap.String("recipientID", client.RecipientID.String()), zap.Error(err))
				return
			}
		}
	}
}
