package handlers

import (
	"context"
	"net/http"

	"gymserver/accounts"
	"gymserver/checkin"
	"gymserver/models"
	"gymserver/notify"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CheckinService は checkin.Service のうちハンドラーが使う部分
type CheckinService interface {
	Issue(ctx context.Context, requester *models.Identity) (*checkin.IssueResult, error)
	Verify(ctx context.Context, scannedValue string, caller *models.Identity) (*checkin.VerifyResult, error)
}

// NotificationService は notify.Dispatcher のうちハンドラーが使う部分
type NotificationService interface {
	Send(ctx context.Context, requester *models.Identity, req notify.SendRequest) (*models.Notification, error)
	List(ctx context.Context, caller *models.Identity, page int) (*notify.ListResult, error)
	MarkRead(ctx context.Context, caller *models.Identity, ids []uint) (int64, error)
}

// Handler はHTTPとWebSocketのエンドポイントをまとめる
type Handler struct {
	checkins      CheckinService
	notifications NotificationService
	registry      *notify.Registry
	directory     accounts.Directory
	upgrader      websocket.Upgrader
	logger        *zap.Logger
}

func NewHandler(checkins CheckinService, notifications NotificationService, registry *notify.Registry, directory accounts.Directory, frontendURL string, logger *zap.Logger) *Handler {
	return &Handler{
		checkins:      checkins,
		notifications: notifications,
		registry:      registry,
		directory:     directory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin(frontendURL),
		},
		logger: logger,
	}
}

// allowOrigin はフロントエンドのオリジンだけを許可する。未設定なら全て許可。
func allowOrigin(frontendURL string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return frontendURL == "" || origin == "" || origin == frontendURL
	}
}

// respondError は AppError をJSONで返す
func respondError(c *gin.Context, err error) {
	appErr := models.AsAppError(err)
	c.JSON(appErr.Status, gin.H{"status": appErr.Code, "error": appErr.Message})
}
