package notify

import (
	"context"
	"strings"

	"gymserver/accounts"
	"gymserver/metrics"
	"gymserver/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PageSize は一覧の1ページあたりの件数
const PageSize = 10

// Pusher は保存した通知を生きている接続に配る先。Registry が実装する。
type Pusher interface {
	SendTo(recipientID uuid.UUID, payload interface{}) bool
	Broadcast(roleClass string, payload interface{}) int
}

// SendRequest は通知送信のリクエストボディ
type SendRequest struct {
	Message       string `json:"message"`
	RecipientRole string `json:"recipientRole"`
	RecipientID   string `json:"recipientId"`
}

// ListResult は一覧の1ページ
type ListResult struct {
	Notifications []models.Notification `json:"notifications"`
	Page          int                   `json:"page"`
	HasMore       bool                  `json:"hasMore"`
}

type Dispatcher struct {
	store     Store
	directory accounts.Directory
	pusher    Pusher
	metrics   metrics.Recorder
	logger    *zap.Logger
}

func NewDispatcher(store Store, directory accounts.Directory, pusher Pusher, recorder metrics.Recorder, logger *zap.Logger) *Dispatcher {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Dispatcher{
		store:     store,
		directory: directory,
		pusher:    pusher,
		metrics:   recorder,
		logger:    logger,
	}
}

// Send は通知を保存してから接続中の受信者に配信する。配信の成否は結果に影響しない。
func (d *Dispatcher) Send(ctx context.Context, requester *models.Identity, req SendRequest) (*models.Notification, error) {
	if !requester.IsAdmin() || !requester.IsActive {
		return nil, models.ErrForbidden
	}
	// 空白だけの本文は空とみなす。保存するのは送られた本文そのまま。
	if strings.TrimSpace(req.Message) == "" {
		return nil, models.NewInvalidFormatError("Message must not be empty")
	}

	notification := &models.Notification{
		Message:       req.Message,
		RecipientRole: req.RecipientRole,
	}

	if !models.IsBroadcastRole(req.RecipientRole) {
		if req.RecipientRole != models.RecipientMember && req.RecipientRole != models.RecipientTrainer {
			return nil, models.ErrInvalidRecipientRole
		}
		recipientID, err := uuid.Parse(req.RecipientID)
		if err != nil {
			return nil, models.NewInvalidFormatError("Recipient ID must be a valid UUID")
		}
		exists, err := d.directory.ActiveAccountExists(ctx, req.RecipientRole, recipientID)
		if err != nil {
			d.logger.Error("Failed to look up recipient", zap.Error(err))
			return nil, models.NewPersistenceError("Database error", err)
		}
		if !exists {
			return nil, models.ErrRecipientNotFound
		}
		notification.RecipientID = &recipientID
	}

	if err := d.store.Create(ctx, notification); err != nil {
		d.logger.Error("Failed to save notification", zap.Error(err))
		return nil, models.NewPersistenceError("Database error", err)
	}
	d.metrics.NotificationSent(notification.RecipientRole)

	payload := models.NewNotificationPayload(notification)
	if notification.RecipientID != nil {
		delivered := d.pusher.SendTo(*notification.RecipientID, payload)
		d.logger.Info("Notification sent",
			zap.Uint("id", notification.ID),
			zap.String("recipientID", notification.RecipientID.String()),
			zap.Bool("delivered", delivered),
		)
	} else {
		delivered := d.pusher.Broadcast(notification.RecipientRole, payload)
		d.logger.Info("Notification broadcast",
			zap.Uint("id", notification.ID),
			zap.String("recipientRole", notification.RecipientRole),
			zap.Int("delivered", delivered),
		)
	}
	return notification, nil
}

func checkCaller(caller *models.Identity) error {
	if caller == nil {
		return models.ErrUnauthorized
	}
	if !caller.IsActive {
		return models.NewForbiddenError("Forbidden: Account is inactive")
	}
	return nil
}

// List は呼び出し元に見える通知を新しい順にページ単位で返す
func (d *Dispatcher) List(ctx context.Context, caller *models.Identity, page int) (*ListResult, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	if page < 1 {
		return nil, models.NewInvalidFormatError("Page must be 1 or greater")
	}

	// 次ページの有無を知るために1件多く取る
	rows, err := d.store.List(ctx, VisibilityFor(caller), (page-1)*PageSize, PageSize+1)
	if err != nil {
		d.logger.Error("Failed to list notifications", zap.Error(err))
		return nil, models.NewPersistenceError("Database error", err)
	}

	hasMore := len(rows) > PageSize
	if hasMore {
		rows = rows[:PageSize]
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return &ListResult{Notifications: rows, Page: page, HasMore: hasMore}, nil
}

// MarkRead は ids を既読にする。管理者以外は自分に見える通知だけが対象。
func (d *Dispatcher) MarkRead(ctx context.Context, caller *models.Identity, ids []uint) (int64, error) {
	if err := checkCaller(caller); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	count, err := d.store.MarkRead(ctx, VisibilityFor(caller), ids)
	if err != nil {
		d.logger.Error("Failed to mark notifications read", zap.Error(err))
		return 0, models.NewPersistenceError("Database error", err)
	}
	return count, nil
}
