package notify

import (
	"context"
	"fmt"

	"gymserver/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Visibility は呼び出し元が見られる通知の範囲
type Visibility struct {
	// All は管理者向け。全件が見える。
	All bool

	RecipientID uuid.UUID
	Role        string
	// Classes は宛先IDを持たないブロードキャストのうち見えるもの
	Classes []string
}

// VisibilityFor は呼び出し元のロールから見える範囲を決める。
// 個別宛て(ID とロールが一致)、all、自分のクラス宛てが見える。
func VisibilityFor(caller *models.Identity) Visibility {
	if caller.IsAdmin() {
		return Visibility{All: true}
	}
	classes := []string{models.RecipientAll}
	if class := models.ClassFor(caller.Role); class != "" {
		classes = append(classes, class)
	}
	return Visibility{RecipientID: caller.ID, Role: caller.Role, Classes: classes}
}

// Allows は n が見える範囲に入っているか
func (v Visibility) Allows(n *models.Notification) bool {
	if v.All {
		return true
	}
	if n.RecipientID != nil && *n.RecipientID == v.RecipientID && n.RecipientRole == v.Role {
		return true
	}
	for _, class := range v.Classes {
		if n.RecipientRole == class {
			return true
		}
	}
	return false
}

func (v Visibility) scope(db *gorm.DB) *gorm.DB {
	if v.All {
		return db
	}
	return db.Where("((recipient_id = ? AND recipient_role = ?) OR recipient_role IN ?)", v.RecipientID, v.Role, v.Classes)
}

// Store は通知の永続化
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	// List は新しい順に offset から最大 limit 件返す
	List(ctx context.Context, v Visibility, offset, limit int) ([]models.Notification, error)
	// MarkRead は見える範囲の ids を既読にし、更新件数を返す
	MarkRead(ctx context.Context, v Visibility, ids []uint) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, n *models.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, v Visibility, offset, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Scopes(v.scope).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (s *GormStore) MarkRead(ctx context.Context, v Visibility, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Scopes(v.scope).
		Where("id IN ?", ids).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("mark notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}
