// Package accounts は会員・トレーナー・管理者の各テーブルを横断してアカウントを引く。
package accounts

import (
	"context"
	"errors"
	"fmt"

	"gymserver/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Directory は認証済みの主体と通知先アカウントを解決する
type Directory interface {
	// FindIdentity は公開UUIDからアカウントを探す。見つからなければ nil, nil。
	FindIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	// ActiveAccountExists は指定ロールの有効なアカウントが存在するか
	ActiveAccountExists(ctx context.Context, role string, id uuid.UUID) (bool, error)
}

// GormDirectory は gorm で users / trainers / admins を参照する
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) FindIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	db := d.db.WithContext(ctx)

	var user models.User
	err := db.Where("user_id = ?", id).First(&user).Error
	if err == nil {
		return &models.Identity{ID: user.UserID, Role: models.RoleMember, Name: user.Name, IsActive: user.IsActive}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	var trainer models.Trainer
	err = db.Where("trainer_id = ?", id).First(&trainer).Error
	if err == nil {
		return &models.Identity{ID: trainer.TrainerID, Role: models.RoleTrainer, Name: trainer.Name, IsActive: trainer.IsActive}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find trainer: %w", err)
	}

	var admin models.Admin
	err = db.Where("admin_id = ?", id).First(&admin).Error
	if err == nil {
		return &models.Identity{ID: admin.AdminID, Role: models.RoleAdmin, Name: admin.Name, IsActive: admin.IsActive}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find admin: %w", err)
	}

	return nil, nil
}

func (d *GormDirectory) ActiveAccountExists(ctx context.Context, role string, id uuid.UUID) (bool, error) {
	var query *gorm.DB
	db := d.db.WithContext(ctx)
	switch role {
	case models.RoleMember:
		query = db.Model(&models.User{}).Where("user_id = ? AND is_active = ?", id, true)
	case models.RoleTrainer:
		query = db.Model(&models.Trainer{}).Where("trainer_id = ? AND is_active = ?", id, true)
	case models.RoleAdmin:
		query = db.Model(&models.Admin{}).Where("admin_id = ? AND is_active = ?", id, true)
	default:
		return false, nil
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("count %s accounts: %w", role, err)
	}
	return count > 0, nil
}
