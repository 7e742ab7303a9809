package models

import (
	"time"

	"github.com/google/uuid"
)

// ロール
const (
	RoleMember  = "member"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

// User はジムの会員
type User struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"` // 外部に公開するID
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"unique;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Trainer はトレーナー
type Trainer struct {
	ID        uint      `gorm:"primaryKey"`
	TrainerID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"unique;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Admin は管理者
type Admin struct {
	ID           uint      `gorm:"primaryKey"`
	AdminID      uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"unique;not null"`
	IsActive     bool      `gorm:"not null;default:true"`
	IsSuperAdmin bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は認証済みリクエストの主体。ロールごとのテーブルを横断した共通ビュー。
type Identity struct {
	ID       uuid.UUID
	Role     string
	Name     string
	IsActive bool
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
