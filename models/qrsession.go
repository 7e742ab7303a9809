package models

import (
	"time"

	"github.com/google/uuid"
)

// QrSession はチェックイン用のワンタイムトークン。QRコードとして表示される。
// IsUsed 以外は作成後に変更しない。
type QrSession struct {
	ID        uint      `gorm:"primaryKey"`
	TokenID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"not null"`
	IsUsed    bool      `gorm:"not null;default:false"`
}

// Consumable は now 時点で引き換え可能かどうか
func (q *QrSession) Consumable(now time.Time) bool {
	return !q.IsUsed && now.Before(q.ExpiresAt)
}
