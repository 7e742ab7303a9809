package models

import (
	"time"

	"github.com/google/uuid"
)

// 受信者ロール。all* はクラス単位のブロードキャスト。
const (
	RecipientMember      = "member"
	RecipientTrainer     = "trainer"
	RecipientAdmin       = "admin"
	RecipientAll         = "all"
	RecipientAllMembers  = "allMembers"
	RecipientAllTrainers = "allTrainers"
	RecipientAllAdmins   = "allAdmins"
)

// Notification は管理者から送られる通知。削除はしない。
type Notification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Message       string     `gorm:"not null" json:"message"`
	RecipientID   *uuid.UUID `gorm:"type:uuid;index" json:"recipientId"`
	RecipientRole string     `gorm:"not null;index" json:"recipientRole"`
	IsRead        bool       `gorm:"not null;default:false" json:"isRead"`
	CreatedAt     time.Time  `gorm:"index" json:"createdAt"`
}

// IsBroadcastRole は all 系のロールかどうか
func IsBroadcastRole(role string) bool {
	switch role {
	case RecipientAll, RecipientAllMembers, RecipientAllTrainers, RecipientAllAdmins:
		return true
	}
	return false
}

// ClassFor は会員・トレーナー向けのクラスブロードキャスト名を返す。該当なしは空文字。
func ClassFor(role string) string {
	switch role {
	case RoleMember:
		return RecipientAllMembers
	case RoleTrainer:
		return RecipientAllTrainers
	case RoleAdmin:
		return RecipientAllAdmins
	}
	return ""
}
