package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckInDayLayout は CheckInDay の書式
const CheckInDayLayout = "2006-01-02"

// Attendance は1回のチェックイン記録。
// (UserID, CheckInDay) のユニークインデックスで1日1回を保証する。
type Attendance struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CheckInTime     time.Time  `gorm:"not null" json:"checkInTime"`
	CheckOutTime    *time.Time `json:"checkOutTime"`
	CheckInDay      string     `gorm:"type:char(10);not null;uniqueIndex:idx_attendance_user_day,priority:2;index" json:"checkInDay"`
	VerifiedByAdmin bool       `gorm:"not null;default:false" json:"verifiedByAdmin"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_user_day,priority:1" json:"userId"`
	TokenUsed       uuid.UUID  `gorm:"type:uuid;not null" json:"tokenUsed"`
}
