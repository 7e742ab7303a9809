package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymserver/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrTokenUnavailable はトークンが存在しない・使用済み・期限切れのいずれか
	ErrTokenUnavailable = errors.New("token not found, already used or expired")
	// ErrDuplicateAttendance は同じ日に既にチェックイン済み
	ErrDuplicateAttendance = errors.New("attendance already recorded for this day")
)

// Store はチェックインのトークンと出席記録の永続化
type Store interface {
	CreateToken(ctx context.Context, token *models.QrSession) error
	CountAttendanceOn(ctx context.Context, day string) (int64, error)
	// Redeem はトークンの使用済み化と出席記録の追加を1つのトランザクションで行う。
	// どちらかが失敗すれば何も残らない。
	Redeem(ctx context.Context, tokenID uuid.UUID, attendance *models.Attendance, now time.Time) error
	// DeleteStaleTokens は cutoff より前に作られた未使用トークンを削除する
	DeleteStaleTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormStore は PostgreSQL 上の Store
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateToken(ctx context.Context, token *models.QrSession) error {
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("create qr session: %w", err)
	}
	return nil
}

func (s *GormStore) CountAttendanceOn(ctx context.Context, day string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("check_in_day = ?", day).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count attendances: %w", err)
	}
	return count, nil
}

func (s *GormStore) Redeem(ctx context.Context, tokenID uuid.UUID, attendance *models.Attendance, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 条件付きUPDATE。同じトークンの同時スキャンは行ロックで直列化され、後続は0件になる。
		result := tx.Model(&models.QrSession{}).
			Where("token_id = ? AND is_used = ? AND expires_at > ?", tokenID, false, now).
			Update("is_used", true)
		if result.Error != nil {
			return fmt.Errorf("mark token used: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrTokenUnavailable
		}

		var count int64
		err := tx.Model(&models.Attendance{}).
			Where("user_id = ? AND check_in_day = ?", attendance.UserID, attendance.CheckInDay).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("check attendance: %w", err)
		}
		if count > 0 {
			return ErrDuplicateAttendance
		}

		// 同時チェックインはユニークインデックスで弾く
		if err := tx.Create(attendance).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateAttendance
			}
			return fmt.Errorf("insert attendance: %w", err)
		}
		return nil
	})
}

func (s *GormStore) DeleteStaleTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("is_used = ? AND created_at < ?", false, cutoff).
		Delete(&models.QrSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete stale qr sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
