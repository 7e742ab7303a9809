// Package checkin はQRコードによる入館チェックインを扱う。
// 管理者が30秒だけ有効なワンタイムトークンを発行し、利用者がそれをスキャンして出席を記録する。
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymserver/metrics"
	"gymserver/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenTTL はトークンの有効期間
const TokenTTL = 30 * time.Second

// ReaperTrigger はトークン発行後に非同期の掃除を依頼する先
type ReaperTrigger interface {
	Trigger()
}

// IssueResult はQRコードとして表示するトークンと、今日のチェックイン数
type IssueResult struct {
	TokenID           uuid.UUID `json:"tokenId"`
	TodayCheckinCount int64     `json:"todayCheckinCount"`
}

// VerifyResult はチェックイン成功時の応答
type VerifyResult struct {
	Message    string             `json:"message"`
	Attendance *models.Attendance `json:"attendance"`
}

type Service struct {
	store    Store
	reaper   ReaperTrigger
	location *time.Location
	metrics  metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewService は location を「今日」の判定に使う
func NewService(store Store, reaper ReaperTrigger, location *time.Location, recorder metrics.Recorder, logger *zap.Logger) *Service {
	if location == nil {
		location = time.Local
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		store:    store,
		reaper:   reaper,
		location: location,
		metrics:  recorder,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) day(t time.Time) string {
	return t.In(s.location).Format(models.CheckInDayLayout)
}

// Issue は管理者向けに新しいトークンを発行する
func (s *Service) Issue(ctx context.Context, requester *models.Identity) (*IssueResult, error) {
	if !requester.IsAdmin() {
		return nil, models.NewForbiddenError("Admin role required")
	}
	if !requester.IsActive {
		return nil, models.NewForbiddenError("Forbidden: Account is inactive")
	}

	now := s.now()
	token := &models.QrSession{
		TokenID:   uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(TokenTTL),
		IsUsed:    false,
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		s.logger.Error("Failed to create qr session", zap.Error(err))
		return nil, models.NewPersistenceError("Database error", err)
	}
	s.metrics.TokenIssued()

	// 件数は表示用なので失敗しても発行は成功させる
	count, err := s.store.CountAttendanceOn(ctx, s.day(now))
	if err != nil {
		s.logger.Warn("Failed to count today's check-ins", zap.Error(err))
		count = 0
	}

	if s.reaper != nil {
		s.reaper.Trigger()
	}

	s.logger.Info("QR token issued",
		zap.String("tokenID", token.TokenID.String()),
		zap.String("adminID", requester.ID.String()),
	)
	return &IssueResult{TokenID: token.TokenID, TodayCheckinCount: count}, nil
}

// Verify はスキャンされたトークンを引き換えて出席を記録する
func (s *Service) Verify(ctx context.Context, scannedValue string, caller *models.Identity) (*VerifyResult, error) {
	result, err := s.verify(ctx, scannedValue, caller)
	if err != nil {
		s.metrics.CheckinVerified(models.AsAppError(err).Code)
		return nil, err
	}
	s.metrics.CheckinVerified("ok")
	return result, nil
}

func (s *Service) verify(ctx context.Context, scannedValue string, caller *models.Identity) (*VerifyResult, error) {
	if caller == nil || !caller.IsActive {
		return nil, models.ErrUnauthorized
	}

	tokenID, err := uuid.Parse(scannedValue)
	if err != nil {
		return nil, models.NewInvalidFormatError("That is not a valid QR token format")
	}

	now := s.now()
	attendance := &models.Attendance{
		CheckInTime: now,
		CheckInDay:  s.day(now),
		UserID:      caller.ID,
		TokenUsed:   tokenID,
	}

	err = s.store.Redeem(ctx, tokenID, attendance, now)
	switch {
	case err == nil:
	case errors.Is(err, ErrTokenUnavailable):
		return nil, models.ErrInvalidOrExpiredToken
	case errors.Is(err, ErrDuplicateAttendance):
		return nil, models.ErrAlreadyCheckedIn
	default:
		s.logger.Error("Failed to record attendance",
			zap.String("userID", caller.ID.String()),
			zap.Error(err),
		)
		return nil, models.NewPersistenceError("Could not record attendance", err)
	}

	s.logger.Info("Check-in recorded",
		zap.String("userID", caller.ID.String()),
		zap.String("day", attendance.CheckInDay),
	)
	return &VerifyResult{
		Message:    fmt.Sprintf("Welcome, %s!", caller.Name),
		Attendance: attendance,
	}, nil
}
