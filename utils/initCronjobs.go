package utils

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	reaperSchedule   = "@every 5m"
	limiterSchedule  = "@every 10m"
	reaperJobTimeout = time.Minute
)

// Sweeper は期限切れトークンの掃除。checkin.Reaper が実装する。
type Sweeper interface {
	Sweep(ctx context.Context)
}

// IdleCleaner は使われていないレート制限バケットの掃除
type IdleCleaner interface {
	Cleanup(now time.Time) int
}

// CronCleaner は定期的な掃除ジョブを登録して開始する。停止は呼び出し側が Stop する。
func CronCleaner(reaper Sweeper, limiter IdleCleaner, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	// 発行時の掃除が走らない時間帯でも未使用トークンを消す
	if _, err := c.AddFunc(reaperSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reaperJobTimeout)
		defer cancel()
		reaper.Sweep(ctx)
	}); err != nil {
		return nil, err
	}

	if limiter != nil {
		if _, err := c.AddFunc(limiterSchedule, func() {
			removed := limiter.Cleanup(time.Now())
			logger.Debug("Idle rate limiters removed", zap.Int("removed", removed))
		}); err != nil {
			return nil, err
		}
	}

	c.Start()
	logger.Info("Cron jobs started", zap.Int("jobs", len(c.Entries())))
	return c, nil
}
