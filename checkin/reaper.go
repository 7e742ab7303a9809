package checkin

import (
	"context"
	"sync"
	"time"

	"gymserver/metrics"

	"go.uber.org/zap"
)

const (
	// StaleTokenGrace を過ぎた未使用トークンが削除対象。TTLよりずっと長い。
	StaleTokenGrace = 5 * time.Minute

	reaperLockKey = "gym:checkin:reaper"
	reaperLockTTL = 30 * time.Second
	reaperTimeout = 30 * time.Second
)

// Reaper は期限切れの未使用トークンを削除する。使用済みトークンは残す。
type Reaper struct {
	store   Store
	locker  Locker
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewReaper(store Store, locker Locker, recorder metrics.Recorder, logger *zap.Logger) *Reaper {
	if locker == nil {
		locker = NopLocker{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Reaper{
		store:   store,
		locker:  locker,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
	}
}

// Run はロックを見ずに1回掃除する
func (r *Reaper) Run(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-StaleTokenGrace)
	deleted, err := r.store.DeleteStaleTokens(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	r.metrics.StaleTokensReaped(deleted)
	return deleted, nil
}

// Sweep はロックが取れたときだけ掃除する。エラーはログに残して捨てる。
func (r *Reaper) Sweep(ctx context.Context) {
	locked, err := r.locker.TryLock(ctx, reaperLockKey, reaperLockTTL)
	if err != nil {
		// ロック基盤が落ちていても掃除自体は冪等なので続行
		r.logger.Warn("Reaper lock unavailable, sweeping anyway", zap.Error(err))
	} else if !locked {
		r.logger.Debug("Reaper skipped, another sweep ran recently")
		return
	}

	start := time.Now()
	deleted, err := r.Run(ctx)
	if err != nil {
		r.logger.Error("Failed to delete stale tokens", zap.Error(err))
		return
	}
	r.logger.Info("Stale tokens deleted",
		zap.Int64("deleted", deleted),
		zap.Duration("duration", time.Since(start)),
	)
}

// Trigger はバックグラウンドで Sweep を走らせて即座に戻る
func (r *Reaper) Trigger() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Reaper panicked", zap.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), reaperTimeout)
		defer cancel()
		r.Sweep(ctx)
	}()
}

// Wait は実行中の Trigger の終了を待つ
func (r *Reaper) Wait() {
	r.wg.Wait()
}
