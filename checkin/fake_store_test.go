package checkin

import (
	"context"
	"errors"
	"sync"
	"time"

	"gymserver/models"

	"github.com/google/uuid"
)

// memoryStore はトランザクションをミューテックスで代用したテスト用の Store
type memoryStore struct {
	mu          sync.Mutex
	tokens      map[uuid.UUID]*models.QrSession
	attendances []models.Attendance

	createErr error
	countErr  error
	redeemErr error // 使用済み化の後に失敗させる
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tokens: make(map[uuid.UUID]*models.QrSession)}
}

func (m *memoryStore) CreateToken(ctx context.Context, token *models.QrSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copied := *token
	m.tokens[token.TokenID] = &copied
	return nil
}

func (m *memoryStore) CountAttendanceOn(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	var n int64
	for _, a := range m.attendances {
		if a.CheckInDay == day {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) Redeem(ctx context.Context, tokenID uuid.UUID, attendance *models.Attendance, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[tokenID]
	if !ok || !token.Consumable(now) {
		return ErrTokenUnavailable
	}
	for _, a := range m.attendances {
		if a.UserID == attendance.UserID && a.CheckInDay == attendance.CheckInDay {
			return ErrDuplicateAttendance
		}
	}
	if m.redeemErr != nil {
		// ロールバック相当: トークンは未使用のまま
		return m.redeemErr
	}
	token.IsUsed = true
	attendance.ID = uint(len(m.attendances) + 1)
	m.attendances = append(m.attendances, *attendance)
	return nil
}

func (m *memoryStore) DeleteStaleTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	var n int64
	for id, token := range m.tokens {
		if !token.IsUsed && token.CreatedAt.Before(cutoff) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) token(id uuid.UUID) (*models.QrSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return nil, false
	}
	copied := *token
	return &copied, true
}

func (m *memoryStore) attendanceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attendances)
}

// fakeClock は手動で進める時計
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type countingTrigger struct {
	mu    sync.Mutex
	calls int
}

func (t *countingTrigger) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
}

func (t *countingTrigger) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

type fakeLocker struct {
	locked bool
	err    error
	keys   []string
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return false, l.err
	}
	if l.locked {
		return false, nil
	}
	l.locked = true
	return true, nil
}

var errBoom = errors.New("boom")
