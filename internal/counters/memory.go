package counters

import (
	"context"
	"sync"
	"time"
)

// userState is the process-local copy of one user's guard state.
type userState struct {
	onboarded   bool
	blocked     bool
	lastRequest time.Time
	windowStart time.Time
	count       int
}

// Memory is the process-local Store used when no durable backend is
// configured. All methods are safe for concurrent use; per-user state is
// guarded by a single mutex, which is adequate for the fallback's scale.
type Memory struct {
	mu    sync.Mutex
	users map[int64]*userState
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{users: make(map[int64]*userState)}
}

func (m *Memory) user(id int64) *userState {
	u := m.users[id]
	if u == nil {
		u = &userState{}
		m.users[id] = u
	}
	return u
}

// Onboarded implements Store.
func (m *Memory) Onboarded(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user(userID).onboarded, nil
}

// SetOnboarded implements Store. Idempotent.
func (m *Memory) SetOnboarded(_ context.Context, userID int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).onboarded = true
	return nil
}

// Blocked implements Store.
func (m *Memory) Blocked(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user(userID).blocked, nil
}

// Block implements Store.
func (m *Memory) Block(_ context.Context, userID int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).blocked = true
	return nil
}

// Unblock implements Store.
func (m *Memory) Unblock(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).blocked = false
	return nil
}

// CooldownLast implements Store.
func (m *Memory) CooldownLast(_ context.Context, userID int64) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user(userID).lastRequest, nil
}

// SetCooldown implements Store.
func (m *Memory) SetCooldown(_ context.Context, userID int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).lastRequest = now
	return nil
}

// QuotaCheckAndInc implements Store. The mutex makes the read-increment-
// write atomic per process.
func (m *Memory) QuotaCheckAndInc(_ context.Context, userID int64, now time.Time, window time.Duration, limit int) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(userID)
	if u.windowStart.IsZero() || now.Sub(u.windowStart) >= window {
		u.windowStart = now
		u.count = 0
	}
	if u.count >= limit {
		return false, u.count, nil
	}
	u.count++
	return true, u.count, nil
}
