package counters

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nmehta/go-request-desk/internal/repo"
)

// SQL is the GORM-backed Store. It is a thin adapter over the repo package;
// the quota transaction in repo.QuotaCheckAndInc provides the per-user
// atomicity the contract requires.
type SQL struct {
	DB *gorm.DB
}

// NewSQL returns a Store persisting to db. The schema must already be
// migrated (repo.AutoMigrate).
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{DB: db}
}

// Onboarded implements Store.
func (s *SQL) Onboarded(ctx context.Context, userID int64) (bool, error) {
	return repo.IsOnboarded(ctx, s.DB, userID)
}

// SetOnboarded implements Store.
func (s *SQL) SetOnboarded(ctx context.Context, userID int64, now time.Time) error {
	return repo.SetOnboarded(ctx, s.DB, userID, now)
}

// Blocked implements Store.
func (s *SQL) Blocked(ctx context.Context, userID int64) (bool, error) {
	return repo.IsBlocked(ctx, s.DB, userID)
}

// Block implements Store.
func (s *SQL) Block(ctx context.Context, userID int64, now time.Time) error {
	return repo.Block(ctx, s.DB, userID, now)
}

// Unblock implements Store.
func (s *SQL) Unblock(ctx context.Context, userID int64) error {
	return repo.Unblock(ctx, s.DB, userID)
}

// CooldownLast implements Store.
func (s *SQL) CooldownLast(ctx context.Context, userID int64) (time.Time, error) {
	return repo.CooldownLast(ctx, s.DB, userID)
}

// SetCooldown implements Store.
func (s *SQL) SetCooldown(ctx context.Context, userID int64, now time.Time) error {
	return repo.SetCooldown(ctx, s.DB, userID, now)
}

// QuotaCheckAndInc implements Store.
func (s *SQL) QuotaCheckAndInc(ctx context.Context, userID int64, now time.Time, window time.Duration, limit int) (bool, int, error) {
	return repo.QuotaCheckAndInc(ctx, s.DB, userID, now, window, limit)
}
