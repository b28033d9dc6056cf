// Package counters defines the durable-counters adapter: the system of
// record for onboarding flags, the block-list, cooldown timestamps, and
// rolling-quota counts, keyed by platform user id.
//
// Three backends implement Store: an in-memory fallback (process-local, lost
// on restart), a SQL backend over the repo package, and a Redis backend. The
// guard and onboarding gate speak only to this interface; when a durable
// backend is configured but faulting, they fail open rather than failing the
// request pipeline (the error returns here exist so callers can log the
// degradation).
package counters

import (
	"context"
	"time"
)

// Store is the contract over per-user guard and onboarding state.
//
// QuotaCheckAndInc must be atomic per user: an expired window restarts at
// zero, a full window denies without mutation, and an admitted call
// increments the count. It returns the admission decision and the count
// after the call.
type Store interface {
	Onboarded(ctx context.Context, userID int64) (bool, error)
	SetOnboarded(ctx context.Context, userID int64, now time.Time) error

	Blocked(ctx context.Context, userID int64) (bool, error)
	Block(ctx context.Context, userID int64, now time.Time) error
	Unblock(ctx context.Context, userID int64) error

	CooldownLast(ctx context.Context, userID int64) (time.Time, error)
	SetCooldown(ctx context.Context, userID int64, now time.Time) error

	QuotaCheckAndInc(ctx context.Context, userID int64, now time.Time, window time.Duration, limit int) (allowed bool, count int, err error)
}
