// Package guard implements the rate/abuse checks applied to every inbound
// submission: block-list, per-user cooldown, and the rolling-window quota.
//
// Availability beats strictness here: when the durable counters backend is
// configured but faulting, every check fails OPEN: a storage outage must
// never block all requests. Degradation is logged at warn so it is visible
// without being fatal.
package guard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nmehta/go-request-desk/internal/counters"
)

// Verdict is the outcome of an admission check.
type Verdict int

const (
	// Allowed admits the submission; the quota count has been consumed.
	Allowed Verdict = iota
	// Blocked denies permanently (until an explicit unblock).
	Blocked
	// CoolingDown denies until the cooldown since the last accepted
	// submission has elapsed. Nothing is mutated.
	CoolingDown
	// QuotaExceeded denies until the rolling window expires. Nothing is
	// mutated.
	QuotaExceeded
)

// String returns the verdict name for logs.
func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case Blocked:
		return "blocked"
	case CoolingDown:
		return "cooling_down"
	case QuotaExceeded:
		return "quota_exceeded"
	default:
		return "unknown"
	}
}

// Guard evaluates submissions against per-user abuse state.
type Guard struct {
	// Counters is the backing state; may be any counters.Store.
	Counters counters.Store
	// Cooldown is the minimum gap between accepted submissions.
	Cooldown time.Duration
	// Window and Limit define the rolling quota.
	Window time.Duration
	Limit  int

	// Log receives degradation warnings.
	Log zerolog.Logger
}

// New constructs a Guard over the given counters backend.
func New(c counters.Store, cooldown, window time.Duration, limit int, log zerolog.Logger) *Guard {
	return &Guard{Counters: c, Cooldown: cooldown, Window: window, Limit: limit, Log: log}
}

// CheckAndRecord runs the admission checks in order: block-list, cooldown,
// quota. Only the quota check mutates state, and only when the submission is
// admitted (the window count is consumed at admission time). The cooldown
// timestamp is NOT written here; callers record it with RecordSuccess once
// a request was actually created.
func (g *Guard) CheckAndRecord(ctx context.Context, userID int64, now time.Time) Verdict {
	blocked, err := g.Counters.Blocked(ctx, userID)
	if err != nil {
		g.degraded(err, "blocked", userID)
	} else if blocked {
		return Blocked
	}

	if g.Cooldown > 0 {
		last, err := g.Counters.CooldownLast(ctx, userID)
		if err != nil {
			g.degraded(err, "cooldown", userID)
		} else if !last.IsZero() && now.Sub(last) < g.Cooldown {
			return CoolingDown
		}
	}

	if g.Limit > 0 {
		allowed, _, err := g.Counters.QuotaCheckAndInc(ctx, userID, now, g.Window, g.Limit)
		if err != nil {
			g.degraded(err, "quota", userID)
		} else if !allowed {
			return QuotaExceeded
		}
	}

	return Allowed
}

// RecordSuccess stamps the cooldown timestamp after a submission actually
// produced a request. Best-effort: a write failure only logs.
func (g *Guard) RecordSuccess(ctx context.Context, userID int64, now time.Time) {
	if g.Cooldown <= 0 {
		return
	}
	if err := g.Counters.SetCooldown(ctx, userID, now); err != nil {
		g.degraded(err, "cooldown_write", userID)
	}
}

// Block puts a user on the block-list.
func (g *Guard) Block(ctx context.Context, userID int64, now time.Time) error {
	return g.Counters.Block(ctx, userID, now)
}

// Unblock removes a user from the block-list.
func (g *Guard) Unblock(ctx context.Context, userID int64) error {
	return g.Counters.Unblock(ctx, userID)
}

func (g *Guard) degraded(err error, check string, userID int64) {
	g.Log.Warn().Err(err).
		Str("check", check).
		Int64("user_id", userID).
		Msg("guard backend unavailable, failing open")
}
