// Package repo implements the persistence layer for the durable guard and
// onboarding counters, backed by GORM. This file provides the repository
// functions over the four counter tables (onboarded, blocked, cooldown,
// request_quota), all keyed by platform user id.
//
// The repository follows a "thin" approach: each function performs one read
// or one upsert; fail-open policy and window arithmetic interpretation live
// in the guard and counters packages. The only exception is
// QuotaCheckAndInc, whose read-increment-write must be one atomic unit (a
// last-write-wins upsert would lose counts under concurrency), so it runs
// inside a database transaction.
//
// Error semantics: absence of a row is not an error; reads translate
// gorm.ErrRecordNotFound into the zero answer ("never onboarded", "not
// blocked", zero time, empty window). Other DB errors propagate raw; the
// caller decides whether to degrade.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nmehta/go-request-desk/internal/domain"
)

// IsOnboarded reports whether a row exists for userID in the onboarded table.
func IsOnboarded(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	return rowExists(ctx, db, &domain.OnboardRecord{}, userID)
}

// SetOnboarded records the onboarding flag. Idempotent: a second call for
// the same user keeps the original timestamp.
func SetOnboarded(ctx context.Context, db *gorm.DB, userID int64, now time.Time) error {
	rec := &domain.OnboardRecord{UserID: userID, TS: now}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

// IsBlocked reports whether userID is on the block-list.
func IsBlocked(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	return rowExists(ctx, db, &domain.BlockRecord{}, userID)
}

// Block adds userID to the block-list.
func Block(ctx context.Context, db *gorm.DB, userID int64, now time.Time) error {
	rec := &domain.BlockRecord{UserID: userID, TS: now}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

// Unblock removes userID from the block-list. Removing an absent row is not
// an error.
func Unblock(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.BlockRecord{}).Error
}

// CooldownLast returns the timestamp of the user's last accepted submission,
// or the zero time when none is recorded.
func CooldownLast(ctx context.Context, db *gorm.DB, userID int64) (time.Time, error) {
	var rec domain.CooldownRecord
	err := db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return rec.LastTS, nil
}

// SetCooldown upserts the last-submission timestamp for userID.
func SetCooldown(ctx context.Context, db *gorm.DB, userID int64, now time.Time) error {
	rec := &domain.CooldownRecord{UserID: userID, LastTS: now}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_ts"}),
		}).
		Create(rec).Error
}

// QuotaCheckAndInc performs the rolling-window admission check for userID:
// an expired window restarts at zero, a full window denies, and an admitted
// request increments the count. The whole read-increment-write runs in one
// transaction so concurrent submissions by the same user cannot lose counts.
//
// Returns whether the request is admitted and the count after the call.
func QuotaCheckAndInc(ctx context.Context, db *gorm.DB, userID int64, now time.Time, window time.Duration, limit int) (bool, int, error) {
	allowed := false
	count := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec domain.QuotaRecord
		err := tx.First(&rec, "user_id = ?", userID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = domain.QuotaRecord{UserID: userID, WindowStart: now, Count: 0}
		case err != nil:
			return err
		}

		if now.Sub(rec.WindowStart) >= window {
			rec.WindowStart = now
			rec.Count = 0
		}
		if rec.Count >= limit {
			count = rec.Count
			return nil
		}

		rec.Count++
		allowed = true
		count = rec.Count
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"window_start", "count"}),
		}).Create(&rec).Error
	})
	if err != nil {
		return false, 0, err
	}
	return allowed, count, nil
}

// rowExists runs an existence probe for a primary-key row.
func rowExists(ctx context.Context, db *gorm.DB, model any, userID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(model).
		Where("user_id = ?", userID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
