package domain

import "time"

// The types below are the persistence models for the durable counters
// backing the abuse guard and onboarding gate. They are mapped with GORM and
// keyed directly by the platform user id; absence of a row is equivalent to
// "never onboarded / not blocked / no prior cooldown / empty quota window".
//
// The in-memory request store is intentionally not persisted (see the store
// package); only guard and onboarding state survives a restart.

// OnboardRecord marks a user as able to receive direct notifications.
// Written once, idempotently, after the first successful direct message.
type OnboardRecord struct {
	UserID int64     `gorm:"primaryKey"`
	TS     time.Time `gorm:"not null"`
}

// TableName returns the database table name for OnboardRecord.
func (OnboardRecord) TableName() string { return "onboarded" }

// BlockRecord marks a user as banned from submitting requests. Permanent
// until the row is deleted.
type BlockRecord struct {
	UserID int64     `gorm:"primaryKey"`
	TS     time.Time `gorm:"not null"`
}

// TableName returns the database table name for BlockRecord.
func (BlockRecord) TableName() string { return "blocked" }

// CooldownRecord stores the timestamp of a user's last accepted submission.
type CooldownRecord struct {
	UserID int64     `gorm:"primaryKey"`
	LastTS time.Time `gorm:"not null"`
}

// TableName returns the database table name for CooldownRecord.
func (CooldownRecord) TableName() string { return "cooldown" }

// QuotaRecord tracks a user's rolling-window submission count. The window
// restarts (count reset to zero) once now-WindowStart reaches the configured
// window duration.
type QuotaRecord struct {
	UserID      int64     `gorm:"primaryKey"`
	WindowStart time.Time `gorm:"not null"`
	Count       int       `gorm:"not null"`
}

// TableName returns the database table name for QuotaRecord.
func (QuotaRecord) TableName() string { return "request_quota" }
