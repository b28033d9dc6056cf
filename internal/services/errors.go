// Package services defines the business logic for request intake, moderation
// decisions, and reporting. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages should be performed at the handler layer.
package services

import "errors"

var (
	// ErrNotModerator is returned when a user attempts a moderator-only
	// operation in a room they do not moderate. Callers typically swallow it:
	// non-moderators get no feedback at all.
	ErrNotModerator = errors.New("user is not a moderator of this room")

	// ErrNotOwner is returned when a privileged operation is attempted by
	// someone other than the configured owner.
	ErrNotOwner = errors.New("user is not the owner")

	// ErrUnknownAction is returned when a decision payload decodes to an
	// action the orchestrator does not recognize.
	ErrUnknownAction = errors.New("unknown decision action")

	// ErrEmptyText is returned when an edit or note carries no content after
	// normalization.
	ErrEmptyText = errors.New("text is empty")
)
