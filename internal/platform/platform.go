// Package platform defines the boundary to the external messaging platform:
// the Messenger used to deliver direct and in-room messages, the Directory
// resolving moderator status, the interactive-control payload codec, and the
// best-effort fan-out routine.
//
// Delivery itself is an external concern. The core consumes these
// interfaces; the concrete bot-API client lives in botapi.go and test
// doubles live alongside the services tests.
package platform

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrUnreachable reports that a direct message could not be delivered
// because the recipient has not established a private channel with the
// system. It drives the onboarding redirect path; any other delivery error
// is treated the same way by best-effort senders.
var ErrUnreachable = errors.New("recipient unreachable")

// User identifies a platform account.
type User struct {
	ID    int64
	Name  string
	IsBot bool
}

// Button is one interactive control attached to a message. Data is the
// opaque payload echoed back in the decision control event.
type Button struct {
	Label string
	Data  string
}

// Message is an outbound message: text plus an optional keyboard of
// interactive controls, laid out in rows.
type Message struct {
	Text     string
	Keyboard [][]Button
}

// MessageRef addresses a previously delivered message so its text and
// controls can be edited in place.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// Messenger delivers messages to the platform. All methods may block on
// network I/O and fail independently per recipient.
type Messenger interface {
	// SendDM delivers a direct (private) message. Returns ErrUnreachable
	// when the recipient cannot be reached privately.
	SendDM(ctx context.Context, userID int64, msg Message) error

	// SendRoom delivers a message into a room and returns its reference.
	SendRoom(ctx context.Context, roomID int64, msg Message) (MessageRef, error)

	// Edit replaces the text and controls of a delivered message.
	Edit(ctx context.Context, ref MessageRef, msg Message) error

	// Delete removes a message from a room. Best-effort; callers ignore
	// the error.
	Delete(ctx context.Context, roomID, messageID int64) error
}

// Directory answers moderator questions. It is an external authority; the
// core never caches its answers beyond a single operation.
type Directory interface {
	// IsModerator reports whether userID holds elevated privileges in the
	// room.
	IsModerator(ctx context.Context, roomID, userID int64) (bool, error)

	// Moderators lists the room's moderators, bots included; callers
	// filter.
	Moderators(ctx context.Context, roomID int64) ([]User, error)
}

// FanOut sends msg as a direct message to every moderator of the room,
// skipping bot accounts. Individual delivery failures are logged and
// skipped; one unreachable moderator must not starve the rest. Returns the
// number of successful deliveries.
func FanOut(ctx context.Context, m Messenger, d Directory, log zerolog.Logger, roomID int64, msg Message) int {
	mods, err := d.Moderators(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Int64("room_id", roomID).Msg("moderator lookup failed, fan-out skipped")
		return 0
	}
	delivered := 0
	for _, mod := range mods {
		if mod.IsBot {
			continue
		}
		if err := m.SendDM(ctx, mod.ID, msg); err != nil {
			log.Warn().Err(err).
				Int64("room_id", roomID).
				Int64("moderator_id", mod.ID).
				Msg("moderator notification dropped")
			continue
		}
		delivered++
	}
	return delivered
}
