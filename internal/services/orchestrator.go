// Package services – Orchestrator
//
// This file implements the Orchestrator, which drives the request lifecycle
// end to end: admission through the abuse guard, the first-contact onboarding
// gate, auto-approval of whitelisted items, pending-request creation with
// duplicate suppression, moderator card fan-out, decision handling with
// card repaints, and the stale-request sweep. Terminal transitions are
// delegated to the store, which guarantees exactly one winner; this layer
// owns the messaging side effects around them.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/nmehta/go-request-desk/internal/counters"
	"github.com/nmehta/go-request-desk/internal/domain"
	"github.com/nmehta/go-request-desk/internal/guard"
	"github.com/nmehta/go-request-desk/internal/platform"
	"github.com/nmehta/go-request-desk/internal/store"
	"github.com/nmehta/go-request-desk/internal/texts"
)

// SubmitOutcome classifies what happened to a submission attempt.
type SubmitOutcome int

const (
	// SubmitCreated means a new pending request was stored and announced.
	SubmitCreated SubmitOutcome = iota
	// SubmitAutoApproved means the item matched the auto-approve list and
	// was recorded directly in the approved state.
	SubmitAutoApproved
	// SubmitDuplicate means an identical pending request already exists.
	SubmitDuplicate
	// SubmitOnboarded means this was the user's first contact: the reply
	// channel was established and the triggering submission discarded.
	SubmitOnboarded
	// SubmitOnboardFailed means the user has never opened a private chat
	// and could not be reached; a hint was posted to the room instead.
	SubmitOnboardFailed
	// SubmitUsage means the submission carried no item text.
	SubmitUsage
	// SubmitBlocked, SubmitCoolingDown and SubmitQuotaExceeded mirror the
	// guard verdicts that refused admission.
	SubmitBlocked
	SubmitCoolingDown
	SubmitQuotaExceeded
)

func (o SubmitOutcome) String() string {
	switch o {
	case SubmitCreated:
		return "created"
	case SubmitAutoApproved:
		return "auto_approved"
	case SubmitDuplicate:
		return "duplicate"
	case SubmitOnboarded:
		return "onboarded"
	case SubmitOnboardFailed:
		return "onboard_failed"
	case SubmitUsage:
		return "usage"
	case SubmitBlocked:
		return "blocked"
	case SubmitCoolingDown:
		return "cooling_down"
	case SubmitQuotaExceeded:
		return "quota_exceeded"
	default:
		return "unknown"
	}
}

// SubmitResult reports the outcome of a submission. Request is populated for
// SubmitCreated, SubmitAutoApproved and SubmitDuplicate (the existing pending
// request in the duplicate case).
type SubmitResult struct {
	Outcome SubmitOutcome
	Request domain.Request
}

// Orchestrator wires the store, guard, counters and messaging platform into
// the request lifecycle operations. All messaging is best-effort: delivery
// failures are logged and never abort a state transition.
type Orchestrator struct {
	Store     *store.Store
	Guard     *guard.Guard
	Counters  counters.Store
	Messenger platform.Messenger
	Directory platform.Directory
	Prefs     *texts.Prefs
	Log       zerolog.Logger

	// OwnerID gates block/unblock and backstops the moderator checks.
	OwnerID int64

	// AutoApproveWords are matched as substrings against the normalized
	// dedup key; a hit records the request as approved without moderation.
	AutoApproveWords []string

	logChatID atomic.Int64
}

// New constructs an Orchestrator.
func New(st *store.Store, g *guard.Guard, c counters.Store, m platform.Messenger, d platform.Directory, p *texts.Prefs, ownerID int64, autoApprove []string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Store:            st,
		Guard:            g,
		Counters:         c,
		Messenger:        m,
		Directory:        d,
		Prefs:            p,
		Log:              log,
		OwnerID:          ownerID,
		AutoApproveWords: autoApprove,
	}
}

// Submit runs a room submission through the full admission pipeline and
// returns what became of it. The guard is consulted before anything else, so
// a refused attempt still consumes quota; the cooldown stamp is written only
// when a request is actually recorded.
func (o *Orchestrator) Submit(ctx context.Context, roomID int64, roomTitle string, from platform.User, text string, now time.Time) SubmitResult {
	lang := o.Prefs.Get(from.ID)

	switch o.Guard.CheckAndRecord(ctx, from.ID, now) {
	case guard.Blocked:
		o.dm(ctx, from.ID, texts.T(lang, "blocked"))
		return SubmitResult{Outcome: SubmitBlocked}
	case guard.CoolingDown:
		o.dm(ctx, from.ID, texts.T(lang, "cooldown"))
		return SubmitResult{Outcome: SubmitCoolingDown}
	case guard.QuotaExceeded:
		o.dm(ctx, from.ID, texts.T(lang, "quota_exceeded"))
		return SubmitResult{Outcome: SubmitQuotaExceeded}
	}

	// The triggering message is gone from the room; leave a short pointer
	// to where the conversation continues.
	o.roomHint(ctx, roomID, from.Name+", "+texts.T(lang, "check_dm_hint"))

	if out, done := o.onboard(ctx, roomID, from, lang); done {
		return SubmitResult{Outcome: out}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		o.dm(ctx, from.ID, texts.T(lang, "usage_request"))
		return SubmitResult{Outcome: SubmitUsage}
	}

	key := domain.NormalizeKey(text)
	if o.autoApproves(key) {
		req := o.Store.CreateApproved(roomID, roomTitle, from.ID, from.Name, text, domain.ReasonAuto, now)
		o.dm(ctx, from.ID, texts.T(lang, "auto_approved", req.Seq, req.ItemText))
		o.Guard.RecordSuccess(ctx, from.ID, now)
		o.audit(ctx, "auto-approved #%d %q by %s in %q", req.Seq, req.ItemText, from.Name, roomTitle)
		return SubmitResult{Outcome: SubmitAutoApproved, Request: req}
	}

	req, err := o.Store.CreatePending(roomID, roomTitle, from.ID, from.Name, text, now)
	if errors.Is(err, store.ErrDuplicatePending) {
		existing, _ := o.Store.FindPending(roomID, key)
		o.dm(ctx, from.ID, texts.T(lang, "dup_pending", existing.RoomTitle, existing.Seq, existing.ItemText))
		return SubmitResult{Outcome: SubmitDuplicate, Request: existing}
	}

	o.dm(ctx, from.ID, texts.T(lang, "submitted", req.RoomTitle, req.Seq, req.ItemText))
	delivered := platform.FanOut(ctx, o.Messenger, o.Directory, o.Log, roomID, platform.Message{
		Text:     pendingCard(req),
		Keyboard: platform.DecisionKeyboard(roomID, req.Seq),
	})
	o.Guard.RecordSuccess(ctx, from.ID, now)
	o.audit(ctx, "new request #%d %q by %s in %q (cards: %d)", req.Seq, req.ItemText, from.Name, roomTitle, delivered)
	o.Log.Info().
		Int64("room_id", roomID).
		Int64("seq", req.Seq).
		Int64("requester_id", from.ID).
		Int("cards_delivered", delivered).
		Msg("request created")
	return SubmitResult{Outcome: SubmitCreated, Request: req}
}

// onboard establishes the private reply channel on first contact. It reports
// done=true when the submission must be discarded (either direction of the
// gate). Counter errors fail open: the user is treated as onboarded.
func (o *Orchestrator) onboard(ctx context.Context, roomID int64, from platform.User, lang language.Tag) (SubmitOutcome, bool) {
	onboarded, err := o.Counters.Onboarded(ctx, from.ID)
	if err != nil {
		o.Log.Warn().Err(err).Int64("user_id", from.ID).Msg("onboarding check degraded, allowing")
		return 0, false
	}
	if onboarded {
		return 0, false
	}
	if err := o.Messenger.SendDM(ctx, from.ID, platform.Message{Text: texts.T(lang, "first_time_dm")}); err != nil {
		o.roomHint(ctx, roomID, texts.T(lang, "group_hint_open_pm"))
		return SubmitOnboardFailed, true
	}
	if err := o.Counters.SetOnboarded(ctx, from.ID, time.Now()); err != nil {
		o.Log.Warn().Err(err).Int64("user_id", from.ID).Msg("onboarding flag not persisted")
	}
	return SubmitOnboarded, true
}

// roomHint posts a short redirect notice to the room. Best effort.
func (o *Orchestrator) roomHint(ctx context.Context, roomID int64, text string) {
	if _, err := o.Messenger.SendRoom(ctx, roomID, platform.Message{Text: text}); err != nil {
		o.Log.Warn().Err(err).Int64("room_id", roomID).Msg("room hint undeliverable")
	}
}

func (o *Orchestrator) autoApproves(key string) bool {
	for _, w := range o.AutoApproveWords {
		if w != "" && strings.Contains(key, w) {
			return true
		}
	}
	return false
}

// Decide applies a decoded control event from a moderator card. Non-moderators
// get ErrNotModerator, which callers are expected to swallow silently. Menu
// actions repaint the card; terminal actions race through the store and the
// loser repaints the card with whatever state the winner left.
func (o *Orchestrator) Decide(ctx context.Context, actor platform.User, d platform.Decision, card platform.MessageRef, now time.Time) error {
	isMod, err := o.Directory.IsModerator(ctx, d.RoomID, actor.ID)
	if err != nil {
		return fmt.Errorf("moderator lookup: %w", err)
	}
	if !isMod && actor.ID != o.OwnerID {
		return ErrNotModerator
	}

	if !d.Action.Mutates() {
		switch d.Action.Kind {
		case domain.ActionReasonMenu:
			return o.repaint(ctx, d, card, platform.ReasonKeyboard(d.RoomID, d.Seq))
		case domain.ActionBack:
			return o.repaint(ctx, d, card, platform.DecisionKeyboard(d.RoomID, d.Seq))
		}
		return ErrUnknownAction
	}

	status, reason := domain.StatusApproved, domain.ReasonCode("")
	switch d.Action.Kind {
	case domain.ActionReject:
		status = domain.StatusRejected
	case domain.ActionReasonPick:
		if !d.Action.Reason.ValidRejectReason() {
			return ErrUnknownAction
		}
		status, reason = domain.StatusRejected, d.Action.Reason
	}
	return o.resolve(ctx, actor, d, card, status, reason, now)
}

func (o *Orchestrator) repaint(ctx context.Context, d platform.Decision, card platform.MessageRef, kb [][]platform.Button) error {
	req, ok := o.Store.FindBySequence(d.RoomID, d.Seq)
	if !ok {
		return o.Messenger.Edit(ctx, card, platform.Message{Text: "Request not found."})
	}
	if req.Status.Terminal() {
		return o.Messenger.Edit(ctx, card, platform.Message{Text: handledCard(req)})
	}
	return o.Messenger.Edit(ctx, card, platform.Message{Text: pendingCard(req), Keyboard: kb})
}

func (o *Orchestrator) resolve(ctx context.Context, actor platform.User, d platform.Decision, card platform.MessageRef, status domain.Status, reason domain.ReasonCode, now time.Time) error {
	req, err := o.Store.Resolve(d.RoomID, d.Seq, status, actor.ID, reason, now)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return o.Messenger.Edit(ctx, card, platform.Message{Text: "Request not found."})
	case errors.Is(err, store.ErrAlreadyHandled):
		// Lost the race; show the winner's outcome.
		current, ok := o.Store.FindBySequence(d.RoomID, d.Seq)
		if !ok {
			return o.Messenger.Edit(ctx, card, platform.Message{Text: "Request not found."})
		}
		return o.Messenger.Edit(ctx, card, platform.Message{Text: handledCard(current)})
	case err != nil:
		return err
	}

	if err := o.Messenger.Edit(ctx, card, platform.Message{Text: handledCard(req)}); err != nil {
		o.Log.Warn().Err(err).Int64("seq", req.Seq).Msg("card edit failed")
	}
	o.notifyRequester(ctx, req)
	o.audit(ctx, "request #%d %q -> %s by %d", req.Seq, req.ItemText, req.Status, actor.ID)
	return nil
}

// notifyRequester DMs the terminal status to the requester unless the request
// is marked silent. Delivery failure is logged, never surfaced.
func (o *Orchestrator) notifyRequester(ctx context.Context, req domain.Request) {
	if req.Silent {
		return
	}
	lang := o.Prefs.Get(req.RequesterID)
	status := string(req.Status)
	if req.Reason != "" {
		status = fmt.Sprintf("%s (%s)", req.Status, req.Reason.Label())
	}
	o.dm(ctx, req.RequesterID, texts.T(lang, "status_update", req.RoomTitle, req.Seq, req.ItemText, status))
}

// AutoClose sweeps every room for pending requests older than maxAge, closes
// them, notifies their requesters and returns how many were closed.
func (o *Orchestrator) AutoClose(ctx context.Context, now time.Time, maxAge time.Duration) int {
	closed := o.Store.AutoCloseStale(now, maxAge)
	for _, req := range closed {
		o.notifyRequester(ctx, req)
		o.audit(ctx, "auto-closed #%d %q (pending > %s)", req.Seq, req.ItemText, maxAge)
	}
	if len(closed) > 0 {
		o.Log.Info().Int("closed", len(closed)).Msg("stale request sweep")
	}
	return len(closed)
}

// Note attaches moderator context to a request. The actor must moderate the
// request's room.
func (o *Orchestrator) Note(ctx context.Context, actor platform.User, seq int64, note string) (domain.Request, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return domain.Request{}, ErrEmptyText
	}
	req, ok := o.Store.FindSeqAnyRoom(seq)
	if !ok {
		return domain.Request{}, store.ErrNotFound
	}
	isMod, err := o.Directory.IsModerator(ctx, req.RoomID, actor.ID)
	if err != nil {
		return domain.Request{}, fmt.Errorf("moderator lookup: %w", err)
	}
	if !isMod && actor.ID != o.OwnerID {
		return domain.Request{}, ErrNotModerator
	}
	return o.Store.SetNote(req.RoomID, seq, note)
}

// EditRequest replaces the text of the caller's own pending request, re-keying
// it for duplicate detection.
func (o *Orchestrator) EditRequest(ctx context.Context, requesterID, seq int64, text string) (domain.Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Request{}, ErrEmptyText
	}
	req, ok := o.Store.FindByRequesterSeq(requesterID, seq)
	if !ok {
		return domain.Request{}, store.ErrNotFound
	}
	return o.Store.UpdateText(req.RoomID, seq, requesterID, text)
}

// setLogRoomScanCap bounds the moderator scan when authorizing SetLog.
const setLogRoomScanCap = 25

// SetLog points the audit trail at a chat. Allowed for the owner and for
// moderators of at least one known room. A zero chat ID turns the trail off.
func (o *Orchestrator) SetLog(ctx context.Context, actor platform.User, chatID int64) error {
	if actor.ID != o.OwnerID && !o.moderatesAnyRoom(ctx, actor.ID) {
		return ErrNotModerator
	}
	o.logChatID.Store(chatID)
	return nil
}

// moderatesAnyRoom reports whether the user moderates at least one room that
// has seen a request. Lookup errors count as no.
func (o *Orchestrator) moderatesAnyRoom(ctx context.Context, userID int64) bool {
	rooms := o.Store.RoomIDs()
	if len(rooms) > setLogRoomScanCap {
		rooms = rooms[:setLogRoomScanCap]
	}
	for _, roomID := range rooms {
		if ok, err := o.Directory.IsModerator(ctx, roomID, userID); err == nil && ok {
			return true
		}
	}
	return false
}

// LogChat returns the current audit chat ID, zero when unset.
func (o *Orchestrator) LogChat() int64 { return o.logChatID.Load() }

// Block bars a user from submitting. Owner only.
func (o *Orchestrator) Block(ctx context.Context, actor platform.User, targetID int64, now time.Time) error {
	if actor.ID != o.OwnerID {
		return ErrNotOwner
	}
	return o.Guard.Block(ctx, targetID, now)
}

// Unblock lifts a block. Owner only.
func (o *Orchestrator) Unblock(ctx context.Context, actor platform.User, targetID int64) error {
	if actor.ID != o.OwnerID {
		return ErrNotOwner
	}
	return o.Guard.Unblock(ctx, targetID)
}

func (o *Orchestrator) dm(ctx context.Context, userID int64, text string) {
	if err := o.Messenger.SendDM(ctx, userID, platform.Message{Text: text}); err != nil {
		o.Log.Debug().Err(err).Int64("user_id", userID).Msg("dm failed")
	}
}

// audit posts a line to the configured audit chat, if any.
func (o *Orchestrator) audit(ctx context.Context, format string, args ...any) {
	id := o.logChatID.Load()
	if id == 0 {
		return
	}
	if _, err := o.Messenger.SendRoom(ctx, id, platform.Message{Text: "🪵 " + fmt.Sprintf(format, args...)}); err != nil {
		o.Log.Debug().Err(err).Msg("audit line dropped")
	}
}

// pendingCard renders the moderator-facing card for an open request.
func pendingCard(req domain.Request) string {
	s := fmt.Sprintf("🆕 Request #%d\n👤 %s\n📦 %s\n🏠 %s", req.Seq, req.RequesterName, req.ItemText, req.RoomTitle)
	if req.Note != "" {
		s += "\n📝 " + req.Note
	}
	return s
}

// handledCard renders the card for a request past its terminal transition.
func handledCard(req domain.Request) string {
	var head string
	switch req.Status {
	case domain.StatusApproved:
		head = "✅ Approved"
	case domain.StatusRejected:
		head = "❌ Rejected"
	case domain.StatusAutoClosed:
		head = "⏰ Auto-closed"
	default:
		head = string(req.Status)
	}
	s := fmt.Sprintf("%s Request #%d\n👤 %s\n📦 %s", head, req.Seq, req.RequesterName, req.ItemText)
	if req.Reason != "" {
		s += "\n💬 " + req.Reason.Label()
	}
	return s
}
