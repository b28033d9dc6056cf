// Package services – Query
//
// Read-side operations: a requester's own history, the pending backlog
// visible to a moderator, and aggregate statistics. All of these are bounded:
// history and backlog are capped, and the moderator room scan stops after a
// fixed number of rooms so a pathological store cannot stall a reply.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/nmehta/go-request-desk/internal/domain"
	"github.com/nmehta/go-request-desk/internal/platform"
	"github.com/nmehta/go-request-desk/internal/store"
	"github.com/nmehta/go-request-desk/internal/texts"
	"golang.org/x/text/language"
)

// Query answers read-only questions over the request store.
type Query struct {
	Store     *store.Store
	Directory platform.Directory

	// HistoryCap bounds MyRequests output, PendingCap bounds the moderator
	// backlog, RoomScanCap bounds how many rooms a moderator check visits.
	HistoryCap  int
	PendingCap  int
	RoomScanCap int
}

// NewQuery constructs a Query with the standard caps.
func NewQuery(st *store.Store, d platform.Directory) *Query {
	return &Query{
		Store:       st,
		Directory:   d,
		HistoryCap:  25,
		PendingCap:  20,
		RoomScanCap: 50,
	}
}

// MyRequests renders the user's request history, newest first, capped at
// HistoryCap entries.
func (q *Query) MyRequests(userID int64, lang language.Tag) string {
	reqs := q.Store.ListByRequester(userID)
	if len(reqs) == 0 {
		return texts.T(lang, "myreqs_empty")
	}
	if len(reqs) > q.HistoryCap {
		reqs = reqs[:q.HistoryCap]
	}
	var b strings.Builder
	b.WriteString("📋 Your requests\n")
	for _, r := range reqs {
		fmt.Fprintf(&b, "\n%s #%d %s - %s", statusEmoji(r.Status), r.Seq, r.ItemText, r.Status)
		if r.Reason != "" {
			fmt.Fprintf(&b, " (%s)", r.Reason.Label())
		}
	}
	return b.String()
}

// PendingForModerator returns the open requests in every room the user
// moderates, newest first, capped at PendingCap. The room scan itself is
// capped at RoomScanCap rooms. ErrNotModerator is returned when the user
// moderates none of the scanned rooms.
func (q *Query) PendingForModerator(ctx context.Context, userID int64) ([]domain.Request, error) {
	rooms, err := q.moderatedRooms(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, ErrNotModerator
	}
	pending := q.Store.ListPending(rooms)
	if len(pending) > q.PendingCap {
		pending = pending[:q.PendingCap]
	}
	return pending, nil
}

// Stats aggregates the full request ledger. Moderator-only: the caller must
// moderate at least one known room.
type Stats struct {
	Total      int
	Pending    int
	Approved   int
	Rejected   int
	AutoClosed int

	TopRequesterID    int64
	TopRequesterName  string
	TopRequesterCount int
}

// Stats computes aggregate counts over every room. Rejected counts moderator
// rejections only; sweep closures are reported separately as AutoClosed. Ties
// for the top requester keep the first one encountered in ledger order.
func (q *Query) Stats(ctx context.Context, userID int64) (Stats, error) {
	rooms, err := q.moderatedRooms(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	if len(rooms) == 0 {
		return Stats{}, ErrNotModerator
	}

	var st Stats
	perUser := make(map[int64]int)
	names := make(map[int64]string)
	for _, r := range q.Store.ListAll() {
		st.Total++
		switch r.Status {
		case domain.StatusPending:
			st.Pending++
		case domain.StatusApproved:
			st.Approved++
		case domain.StatusRejected:
			st.Rejected++
		case domain.StatusAutoClosed:
			st.AutoClosed++
		}
		perUser[r.RequesterID]++
		names[r.RequesterID] = r.RequesterName
		if perUser[r.RequesterID] > st.TopRequesterCount {
			st.TopRequesterCount = perUser[r.RequesterID]
			st.TopRequesterID = r.RequesterID
			st.TopRequesterName = names[r.RequesterID]
		}
	}
	return st, nil
}

// FormatStats renders Stats as a reply message.
func FormatStats(st Stats) string {
	var b strings.Builder
	b.WriteString("📊 Request stats\n")
	fmt.Fprintf(&b, "\nTotal: %d", st.Total)
	fmt.Fprintf(&b, "\n⏳ Pending: %d", st.Pending)
	fmt.Fprintf(&b, "\n✅ Approved: %d", st.Approved)
	fmt.Fprintf(&b, "\n❌ Rejected: %d", st.Rejected)
	fmt.Fprintf(&b, "\n⏰ Auto-closed: %d", st.AutoClosed)
	if st.TopRequesterCount > 0 {
		fmt.Fprintf(&b, "\n\n🏆 Top requester: %s (%d)", st.TopRequesterName, st.TopRequesterCount)
	}
	return b.String()
}

// FormatPending renders the moderator backlog as a reply message.
func FormatPending(reqs []domain.Request) string {
	if len(reqs) == 0 {
		return "No pending requests."
	}
	var b strings.Builder
	b.WriteString("⏳ Pending requests\n")
	for _, r := range reqs {
		fmt.Fprintf(&b, "\n#%d %s - %s (%s)", r.Seq, r.ItemText, r.RequesterName, r.RoomTitle)
	}
	return b.String()
}

func (q *Query) moderatedRooms(ctx context.Context, userID int64) ([]int64, error) {
	ids := q.Store.RoomIDs()
	if len(ids) > q.RoomScanCap {
		ids = ids[:q.RoomScanCap]
	}
	var rooms []int64
	for _, id := range ids {
		ok, err := q.Directory.IsModerator(ctx, id, userID)
		if err != nil {
			return nil, fmt.Errorf("moderator lookup for room %d: %w", id, err)
		}
		if ok {
			rooms = append(rooms, id)
		}
	}
	return rooms, nil
}

func statusEmoji(s domain.Status) string {
	switch s {
	case domain.StatusPending:
		return "⏳"
	case domain.StatusApproved:
		return "✅"
	case domain.StatusRejected:
		return "❌"
	case domain.StatusAutoClosed:
		return "⏰"
	default:
		return "•"
	}
}
