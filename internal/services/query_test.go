package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nmehta/go-request-desk/internal/domain"
	"github.com/nmehta/go-request-desk/internal/platform"
	"github.com/nmehta/go-request-desk/internal/store"
	"github.com/nmehta/go-request-desk/internal/texts"
)

func seedRequest(t *testing.T, st *store.Store, roomID int64, userID int64, name, text string, at time.Time) domain.Request {
	t.Helper()
	req, err := st.CreatePending(roomID, "Room", userID, name, text, at)
	if err != nil {
		t.Fatalf("CreatePending(%q): %v", text, err)
	}
	return req
}

func TestMyRequests_RoundTrip(t *testing.T) {
	st := store.New()
	q := NewQuery(st, mapDirectory{})
	base := time.Now()

	seedRequest(t, st, testRoom, 10, "Asha", "Avengers", base)
	r2 := seedRequest(t, st, testRoom, 10, "Asha", "Batman", base.Add(time.Minute))
	if _, err := st.Resolve(testRoom, r2.Seq, domain.StatusRejected, 20, domain.ReasonSpelling, base.Add(2*time.Minute)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	out := q.MyRequests(10, texts.Hinglish)
	if !strings.Contains(out, "Avengers") || !strings.Contains(out, "Batman") {
		t.Fatalf("missing entries: %q", out)
	}
	if !strings.Contains(out, domain.ReasonSpelling.Label()) {
		t.Errorf("rejection reason missing: %q", out)
	}
	// Newest first.
	if strings.Index(out, "Batman") > strings.Index(out, "Avengers") {
		t.Errorf("not newest-first: %q", out)
	}
}

func TestMyRequests_EmptyAndCapped(t *testing.T) {
	st := store.New()
	q := NewQuery(st, mapDirectory{})

	if out := q.MyRequests(10, texts.Hinglish); !strings.Contains(out, "Koi request nahi") {
		t.Fatalf("empty message = %q", out)
	}

	base := time.Now()
	for i := 0; i < 30; i++ {
		seedRequest(t, st, testRoom, 10, "Asha", fmt.Sprintf("item %d", i), base.Add(time.Duration(i)*time.Second))
	}
	out := q.MyRequests(10, texts.Hinglish)
	if got := strings.Count(out, "#"); got != 25 {
		t.Fatalf("entries = %d, want 25", got)
	}
	if !strings.Contains(out, "item 29") || strings.Contains(out, "item 4 -") {
		t.Errorf("cap should keep the newest 25: %q", out)
	}
}

func TestPendingForModerator_ScopedToModeratedRooms(t *testing.T) {
	st := store.New()
	dir := mapDirectory{mods: map[int64][]platform.User{
		-1: {{ID: 20}},
		-2: {{ID: 30}},
	}}
	q := NewQuery(st, dir)
	base := time.Now()

	seedRequest(t, st, -1, 10, "Asha", "Avengers", base)
	seedRequest(t, st, -2, 10, "Asha", "Batman", base)

	got, err := q.PendingForModerator(context.Background(), 20)
	if err != nil {
		t.Fatalf("PendingForModerator: %v", err)
	}
	if len(got) != 1 || got[0].ItemText != "Avengers" {
		t.Fatalf("backlog = %+v", got)
	}

	if _, err := q.PendingForModerator(context.Background(), 999); !errors.Is(err, ErrNotModerator) {
		t.Fatalf("non-moderator: %v", err)
	}
}

func TestPendingForModerator_Capped(t *testing.T) {
	st := store.New()
	dir := mapDirectory{mods: map[int64][]platform.User{-1: {{ID: 20}}}}
	q := NewQuery(st, dir)
	base := time.Now()
	for i := 0; i < 25; i++ {
		seedRequest(t, st, -1, 10, "Asha", fmt.Sprintf("item %d", i), base.Add(time.Duration(i)*time.Second))
	}
	got, err := q.PendingForModerator(context.Background(), 20)
	if err != nil {
		t.Fatalf("PendingForModerator: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("backlog = %d, want 20", len(got))
	}
}

func TestStats_AggregatesAndExcludesAutoClosedFromRejected(t *testing.T) {
	st := store.New()
	dir := mapDirectory{mods: map[int64][]platform.User{-1: {{ID: 20}}}}
	q := NewQuery(st, dir)
	base := time.Now()

	r1 := seedRequest(t, st, -1, 10, "Asha", "one", base)
	r2 := seedRequest(t, st, -1, 10, "Asha", "two", base.Add(time.Second))
	seedRequest(t, st, -1, 11, "Ravi", "three", base.Add(2*time.Second))
	seedRequest(t, st, -1, 10, "Asha", "four", base.Add(3*time.Second))

	if _, err := st.Resolve(-1, r1.Seq, domain.StatusApproved, 20, "", base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Resolve(-1, r2.Seq, domain.StatusRejected, 20, domain.ReasonDuplicate, base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	st.AutoCloseStale(base.Add(80*time.Hour), 72*time.Hour)

	got, err := q.Stats(context.Background(), 20)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{
		Total: 4, Approved: 1, Rejected: 1, AutoClosed: 2,
		TopRequesterID: 10, TopRequesterName: "Asha", TopRequesterCount: 3,
	}
	if got != want {
		t.Fatalf("Stats = %+v, want %+v", got, want)
	}

	if _, err := q.Stats(context.Background(), 999); !errors.Is(err, ErrNotModerator) {
		t.Fatalf("non-moderator: %v", err)
	}
}

func TestStats_TopRequesterTieKeepsFirst(t *testing.T) {
	st := store.New()
	dir := mapDirectory{mods: map[int64][]platform.User{-1: {{ID: 20}}}}
	q := NewQuery(st, dir)
	base := time.Now()

	seedRequest(t, st, -1, 10, "Asha", "one", base)
	seedRequest(t, st, -1, 11, "Ravi", "two", base.Add(time.Second))

	got, err := q.Stats(context.Background(), 20)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got.TopRequesterID != 10 {
		t.Fatalf("tie broke to %d, want first-seen 10", got.TopRequesterID)
	}
}

func TestFormatters(t *testing.T) {
	out := FormatStats(Stats{Total: 3, Pending: 1, Approved: 1, Rejected: 1, TopRequesterName: "Asha", TopRequesterCount: 2})
	if !strings.Contains(out, "Total: 3") || !strings.Contains(out, "Asha (2)") {
		t.Errorf("FormatStats = %q", out)
	}
	if out := FormatPending(nil); out != "No pending requests." {
		t.Errorf("FormatPending(nil) = %q", out)
	}
}
