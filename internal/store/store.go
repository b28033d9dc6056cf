// Package store implements the authoritative in-memory table of requests.
//
// State is partitioned per room: every room owns an independent mutex, its
// sequence counter, and its ordered slice of requests, so submissions and
// decisions in unrelated rooms never contend. All mutations of one room's
// state run under that room's lock, which makes the duplicate-check-then-
// insert of a submission a single atomic step and linearizes concurrent
// decisions (and the staleness sweep) on the same request: the first
// terminal transition wins, later attempts observe ErrAlreadyHandled.
//
// The store is deliberately process-local and non-durable. Only guard and
// onboarding state is persisted (see the counters package); losing pending
// requests on restart is an accepted property of the design.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nmehta/go-request-desk/internal/domain"
)

// Sentinel errors returned by mutating operations. Callers translate these
// into user-facing replies; none of them indicate a fault.
var (
	// ErrNotFound means no request exists under the (room, seq) pair.
	ErrNotFound = errors.New("request not found")

	// ErrAlreadyHandled means the request left the pending state earlier;
	// the attempted transition was discarded.
	ErrAlreadyHandled = errors.New("request already handled")

	// ErrNotOwner means the caller does not own the request it tried to edit.
	ErrNotOwner = errors.New("request owned by another user")

	// ErrDuplicatePending means another pending request in the same room
	// already carries the same dedup key.
	ErrDuplicatePending = errors.New("duplicate pending request")
)

type roomState struct {
	mu    sync.Mutex
	seq   int64
	items []*domain.Request
}

// Store holds all per-room request state.
// The zero value is not usable; construct with New.
type Store struct {
	mu    sync.RWMutex
	rooms map[int64]*roomState
}

// New returns an empty Store.
func New() *Store {
	return &Store{rooms: make(map[int64]*roomState)}
}

// room returns the state for roomID, creating it lazily.
func (s *Store) room(roomID int64) *roomState {
	s.mu.RLock()
	rs := s.rooms[roomID]
	s.mu.RUnlock()
	if rs != nil {
		return rs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs = s.rooms[roomID]; rs == nil {
		rs = &roomState{}
		s.rooms[roomID] = rs
	}
	return rs
}

// roomIDs returns all known room ids in ascending order. Ordering keeps
// cross-room scans (stats, sweeps) deterministic.
func (s *Store) roomIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RoomIDs returns the ids of every room that has ever held a request.
func (s *Store) RoomIDs() []int64 { return s.roomIDs() }

// AllocateSequence returns the next sequence number for the room. Sequence
// numbers start at 1, increase strictly, and are never reused.
func (s *Store) AllocateSequence(roomID int64) int64 {
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.seq++
	return rs.seq
}

// CreatePending atomically checks the room for a pending duplicate of text
// and, absent one, allocates a sequence number and inserts a new pending
// request. When a pending duplicate exists, its copy is returned with
// ErrDuplicatePending and nothing is stored.
func (s *Store) CreatePending(roomID int64, roomTitle string, requesterID int64, requesterName, text string, now time.Time) (domain.Request, error) {
	key := domain.NormalizeKey(text)
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, r := range rs.items {
		if r.Status == domain.StatusPending && r.DedupKey == key {
			return *r, ErrDuplicatePending
		}
	}

	rs.seq++
	req := &domain.Request{
		Seq:           rs.seq,
		RoomID:        roomID,
		RoomTitle:     roomTitle,
		ItemText:      text,
		DedupKey:      key,
		RequesterID:   requesterID,
		RequesterName: requesterName,
		Status:        domain.StatusPending,
		CreatedAt:     now,
	}
	rs.items = append(rs.items, req)
	return *req, nil
}

// CreateApproved inserts a request directly in the approved state (the
// auto-approve fast path). It never collides with the pending-duplicate
// invariant because the inserted request is already terminal. The request is
// flagged silent: the requester was told at creation, so later status
// notifications skip it.
func (s *Store) CreateApproved(roomID int64, roomTitle string, requesterID int64, requesterName, text string, reason domain.ReasonCode, now time.Time) domain.Request {
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.seq++
	handled := now
	req := &domain.Request{
		Seq:           rs.seq,
		RoomID:        roomID,
		RoomTitle:     roomTitle,
		ItemText:      text,
		DedupKey:      domain.NormalizeKey(text),
		RequesterID:   requesterID,
		RequesterName: requesterName,
		Status:        domain.StatusApproved,
		Reason:        reason,
		Silent:        true,
		CreatedAt:     now,
		HandledAt:     &handled,
	}
	rs.items = append(rs.items, req)
	return *req
}

// FindPending returns the pending request carrying key in the room, if any.
func (s *Store) FindPending(roomID int64, key string) (domain.Request, bool) {
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, r := range rs.items {
		if r.Status == domain.StatusPending && r.DedupKey == key {
			return *r, true
		}
	}
	return domain.Request{}, false
}

// FindBySequence returns the request identified by (roomID, seq).
func (s *Store) FindBySequence(roomID, seq int64) (domain.Request, bool) {
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r := findSeq(rs, seq); r != nil {
		return *r, true
	}
	return domain.Request{}, false
}

func findSeq(rs *roomState, seq int64) *domain.Request {
	for _, r := range rs.items {
		if r.Seq == seq {
			return r
		}
	}
	return nil
}

// Resolve applies the terminal transition (status, reason) to a pending
// request and stamps the write-once handled fields. If the request has
// already left the pending state, the stored copy is returned unchanged
// together with ErrAlreadyHandled, which makes a decide racing the sweep
// (or a second decide) a deterministic no-op.
func (s *Store) Resolve(roomID, seq int64, status domain.Status, actorID int64, reason domain.ReasonCode, now time.Time) (domain.Request, error) {
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r := findSeq(rs, seq)
	if r == nil {
		return domain.Request{}, ErrNotFound
	}
	if r.Status != domain.StatusPending {
		return *r, ErrAlreadyHandled
	}
	r.Status = status
	r.Reason = reason
	handled := now
	r.HandledAt = &handled
	r.HandledBy = &actorID
	return *r, nil
}

// SetNote attaches an annotation to a pending request.
func (s *Store) SetNote(roomID, seq int64, note string) (domain.Request, error) {
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r := findSeq(rs, seq)
	if r == nil {
		return domain.Request{}, ErrNotFound
	}
	if r.Status != domain.StatusPending {
		return *r, ErrAlreadyHandled
	}
	r.Note = note
	return *r, nil
}

// UpdateText replaces the item text of the requester's own pending request,
// re-deriving the dedup key. The edit is rejected when the new key would
// collide with another pending request in the same room.
func (s *Store) UpdateText(roomID, seq, requesterID int64, text string) (domain.Request, error) {
	key := domain.NormalizeKey(text)
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r := findSeq(rs, seq)
	if r == nil {
		return domain.Request{}, ErrNotFound
	}
	if r.RequesterID != requesterID {
		return domain.Request{}, ErrNotOwner
	}
	if r.Status != domain.StatusPending {
		return *r, ErrAlreadyHandled
	}
	for _, other := range rs.items {
		if other != r && other.Status == domain.StatusPending && other.DedupKey == key {
			return *other, ErrDuplicatePending
		}
	}
	r.ItemText = text
	r.DedupKey = key
	return *r, nil
}

// FindByRequesterSeq scans all rooms for a request with the given sequence
// number owned by requesterID. Sequence numbers are only unique per room, so
// the first match in room-id order wins; the caller's reply names the room.
func (s *Store) FindByRequesterSeq(requesterID, seq int64) (domain.Request, bool) {
	for _, roomID := range s.roomIDs() {
		rs := s.room(roomID)
		rs.mu.Lock()
		for _, r := range rs.items {
			if r.Seq == seq && r.RequesterID == requesterID {
				cp := *r
				rs.mu.Unlock()
				return cp, true
			}
		}
		rs.mu.Unlock()
	}
	return domain.Request{}, false
}

// FindSeqAnyRoom scans all rooms for the first request with seq, regardless
// of owner. Used by moderator commands addressing a request by bare id.
func (s *Store) FindSeqAnyRoom(seq int64) (domain.Request, bool) {
	for _, roomID := range s.roomIDs() {
		rs := s.room(roomID)
		rs.mu.Lock()
		if r := findSeq(rs, seq); r != nil {
			cp := *r
			rs.mu.Unlock()
			return cp, true
		}
		rs.mu.Unlock()
	}
	return domain.Request{}, false
}

// ListByRequester returns copies of all requests submitted by userID across
// rooms, newest first.
func (s *Store) ListByRequester(userID int64) []domain.Request {
	var out []domain.Request
	for _, roomID := range s.roomIDs() {
		rs := s.room(roomID)
		rs.mu.Lock()
		for _, r := range rs.items {
			if r.RequesterID == userID {
				out = append(out, *r)
			}
		}
		rs.mu.Unlock()
	}
	sortNewestFirst(out)
	return out
}

// ListPending returns copies of pending requests, newest first. A nil
// roomIDs slice means every room; otherwise only the given rooms are
// scanned.
func (s *Store) ListPending(roomIDs []int64) []domain.Request {
	if roomIDs == nil {
		roomIDs = s.roomIDs()
	}
	var out []domain.Request
	for _, roomID := range roomIDs {
		rs := s.room(roomID)
		rs.mu.Lock()
		for _, r := range rs.items {
			if r.Status == domain.StatusPending {
				out = append(out, *r)
			}
		}
		rs.mu.Unlock()
	}
	sortNewestFirst(out)
	return out
}

// ListAll returns copies of every request, in room-id then insertion order.
// The stable ordering keeps aggregate tie-breaking ("first encountered")
// deterministic.
func (s *Store) ListAll() []domain.Request {
	var out []domain.Request
	for _, roomID := range s.roomIDs() {
		rs := s.room(roomID)
		rs.mu.Lock()
		for _, r := range rs.items {
			out = append(out, *r)
		}
		rs.mu.Unlock()
	}
	return out
}

// AutoCloseStale transitions every pending request older than maxAge to
// auto_closed with the timeout reason and returns copies of the changed set
// for notification. Running the sweep twice over the same state is a no-op:
// the first pass leaves nothing pending past the threshold.
func (s *Store) AutoCloseStale(now time.Time, maxAge time.Duration) []domain.Request {
	var closed []domain.Request
	for _, roomID := range s.roomIDs() {
		rs := s.room(roomID)
		rs.mu.Lock()
		for _, r := range rs.items {
			if r.Status != domain.StatusPending {
				continue
			}
			if now.Sub(r.CreatedAt) < maxAge {
				continue
			}
			r.Status = domain.StatusAutoClosed
			r.Reason = domain.ReasonTimeout
			handled := now
			r.HandledAt = &handled
			closed = append(closed, *r)
		}
		rs.mu.Unlock()
	}
	return closed
}

func sortNewestFirst(rs []domain.Request) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
}
