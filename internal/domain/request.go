// Package domain defines the core entities of the request desk: the Request
// lifecycle record, its status and reject-reason taxonomy, the decision
// actions carried by moderator controls, and the persistence models backing
// the abuse-guard counters.
package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a Request. A request starts pending and
// moves exactly once into one of the terminal states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusAutoClosed Status = "auto_closed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool { return s != StatusPending }

// ReasonCode identifies why a request was rejected or auto-closed. The set is
// fixed; free-text reasons are not accepted at the decision boundary.
type ReasonCode string

const (
	ReasonDuplicate   ReasonCode = "dup"
	ReasonSpelling    ReasonCode = "spell"
	ReasonUnclear     ReasonCode = "wrong"
	ReasonFormat      ReasonCode = "format"
	ReasonUnavailable ReasonCode = "notavail"
	ReasonOffTopic    ReasonCode = "offtopic"
	ReasonTimeout     ReasonCode = "timeout"
	ReasonAuto        ReasonCode = "auto"
)

// RejectReasons lists the codes a moderator may attach to a rejection, in the
// order they are presented on the reason menu. ReasonTimeout and ReasonAuto
// are system-assigned and deliberately absent.
var RejectReasons = []ReasonCode{
	ReasonDuplicate,
	ReasonSpelling,
	ReasonUnclear,
	ReasonFormat,
	ReasonUnavailable,
	ReasonOffTopic,
}

var reasonLabels = map[ReasonCode]string{
	ReasonDuplicate:   "Already group me hai",
	ReasonSpelling:    "Spelling galat hai",
	ReasonUnclear:     "Wrong / unclear request",
	ReasonFormat:      "Format sahi nahi",
	ReasonUnavailable: "Abhi available nahi",
	ReasonOffTopic:    "Off-topic request",
	ReasonTimeout:     "Time out ho gaya",
	ReasonAuto:        "Auto-approved",
}

// ValidRejectReason reports whether code may be attached by a moderator.
func (r ReasonCode) ValidRejectReason() bool {
	for _, c := range RejectReasons {
		if c == r {
			return true
		}
	}
	return false
}

// Label returns the display text for a reason code. Unknown codes are
// rendered verbatim so a decode mismatch is still visible to moderators.
func (r ReasonCode) Label() string {
	if l, ok := reasonLabels[r]; ok {
		return l
	}
	return string(r)
}

// Request is a tracked submission awaiting (or past) moderation.
//
// Seq is unique and monotonically assigned within a room. DedupKey is the
// normalized form of ItemText and is unique only among the room's pending
// requests. HandledBy, HandledAt and Reason are write-once: they are set
// exactly at the transition out of StatusPending.
type Request struct {
	Seq           int64
	RoomID        int64
	RoomTitle     string
	ItemText      string
	DedupKey      string
	RequesterID   int64
	RequesterName string
	Status        Status
	Reason        ReasonCode
	Note          string

	// Silent suppresses the requester notification on the terminal
	// transition (administrative auto-approvals).
	Silent bool

	CreatedAt time.Time
	HandledAt *time.Time
	HandledBy *int64
}

// NormalizeKey lowercases text and collapses runs of whitespace to single
// spaces, producing the dedup key under which pending duplicates are detected.
func NormalizeKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
