package platform

import (
	"strconv"
	"strings"

	"github.com/nmehta/go-request-desk/internal/domain"
)

// Decision control payloads travel as "rq|<action>|<roomID>|<seq>" strings,
// where action is one of ok, no, r, back, or why:<reason>. The format is
// decoded exactly once here; anything that does not parse becomes a no-op at
// the boundary rather than an error deeper in.

const payloadTag = "rq"

// Decision is the decoded form of a decision control event.
type Decision struct {
	Action domain.DecisionAction
	RoomID int64
	Seq    int64
}

// EncodeDecision renders the payload for a control button.
func EncodeDecision(action domain.DecisionAction, roomID, seq int64) string {
	var a string
	switch action.Kind {
	case domain.ActionApprove:
		a = "ok"
	case domain.ActionReject:
		a = "no"
	case domain.ActionReasonMenu:
		a = "r"
	case domain.ActionBack:
		a = "back"
	case domain.ActionReasonPick:
		a = "why:" + string(action.Reason)
	default:
		a = ""
	}
	return strings.Join([]string{
		payloadTag, a,
		strconv.FormatInt(roomID, 10),
		strconv.FormatInt(seq, 10),
	}, "|")
}

// DecodeDecision parses a control payload. ok=false for anything malformed,
// unrecognized, or carrying an out-of-taxonomy reason.
func DecodeDecision(data string) (Decision, bool) {
	parts := strings.Split(data, "|")
	if len(parts) != 4 || parts[0] != payloadTag {
		return Decision{}, false
	}

	var action domain.DecisionAction
	switch a := parts[1]; {
	case a == "ok":
		action.Kind = domain.ActionApprove
	case a == "no":
		action.Kind = domain.ActionReject
	case a == "r":
		action.Kind = domain.ActionReasonMenu
	case a == "back":
		action.Kind = domain.ActionBack
	case strings.HasPrefix(a, "why:"):
		reason := domain.ReasonCode(strings.TrimPrefix(a, "why:"))
		if !reason.ValidRejectReason() {
			return Decision{}, false
		}
		action.Kind = domain.ActionReasonPick
		action.Reason = reason
	default:
		return Decision{}, false
	}

	roomID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Decision{}, false
	}
	seq, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Decision{}, false
	}
	return Decision{Action: action, RoomID: roomID, Seq: seq}, true
}

// DecisionKeyboard returns the Approve/Reject/Reason controls attached to a
// fresh moderator card.
func DecisionKeyboard(roomID, seq int64) [][]Button {
	return [][]Button{
		{
			{Label: "✅ Approve", Data: EncodeDecision(domain.DecisionAction{Kind: domain.ActionApprove}, roomID, seq)},
			{Label: "❌ Reject", Data: EncodeDecision(domain.DecisionAction{Kind: domain.ActionReject}, roomID, seq)},
		},
		{
			{Label: "📝 Reason", Data: EncodeDecision(domain.DecisionAction{Kind: domain.ActionReasonMenu}, roomID, seq)},
		},
	}
}

// ReasonKeyboard returns the reject-reason menu, two reasons per row, with a
// back control on the last row.
func ReasonKeyboard(roomID, seq int64) [][]Button {
	var rows [][]Button
	var row []Button
	for _, code := range domain.RejectReasons {
		row = append(row, Button{
			Label: code.Label(),
			Data:  EncodeDecision(domain.DecisionAction{Kind: domain.ActionReasonPick, Reason: code}, roomID, seq),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []Button{
		{Label: "⬅️ Back", Data: EncodeDecision(domain.DecisionAction{Kind: domain.ActionBack}, roomID, seq)},
	})
	return rows
}
