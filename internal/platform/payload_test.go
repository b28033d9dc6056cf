package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nmehta/go-request-desk/internal/domain"
)

func TestDecisionPayloadRoundTrip(t *testing.T) {
	actions := []domain.DecisionAction{
		{Kind: domain.ActionApprove},
		{Kind: domain.ActionReject},
		{Kind: domain.ActionReasonMenu},
		{Kind: domain.ActionBack},
		{Kind: domain.ActionReasonPick, Reason: domain.ReasonSpelling},
	}
	for _, a := range actions {
		data := EncodeDecision(a, -100123, 42)
		dec, ok := DecodeDecision(data)
		if !ok {
			t.Fatalf("decode %q failed", data)
		}
		if dec.Action != a || dec.RoomID != -100123 || dec.Seq != 42 {
			t.Fatalf("round trip %q -> %+v", data, dec)
		}
	}
}

func TestDecodeDecision_RejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"rq",
		"rq|ok|1",
		"rq|ok|1|2|3",
		"xx|ok|1|2",
		"rq|maybe|1|2",
		"rq|ok|notanint|2",
		"rq|ok|1|notanint",
		"rq|why:|1|2",
		"rq|why:badreason|1|2",
		"rq|why:timeout|1|2", // system code, not moderator-selectable
	}
	for _, data := range bad {
		if _, ok := DecodeDecision(data); ok {
			t.Errorf("payload %q must not decode", data)
		}
	}
}

func TestKeyboards(t *testing.T) {
	kb := DecisionKeyboard(-1, 7)
	if len(kb) != 2 || len(kb[0]) != 2 || len(kb[1]) != 1 {
		t.Fatalf("decision keyboard layout %+v", kb)
	}
	for _, row := range kb {
		for _, b := range row {
			if _, ok := DecodeDecision(b.Data); !ok {
				t.Errorf("button %q carries undecodable payload %q", b.Label, b.Data)
			}
		}
	}

	rk := ReasonKeyboard(-1, 7)
	// Six reasons, two per row, plus the back row.
	if len(rk) != 4 {
		t.Fatalf("reason keyboard rows = %d, want 4", len(rk))
	}
	last := rk[len(rk)-1]
	dec, ok := DecodeDecision(last[0].Data)
	if !ok || dec.Action.Kind != domain.ActionBack {
		t.Fatalf("last row is not the back control: %+v", last)
	}
}

// fanMessenger records DM attempts and fails for configured recipients.
type fanMessenger struct {
	failFor map[int64]bool
	sent    []int64
}

func (f *fanMessenger) SendDM(_ context.Context, userID int64, _ Message) error {
	if f.failFor[userID] {
		return ErrUnreachable
	}
	f.sent = append(f.sent, userID)
	return nil
}

func (f *fanMessenger) SendRoom(context.Context, int64, Message) (MessageRef, error) {
	return MessageRef{}, nil
}
func (f *fanMessenger) Edit(context.Context, MessageRef, Message) error { return nil }
func (f *fanMessenger) Delete(context.Context, int64, int64) error      { return nil }

type staticDirectory struct{ mods []User }

func (s staticDirectory) IsModerator(_ context.Context, _ int64, userID int64) (bool, error) {
	for _, m := range s.mods {
		if m.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s staticDirectory) Moderators(context.Context, int64) ([]User, error) {
	return s.mods, nil
}

func TestFanOut_ContinuesPastFailures(t *testing.T) {
	m := &fanMessenger{failFor: map[int64]bool{2: true}}
	d := staticDirectory{mods: []User{
		{ID: 1, Name: "a"},
		{ID: 2, Name: "b"},
		{ID: 3, Name: "bot", IsBot: true},
		{ID: 4, Name: "c"},
	}}

	n := FanOut(context.Background(), m, d, zerolog.Nop(), -1, Message{Text: "card"})
	if n != 2 {
		t.Fatalf("delivered=%d, want 2", n)
	}
	want := []int64{1, 4}
	for i, id := range want {
		if m.sent[i] != id {
			t.Fatalf("sent=%v, want %v", m.sent, want)
		}
	}
}

type brokenDirectory struct{}

func (brokenDirectory) IsModerator(context.Context, int64, int64) (bool, error) {
	return false, errors.New("directory down")
}

func (brokenDirectory) Moderators(context.Context, int64) ([]User, error) {
	return nil, errors.New("directory down")
}

func TestFanOut_DirectoryFailureIsZeroNotPanic(t *testing.T) {
	m := &fanMessenger{}
	if n := FanOut(context.Background(), m, brokenDirectory{}, zerolog.Nop(), -1, Message{}); n != 0 {
		t.Fatalf("delivered=%d, want 0", n)
	}
}
