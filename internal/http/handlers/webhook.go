// Package handlers implements the webhook endpoint: it decodes platform
// updates, routes commands and decision callbacks to the services layer, and
// always acknowledges with 200 so the upstream does not retry. Only a body
// that fails to decode earns a 400.
//
// Command surface:
//
//	room chats:    /request <item>; the PM-only commands get their trigger
//	               deleted and a redirect hint in DM
//	private chat:  /start, /myrequests, /pending, /stats, /lang, /help,
//	               /note <id> <text>, /editrequest <id> <text>,
//	               /setlog <chat_id>, /block <user>, /unblock <user>
//
// Unknown commands and plain chatter are ignored. Moderator-only and
// owner-only commands fail silently for everyone else.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/language"

	"github.com/nmehta/go-request-desk/internal/http/middleware"
	"github.com/nmehta/go-request-desk/internal/platform"
	"github.com/nmehta/go-request-desk/internal/services"
	"github.com/nmehta/go-request-desk/internal/store"
	"github.com/nmehta/go-request-desk/internal/texts"
)

var updatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_updates_total",
		Help: "Webhook updates processed, by kind.",
	},
	[]string{"kind"},
)

var submissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "request_submissions_total",
		Help: "Submission attempts, by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(updatesTotal, submissionsTotal)
}

// Update is the envelope delivered by the bot platform. Exactly one of the
// payload fields is set per update.
type Update struct {
	UpdateID      int64            `json:"update_id"`
	Message       *IncomingMessage `json:"message,omitempty"`
	CallbackQuery *CallbackQuery   `json:"callback_query,omitempty"`
}

// IncomingMessage is a chat message, either from a room or a private chat.
type IncomingMessage struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Chat identifies where a message was posted.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"` // private|group|supergroup
	Title string `json:"title,omitempty"`
}

// User identifies a message author.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// CallbackQuery is a button press on a moderator card.
type CallbackQuery struct {
	ID      string           `json:"id"`
	From    User             `json:"from"`
	Message *IncomingMessage `json:"message,omitempty"`
	Data    string           `json:"data"`
}

func (c Chat) isRoom() bool {
	return c.Type == "group" || c.Type == "supergroup"
}

func (u User) platformUser() platform.User {
	name := u.FirstName
	if name == "" {
		name = u.Username
	}
	return platform.User{ID: u.ID, Name: name, IsBot: u.IsBot}
}

// Handler routes webhook updates to the services layer.
type Handler struct {
	Orch      *services.Orchestrator
	Query     *services.Query
	Prefs     *texts.Prefs
	Messenger platform.Messenger

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// New constructs a Handler wired to the given services.
func New(orch *services.Orchestrator, q *services.Query, prefs *texts.Prefs, m platform.Messenger) *Handler {
	return &Handler{Orch: orch, Query: q, Prefs: prefs, Messenger: m, Now: time.Now}
}

// HandleUpdate is the POST /hook/:secret endpoint.
func (h *Handler) HandleUpdate(c *gin.Context) {
	var upd Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("undecodable update")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "bad update"})
		return
	}

	switch {
	case upd.CallbackQuery != nil:
		updatesTotal.WithLabelValues("callback").Inc()
		h.handleCallback(c, upd.CallbackQuery)
	case upd.Message != nil:
		updatesTotal.WithLabelValues("message").Inc()
		h.handleMessage(c, upd.Message)
	default:
		updatesTotal.WithLabelValues("other").Inc()
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) handleMessage(c *gin.Context, msg *IncomingMessage) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	cmd, args := splitCommand(msg.Text)
	if cmd == "" {
		return
	}
	from := msg.From.platformUser()
	ctx := c.Request.Context()
	lang := h.Prefs.Get(from.ID)

	if msg.Chat.isRoom() {
		switch cmd {
		case "request":
			// The triggering message is removed from the room; all
			// feedback goes to the requester's DM.
			h.deleteTrigger(c, msg)
			res := h.Orch.Submit(ctx, msg.Chat.ID, msg.Chat.Title, from, args, h.Now())
			submissionsTotal.WithLabelValues(res.Outcome.String()).Inc()
		case "setlog":
			// Configured in the private chat; just keep the room clean.
			h.deleteTrigger(c, msg)
		case "myrequests":
			h.deleteTrigger(c, msg)
			h.dm(ctx, from.ID, texts.T(lang, "myreqs_pm_only"))
		case "pending":
			h.deleteTrigger(c, msg)
			h.dm(ctx, from.ID, texts.T(lang, "pending_pm_only"))
		case "stats":
			h.deleteTrigger(c, msg)
			h.dm(ctx, from.ID, texts.T(lang, "stats_pm_only"))
		case "help":
			h.deleteTrigger(c, msg)
			h.dm(ctx, from.ID, texts.T(lang, "help_full"))
		}
		return
	}

	// Private chat.
	switch cmd {
	case "start":
		h.start(c, from, lang)
	case "request":
		h.dm(ctx, from.ID, texts.T(lang, "pm_request_not_allowed"))
	case "myrequests":
		h.dm(ctx, from.ID, h.Query.MyRequests(from.ID, lang))
	case "pending":
		out, err := h.Query.PendingForModerator(ctx, from.ID)
		if err != nil {
			h.swallow(c, err)
			return
		}
		h.dm(ctx, from.ID, services.FormatPending(out))
	case "stats":
		st, err := h.Query.Stats(ctx, from.ID)
		if err != nil {
			h.swallow(c, err)
			return
		}
		h.dm(ctx, from.ID, services.FormatStats(st))
	case "note":
		seq, rest, ok := splitSeqArg(args)
		if !ok {
			h.dm(ctx, from.ID, "Use: /note <id> <text>")
			return
		}
		if _, err := h.Orch.Note(ctx, from, seq, rest); err != nil {
			h.swallow(c, err)
			return
		}
		h.dm(ctx, from.ID, "📝 Note saved.")
	case "editrequest":
		seq, rest, ok := splitSeqArg(args)
		if !ok {
			h.dm(ctx, from.ID, "Use: /editrequest <id> <new text>")
			return
		}
		req, err := h.Orch.EditRequest(ctx, from.ID, seq, rest)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNotOwner):
				h.dm(ctx, from.ID, "Request nahi mila ya already handled hai.")
			case errors.Is(err, store.ErrAlreadyHandled):
				h.dm(ctx, from.ID, "Request already handled hai, edit nahi ho sakta.")
			case errors.Is(err, store.ErrDuplicatePending):
				h.dm(ctx, from.ID, "Same request pehle se pending hai.")
			default:
				h.swallow(c, err)
			}
			return
		}
		h.dm(ctx, from.ID, "✏️ Request #"+strconv.FormatInt(req.Seq, 10)+" update ho gaya: "+req.ItemText)
	case "lang":
		code := strings.TrimSpace(args)
		tag, ok := texts.Resolve(code)
		if code == "" || !ok {
			h.dm(ctx, from.ID, texts.T(lang, "lang_help"))
			return
		}
		h.Prefs.Set(from.ID, tag)
		h.dm(ctx, from.ID, texts.T(tag, "lang_set"))
	case "help":
		h.dm(ctx, from.ID, texts.T(lang, "help_full"))
	case "setlog":
		arg := strings.TrimSpace(args)
		if arg == "" {
			h.dm(ctx, from.ID, "Use: /setlog <chat_id>")
			return
		}
		chatID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			h.dm(ctx, from.ID, "Invalid chat_id")
			return
		}
		if err := h.Orch.SetLog(ctx, from, chatID); err != nil {
			h.swallow(c, err)
			return
		}
		h.dm(ctx, from.ID, "✅ Log channel set.")
	case "block":
		if target, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64); err == nil {
			if err := h.Orch.Block(ctx, from, target, h.Now()); err != nil {
				h.swallow(c, err)
			}
		}
	case "unblock":
		if target, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64); err == nil {
			if err := h.Orch.Unblock(ctx, from, target); err != nil {
				h.swallow(c, err)
			}
		}
	}
}

// start establishes the private reply channel; reaching this handler proves
// the DM route works.
func (h *Handler) start(c *gin.Context, from platform.User, lang language.Tag) {
	ctx := c.Request.Context()
	if err := h.Orch.Counters.SetOnboarded(ctx, from.ID, h.Now()); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Int64("user_id", from.ID).Msg("onboarding flag not persisted")
	}
	h.dm(ctx, from.ID, texts.T(lang, "first_time_dm"))
}

func (h *Handler) handleCallback(c *gin.Context, cq *CallbackQuery) {
	d, ok := platform.DecodeDecision(cq.Data)
	if !ok || cq.Message == nil {
		return
	}
	card := platform.MessageRef{ChatID: cq.Message.Chat.ID, MessageID: cq.Message.MessageID}
	err := h.Orch.Decide(c.Request.Context(), cq.From.platformUser(), d, card, h.Now())
	h.swallow(c, err)
}

// deleteTrigger removes a command message from the room. Best effort.
func (h *Handler) deleteTrigger(c *gin.Context, msg *IncomingMessage) {
	if err := h.Messenger.Delete(c.Request.Context(), msg.Chat.ID, msg.MessageID); err != nil {
		middleware.LoggerFrom(c).Debug().Err(err).Msg("trigger message not deleted")
	}
}

// swallow drops the errors that are deliberate non-responses (unauthorized
// actors, stale buttons) and logs the rest.
func (h *Handler) swallow(c *gin.Context, err error) {
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotModerator),
		errors.Is(err, services.ErrNotOwner),
		errors.Is(err, services.ErrUnknownAction),
		errors.Is(err, services.ErrEmptyText),
		errors.Is(err, store.ErrNotFound):
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("update handling failed")
	}
}

func (h *Handler) dm(ctx context.Context, userID int64, text string) {
	_ = h.Messenger.SendDM(ctx, userID, platform.Message{Text: text})
}

// splitCommand extracts a leading bot command and its argument string.
// "/request@MyBot Avengers" yields ("request", "Avengers"). Non-commands
// yield an empty command.
func splitCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}

// splitSeqArg parses "<id> <rest>" argument strings.
func splitSeqArg(args string) (seq int64, rest string, ok bool) {
	head, tail, _ := strings.Cut(strings.TrimSpace(args), " ")
	seq, err := strconv.ParseInt(head, 10, 64)
	if err != nil || seq <= 0 {
		return 0, "", false
	}
	return seq, strings.TrimSpace(tail), true
}
