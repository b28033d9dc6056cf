package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// APIClient is the concrete Messenger and Directory over the platform's bot
// HTTP API. It covers exactly the five calls the core needs; it is not a
// general SDK.
type APIClient struct {
	// BaseURL is the API root, e.g. "https://api.example.org".
	BaseURL string
	// Token authenticates the bot.
	Token string
	// HTTPClient defaults to a 10s-timeout client when nil.
	HTTPClient *http.Client
}

// NewAPIClient builds a client for the given API root and bot token.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

type apiMessage struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

type apiChatMember struct {
	Status string `json:"status"`
	User   struct {
		ID        int64  `json:"id"`
		IsBot     bool   `json:"is_bot"`
		FirstName string `json:"first_name"`
		Username  string `json:"username"`
	} `json:"user"`
}

func markupFor(msg Message) *replyMarkup {
	if len(msg.Keyboard) == 0 {
		return nil
	}
	m := &replyMarkup{}
	for _, row := range msg.Keyboard {
		var out []inlineButton
		for _, b := range row {
			out = append(out, inlineButton{Text: b.Label, CallbackData: b.Data})
		}
		m.InlineKeyboard = append(m.InlineKeyboard, out)
	}
	return m
}

// call POSTs a JSON body to one bot-API method and decodes the envelope.
func (c *APIClient) call(ctx context.Context, method string, body any, result any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !envelope.OK {
		// 403 means the recipient never opened a private channel with
		// the bot (or closed it); that is the onboarding signal.
		if envelope.ErrorCode == http.StatusForbidden {
			return ErrUnreachable
		}
		return fmt.Errorf("%s: api error %d: %s", method, envelope.ErrorCode, envelope.Description)
	}
	if result != nil && envelope.Result != nil {
		return json.Unmarshal(envelope.Result, result)
	}
	return nil
}

// SendDM implements Messenger.
func (c *APIClient) SendDM(ctx context.Context, userID int64, msg Message) error {
	body := map[string]any{
		"chat_id":                  userID,
		"text":                     msg.Text,
		"disable_web_page_preview": true,
	}
	if m := markupFor(msg); m != nil {
		body["reply_markup"] = m
	}
	return c.call(ctx, "sendMessage", body, nil)
}

// SendRoom implements Messenger.
func (c *APIClient) SendRoom(ctx context.Context, roomID int64, msg Message) (MessageRef, error) {
	body := map[string]any{
		"chat_id":                  roomID,
		"text":                     msg.Text,
		"disable_web_page_preview": true,
	}
	if m := markupFor(msg); m != nil {
		body["reply_markup"] = m
	}
	var sent apiMessage
	if err := c.call(ctx, "sendMessage", body, &sent); err != nil {
		return MessageRef{}, err
	}
	return MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// Edit implements Messenger.
func (c *APIClient) Edit(ctx context.Context, ref MessageRef, msg Message) error {
	body := map[string]any{
		"chat_id":    ref.ChatID,
		"message_id": ref.MessageID,
		"text":       msg.Text,
	}
	if m := markupFor(msg); m != nil {
		body["reply_markup"] = m
	}
	return c.call(ctx, "editMessageText", body, nil)
}

// Delete implements Messenger.
func (c *APIClient) Delete(ctx context.Context, roomID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    roomID,
		"message_id": messageID,
	}, nil)
}

// IsModerator implements Directory via getChatMember.
func (c *APIClient) IsModerator(ctx context.Context, roomID, userID int64) (bool, error) {
	var member apiChatMember
	err := c.call(ctx, "getChatMember", map[string]any{
		"chat_id": roomID,
		"user_id": userID,
	}, &member)
	if err != nil {
		return false, err
	}
	return member.Status == "administrator" || member.Status == "creator", nil
}

// Moderators implements Directory via getChatAdministrators.
func (c *APIClient) Moderators(ctx context.Context, roomID int64) ([]User, error) {
	var members []apiChatMember
	err := c.call(ctx, "getChatAdministrators", map[string]any{
		"chat_id": roomID,
	}, &members)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(members))
	for _, m := range members {
		name := m.User.FirstName
		if name == "" {
			name = m.User.Username
		}
		users = append(users, User{ID: m.User.ID, Name: name, IsBot: m.User.IsBot})
	}
	return users, nil
}

// LogMessenger is a development stand-in used when no bot token is
// configured: every delivery succeeds and is written to the log instead.
type LogMessenger struct {
	Log zerolog.Logger
}

// SendDM implements Messenger.
func (l LogMessenger) SendDM(_ context.Context, userID int64, msg Message) error {
	l.Log.Info().Int64("user_id", userID).Str("text", msg.Text).Msg("dm (dry-run)")
	return nil
}

// SendRoom implements Messenger.
func (l LogMessenger) SendRoom(_ context.Context, roomID int64, msg Message) (MessageRef, error) {
	l.Log.Info().Int64("room_id", roomID).Str("text", msg.Text).Msg("room message (dry-run)")
	return MessageRef{ChatID: roomID}, nil
}

// Edit implements Messenger.
func (l LogMessenger) Edit(_ context.Context, ref MessageRef, msg Message) error {
	l.Log.Info().Int64("chat_id", ref.ChatID).Str("text", msg.Text).Msg("edit (dry-run)")
	return nil
}

// Delete implements Messenger.
func (l LogMessenger) Delete(_ context.Context, roomID, messageID int64) error {
	l.Log.Info().Int64("room_id", roomID).Int64("message_id", messageID).Msg("delete (dry-run)")
	return nil
}

// OwnerDirectory is a development Directory that treats a single owner id as
// the moderator of every room.
type OwnerDirectory struct {
	OwnerID   int64
	OwnerName string
}

// IsModerator implements Directory.
func (o OwnerDirectory) IsModerator(_ context.Context, _ int64, userID int64) (bool, error) {
	return userID == o.OwnerID, nil
}

// Moderators implements Directory.
func (o OwnerDirectory) Moderators(context.Context, int64) ([]User, error) {
	return []User{{ID: o.OwnerID, Name: o.OwnerName}}, nil
}
