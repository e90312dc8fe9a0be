package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Source labels of Telegram visitors.
const (
	SourceTelegramBot      = "Telegram (личка боту)"
	SourceTelegramBusiness = "Telegram (бизнес-аккаунт)"
)

// TelegramSender delivers a Telegram message.
type TelegramSender interface {
	SendMessage(ctx context.Context, req SendMessageRequest) error
}

// TelegramClient is a minimal Bot API client: sendMessage and getUpdates.
type TelegramClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// TelegramOption configures a TelegramClient.
type TelegramOption func(*TelegramClient)

// WithTelegramBaseURL points the client at another Bot API server.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(c *TelegramClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTelegramHTTPClient replaces the HTTP client.
func WithTelegramHTTPClient(h *http.Client) TelegramOption {
	return func(c *TelegramClient) { c.http = h }
}

// WithTelegramRate limits outbound sendMessage calls.
func WithTelegramRate(limit rate.Limit, burst int) TelegramOption {
	return func(c *TelegramClient) { c.limiter = rate.NewLimiter(limit, burst) }
}

// NewTelegramClient creates a Bot API client. By default outbound messages are
// limited to the Bot API's 30 messages per second.
func NewTelegramClient(token string, opts ...TelegramOption) *TelegramClient {
	c := &TelegramClient{
		baseURL: defaultTelegramAPI,
		token:   token,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(30), 30),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessageRequest is the sendMessage payload. ChatID may be a numeric id or
// an @channel name.
type SendMessageRequest struct {
	ChatID               string `json:"chat_id"`
	Text                 string `json:"text"`
	BusinessConnectionID string `json:"business_connection_id,omitempty"`
}

// Update is one entry of getUpdates or a webhook call.
type Update struct {
	UpdateID        int64            `json:"update_id"`
	Message         *TelegramMessage `json:"message,omitempty"`
	BusinessMessage *TelegramMessage `json:"business_message,omitempty"`
}

// TelegramMessage is the subset of the Bot API Message object used here.
type TelegramMessage struct {
	MessageID            int64         `json:"message_id"`
	From                 *TelegramUser `json:"from,omitempty"`
	Chat                 TelegramChat  `json:"chat"`
	Text                 string        `json:"text"`
	BusinessConnectionID string        `json:"business_connection_id,omitempty"`
}

type TelegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type TelegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (c *TelegramClient) SendMessage(ctx context.Context, req SendMessageRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "telegram: rate limit")
	}
	return c.call(ctx, "sendMessage", req, nil)
}

// GetUpdates long-polls for new messages starting at offset.
func (c *TelegramClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "business_message"},
	}

	// leave room for the server side long-poll timeout
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *TelegramClient) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "telegram %s: encode", method)
	}

	url := c.baseURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrapf(err, "telegram %s: request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// the URL carries the token, keep it out of the error
		return eris.Errorf("telegram %s: %s", method, redact(err.Error(), c.token))
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return eris.Wrapf(err, "telegram %s: decode status %d", method, resp.StatusCode)
	}
	if !api.OK {
		return eris.Errorf("telegram %s: %d %s", method, api.ErrorCode, api.Description)
	}
	if out != nil {
		if err := json.Unmarshal(api.Result, out); err != nil {
			return eris.Wrapf(err, "telegram %s: decode result", method)
		}
	}
	return nil
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}

// TelegramTurn is an inbound Telegram message mapped onto the dialog engine,
// together with the address to answer it at.
type TelegramTurn struct {
	Inbound Inbound
	Reply   SendMessageRequest
}

// ParseTelegramUpdate maps an update to a dialog turn. Group and channel
// messages, bot senders, commands and non-text messages are skipped.
func ParseTelegramUpdate(u Update) (TelegramTurn, bool) {
	msg, source := u.Message, SourceTelegramBot
	if msg == nil {
		msg, source = u.BusinessMessage, SourceTelegramBusiness
	}
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return TelegramTurn{}, false
	}
	if u.Message != nil && msg.Chat.Type != "private" {
		return TelegramTurn{}, false
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return TelegramTurn{}, false
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	return TelegramTurn{
		Inbound: Inbound{
			Key:         "tg:" + strconv.FormatInt(msg.From.ID, 10),
			Channel:     models.ChannelTelegram,
			Source:      source,
			Text:        text,
			ReplyTarget: chatID,
		},
		Reply: SendMessageRequest{
			ChatID:               chatID,
			BusinessConnectionID: msg.BusinessConnectionID,
		},
	}, true
}

// HandleTelegramUpdate runs one update through the engine and answers the
// visitor. Skipped updates return nil.
func HandleTelegramUpdate(ctx context.Context, engine *Engine, sender TelegramSender, u Update) error {
	turn, ok := ParseTelegramUpdate(u)
	if !ok {
		return nil
	}

	reply, err := engine.Handle(ctx, turn.Inbound)
	if err != nil {
		return eris.Wrapf(err, "telegram update %d", u.UpdateID)
	}

	turn.Reply.Text = reply.Text
	if err := sender.SendMessage(ctx, turn.Reply); err != nil {
		return eris.Wrapf(err, "telegram update %d: reply", u.UpdateID)
	}
	return nil
}
