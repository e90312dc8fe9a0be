package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
	"github.com/Ananth-NQI/clinic-leadbot/internal/services"
	"github.com/Ananth-NQI/clinic-leadbot/internal/storage"
)

type recordingNotifier struct {
	mu    sync.Mutex
	leads []string
}

func (n *recordingNotifier) Notify(_ context.Context, _, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leads = append(n.leads, text)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.leads)
}

type sentMessage struct {
	to, text string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (s *recordingSender) SendWhatsAppMessage(_ context.Context, to, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{to, message})
	return nil
}

func (s *recordingSender) SendMessage(_ context.Context, req services.SendMessageRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{req.ChatID, req.Text})
	return nil
}

type fixture struct {
	app      *fiber.App
	store    *storage.MemoryStore
	notifier *recordingNotifier
	sender   *recordingSender
}

func newFixture(t *testing.T, pingDB func() error) *fixture {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	dispatcher := services.NewDispatcher(notifier, services.NewLeadFormatter(c), nil, services.DispatcherConfig{
		Destination: "-100500",
		Timeout:     time.Second,
	})
	engine := services.NewEngine(store, c, dispatcher, services.EngineConfig{})
	sender := &recordingSender{}

	chat := NewChatHandler(engine)
	wa := NewWhatsAppHandler(engine, sender)
	tg := NewTelegramHandler(engine, sender)
	health := NewHealthHandler("test", store, ServiceStatus{Generator: "rules", Notifier: "telegram"}, pingDB)

	app := fiber.New()
	app.Post("/chat", chat.Chat)
	app.Post("/webhook/whatsapp", wa.HandleWebhook)
	app.Post("/test/whatsapp", wa.HandleTestWebhook)
	app.Post("/webhook/telegram", tg.HandleWebhook)
	app.Get("/health", health.Check)
	app.Head("/health", health.Check)
	app.Get("/ping", health.Ping)
	app.Get("/", health.Root)

	return &fixture{app: app, store: store, notifier: notifier, sender: sender}
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		return nil
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestChatReplies(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := postJSON(t, f.app, "/chat", `{"message":"Здравствуйте"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["reply"])
	assert.Equal(t, 1, f.store.Len())
}

func TestChatEscalatesOnce(t *testing.T) {
	f := newFixture(t, nil)

	_, body := postJSON(t, f.app, "/chat", `{"message":"Меня зовут Анна, телефон 89261234567"}`)
	assert.Contains(t, body["reply"], "заявка передана")
	_, _ = postJSON(t, f.app, "/chat", `{"message":"Спасибо!"}`)

	assert.Equal(t, 1, f.notifier.count())
}

func TestChatRejectsInvalidPayloads(t *testing.T) {
	f := newFixture(t, nil)

	for name, body := range map[string]string{
		"invalid json": `{"message":`,
		"empty":        `{"message":"   "}`,
		"too long":     `{"message":"` + strings.Repeat("а", services.MaxMessageRunes+1) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, out := postJSON(t, f.app, "/chat", body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
	assert.Equal(t, 0, f.store.Len())
}

func TestWhatsAppWebhook(t *testing.T) {
	f := newFixture(t, nil)

	form := url.Values{"From": {"whatsapp:+79261234567"}, "Body": {"Хочу на чистку лица"}, "MessageSid": {"SM1"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "79261234567", f.sender.sent[0].to)
	assert.NotEmpty(t, f.sender.sent[0].text)

	s, err := f.store.Get("wa:79261234567")
	require.NoError(t, err)
	assert.Equal(t, SourceWhatsApp, s.Source)
}

func TestWhatsAppStatusCallbackIsAcknowledged(t *testing.T) {
	f := newFixture(t, nil)

	form := url.Values{"MessageSid": {"SM1"}, "MessageStatus": {"delivered"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, f.sender.sent)
	assert.Equal(t, 0, f.store.Len())
}

func TestWhatsAppTestWebhook(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := postJSON(t, f.app, "/test/whatsapp", `{"from":"+79280000000","message":"Сколько стоит ботокс?"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["response"])
	assert.Empty(t, f.sender.sent)
}

func TestTelegramWebhook(t *testing.T) {
	f := newFixture(t, nil)

	update := `{"update_id":5,"message":{"message_id":1,"from":{"id":42,"first_name":"Анна"},"chat":{"id":42,"type":"private"},"text":"Привет"}}`
	resp, _ := postJSON(t, f.app, "/webhook/telegram", update)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "42", f.sender.sent[0].to)

	resp, _ = postJSON(t, f.app, "/webhook/telegram", `{"update_id":`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	_, _ = postJSON(t, f.app, "/chat", `{"message":"Здравствуйте"}`)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["sessions_count"])
	assert.Equal(t, "not configured", body["database"])
	assert.Equal(t, "rules", body["services"].(map[string]any)["generator"])

	resp, err = f.app.Test(httptest.NewRequest(http.MethodHead, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, "pong", decode(t, resp)["status"])

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "running", decode(t, resp)["status"])
}

func TestHealthReportsDatabaseFailure(t *testing.T) {
	f := newFixture(t, func() error { return errors.New("connection refused") })

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", decode(t, resp)["status"])
}
