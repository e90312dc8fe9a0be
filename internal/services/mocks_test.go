package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
	"github.com/Ananth-NQI/clinic-leadbot/internal/storage"
)

// MockNotifier implements Notifier for testing.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, destination, text string) error {
	args := m.Called(ctx, destination, text)
	return args.Error(0)
}

// MockGenerator implements ReplyGenerator for testing.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateReply(ctx context.Context, rc ReplyContext) (string, error) {
	args := m.Called(ctx, rc)
	return args.String(0), args.Error(1)
}

// MockNameExtractor implements NameExtractor for testing.
type MockNameExtractor struct {
	mock.Mock
}

func (m *MockNameExtractor) ExtractName(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

// MockCompletionClient implements CompletionClient for testing.
type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) Complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	args := m.Called(ctx, system, user, maxTokens)
	return args.String(0), args.Error(1)
}

// MockJournal implements storage.LeadJournal for testing.
type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) Record(ctx context.Context, lead *models.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// MockSender implements TelegramSender for testing.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendMessage(ctx context.Context, req SendMessageRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

var fixedNow = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

type engineFixture struct {
	engine   *Engine
	store    *storage.MemoryStore
	notifier *MockNotifier
	catalog  *catalog.Catalog
}

func newEngineFixture(t *testing.T, opts ...EngineOption) *engineFixture {
	t.Helper()
	c := testCatalog(t)
	store := storage.NewMemoryStore().WithClock(func() time.Time { return fixedNow })
	notifier := &MockNotifier{}
	dispatcher := NewDispatcher(notifier, NewLeadFormatter(c), nil, DispatcherConfig{
		Destination: "-100500",
		Timeout:     time.Second,
	}).WithClock(func() time.Time { return fixedNow })

	opts = append([]EngineOption{WithEngineClock(func() time.Time { return fixedNow })}, opts...)
	engine := NewEngine(store, c, dispatcher, EngineConfig{}, opts...)
	return &engineFixture{engine: engine, store: store, notifier: notifier, catalog: c}
}

func webInbound(text string) Inbound {
	return Inbound{Key: "web:10.0.0.1", Channel: models.ChannelWeb, Text: text}
}
