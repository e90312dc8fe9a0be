package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

func readySession() *models.Session {
	s := models.NewSession("tg:42", fixedNow.Add(-time.Hour))
	s.Channel = models.ChannelTelegram
	s.Source = SourceTelegramBusiness
	s.Name = "Анна"
	s.Phone = "79261234567"
	s.Topic = "laser_epilation"
	s.Slots["zone"] = "Ноги"
	s.Slots["location"] = "Адлер"
	s.Transcript = []string{"Лазерная эпиляция ног", "Анна 89261234567"}
	s.MessageCount = 2
	return s
}

func newTestDispatcher(t *testing.T, n Notifier, j *MockJournal) *Dispatcher {
	t.Helper()
	var d *Dispatcher
	if j == nil {
		d = NewDispatcher(n, NewLeadFormatter(testCatalog(t)), nil, DispatcherConfig{Destination: "-100500"})
	} else {
		d = NewDispatcher(n, NewLeadFormatter(testCatalog(t)), j, DispatcherConfig{Destination: "-100500"})
	}
	return d.WithClock(func() time.Time { return fixedNow })
}

func TestDispatchMarksSessionEscalated(t *testing.T) {
	n := &MockNotifier{}
	j := &MockJournal{}
	n.On("Notify", mock.Anything, "-100500", mock.Anything).Return(nil).Once()
	j.On("Record", mock.Anything, mock.MatchedBy(func(l *models.Lead) bool {
		return l.SessionKey == "tg:42" &&
			l.Kind == "complete" &&
			l.Phone == "79261234567" &&
			l.Details == `{"location":"Адлер","zone":"Ноги"}` &&
			len(l.LeadID) == 36
	})).Return(nil).Once()

	d := newTestDispatcher(t, n, j)
	s := readySession()
	require.NoError(t, d.Dispatch(context.Background(), s, models.EscalationComplete))

	assert.True(t, s.Escalated)
	assert.Equal(t, models.EscalationComplete, s.EscalationKind)
	require.NotNil(t, s.EscalatedAt)
	assert.Equal(t, fixedNow, *s.EscalatedAt)
	n.AssertExpectations(t)
	j.AssertExpectations(t)
}

func TestDispatchGuards(t *testing.T) {
	n := &MockNotifier{}
	d := newTestDispatcher(t, n, nil)

	s := readySession()
	s.Escalated = true
	assert.ErrorIs(t, d.Dispatch(context.Background(), s, models.EscalationComplete), ErrAlreadyEscalated)

	s = readySession()
	s.Phone = ""
	assert.ErrorIs(t, d.Dispatch(context.Background(), s, models.EscalationComplete), ErrIncompleteContacts)

	s = readySession()
	assert.Error(t, d.Dispatch(context.Background(), s, models.EscalationNone))
	assert.False(t, s.Escalated)

	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchFailureLeavesSessionUntouched(t *testing.T) {
	n := &MockNotifier{}
	j := &MockJournal{}
	n.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()

	d := newTestDispatcher(t, n, j)
	s := readySession()
	before := s.Clone()

	err := d.Dispatch(context.Background(), s, models.EscalationComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Equal(t, before, s)
	j.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestDispatchIgnoresJournalFailure(t *testing.T) {
	n := &MockNotifier{}
	j := &MockJournal{}
	n.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	j.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down"))

	d := newTestDispatcher(t, n, j)
	s := readySession()
	require.NoError(t, d.Dispatch(context.Background(), s, models.EscalationComplete))
	assert.True(t, s.Escalated)
}

func TestDispatchBoundsNotifierWithTimeout(t *testing.T) {
	n := &MockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	d := NewDispatcher(n, NewLeadFormatter(testCatalog(t)), nil, DispatcherConfig{
		Destination: "-1",
		Timeout:     20 * time.Millisecond,
	})

	start := time.Now()
	err := d.Dispatch(context.Background(), readySession(), models.EscalationComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadline exceeded")
	assert.Less(t, time.Since(start), time.Second)
}

func TestLeadFormatterFormat(t *testing.T) {
	f := NewLeadFormatter(testCatalog(t))
	s := readySession()

	text := f.Format(s, models.EscalationComplete, fixedNow)
	assert.True(t, strings.HasPrefix(text, "🚨 НОВАЯ ЗАЯВКА"))
	for _, want := range []string{
		"👤 КЛИЕНТ: Анна",
		"📞 ТЕЛЕФОН: +79261234567",
		"⏰ ВРЕМЯ: 2025-06-01 12:30:00",
		"📋 КАТЕГОРИЯ ПРОЦЕДУРЫ: Лазерная косметология",
		"💉 ВЫБРАННАЯ ПРОЦЕДУРА: Лазерная эпиляция",
		"📍 ЗОНА: Ноги",
		"🏥 КЛИНИКА: Адлер",
		"💬 ПОЛНЫЙ ДИАЛОГ:\nЛазерная эпиляция ног\nАнна 89261234567",
		"🔗 ИСТОЧНИК: " + SourceTelegramBusiness,
	} {
		assert.Contains(t, text, want)
	}
	// zone comes before location, following the topic's slot order
	assert.Less(t, strings.Index(text, "ЗОНА"), strings.Index(text, "КЛИНИКА"))

	incomplete := f.Format(s, models.EscalationIncompleteTimeout, fixedNow)
	assert.True(t, strings.HasPrefix(incomplete, "⏰ НЕПОЛНАЯ ЗАЯВКА"))
}

func TestLeadFormatterEmail(t *testing.T) {
	f := NewLeadFormatter(testCatalog(t))
	s := readySession()

	assert.NotContains(t, f.Format(s, models.EscalationComplete, fixedNow), "EMAIL")

	s.Email = "anna@example.com"
	text := f.Format(s, models.EscalationComplete, fixedNow)
	assert.Contains(t, text, "📧 EMAIL: anna@example.com")
	assert.Less(t, strings.Index(text, "ТЕЛЕФОН"), strings.Index(text, "EMAIL"))

	lead := f.Lead("id-1", s, models.EscalationComplete, fixedNow)
	assert.Equal(t, "anna@example.com", lead.Email)
}

func TestLeadFormatterDefaultsSource(t *testing.T) {
	f := NewLeadFormatter(testCatalog(t))
	s := readySession()
	s.Source = ""
	s.Channel = models.ChannelWeb
	s.Topic = ""

	text := f.Format(s, models.EscalationComplete, fixedNow)
	assert.Contains(t, text, "🔗 ИСТОЧНИК: чат-бот сайта gladissochi.ru")
	assert.NotContains(t, text, "ВЫБРАННАЯ ПРОЦЕДУРА")
	// slots without a topic are listed by name
	assert.Less(t, strings.Index(text, "КЛИНИКА"), strings.Index(text, "ЗОНА"))
}
