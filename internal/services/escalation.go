package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
	"github.com/Ananth-NQI/clinic-leadbot/internal/storage"
)

var (
	// ErrAlreadyEscalated guards the at-most-once dispatch.
	ErrAlreadyEscalated = eris.New("lead already escalated")
	// ErrIncompleteContacts is returned when name or phone is missing.
	ErrIncompleteContacts = eris.New("lead needs both name and phone")
)

const defaultNotifyTimeout = 10 * time.Second

// DispatcherConfig configures lead delivery.
type DispatcherConfig struct {
	Destination string        // chat id or phone the notifier delivers to
	Timeout     time.Duration // per delivery attempt
}

// Dispatcher hands qualified leads over to managers.
//
// Dispatch must run inside a store mutation of the session: the per-session
// lock turns the escalated check and the flag update into one atomic step.
type Dispatcher struct {
	notifier  Notifier
	formatter *LeadFormatter
	journal   storage.LeadJournal
	cfg       DispatcherConfig
	nowFunc   func() time.Time
}

// NewDispatcher creates a dispatcher. A nil journal disables lead journaling.
func NewDispatcher(notifier Notifier, formatter *LeadFormatter, journal storage.LeadJournal, cfg DispatcherConfig) *Dispatcher {
	if journal == nil {
		journal = storage.NopJournal{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultNotifyTimeout
	}
	return &Dispatcher{
		notifier:  notifier,
		formatter: formatter,
		journal:   journal,
		cfg:       cfg,
		nowFunc:   time.Now,
	}
}

// WithClock overrides the dispatch timestamp source.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.nowFunc = now
	return d
}

// Dispatch formats and delivers the lead, then marks the session escalated.
// On failure the session is left untouched so a later turn can retry.
func (d *Dispatcher) Dispatch(ctx context.Context, s *models.Session, kind models.EscalationKind) error {
	if s.Escalated {
		return ErrAlreadyEscalated
	}
	if !s.HasContacts() {
		return ErrIncompleteContacts
	}
	if kind == models.EscalationNone {
		return eris.New("dispatch: escalation kind is required")
	}

	now := d.nowFunc()
	text := d.formatter.Format(s, kind, now)

	notifyCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	if err := d.notifier.Notify(notifyCtx, d.cfg.Destination, text); err != nil {
		return eris.Wrapf(err, "dispatch %s lead for %s", kind, s.Key)
	}

	s.Escalated = true
	s.EscalationKind = kind
	s.EscalatedAt = &now

	leadID := uuid.NewString()
	zap.L().Info("📨 Lead dispatched",
		zap.String("lead_id", leadID),
		zap.String("session", s.Key),
		zap.String("kind", kind.String()),
		zap.String("topic", s.Topic),
	)

	journalCtx, cancelJournal := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancelJournal()
	if err := d.journal.Record(journalCtx, d.formatter.Lead(leadID, s, kind, now)); err != nil {
		zap.L().Warn("⚠️ Failed to journal lead", zap.String("lead_id", leadID), zap.Error(err))
	}
	return nil
}
