package jobs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
	"github.com/Ananth-NQI/clinic-leadbot/internal/storage"
)

// Sweeper defaults.
const (
	DefaultSweepInterval   = time.Minute
	DefaultIncompleteAfter = 10 * time.Minute
	DefaultRetention       = 2 * time.Hour
)

// LeadDispatcher escalates a session's lead. It is called while the session
// is locked by the store.
type LeadDispatcher interface {
	Dispatch(ctx context.Context, s *models.Session, kind models.EscalationKind) error
}

// SweeperConfig controls the expiry sweeper.
type SweeperConfig struct {
	Interval time.Duration
	// IncompleteAfter is how long a visitor with contacts may stay silent
	// before the lead is sent as incomplete.
	IncompleteAfter time.Duration
	// Retention is the maximum session age, counted from creation.
	Retention time.Duration
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Scanned   int
	Escalated int
	Failed    int
	Deleted   int
}

// Sweeper periodically sends incomplete leads and drops expired sessions.
type Sweeper struct {
	store      storage.Store
	dispatcher LeadDispatcher
	cfg        SweeperConfig
	nowFunc    func() time.Time
}

// NewSweeper creates a sweeper; zero config values fall back to the defaults.
func NewSweeper(store storage.Store, dispatcher LeadDispatcher, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.IncompleteAfter <= 0 {
		cfg.IncompleteAfter = DefaultIncompleteAfter
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Sweeper{store: store, dispatcher: dispatcher, cfg: cfg, nowFunc: time.Now}
}

// WithClock overrides the sweeper clock.
func (w *Sweeper) WithClock(now func() time.Time) *Sweeper {
	w.nowFunc = now
	return w
}

// Run sweeps on every tick until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) error {
	zap.L().Info("🧹 Session sweeper started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("incomplete_after", w.cfg.IncompleteAfter),
		zap.Duration("retention", w.cfg.Retention),
	)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("⏹️  Session sweeper stopped")
			return nil
		case <-ticker.C:
			stats := w.SweepOnce(ctx)
			if stats.Escalated+stats.Failed+stats.Deleted > 0 {
				zap.L().Info("🧹 Sweep finished",
					zap.Int("scanned", stats.Scanned),
					zap.Int("escalated", stats.Escalated),
					zap.Int("failed", stats.Failed),
					zap.Int("deleted", stats.Deleted),
				)
			}
		}
	}
}

var errNotEligible = errors.New("not eligible for fallback")

// SweepOnce performs a single pass over the store.
func (w *Sweeper) SweepOnce(ctx context.Context) SweepStats {
	var stats SweepStats
	for _, key := range w.store.Keys() {
		if ctx.Err() != nil {
			return stats
		}
		stats.Scanned++
		now := w.nowFunc()

		_, err := w.store.Modify(key, func(s *models.Session) error {
			if s.Escalated || !s.HasContacts() || s.Idle(now) < w.cfg.IncompleteAfter {
				return errNotEligible
			}
			if err := w.dispatcher.Dispatch(ctx, s, models.EscalationIncompleteTimeout); err != nil {
				return err
			}
			s.Advance(models.StageCompleted)
			return nil
		})
		switch {
		case err == nil:
			stats.Escalated++
			zap.L().Info("⏰ Incomplete lead sent after silence", zap.String("session", key))
		case errors.Is(err, errNotEligible), errors.Is(err, storage.ErrSessionNotFound):
		default:
			stats.Failed++
			zap.L().Warn("Fallback escalation failed, will retry", zap.String("session", key), zap.Error(err))
		}

		if w.store.DeleteIf(key, func(s *models.Session) bool { return s.Age(now) > w.cfg.Retention }) {
			stats.Deleted++
			zap.L().Debug("Session expired", zap.String("session", key))
		}
	}
	return stats
}
