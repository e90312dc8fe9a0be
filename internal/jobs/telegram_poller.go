package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/clinic-leadbot/internal/services"
)

// UpdateSource fetches Telegram updates.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]services.Update, error)
}

// UpdateHandler processes one Telegram update.
type UpdateHandler func(ctx context.Context, u services.Update) error

// TelegramPoller long-polls the Bot API and hands every update to a handler.
type TelegramPoller struct {
	source  UpdateSource
	handle  UpdateHandler
	timeout time.Duration
	backoff time.Duration
}

// NewTelegramPoller creates a poller with a 30s long-poll timeout and a 5s
// pause after failed polls.
func NewTelegramPoller(source UpdateSource, handle UpdateHandler) *TelegramPoller {
	return &TelegramPoller{
		source:  source,
		handle:  handle,
		timeout: 30 * time.Second,
		backoff: 5 * time.Second,
	}
}

// WithTimings overrides the long-poll timeout and the error backoff.
func (p *TelegramPoller) WithTimings(timeout, backoff time.Duration) *TelegramPoller {
	p.timeout = timeout
	p.backoff = backoff
	return p
}

// Run polls until ctx is cancelled. Updates are handled in order, so
// messages of one visitor keep their sequence.
func (p *TelegramPoller) Run(ctx context.Context) error {
	zap.L().Info("🤖 Telegram polling started")

	var offset int64
	for {
		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if ctx.Err() != nil {
			zap.L().Info("⏹️  Telegram polling stopped")
			return nil
		}
		if err != nil {
			zap.L().Warn("Telegram getUpdates failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if err := p.handle(ctx, u); err != nil {
				zap.L().Error("❌ Telegram update failed", zap.Int64("update_id", u.UpdateID), zap.Error(err))
			}
		}
	}
}
