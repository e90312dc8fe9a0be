package jobs

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// KeepAlive pings the service's own public URL so free tier hosting does not
// put it to sleep.
type KeepAlive struct {
	baseURL  string
	interval time.Duration
	paths    []string
	client   *http.Client
}

// NewKeepAlive pings baseURL every interval (default 5m).
func NewKeepAlive(baseURL string, interval time.Duration) *KeepAlive {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &KeepAlive{
		baseURL:  strings.TrimRight(baseURL, "/"),
		interval: interval,
		paths:    []string{"/health", "/", "/ping"},
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (k *KeepAlive) Run(ctx context.Context) error {
	zap.L().Info("🔔 Keep-alive started", zap.String("url", k.baseURL), zap.Duration("interval", k.interval))

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			k.PingOnce(ctx)
		}
	}
}

// PingOnce requests every keep-alive path and returns how many answered 2xx.
func (k *KeepAlive) PingOnce(ctx context.Context) int {
	ok := 0
	for _, path := range k.paths {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+path, nil)
		if err != nil {
			zap.L().Warn("Keep-alive request", zap.Error(err))
			continue
		}
		resp, err := k.client.Do(req)
		if err != nil {
			zap.L().Debug("Keep-alive ping failed", zap.String("path", path), zap.Error(err))
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			ok++
		}
		zap.L().Debug("🔔 Keep-alive ping", zap.String("path", path), zap.Int("status", resp.StatusCode))
	}
	return ok
}
