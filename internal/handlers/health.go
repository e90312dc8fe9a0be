package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/clinic-leadbot/internal/storage"
)

// ServiceStatus describes which collaborators are wired.
type ServiceStatus struct {
	Generator string `json:"generator"` // "anthropic" or "rules"
	Notifier  string `json:"notifier"`  // "telegram", "whatsapp" or "log"
	Telegram  string `json:"telegram"`  // inbound mode
	WhatsApp  bool   `json:"whatsapp"`
	Journal   bool   `json:"journal"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	store   storage.Store
	status  ServiceStatus
	pingDB  func() error
	nowFunc func() time.Time
}

// NewHealthHandler creates a new health handler. pingDB may be nil when no
// database is configured.
func NewHealthHandler(version string, store storage.Store, status ServiceStatus, pingDB func() error) *HealthHandler {
	return &HealthHandler{
		Version: version,
		store:   store,
		status:  status,
		pingDB:  pingDB,
		nowFunc: time.Now,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status, code := "healthy", fiber.StatusOK
	database := "not configured"
	if h.pingDB != nil {
		database = "connected"
		if err := h.pingDB(); err != nil {
			status, code = "unhealthy", fiber.StatusServiceUnavailable
			database = "error: " + err.Error()
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":         status,
		"version":        h.Version,
		"sessions_count": h.store.Len(),
		"database":       database,
		"services":       h.status,
		"timestamp":      h.nowFunc().Format(time.RFC3339),
	})
}

// Ping answers keep-alive requests.
func (h *HealthHandler) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "pong",
		"service":   "gladis-leadbot",
		"timestamp": h.nowFunc().Format(time.RFC3339),
	})
}

// Root describes the service and its endpoints.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":     "GLADIS Lead Bot",
		"description": "Чат-бот для клиники эстетической медицины GLADIS в Сочи",
		"status":      "running",
		"version":     h.Version,
		"endpoints": fiber.Map{
			"chat":   fiber.Map{"url": "/chat", "method": "POST"},
			"health": fiber.Map{"url": "/health", "method": "GET, HEAD"},
			"ping":   fiber.Map{"url": "/ping", "method": "GET"},
		},
	})
}
