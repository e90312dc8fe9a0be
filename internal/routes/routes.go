package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/clinic-leadbot/internal/handlers"
	"github.com/Ananth-NQI/clinic-leadbot/internal/middleware"
)

// Handlers are the endpoints to mount. Nil channel handlers are skipped.
type Handlers struct {
	Chat     *handlers.ChatHandler
	Health   *handlers.HealthHandler
	WhatsApp *handlers.WhatsAppHandler
	Telegram *handlers.TelegramHandler
}

// Options control webhook protection, proxies and static files.
type Options struct {
	TwilioAuthToken string
	// SkipTwilioValidation accepts unsigned webhooks, e.g. through ngrok.
	SkipTwilioValidation bool
	TelegramSecret       string
	StaticDir            string
	Development          bool
	RequestLog           bool
	// TrustedProxies may set X-Forwarded-For and X-Forwarded-Proto.
	// Empty trusts no peer.
	TrustedProxies []string
}

// NewApp creates the fiber app with the shared middleware stack.
func NewApp(name string, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: name,

		// forwarded headers count only when the peer is a trusted proxy
		EnableTrustedProxyCheck: true,
		TrustedProxies:          opts.TrustedProxies,
		EnableIPValidation:      true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	if opts.RequestLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, HEAD, POST, OPTIONS",
	}))
	return app
}

// SetupRoutes configures all routes
func SetupRoutes(app *fiber.App, h Handlers, opts Options) {
	app.Get("/", h.Health.Root)
	app.Get("/health", h.Health.Check)
	app.Head("/health", h.Health.Check)
	app.Get("/ping", h.Health.Ping)

	app.Post("/chat", h.Chat.Chat)

	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			app.Static("/static", opts.StaticDir)
		}
	}

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	if h.WhatsApp != nil {
		if opts.Development || opts.SkipTwilioValidation {
			// Development: Skip validation for ngrok
			webhooks.Post("/whatsapp", h.WhatsApp.HandleWebhook)
			zap.L().Warn("⚠️  WhatsApp webhook validation DISABLED")
		} else {
			webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(opts.TwilioAuthToken), h.WhatsApp.HandleWebhook)
		}

		// ========== TEST ROUTES (Development Only) ==========
		if opts.Development {
			app.Post("/test/whatsapp", h.WhatsApp.HandleTestWebhook)
		}
	}

	if h.Telegram != nil {
		webhooks.Post("/telegram", middleware.ValidateTelegramSecret(opts.TelegramSecret), h.Telegram.HandleWebhook)
	}
}
