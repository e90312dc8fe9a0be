package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/clinic-leadbot/database"
	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
	"github.com/Ananth-NQI/clinic-leadbot/internal/config"
	"github.com/Ananth-NQI/clinic-leadbot/internal/handlers"
	"github.com/Ananth-NQI/clinic-leadbot/internal/jobs"
	"github.com/Ananth-NQI/clinic-leadbot/internal/routes"
	"github.com/Ananth-NQI/clinic-leadbot/internal/services"
	"github.com/Ananth-NQI/clinic-leadbot/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, Telegram polling and the session sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := newServer(cfg)
		if err != nil {
			return err
		}
		defer srv.close()

		return srv.run(ctx)
	},
}

// server is the wired application.
type server struct {
	cfg     *config.Config
	app     *fiber.App
	db      *gorm.DB
	sweeper *jobs.Sweeper
	poller  *jobs.TelegramPoller
	keep    *jobs.KeepAlive
	status  handlers.ServiceStatus
}

func newServer(cfg *config.Config) (*server, error) {
	c, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	srv := &server{cfg: cfg}
	store := storage.NewMemoryStore()

	var telegram *services.TelegramClient
	if cfg.Telegram.Token != "" {
		telegram = services.NewTelegramClient(cfg.Telegram.Token, services.WithTelegramBaseURL(cfg.Telegram.BaseURL))
	}

	var twilio *services.TwilioService
	if cfg.Twilio.Configured() {
		twilio, err = services.NewTwilioService(services.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.WhatsAppFrom,
		})
		if err != nil {
			return nil, err
		}
		zap.L().Info("✅ Twilio service initialized")
	} else {
		zap.L().Warn("⚠️  Twilio credentials not found, WhatsApp channel disabled")
	}

	notifier, destination, err := selectNotifier(cfg, telegram, twilio)
	if err != nil {
		return nil, err
	}

	var journal storage.LeadJournal
	if cfg.Database.URL != "" {
		zap.L().Info("📦 Connecting to PostgreSQL lead journal...")
		srv.db, err = database.Connect(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		journal = storage.NewGormJournal(srv.db)
	}

	dispatcher := services.NewDispatcher(notifier, services.NewLeadFormatter(c), journal, services.DispatcherConfig{
		Destination: destination,
		Timeout:     cfg.Notify.Timeout,
	})

	var opts []services.EngineOption
	generator := "rules"
	if cfg.Anthropic.Key != "" {
		assistant := services.NewAssistant(services.NewAnthropicClient(cfg.Anthropic.Key, cfg.Anthropic.Model), c)
		opts = append(opts, services.WithReplyGenerator(assistant), services.WithNameExtractor(assistant))
		generator = "anthropic"
	}
	engine := services.NewEngine(store, c, dispatcher, services.EngineConfig{
		DetailsTurns:     cfg.Session.DetailsTurns,
		MessageThreshold: cfg.Session.MessageThreshold,
		GeneratorTimeout: cfg.Anthropic.Timeout,
	}, opts...)

	srv.sweeper = jobs.NewSweeper(store, dispatcher, jobs.SweeperConfig{
		Interval:        cfg.Session.SweepInterval,
		IncompleteAfter: cfg.Session.IncompleteAfter,
		Retention:       cfg.Session.Retention,
	})

	telegramMode := config.TelegramOff
	if telegram != nil {
		telegramMode = cfg.Telegram.Mode
	}
	h := routes.Handlers{Chat: handlers.NewChatHandler(engine)}
	switch telegramMode {
	case config.TelegramPolling:
		srv.poller = jobs.NewTelegramPoller(telegram, func(ctx context.Context, u services.Update) error {
			return services.HandleTelegramUpdate(ctx, engine, telegram, u)
		})
	case config.TelegramWebhook:
		h.Telegram = handlers.NewTelegramHandler(engine, telegram)
	}
	if twilio != nil {
		h.WhatsApp = handlers.NewWhatsAppHandler(engine, twilio)
	}

	if strings.HasPrefix(cfg.KeepAlive.URL, "http") {
		srv.keep = jobs.NewKeepAlive(cfg.KeepAlive.URL, cfg.KeepAlive.Interval)
	}

	srv.status = handlers.ServiceStatus{
		Generator: generator,
		Notifier:  cfg.NotifyChannel(),
		Telegram:  telegramMode,
		WhatsApp:  twilio != nil,
		Journal:   srv.db != nil,
	}
	var pingDB func() error
	if srv.db != nil {
		pingDB = func() error { return database.Ping(srv.db) }
	}
	h.Health = handlers.NewHealthHandler(version, store, srv.status, pingDB)

	opt := routes.Options{
		TwilioAuthToken:      cfg.Twilio.AuthToken,
		SkipTwilioValidation: cfg.Twilio.DisableValidation,
		TelegramSecret:       cfg.Telegram.WebhookSecret,
		StaticDir:            cfg.Server.StaticDir,
		Development:          cfg.IsDevelopment(),
		RequestLog:           true,
		TrustedProxies:       cfg.Server.TrustedProxies,
	}
	srv.app = routes.NewApp("GLADIS Lead Bot v"+version, opt)
	routes.SetupRoutes(srv.app, h, opt)

	return srv, nil
}

// selectNotifier returns the lead notifier and its destination address.
func selectNotifier(cfg *config.Config, telegram *services.TelegramClient, twilio *services.TwilioService) (services.Notifier, string, error) {
	switch cfg.NotifyChannel() {
	case config.NotifyTelegram:
		if telegram == nil {
			return nil, "", eris.New("telegram notifications need telegram.token")
		}
		return services.NewTelegramNotifier(telegram), cfg.Telegram.ChatID, nil
	case config.NotifyWhatsApp:
		if twilio == nil {
			return nil, "", eris.New("whatsapp notifications need twilio credentials")
		}
		return services.NewWhatsAppNotifier(twilio), cfg.Notify.WhatsAppTo, nil
	default:
		zap.L().Warn("⚠️  No lead channel configured, leads are only logged")
		return services.LogNotifier{}, "", nil
	}
}

func (s *server) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	g.Go(func() error {
		if err := s.app.Listen(addr); err != nil {
			return eris.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		zap.L().Info("🛑 Gracefully shutting down...")
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	})
	g.Go(func() error { return s.sweeper.Run(ctx) })
	if s.poller != nil {
		g.Go(func() error { return s.poller.Run(ctx) })
	}
	if s.keep != nil {
		g.Go(func() error { return s.keep.Run(ctx) })
	}

	s.banner(addr)
	return g.Wait()
}

func (s *server) banner(addr string) {
	log := zap.L()
	log.Info("========================================")
	log.Info("🏥 GLADIS Lead Bot starting", zap.String("addr", addr), zap.String("version", version))
	log.Info("🤖 Replies", zap.String("generator", s.status.Generator))
	log.Info("📤 Leads", zap.String("notifier", s.status.Notifier), zap.Bool("journal", s.status.Journal))
	log.Info("📱 Channels",
		zap.String("telegram", s.status.Telegram),
		zap.Bool("whatsapp", s.status.WhatsApp),
		zap.Bool("keepalive", s.keep != nil),
	)
	log.Info("========================================")
}

func (s *server) close() {
	if s.db == nil {
		return
	}
	if err := database.Close(s.db); err != nil {
		zap.L().Warn("Closing lead journal", zap.Error(err))
	}
}
