package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bodari/config"
	"bodari/internal/bot"
	"bodari/internal/db"
	"bodari/internal/gpt"
	"bodari/internal/metrics"
	"bodari/internal/pantry"
	"bodari/internal/planner"
	"bodari/internal/recipes"
	"bodari/internal/server"
	"bodari/internal/session"
	"bodari/internal/tracker"
	"bodari/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatalw("Failed to load config", "error", err)
	}

	l := logger.New(cfg.Log.Level)
	if cfg.App.Development {
		l = logger.NewDevelopment()
	}
	defer func() { _ = l.Sync() }()

	l.Info("Starting Bodari nutrition bot...")

	if err := cfg.Validate(); err != nil {
		l.Fatalw("Invalid configuration", "error", err)
	}
	loc, err := cfg.App.Location()
	if err != nil {
		l.Fatalw("Invalid configuration", "error", err)
	}

	// Initialize database connection with retry
	var database *db.PostgresDB
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		database, err = db.NewPostgresDB(cfg.DB)
		if err == nil {
			break
		}
		l.Warnw("Failed to connect to database, retrying...", "attempt", i+1, "error", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if database == nil {
		l.Fatalw("Failed to connect to database after multiple attempts", "error", err)
	}
	defer database.Close()

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(bootCtx); err != nil {
		bootCancel()
		l.Fatalw("Failed to prepare database schema", "error", err)
	}

	m := metrics.New()
	gptClient := gpt.NewClient(cfg.GPT, l).WithMetrics(m)

	catalogue := recipes.NewService(database, l)
	if cfg.App.SeedRecipes {
		n, err := catalogue.SeedDefaults(bootCtx)
		if err != nil {
			l.Warnw("Failed to seed default recipes", "error", err)
		} else if n > 0 {
			l.Infow("Seeded default recipes", "count", n)
		}
	}

	var sessions session.Store
	if cfg.Redis.Enabled {
		redisStore, err := session.NewRedisStore(bootCtx, cfg.Redis)
		if err != nil {
			bootCancel()
			l.Fatalw("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		sessions = session.NewMemoryStore(cfg.Redis.SessionTTL)
	}
	bootCancel()

	ledger := pantry.NewLedger(database)
	coordinator := planner.NewCoordinator(database, database, ledger, gptClient, l, planner.WithLocation(loc))
	svc := tracker.NewService(tracker.Deps{
		Store:     database,
		Estimator: gptClient,
		Planner:   coordinator,
		Pantry:    ledger,
		Catalogue: catalogue,
		Metrics:   m,
		Logger:    l,
		Location:  loc,
	})

	telegramBot, err := bot.NewTelegramBot(cfg.Telegram, svc, sessions, l)
	if err != nil {
		l.Fatalw("Failed to create Telegram bot", "error", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	l.Info("Starting Telegram bot...")
	if err := telegramBot.Start(ctx); err != nil {
		l.Fatalw("Failed to start Telegram bot", "error", err)
	}

	httpServer := server.NewServer(cfg.Server, svc, database, m, l)
	go func() {
		if err := httpServer.Start(); err != nil {
			l.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		l.Errorw("Error during HTTP server shutdown", "error", err)
	}
	if err := telegramBot.Stop(shutdownCtx); err != nil {
		l.Errorw("Error during bot shutdown", "error", err)
	}
	stop()

	l.Info("Bot stopped successfully")
}
