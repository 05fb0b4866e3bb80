package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VladimirNagibin/shop-list-bot/internal/command"
	"github.com/VladimirNagibin/shop-list-bot/internal/config"
	"github.com/VladimirNagibin/shop-list-bot/internal/importer"
	"github.com/VladimirNagibin/shop-list-bot/internal/metrics"
	"github.com/VladimirNagibin/shop-list-bot/internal/store"
	"github.com/VladimirNagibin/shop-list-bot/internal/store/postgres"
	"github.com/VladimirNagibin/shop-list-bot/internal/store/sqlite"
	"github.com/VladimirNagibin/shop-list-bot/internal/telegram"
	"github.com/VladimirNagibin/shop-list-bot/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.NewFromEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	recorder := metrics.NewRecorder()
	handler := command.NewHandler(st, importer.New(), recorder)

	bot, err := telegram.NewBot(cfg, handler, st, recorder)
	if err != nil {
		slog.Error("failed to initialize telegram bot", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	go bot.Run(ctx)

	<-ctx.Done()
	slog.Info("shutting down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
}

// newStore picks Postgres when DATABASE_URL is set, SQLite otherwise.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("storage initialized", "backend", "postgres")
		return st, nil
	}

	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("storage initialized", "backend", "sqlite", "database", cfg.DBPath)
	return st, nil
}
