// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/Shivanand-hulikatti/event-booking/internal/handler"
	"github.com/Shivanand-hulikatti/event-booking/internal/i18n"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/notifier"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// stores groups the three store components behind the service interfaces.
type stores struct {
	users    auth.UserStore
	events   service.EventStore
	bookings service.BookingStore
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// ── 1. Open the store ─────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// ── 2. Wire up layers ────────────────────────────────────────────────
	logSink := notifier.NewLogNotifier(logger)
	activity := notifier.Multi{logSink}
	if cfg.DiscordBotToken != "" {
		discord, err := notifier.NewDiscordNotifier(cfg.DiscordBotToken, cfg.DiscordChannelID)
		if err != nil {
			logger.Warn("discord notifier not initialized", "err", err)
		} else {
			activity = append(activity, discord)
			logger.Info("discord notifier enabled", "channel_id", cfg.DiscordChannelID)
		}
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL, cfg.ResetTokenTTL, nil)
	users := auth.NewService(st.users, tokens, auth.NewHasher(0), logSink, logger)
	bookings := service.NewBookingService(st.events, st.bookings, activity, service.DefaultRetry, logger)
	catalog := service.NewCatalogService(st.events, service.DefaultRetry, logger, nil)
	tr := i18n.NewTranslator(cfg.DefaultLocale, logger)

	if cfg.AdminUsername != "" {
		admin, err := users.EnsureAdmin(ctx, model.RegisterRequest{
			Username: cfg.AdminUsername,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		logger.Info("admin account ready", "username", admin.Username)
	}

	// ── 3. Build the router ───────────────────────────────────────────────
	h := handler.New(bookings, catalog, users, tr, logger)
	router := h.Routes(handler.RouterOptions{
		CORSOrigins:       cfg.CORSOrigins,
		AuthRatePerMinute: cfg.AuthRatePerMinute,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("opened sqlite store", "path", cfg.SQLitePath)
		opts := sqlite.Options{TxTimeout: cfg.TxTimeout}
		return &stores{
			users:    sqlite.NewUserRepository(db, opts),
			events:   sqlite.NewEventRepository(db, opts),
			bookings: sqlite.NewBookingRepository(db, opts),
			close: func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			},
		}, nil

	default:
		pool, err := database.Open(ctx, cfg.DatabaseURL(), database.PoolOptions{}, cfg.RunMigrations, logger)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		opts := repository.Options{TxTimeout: cfg.TxTimeout, LockTimeout: cfg.LockTimeout}
		return &stores{
			users:    repository.NewUserRepository(pool, opts),
			events:   repository.NewEventRepository(pool, opts),
			bookings: repository.NewBookingRepository(pool, opts),
			close:    pool.Close,
		}, nil
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
