// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/seminars/internal/clock"
	"github.com/Shivanand-hulikatti/seminars/internal/config"
	"github.com/Shivanand-hulikatti/seminars/internal/database"
	"github.com/Shivanand-hulikatti/seminars/internal/handler"
	"github.com/Shivanand-hulikatti/seminars/internal/logger"
	"github.com/Shivanand-hulikatti/seminars/internal/queue"
	"github.com/Shivanand-hulikatti/seminars/internal/repository"
	"github.com/Shivanand-hulikatti/seminars/internal/scope"
	"github.com/Shivanand-hulikatti/seminars/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.LogLevel, cfg.App.IsDevelopment())
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Info("connected to PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	// ── 2. Wire up layers ────────────────────────────────────────────────
	loc, err := cfg.Seminars.Location()
	if err != nil {
		return err
	}
	eventSvc := service.NewEventService(service.Deps{
		Events:        repository.NewEventRepository(pool),
		Categories:    repository.NewCategoryRepository(pool),
		Registrations: repository.NewRegistrationRepository(pool),
		Relations:     repository.NewRelationIndex(pool),
		Queue:         queue.NewManager(repository.NewQueueTx(pool), log.Named("queue")),
		Scope:         scope.New(repository.NewPageRepository(pool)),
		Clock:         clock.System{Location: loc},
		Log:           log.Named("service"),
		StoragePIDs:   cfg.Seminars.StoragePIDs,
		Recursion:     cfg.Seminars.Recursion,
	})
	eventHandler := handler.NewEventHandler(eventSvc, log.Named("http"))

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger(log.Named("access")))
	r.Use(handler.CORS())
	eventHandler.Routes(r)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
