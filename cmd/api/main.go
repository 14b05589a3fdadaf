package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edugen/internal/api"
	"edugen/internal/config"
	"edugen/internal/storage"
	"edugen/internal/util"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := util.EnsureDir(cfg.DataInRoot); err != nil {
		logger.Error("prepare data dir", "path", cfg.DataInRoot, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runRepo *storage.RunRepo
	if cfg.PostgresURL != "" {
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		runRepo = storage.NewRunRepo(db)
		if err := runRepo.EnsureSchema(ctx); err != nil {
			logger.Error("ensure schema", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("no postgres url configured, run history disabled")
	}

	server := api.NewServer(cfg, logger, runRepo)
	defer server.Close()

	httpServer := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: server.Routes(),
	}

	go func() {
		logger.Info("edugen api listening", "addr", cfg.APIAddr, "demoMode", cfg.DemoMode, "webhook", cfg.WebhookURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
