package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"jiradash/internal/config"
	"jiradash/internal/dashboard"
	"jiradash/internal/server"
	"jiradash/internal/storage/sqlite"
	"jiradash/internal/tracker"
)

func main() {
	fs := pflag.NewFlagSet("jiradash", pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jiradash:", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("JIRA dashboard API", slog.String("jira", cfg.Jira.Server))

	var (
		journal  dashboard.Journal
		activity server.ActivityLog
	)
	if cfg.DBPath != "" {
		store, err := sqlite.Open(cfg.DBPath, logger)
		if err != nil {
			logger.Error("unable to open activity journal", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer store.Close()
		journal, activity = store, store
	} else {
		logger.Info("activity journal disabled")
	}

	client := tracker.New(cfg.Jira.Server, cfg.Jira.Email, cfg.Jira.APIToken, cfg.Tracker.Timeout, logger)
	svc := dashboard.New(client, journal, cfg, logger)
	srv := server.New(svc, activity, logger, server.Options{
		StaticDir:   cfg.StaticDir,
		CORSOrigins: cfg.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
