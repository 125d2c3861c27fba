package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"editorial-desk/app"
	"editorial-desk/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logging, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logging, prometheus.DefaultRegisterer)
	if err != nil {
		logging.Fatal("Failed to start engine", zap.Error(err))
	}
	defer a.Close()
	logging.Info("Engine ready",
		zap.String("store", cfg.StoreDriver),
		zap.String("mail", cfg.MailProvider))

	// Setup Cron
	cronScheduler := cron.New()
	if cfg.CronEnabled {
		if err := a.Engine.Jobs.Schedule(cronScheduler); err != nil {
			logging.Fatal("Invalid job schedule", zap.Error(err))
		}
		cronScheduler.Start()
	} else {
		logging.Info("Cron disabled, jobs run only on demand")
	}

	router := newRouter(cfg, a.Store, a.Engine, promhttp.Handler(), logging)

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
	// wait for running jobs
	<-cronScheduler.Stop().Done()
}
