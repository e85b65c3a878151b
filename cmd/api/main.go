package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"autocurrency/internal/app"
	"autocurrency/internal/handler"
	"autocurrency/pkg/config"
	"autocurrency/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	log.Info("Starting app...")

	if cfg.Migrations.Enabled {
		if err := app.Migrate(cfg, log); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer a.Close()

	currencyHandler := handler.NewCurrencyHandler(a.Usecase, log)
	r := handler.NewRouter(currencyHandler, cfg.App.CORSOrigins, promhttp.Handler())

	if cfg.Scheduler.Enabled {
		if err := a.StartScheduler(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	if cfg.Scheduler.RunOnBoot {
		go func() {
			log.Info("Fetching currency rates on start...")
			if err := a.Usecase.RunFetch(ctx); err != nil {
				log.Errorf("Failed to fetch rates on start: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server starting on port %s...", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("Got shutdown signal...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error server shutdown:", err)
	}
	log.Info("Server stopped")

	if cfg.Scheduler.Enabled {
		<-a.Scheduler.Stop().Done()
		log.Info("Scheduler stopped")
	}

	log.Info("Gracefully shut down")
}
