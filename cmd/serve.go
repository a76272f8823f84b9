package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"huntzen-care/handlers"
	"huntzen-care/monitoring"
	"huntzen-care/utils"
)

func newServeCmd() *cobra.Command {
	var withConsumer bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(withConsumer)
		},
	}
	cmd.Flags().BoolVar(&withConsumer, "with-consumer", false, "also run the care events consumer in this process")
	return cmd
}

func runServe(withConsumer bool) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	in, err := openInfra(cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	monitoring.Init()
	svc := in.buildServices()
	if svc.Indexer != nil {
		ictx, icancel := withTimeout(10 * time.Second)
		if err := svc.Indexer.EnsureIndex(ictx); err != nil {
			log.Warn("practitioner index not ready", "error", err)
		}
		icancel()
	}

	var cache handlers.Pinger
	if in.redis != nil {
		cache = in.redis
	}
	h := handlers.NewHandler(svc, in.db, cache, log)
	router := handlers.NewRouter(h, svc.Auth, handlers.RouterOptions{
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if withConsumer {
		if cfg.KafkaBroker == "" {
			log.Warn("--with-consumer ignored: KAFKA_BROKER is not set")
		} else {
			c := newCareConsumer(in, svc)
			c.Start(ctx)
			defer c.Stop()
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server is running", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.CaptureError(err, map[string]interface{}{"stage": "shutdown"})
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
