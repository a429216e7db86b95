package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/phillip/contribution-pipeline-go/broadcast"
	config "github.com/phillip/contribution-pipeline-go/config"
	"github.com/phillip/contribution-pipeline-go/logger"
	middleware "github.com/phillip/contribution-pipeline-go/middleware"
	routes "github.com/phillip/contribution-pipeline-go/routes"
	"github.com/phillip/contribution-pipeline-go/services"
	"github.com/phillip/contribution-pipeline-go/store"
	"github.com/phillip/contribution-pipeline-go/utils"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and admin HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	cfg.Log = log

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()
	cfg.DB = db

	if cfg.Store.SeedCampaign {
		seeded, err := store.SeedDefaultCampaign(ctx, db)
		if err != nil {
			return fmt.Errorf("seed default campaign: %w", err)
		}
		if seeded != nil {
			log.Info().Str("campaign", seeded.ID.Hex()).Msg("seeded default campaign")
		}
	}

	var producer sarama.SyncProducer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = utils.NewKafkaProducer(cfg.Kafka.Brokers, cfg.HTTP.Timeout)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
	}

	componentLog := func(name string) *zerolog.Logger {
		l := log.With().Str("component", name).Logger()
		return &l
	}

	resolver := services.NewResolver(db, producer, cfg.HTTP.Timeout, componentLog("integrations"),
		services.WithWhatsAppOptions(utils.WithWhatsAppBaseURL(cfg.WhatsApp.GraphURL)))

	cfg.Hub = broadcast.NewHub(componentLog("broadcast"))
	defer cfg.Hub.Close()

	cfg.Ingestor = services.NewIngestor(db, cfg.Hub, resolver,
		services.WithLogger(componentLog("ingest")),
		services.WithRetry(cfg.Export.MaxAttempts, cfg.Export.RetryDelay),
		services.WithCallTimeout(cfg.HTTP.Timeout),
	)

	if cfg.Receipts.Enabled() {
		uploader, err := utils.NewCloudinaryUploader(cfg.Receipts.CloudName, cfg.Receipts.APIKey, cfg.Receipts.APISecret, cfg.Receipts.Folder)
		if err != nil {
			return fmt.Errorf("cloudinary: %w", err)
		}
		cfg.Uploader = uploader
	} else {
		log.Warn().Msg("cloudinary not configured, receipt uploads disabled")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(componentLog("http")))
	routes.SetupRoutes(r, cfg)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := store.NewMongo(connectCtx, cfg.Store.MongoURI, cfg.Store.DBName)
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return s, nil
	}
}
