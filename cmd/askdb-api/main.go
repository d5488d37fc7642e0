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

	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/cache"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/export"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/storage"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var objectStore storage.ObjectStore
	if cfg.ObjectStore.Enabled {
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore = store
	}

	provisioner := schema.NewProvisioner(cfg.Schema.FetchTimeout, objectStore, logger)
	schemaPath, err := provisioner.Ensure(ctx, cfg.Schema.SourceURL, cfg.Paths.SchemaPath)
	if err != nil {
		logger.Error("failed to provision schema script", slog.Any("error", err))
		os.Exit(1)
	}
	script, err := os.ReadFile(schemaPath)
	if err != nil {
		logger.Error("failed to read schema script", slog.Any("error", err))
		os.Exit(1)
	}
	schemaDDL, err := schema.ExtractDDL(string(script))
	if err != nil {
		logger.Error("schema script has no usable DDL", slog.Any("error", err))
		os.Exit(1)
	}

	bootstrapper := &database.Bootstrapper{
		Driver:     cfg.Database.Driver,
		Path:       cfg.Paths.DatabasePath,
		DSN:        cfg.Database.DSN,
		SchemaPath: schemaPath,
		MarkerPath: cfg.Paths.InitMarkerPath,
		Logger:     logger,
	}
	db, err := bootstrapper.Open(ctx)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	executor, err := query.NewExecutor(db)
	if err != nil {
		logger.Error("failed to initialize executor", slog.Any("error", err))
		os.Exit(1)
	}

	vanna, err := nl2sql.NewVannaClient(nl2sql.VannaConfig{
		BaseURL:       cfg.Primary.BaseURL,
		APIKey:        cfg.Primary.APIKey,
		Model:         cfg.Primary.Model,
		AllowDataPeek: cfg.Primary.AllowDataPeek,
		Timeout:       cfg.Primary.Timeout,
	}, executor)
	if err != nil {
		logger.Error("failed to initialize primary translator", slog.Any("error", err))
		os.Exit(1)
	}

	trainer := &nl2sql.Trainer{
		Provider:   vanna,
		MarkerPath: cfg.Paths.TrainedMarkerPath,
		Logger:     logger,
	}
	if err := trainer.TrainOnce(ctx, string(script)); err != nil {
		logger.Error("one-time training failed", slog.Any("error", err))
		os.Exit(1)
	}

	tiers := []nl2sql.Strategy{vanna}
	if cfg.Fallback.APIKey != "" {
		chat, err := nl2sql.NewChatStrategy(nl2sql.ChatConfig{
			BaseURL:     cfg.Fallback.BaseURL,
			APIKey:      cfg.Fallback.APIKey,
			Model:       cfg.Fallback.Model,
			Temperature: cfg.Fallback.Temperature,
			Timeout:     cfg.Fallback.Timeout,
		}, schemaDDL)
		if err != nil {
			logger.Error("failed to initialize fallback translator", slog.Any("error", err))
			os.Exit(1)
		}
		tiers = append(tiers, chat)
	} else {
		logger.Warn("fallback translator disabled: no API key configured")
	}

	translations, err := cache.New(&cache.FileStore{Path: cfg.Paths.CachePath})
	if err != nil {
		logger.Error("failed to load translation cache", slog.Any("error", err))
		os.Exit(1)
	}
	pipeline, err := nl2sql.NewPipeline(translations, tiers, logger)
	if err != nil {
		logger.Error("failed to assemble resolver pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:    logger,
		Resolver:  pipeline,
		Executor:  executor,
		SchemaDDL: schemaDDL,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabase(db),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if objectStore != nil {
		publisher, err := export.NewPublisher(objectStore, logger)
		if err != nil {
			logger.Error("failed to initialize export publisher", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Publisher = publisher
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
