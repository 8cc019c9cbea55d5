package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sandgallery/sandgallery-backend/api/routes"
	"github.com/sandgallery/sandgallery-backend/internal/admin"
	"github.com/sandgallery/sandgallery-backend/internal/artifacts"
	"github.com/sandgallery/sandgallery-backend/internal/content"
	"github.com/sandgallery/sandgallery-backend/internal/credits"
	"github.com/sandgallery/sandgallery-backend/internal/generation"
	"github.com/sandgallery/sandgallery-backend/internal/providers"
	pkgAuth "github.com/sandgallery/sandgallery-backend/pkg/auth"
	"github.com/sandgallery/sandgallery-backend/pkg/config"
	"github.com/sandgallery/sandgallery-backend/pkg/db"
	"github.com/sandgallery/sandgallery-backend/pkg/github"
	"github.com/sandgallery/sandgallery-backend/pkg/instance"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/metrics"
	"github.com/sandgallery/sandgallery-backend/pkg/migrate"
	"github.com/sandgallery/sandgallery-backend/pkg/redis"
	"github.com/sandgallery/sandgallery-backend/pkg/storage/blob"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	store, err := blob.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap blob store", err)
		os.Exit(1)
	}

	verifier, err := pkgAuth.NewVerifier(context.Background(), cfg.Auth)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity verifier", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	creditService, err := credits.NewService(credits.ServiceParams{
		Repo:          credits.NewRepository(dbClient.DB()),
		Tx:            dbClient,
		SignupCredits: cfg.Credits.SignupCredits,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credits service", err)
		os.Exit(1)
	}

	artifactService, err := artifacts.NewService(artifacts.ServiceParams{
		Repo:          artifacts.NewRepository(dbClient.DB()),
		Tx:            dbClient,
		Store:         store,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		QuotaBytes:    cfg.Storage.QuotaBytes,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create artifact service", err)
		os.Exit(1)
	}

	contentService, err := content.NewService(content.ServiceParams{
		Repo:      content.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		CacheSize: cfg.Cache.ContentSize,
		CacheTTL:  cfg.Cache.ContentTTL,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create content service", err)
		os.Exit(1)
	}

	providerStack, err := providers.NewStack(cfg.Providers, cfg.Video, store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create providers", err)
		os.Exit(1)
	}

	gateway, err := generation.NewGateway(generation.GatewayParams{
		Ledger:    creditService,
		Artifacts: artifactService,
		Adapter:   providerStack.Router,
		Metrics:   metrics.NewGenerationMetrics(registry),
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create generation gateway", err)
		os.Exit(1)
	}

	dispatcher, err := admin.NewDispatcher(admin.DispatcherParams{
		GitHub:    github.NewClient(cfg.GitHub),
		Text:      providerStack.Text,
		TaskLabel: cfg.Worker.QueueLabel,
		TextModel: cfg.Providers.DefaultTextModel,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin dispatcher", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"storage":  store.Bucket(),
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Blob:       store,
			Gatherer:   registry,
			Verifier:   verifier,
			Credits:    creditService,
			Artifacts:  artifactService,
			Content:    contentService,
			Gateway:    gateway,
			Dispatcher: dispatcher,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		// video analysis is the slowest call and bounds every response
		WriteTimeout: cfg.Video.Timeout,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
