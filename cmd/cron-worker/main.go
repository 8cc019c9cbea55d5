package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sandgallery/sandgallery-backend/internal/automation"
	"github.com/sandgallery/sandgallery-backend/internal/content"
	"github.com/sandgallery/sandgallery-backend/internal/cron"
	"github.com/sandgallery/sandgallery-backend/internal/providers"
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

const lockKeyFormat = "cron-worker:%s"

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	jobName := flag.String("job", "", "run only the named job once and exit (ai-worker, content-bootstrap)")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address when set")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	providerStack, err := providers.NewStack(cfg.Providers, cfg.Video, store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create providers", err)
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

	worker, err := automation.NewWorker(automation.WorkerParams{
		GitHub:        github.NewClient(cfg.GitHub),
		Text:          providerStack.Text,
		Store:         store,
		Model:         cfg.Worker.Model,
		BatchSize:     cfg.Worker.BatchSize,
		QueueLabel:    cfg.Worker.QueueLabel,
		WorkingLabel:  cfg.Worker.WorkingLabel,
		GenerationTTL: cfg.Worker.GenerationTTL,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create automation worker", err)
		os.Exit(1)
	}

	bootstrapJob, err := automation.NewBootstrapJob(contentService)
	if err != nil {
		logg.Error(context.Background(), "failed to create bootstrap job", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metricsCollector := metrics.NewCronJobMetrics(registry)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(fmt.Sprintf(lockKeyFormat, envName(cfg.App.Env))), cfg.Worker.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(worker, bootstrapJob),
		Lock:       lock,
		Metrics:    metricsCollector,
		Interval:   cfg.Worker.Interval,
		JobTimeout: cfg.Worker.LockTTL / 2,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Worker.Interval.String(),
		"once":     *once,
		"instance": instance.GetID(),
	})

	if *metricsAddr != "" {
		go serveMetrics(ctx, logg, *metricsAddr, registry)
	}

	if *jobName != "" {
		logg.Info(logg.WithField(ctx, "job", *jobName), "running single cron job")
		if err := service.RunNamed(ctx, *jobName); err != nil {
			logg.Error(ctx, "cron job run failed", err)
			os.Exit(1)
		}
		return
	}

	if *once {
		logg.Info(ctx, "running cron jobs once")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron run failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string, gatherer prometheus.Gatherer) {
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics server stopped", err)
	}
}

func envName(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
