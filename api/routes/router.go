package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sandgallery/sandgallery-backend/api/controllers"
	"github.com/sandgallery/sandgallery-backend/api/middleware"
	"github.com/sandgallery/sandgallery-backend/internal/admin"
	"github.com/sandgallery/sandgallery-backend/internal/artifacts"
	"github.com/sandgallery/sandgallery-backend/internal/content"
	"github.com/sandgallery/sandgallery-backend/internal/credits"
	"github.com/sandgallery/sandgallery-backend/internal/generation"
	pkgAuth "github.com/sandgallery/sandgallery-backend/pkg/auth"
	"github.com/sandgallery/sandgallery-backend/pkg/config"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/redis"
)

type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      *redis.Client
	Blob       controllers.Pinger
	Gatherer   prometheus.Gatherer
	Verifier   pkgAuth.Verifier
	Credits    credits.Service
	Artifacts  artifacts.Service
	Content    content.Service
	Gateway    generation.Gateway
	Dispatcher admin.Dispatcher
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	generatePolicy := middleware.NewRateLimitPolicy(
		"generate",
		cfg.RateLimit.GenerateWindow,
		cfg.RateLimit.GenerateLimit,
	)

	// a nil *redis.Client must not reach the interface-typed params
	var redisPinger controllers.Pinger
	var limiter *redis.Client
	if p.Redis != nil {
		redisPinger = p.Redis
		limiter = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "db", Pinger: p.DB},
			controllers.ReadinessCheck{Name: "redis", Pinger: redisPinger},
			controllers.ReadinessCheck{Name: "storage", Pinger: p.Blob},
		))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/content/{type}", controllers.ContentList(p.Content, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.Verifier, p.Credits, logg))

		r.Get("/account", controllers.AccountGet(p.Credits, logg))
		r.Get("/creations", controllers.CreationsList(p.Artifacts, logg))

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(middleware.RateLimit(generatePolicy, limiter, logg))
			}
			r.Post("/generate/image", controllers.GenerateImage(p.Gateway, logg))
			r.Post("/generate/text", controllers.GenerateText(p.Gateway, logg))
			r.Post("/analyze/video", controllers.AnalyzeVideo(p.Gateway, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminSecret(cfg.Admin.Secret, logg))
		r.Post("/command", controllers.AdminCommand(p.Dispatcher, logg))
		r.Post("/content/bootstrap", controllers.AdminContentBootstrap(p.Content, logg))
	})

	return r
}
