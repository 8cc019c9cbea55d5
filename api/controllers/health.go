package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/sandgallery/sandgallery-backend/api/responses"
	"github.com/sandgallery/sandgallery-backend/pkg/config"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
)

const (
	envHeader    = "X-SandGallery-Env"
	readyTimeout = 3 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names one dependency probed by /health/ready.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and fails on the first one that is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		status := map[string]string{}
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable").WithDetails(map[string]any{"dependency": check.Name}))
				return
			}
			status[check.Name] = "ok"
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
