package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/artisancrate/billing-engine/api/responses"
	"github.com/artisancrate/billing-engine/pkg/config"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ArtisanCrate-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every named dependency answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ArtisanCrate-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		failed := false
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "unavailable"
				failed = true
				if logg != nil {
					logg.Warn(logg.WithFields(r.Context(), map[string]any{"dependency": name, "error": err.Error()}), "readiness check failed")
				}
				continue
			}
			checks[name] = "ok"
		}
		if failed {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
