package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/smesmis/pos-checkout/api/responses"
	"github.com/smesmis/pos-checkout/pkg/config"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/logger"
)

const (
	envHeader    = "X-POS-Env"
	readyTimeout = 2 * time.Second
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready when Redis answers. A nil pinger means the cart
// store is in memory and there is nothing to check.
func HealthReady(cfg *config.Config, redisClient Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := redisClient.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
