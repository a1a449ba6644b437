package controllers

import (
	"net/http"

	"github.com/comedorlabs/comedor-backend/api/responses"
	"github.com/comedorlabs/comedor-backend/pkg/config"
	"github.com/comedorlabs/comedor-backend/pkg/db"
	pkgerrors "github.com/comedorlabs/comedor-backend/pkg/errors"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	pkgredis "github.com/comedorlabs/comedor-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Comedor-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when the backing stores answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Comedor-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["postgres"] = "down"
				healthy = false
				logg.Error(r.Context(), "readiness: postgres unavailable", err)
			} else {
				checks["postgres"] = "up"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = "down"
				healthy = false
				logg.Error(r.Context(), "readiness: redis unavailable", err)
			} else {
				checks["redis"] = "up"
			}
		}

		if !healthy {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
