package handle

import (
	"context"
	"net/http"
	"time"

	"haul-dispatch/internal/dispatch-service/core/ports"
)

type HealthHandler struct {
	db     ports.IDB
	broker ports.IDispatchBroker
}

// NewHealthHandler reports on db and, when configured, the broker.
func NewHealthHandler(db ports.IDB, broker ports.IDispatchBroker) *HealthHandler {
	return &HealthHandler{db: db, broker: broker}
}

func (hh *HealthHandler) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "db": "ok"}
		code := http.StatusOK
		if err := hh.db.IsAlive(ctx); err != nil {
			status["db"] = "down"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
		if hh.broker != nil {
			status["broker"] = "ok"
			if !hh.broker.IsAlive() {
				status["broker"] = "down"
				status["status"] = "degraded"
			}
		}

		jsonResponse(w, code, status)
	}
}
