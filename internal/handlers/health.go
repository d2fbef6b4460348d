package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/response"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB      Pinger
	Timeout time.Duration
}

// Handle implements GET /healthz. The service is healthy when the database answers.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.DB != nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := h.DB.Ping(pingCtx); err != nil {
			logging.FromContext(ctx).Error("health check failed", "error", err)
			response.JSON(ctx, w, http.StatusServiceUnavailable, response.ErrorEnvelope{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "database unavailable",
				Errors:     []string{},
			})
			return
		}
	}

	respond(ctx, w, http.StatusOK, map[string]string{"status": "ok"}, "healthy")
}
