// Package handlers provides the gateway's HTTP handlers: the chat proxy
// routes, the login and logout flows, the chat view model and the health
// probes. Handlers parse requests, call services and format responses;
// they hold no state of their own.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	redis   Pinger
	backend Pinger
}

// NewHealthHandler creates a health handler.
//
// Example:
//
//	healthHandler := handlers.NewHealthHandler(redisDB, backendClient)
//	r.Get("/health", healthHandler.Health)
//	r.Get("/ready", healthHandler.Ready)
func NewHealthHandler(redis, backend Pinger) *HealthHandler {
	return &HealthHandler{redis: redis, backend: backend}
}

// HealthResponse is the body of both probes.
//
// JSON example:
//
//	{
//	  "status": "ok",
//	  "timestamp": "2024-01-20T14:30:00Z",
//	  "services": {"redis": "healthy", "backend": "healthy"}
//	}
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// Health reports that the process is alive. Dependencies are not checked.
//
// @Summary      Health check (liveness probe)
// @Description  Returns 200 OK if the service is running. Does not check dependencies.
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthResponse  "Service is alive"
// @Router       /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready checks Redis and the assistant backend with a 5 second budget.
// Any failing dependency turns the status "degraded" with 503.
//
// @Summary      Readiness check
// @Description  Checks Redis and the assistant backend
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthResponse  "All services healthy"
// @Failure      503  {object}  HealthResponse  "One or more services unhealthy"
// @Router       /ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]Pinger{
		"redis":   h.redis,
		"backend": h.backend,
	}

	services := make(map[string]string, len(checks))
	allHealthy := true
	for name, dep := range checks {
		if err := dep.Ping(ctx); err != nil {
			log.Error().Err(err).Str("service", name).Msg("Health check failed")
			services[name] = "unhealthy"
			allHealthy = false
			continue
		}
		services[name] = "healthy"
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Services:  services,
	}

	statusCode := http.StatusOK
	if !allHealthy {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	utils.RespondWithJSON(w, r, statusCode, response)
}
