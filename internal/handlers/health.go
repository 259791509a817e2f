package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/UDDITwork/shipsarthi-sub005/internal/queue"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker reports whether a long-lived connection is up.
type HealthChecker interface {
	IsHealthy() bool
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	Stats    func() queue.Stats
	Database Pinger
	// RabbitMQ is nil when notifications do not go through a broker.
	RabbitMQ HealthChecker
	Timeout  time.Duration
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Queue     *queue.Stats      `json:"queue,omitempty"`
}

// Liveness handles GET /webhooks/health. It never touches dependencies so a
// slow database cannot fail it.
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.Stats != nil {
		stats := h.Stats()
		resp.Queue = &stats
	}
	return c.JSON(resp)
}

// Readiness handles GET /health.
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"

	if h.Database != nil {
		if err := h.Database.Ping(ctx); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			services["database"] = "healthy"
		}
	}

	if h.RabbitMQ != nil {
		if !h.RabbitMQ.IsHealthy() {
			services["rabbitmq"] = "unhealthy: connection closed"
			status = "unhealthy"
		} else {
			services["rabbitmq"] = "healthy"
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}
	if h.Stats != nil {
		stats := h.Stats()
		response.Queue = &stats
	}

	if status == "unhealthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}
