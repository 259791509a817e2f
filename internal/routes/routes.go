package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/UDDITwork/shipsarthi-sub005/internal/handlers"
	"github.com/UDDITwork/shipsarthi-sub005/internal/service"
)

// SetupRoutes configures all application routes with dependencies
func SetupRoutes(app *fiber.App, svc *service.Service) {
	health := &handlers.HealthHandler{
		Stats:    svc.Queue.Stats,
		Database: handlers.PingFunc(svc.PingDatabase),
	}
	if svc.RMQ != nil {
		health.RabbitMQ = svc.RMQ
	}

	app.Get("/health", health.Readiness)
	app.Get("/webhooks/health", health.Liveness)
	app.Get("/metrics", adaptor.HTTPHandler(svc.Metrics.Handler()))

	webhooks := handlers.NewWebhookHandler(
		svc.Validator,
		svc.Dedupe,
		svc.Queue,
		svc.Metrics,
		svc.Config.Webhook.DedupeLookupTimeout,
		svc.Logger,
	)
	tracking := handlers.NewTrackingHandler(svc.Store, svc.Logger)

	v1 := app.Group("/webhooks/v1", handlers.RequireWebhookAuth(svc.Auth, svc.Metrics, svc.Logger))
	{
		v1.Post("/scan-status", webhooks.ScanStatus)
		v1.Post("/epod", webhooks.EPOD)
		v1.Post("/sorter-image", webhooks.SorterImage)
		v1.Post("/qc-image", webhooks.QCImage)
		v1.Get("/tracking/:awb", tracking.GetTracking)
	}
}
