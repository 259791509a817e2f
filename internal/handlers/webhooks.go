package handlers

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/auth"
	"github.com/UDDITwork/shipsarthi-sub005/internal/metrics"
	"github.com/UDDITwork/shipsarthi-sub005/internal/payload"
	"github.com/UDDITwork/shipsarthi-sub005/internal/queue"
	"github.com/UDDITwork/shipsarthi-sub005/internal/validation"
)

// Endpoint names used in logs and metrics.
const (
	EndpointScanStatus  = "scan-status"
	EndpointEPOD        = "epod"
	EndpointSorterImage = "sorter-image"
	EndpointQCImage     = "qc-image"
)

const defaultDedupeTimeout = 150 * time.Millisecond

// Deduper reports whether a scan is already stored.
type Deduper interface {
	Exists(ctx context.Context, awb, status, statusDateTime string) (bool, error)
}

// Enqueuer admits jobs for background processing.
type Enqueuer interface {
	Enqueue(kind payload.Kind, p payload.Payload, requestID string) (*queue.Job, error)
}

// Recorder counts webhook admissions.
type Recorder interface {
	WebhookReceived(endpoint, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) WebhookReceived(string, string) {}

// WebhookResponse is the body of every admitted or skipped webhook.
type WebhookResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	Queued    bool   `json:"queued"`
	JobID     string `json:"jobId,omitempty"`
}

// ErrorResponse is returned for rejected webhooks.
type ErrorResponse struct {
	Status    string               `json:"status"`
	Message   string               `json:"message"`
	RequestID string               `json:"requestId"`
	Queued    bool                 `json:"queued"`
	Errors    []payload.FieldError `json:"errors,omitempty"`
}

// WebhookHandler validates courier webhooks and queues them. Only
// authentication, validation and the scan dedupe lookup run on the request
// path.
type WebhookHandler struct {
	Validator     *validation.Validator
	Dedupe        Deduper
	Queue         Enqueuer
	Recorder      Recorder
	DedupeTimeout time.Duration
	Logger        *zap.Logger
}

// NewWebhookHandler creates a WebhookHandler. recorder may be nil.
func NewWebhookHandler(v *validation.Validator, dedupe Deduper, q Enqueuer, recorder Recorder, dedupeTimeout time.Duration, logger *zap.Logger) *WebhookHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if dedupeTimeout <= 0 {
		dedupeTimeout = defaultDedupeTimeout
	}
	return &WebhookHandler{
		Validator:     v,
		Dedupe:        dedupe,
		Queue:         q,
		Recorder:      recorder,
		DedupeTimeout: dedupeTimeout,
		Logger:        logger,
	}
}

// RequireWebhookAuth rejects requests without valid courier credentials
// before their bodies are looked at.
func RequireWebhookAuth(a *auth.Authenticator, recorder Recorder, logger *zap.Logger) fiber.Handler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return func(c *fiber.Ctx) error {
		err := a.Authenticate(auth.Credentials{
			APIKey:      c.Get("X-API-Key"),
			BearerToken: auth.BearerToken(c.Get(fiber.HeaderAuthorization)),
			SourceIP:    c.IP(),
		})
		if err != nil {
			rid := RequestID(c)
			recorder.WebhookReceived(path.Base(c.Path()), metrics.OutcomeUnauthorized)
			logger.Warn("Rejected unauthenticated webhook",
				zap.String("request_id", rid),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Status:    "error",
				Message:   "Unauthorized",
				RequestID: rid,
			})
		}
		return c.Next()
	}
}

// ScanStatus handles POST /webhooks/v1/scan-status.
func (h *WebhookHandler) ScanStatus(c *fiber.Ctx) error {
	rid := RequestID(c)

	scan, err := h.Validator.ValidateScanStatus(c.Body())
	if err != nil {
		return h.invalid(c, EndpointScanStatus, rid, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.DedupeTimeout)
	duplicate, err := h.Dedupe.Exists(ctx, scan.AWB, scan.Status, scan.StatusDateTime)
	cancel()
	if err != nil {
		// The unique index still protects the table; admit and let the
		// worker resolve it.
		h.Logger.Warn("Dedupe lookup failed, admitting scan",
			zap.String("request_id", rid),
			zap.String("awb", scan.AWB),
			zap.Error(err),
		)
	} else if duplicate {
		h.Recorder.WebhookReceived(EndpointScanStatus, metrics.OutcomeDuplicate)
		h.Logger.Info("Duplicate scan acknowledged",
			zap.String("request_id", rid),
			zap.String("awb", scan.AWB),
			zap.String("status", scan.Status),
		)
		return c.JSON(WebhookResponse{
			Status:    "success",
			Message:   "Duplicate event ignored",
			RequestID: rid,
			Queued:    false,
		})
	}

	return h.enqueue(c, EndpointScanStatus, rid, scan)
}

// EPOD handles POST /webhooks/v1/epod.
func (h *WebhookHandler) EPOD(c *fiber.Ctx) error {
	return h.image(c, EndpointEPOD, h.Validator.ValidateEPOD)
}

// SorterImage handles POST /webhooks/v1/sorter-image.
func (h *WebhookHandler) SorterImage(c *fiber.Ctx) error {
	return h.image(c, EndpointSorterImage, h.Validator.ValidateSorterImage)
}

// QCImage handles POST /webhooks/v1/qc-image.
func (h *WebhookHandler) QCImage(c *fiber.Ctx) error {
	return h.image(c, EndpointQCImage, h.Validator.ValidateQCImage)
}

func (h *WebhookHandler) image(c *fiber.Ctx, endpoint string, validate func([]byte) (payload.Image, error)) error {
	rid := RequestID(c)
	img, err := validate(c.Body())
	if err != nil {
		return h.invalid(c, endpoint, rid, err)
	}
	return h.enqueue(c, endpoint, rid, img)
}

func (h *WebhookHandler) enqueue(c *fiber.Ctx, endpoint, rid string, p payload.Payload) error {
	job, err := h.Queue.Enqueue(p.Kind(), p, rid)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrStopped) {
			h.Recorder.WebhookReceived(endpoint, metrics.OutcomeQueueFull)
			h.Logger.Error("Webhook not admitted",
				zap.String("request_id", rid),
				zap.String("endpoint", endpoint),
				zap.String("awb", p.TrackingNumber()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Status:    "error",
				Message:   "Webhook queue is full, retry later",
				RequestID: rid,
			})
		}
		h.Logger.Error("Failed to enqueue webhook",
			zap.String("request_id", rid),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Status:    "error",
			Message:   "Failed to accept webhook",
			RequestID: rid,
		})
	}

	h.Recorder.WebhookReceived(endpoint, metrics.OutcomeQueued)
	h.Logger.Info("Webhook queued",
		zap.String("request_id", rid),
		zap.String("job_id", job.ID.String()),
		zap.String("endpoint", endpoint),
		zap.String("awb", p.TrackingNumber()),
	)
	return c.JSON(WebhookResponse{
		Status:    "success",
		Message:   "Webhook received",
		RequestID: rid,
		Queued:    true,
		JobID:     job.ID.String(),
	})
}

func (h *WebhookHandler) invalid(c *fiber.Ctx, endpoint, rid string, err error) error {
	h.Recorder.WebhookReceived(endpoint, metrics.OutcomeInvalid)

	resp := ErrorResponse{
		Status:    "error",
		Message:   "Invalid payload",
		RequestID: rid,
	}
	var fieldErrs payload.Errors
	if errors.As(err, &fieldErrs) {
		resp.Errors = fieldErrs
	} else {
		resp.Errors = []payload.FieldError{{Field: "body", Message: err.Error()}}
	}

	h.Logger.Warn("Rejected invalid webhook",
		zap.String("request_id", rid),
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)
	return c.Status(fiber.StatusBadRequest).JSON(resp)
}

// RequestID returns the id assigned by the requestid middleware, or a new
// one. The result never aliases fasthttp's request buffers.
func RequestID(c *fiber.Ctx) string {
	if v, ok := c.Locals("requestid").(string); ok && v != "" {
		return strings.Clone(v)
	}
	if v := c.Get(fiber.HeaderXRequestID); v != "" {
		return strings.Clone(v)
	}
	return uuid.NewString()
}
