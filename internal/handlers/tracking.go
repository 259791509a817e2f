package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
)

const (
	defaultTrackingLimit = 25
	maxTrackingLimit     = 200
)

// TrackingLister reads stored scans for one waybill, newest first.
type TrackingLister interface {
	ListTrackingEvents(ctx context.Context, awb string, limit, offset int) ([]models.TrackingEvent, bool, error)
}

// TrackingHandler serves stored scan history.
type TrackingHandler struct {
	Events TrackingLister
	Logger *zap.Logger
}

// NewTrackingHandler creates a new tracking handler with dependencies
func NewTrackingHandler(events TrackingLister, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{
		Events: events,
		Logger: logger,
	}
}

// TrackingResponse represents the response structure for GET /tracking/:awb
type TrackingResponse struct {
	AWB     string             `json:"awb"`
	Events  []TrackingEventDTO `json:"events"`
	HasMore bool               `json:"has_more"`
}

// TrackingEventDTO is a single stored scan.
type TrackingEventDTO struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	MappedStatus   string  `json:"mapped_status"`
	StatusType     string  `json:"status_type,omitempty"`
	StatusDateTime string  `json:"status_date_time"`
	StatusAt       *string `json:"status_at"`
	Location       string  `json:"location,omitempty"`
	Instructions   string  `json:"instructions,omitempty"`
	OrderID        *string `json:"order_id"`
	Processed      bool    `json:"processed"`
	ReceivedAt     string  `json:"received_at"`
}

// GetTracking handles GET /webhooks/v1/tracking/:awb
// Query parameters:
//   - limit (optional, default 25, max 200)
//   - offset (optional, default 0)
func (h *TrackingHandler) GetTracking(c *fiber.Ctx) error {
	awb := strings.TrimSpace(c.Params("awb"))
	if awb == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "awb is required",
		})
	}
	awb = strings.Clone(awb)

	limit := defaultTrackingLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = min(parsedLimit, maxTrackingLimit)
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err != nil || parsedOffset < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "offset must be a non-negative integer",
			})
		}
		offset = parsedOffset
	}

	events, hasMore, err := h.Events.ListTrackingEvents(c.UserContext(), awb, limit, offset)
	if err != nil {
		h.Logger.Error("Failed to query tracking events",
			zap.String("request_id", RequestID(c)),
			zap.String("awb", awb),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tracking events",
		})
	}

	dtos := make([]TrackingEventDTO, 0, len(events))
	for _, ev := range events {
		dto := TrackingEventDTO{
			ID:             ev.ID.String(),
			Status:         ev.Status,
			MappedStatus:   string(ev.MappedStatus),
			StatusType:     ev.StatusType,
			StatusDateTime: ev.StatusDateTime,
			Location:       ev.StatusLocation,
			Instructions:   ev.Instructions,
			OrderID:        ev.OrderID,
			Processed:      ev.Processed,
			ReceivedAt:     ev.CreatedAt.UTC().Format(time.RFC3339),
		}
		if ev.StatusAt != nil {
			at := ev.StatusAt.UTC().Format(time.RFC3339)
			dto.StatusAt = &at
		}
		dtos = append(dtos, dto)
	}

	return c.JSON(TrackingResponse{
		AWB:     awb,
		Events:  dtos,
		HasMore: hasMore,
	})
}
