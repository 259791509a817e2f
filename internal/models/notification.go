package models

import (
	"time"

	"github.com/UDDITwork/shipsarthi-sub005/internal/courier"
)

// NotificationEventType represents the type of notification event
type NotificationEventType string

const (
	ShipmentStatusUpdated NotificationEventType = "shipment.status.updated"
	ShipmentDocumentAdded NotificationEventType = "shipment.document.added"
)

// Notification is what the worker hands to the notification sink after a
// committed change to a shipment.
type Notification struct {
	EventType    NotificationEventType `json:"event_type"`
	OrderID      string                `json:"order_id,omitempty"`
	AWB          string                `json:"awb"`
	NewStatus    courier.Status        `json:"new_status,omitempty"`
	RawStatus    string                `json:"raw_status,omitempty"`
	Location     string                `json:"location,omitempty"`
	DocumentKind DocumentKind          `json:"document_kind,omitempty"`
	DocumentURL  string                `json:"document_url,omitempty"`
	RequestID    string                `json:"request_id,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
}
