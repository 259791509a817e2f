package processor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/UDDITwork/shipsarthi-sub005/internal/courier"
	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
)

// Repository runs a unit of work in one database transaction. If fn returns
// an error every write made through tx is rolled back.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of writes the processor makes inside a transaction.
type Tx interface {
	// InsertTrackingEvent reports inserted=false when an event with the same
	// (awb, status, status_date_time) already exists.
	InsertTrackingEvent(ev *models.TrackingEvent) (inserted bool, err error)
	// FindOrderByTracking looks the order up by AWB, then by reference number.
	// A missing order is (nil, nil).
	FindOrderByTracking(awb, referenceNo string) (*models.Order, error)
	// FindOrderForDocument looks the order up by AWB, then by order identifier.
	FindOrderForDocument(awb, orderID string) (*models.Order, error)
	AppendStatus(entry *models.StatusHistoryEntry) error
	UpdateOrderStatus(id uuid.UUID, update StatusUpdate) error
	InsertDocument(doc *models.ShipmentDocument) error
	SetDeliveryProof(id uuid.UUID, url string, at time.Time) error
}

// StatusUpdate is applied to the order after a scan. DeliveredAt and
// DeliveryLocation are only set for delivered scans.
type StatusUpdate struct {
	Status           courier.Status
	DeliveredAt      *time.Time
	DeliveryLocation *string
}

// ImageStorage stores document images. Uploading the same name twice
// overwrites the first object.
type ImageStorage interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (Stored, error)
}

// Stored describes a completed upload.
type Stored struct {
	URL        string
	ObjectName string
	Provider   string
}

// Notifier hands a notification off without blocking.
type Notifier interface {
	Notify(n models.Notification)
}

// Fingerprints records scan fingerprints seen by the worker so later
// duplicates can be short-circuited before enqueue.
type Fingerprints interface {
	Remember(ctx context.Context, awb, status, statusDateTime string)
}
