package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/UDDITwork/shipsarthi-sub005/internal/courier"
)

// TrackingEvent is one courier scan. Rows are append-only; the
// (awb, status, status_date_time) triple is unique.
type TrackingEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AWB            string         `gorm:"column:awb;not null" json:"awb"`
	OrderID        *string        `json:"order_id"`
	ReferenceNo    string         `gorm:"not null;default:''" json:"reference_no"`
	Status         string         `gorm:"not null" json:"status"`
	StatusType     string         `gorm:"not null;default:''" json:"status_type"`
	StatusDateTime string         `gorm:"not null;default:''" json:"status_date_time"`
	StatusAt       *time.Time     `json:"status_at"`
	StatusLocation string         `gorm:"not null;default:''" json:"status_location"`
	Instructions   string         `gorm:"not null;default:''" json:"instructions"`
	MappedStatus   courier.Status `gorm:"type:text;not null" json:"mapped_status"`
	NSLCode        string         `gorm:"column:nsl_code;not null;default:''" json:"nsl_code"`
	SortCode       string         `gorm:"not null;default:''" json:"sort_code"`
	PickupDate     string         `gorm:"not null;default:''" json:"pickup_date"`
	RawPayload     *string        `gorm:"type:jsonb" json:"-"`
	Processed      bool           `gorm:"not null;default:false" json:"processed"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (TrackingEvent) TableName() string {
	return "tracking_events"
}
