package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/UDDITwork/shipsarthi-sub005/internal/courier"
)

// Order is the shipment aggregate owned by the order service. The webhook
// worker only locates it and appends status.
type Order struct {
	ID               uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrderID          string         `gorm:"not null;uniqueIndex" json:"order_id"`
	AWB              *string        `gorm:"column:awb" json:"awb"`
	ReferenceNo      *string        `json:"reference_no"`
	Status           courier.Status `gorm:"type:text;not null" json:"status"`
	DeliveredAt      *time.Time     `json:"delivered_at"`
	DeliveryLocation *string        `json:"delivery_location"`
	EPODURL          *string        `gorm:"column:epod_url" json:"epod_url"`
	EPODDate         *time.Time     `gorm:"column:epod_date" json:"epod_date"`
	CreatedAt        time.Time      `gorm:"default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"default:now()" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// StatusHistoryEntry is one append-only row of an order's status history.
type StatusHistoryEntry struct {
	ID         int64          `gorm:"primary_key;autoIncrement" json:"id"`
	OrderID    uuid.UUID      `gorm:"type:uuid;not null" json:"order_id"`
	Status     courier.Status `gorm:"type:text;not null" json:"status"`
	RawStatus  string         `gorm:"not null;default:''" json:"raw_status"`
	Location   string         `gorm:"not null;default:''" json:"location"`
	Source     string         `gorm:"not null" json:"source"`
	OccurredAt time.Time      `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time      `gorm:"default:now()" json:"created_at"`
}

func (StatusHistoryEntry) TableName() string {
	return "order_status_history"
}
