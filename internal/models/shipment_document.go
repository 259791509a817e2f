package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentKind classifies an image attached to a shipment.
type DocumentKind string

const (
	DocumentDeliveryProof     DocumentKind = "delivery-proof"
	DocumentSorterImage       DocumentKind = "sorter-image"
	DocumentQualityCheckImage DocumentKind = "quality-check-image"
	DocumentOther             DocumentKind = "other"
)

// Valid reports whether k is one of the known kinds.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentDeliveryProof, DocumentSorterImage, DocumentQualityCheckImage, DocumentOther:
		return true
	}
	return false
}

// ShipmentDocument is an uploaded image artifact. URL is only ever set from a
// completed upload.
type ShipmentDocument struct {
	ID              uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AWB             string       `gorm:"column:awb;not null" json:"awb"`
	OrderID         *string      `json:"order_id"`
	ReturnID        *string      `json:"return_id"`
	Kind            DocumentKind `gorm:"type:text;not null" json:"kind"`
	URL             string       `gorm:"column:url;not null" json:"url"`
	StorageProvider string       `gorm:"not null" json:"storage_provider"`
	ObjectName      string       `gorm:"not null" json:"object_name"`
	SizeBytes       int64        `gorm:"not null" json:"size_bytes"`
	MimeType        string       `gorm:"not null" json:"mime_type"`
	Processed       bool         `gorm:"not null;default:false" json:"processed"`
	CreatedAt       time.Time    `gorm:"not null;default:now()" json:"created_at"`
}

func (ShipmentDocument) TableName() string {
	return "shipment_documents"
}
