// Package payload defines the validated, typed forms of the courier webhooks.
package payload

import (
	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
)

// Kind discriminates the webhook shapes.
type Kind string

const (
	KindScanStatus  Kind = "scan-status"
	KindEPOD        Kind = "epod"
	KindSorterImage Kind = "sorter-image"
	KindQCImage     Kind = "qc-image"
)

// Payload is implemented by every validated webhook body.
type Payload interface {
	Kind() Kind
	TrackingNumber() string
}

// ScanStatus is a validated scan-status webhook.
type ScanStatus struct {
	AWB            string
	Status         string
	StatusDateTime string
	StatusType     string
	StatusLocation string
	Instructions   string
	PickUpDate     string
	ReferenceNo    string
	NSLCode        string
	SortCode       string
	// Raw is the request body as received, kept for audit.
	Raw []byte
}

func (ScanStatus) Kind() Kind               { return KindScanStatus }
func (s ScanStatus) TrackingNumber() string { return s.AWB }

// Image is a validated image webhook with its bytes already decoded.
type Image struct {
	ImageKind Kind
	AWB       string
	OrderID   string
	ReturnID  string
	Doc       string
	Data      []byte
	MimeType  string
}

func (i Image) Kind() Kind             { return i.ImageKind }
func (i Image) TrackingNumber() string { return i.AWB }

// DocumentKind maps the webhook kind to the stored document classification.
func (i Image) DocumentKind() models.DocumentKind {
	switch i.ImageKind {
	case KindEPOD:
		return models.DocumentDeliveryProof
	case KindSorterImage:
		return models.DocumentSorterImage
	case KindQCImage:
		return models.DocumentQualityCheckImage
	}
	return models.DocumentOther
}
