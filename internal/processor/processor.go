// Package processor applies queued courier webhooks to the shipment data:
// tracking events, documents and the order aggregate.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/config"
	"github.com/UDDITwork/shipsarthi-sub005/internal/courier"
	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
	"github.com/UDDITwork/shipsarthi-sub005/internal/payload"
	"github.com/UDDITwork/shipsarthi-sub005/internal/queue"
)

// Outcome is the result of a successfully handled event.
type Outcome string

const (
	OutcomeProcessed      Outcome = "processed"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeParentNotFound Outcome = "parent-not-found"
)

// historySource tags status history rows written by this service.
const historySource = "delhivery-webhook"

// ErrUnsupportedPayload is returned for payload types the processor does not
// know. It is never retried.
var ErrUnsupportedPayload = errors.New("unsupported payload")

const (
	defaultTxTimeout     = 5 * time.Second
	defaultUploadTimeout = 8 * time.Second
)

// Processor handles one event at a time on behalf of the queue worker.
type Processor struct {
	repo         Repository
	storage      ImageStorage
	notifier     Notifier
	fingerprints Fingerprints
	cfg          config.ProcessorConfig
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a Processor. notifier and fingerprints may be nil.
func New(
	repo Repository,
	storage ImageStorage,
	notifier Notifier,
	fingerprints Fingerprints,
	cfg config.ProcessorConfig,
	logger *zap.Logger,
) *Processor {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = defaultTxTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = defaultUploadTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		repo:         repo,
		storage:      storage,
		notifier:     notifier,
		fingerprints: fingerprints,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// Handle implements queue.Handler.
func (p *Processor) Handle(ctx context.Context, job *queue.Job) error {
	log := p.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("request_id", job.RequestID),
		zap.String("awb", job.Payload.TrackingNumber()),
	)

	outcome, err := p.Process(ctx, job.RequestID, job.Payload)
	if err != nil {
		return err
	}

	switch outcome {
	case OutcomeDuplicate:
		log.Info("Duplicate event skipped")
	case OutcomeParentNotFound:
		log.Info("No order found for event, stored for reconciliation")
	default:
		log.Debug("Event processed", zap.String("outcome", string(outcome)))
	}
	return nil
}

// Process applies one validated payload. Persistence and upload failures are
// returned as queue.Transient errors.
func (p *Processor) Process(ctx context.Context, requestID string, pl payload.Payload) (Outcome, error) {
	switch v := pl.(type) {
	case payload.ScanStatus:
		return p.processScan(ctx, requestID, v)
	case *payload.ScanStatus:
		return p.processScan(ctx, requestID, *v)
	case payload.Image:
		return p.processImage(ctx, requestID, v)
	case *payload.Image:
		return p.processImage(ctx, requestID, *v)
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedPayload, pl)
}

func (p *Processor) processScan(ctx context.Context, requestID string, s payload.ScanStatus) (Outcome, error) {
	mapped := courier.MapScan(s.Status, s.StatusType)
	now := p.now()

	event := &models.TrackingEvent{
		ID:             uuid.New(),
		AWB:            s.AWB,
		ReferenceNo:    s.ReferenceNo,
		Status:         s.Status,
		StatusType:     s.StatusType,
		StatusDateTime: s.StatusDateTime,
		StatusLocation: s.StatusLocation,
		Instructions:   s.Instructions,
		MappedStatus:   mapped,
		NSLCode:        s.NSLCode,
		SortCode:       s.SortCode,
		PickupDate:     s.PickUpDate,
		RawPayload:     rawJSON(s.Raw),
		CreatedAt:      now,
	}
	occurredAt := now
	if t, ok := courier.ParseStatusTime(s.StatusDateTime); ok {
		event.StatusAt = &t
		occurredAt = t
	}

	var (
		outcome Outcome
		order   *models.Order
	)

	txCtx, cancel := context.WithTimeout(ctx, p.cfg.TxTimeout)
	defer cancel()

	err := p.repo.WithinTx(txCtx, func(tx Tx) error {
		var err error
		order, err = tx.FindOrderByTracking(s.AWB, s.ReferenceNo)
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		if order != nil {
			event.OrderID = &order.OrderID
			event.Processed = true
		}

		inserted, err := tx.InsertTrackingEvent(event)
		if err != nil {
			return fmt.Errorf("insert tracking event: %w", err)
		}
		if !inserted {
			outcome = OutcomeDuplicate
			return nil
		}
		if order == nil {
			outcome = OutcomeParentNotFound
			return nil
		}

		if err := tx.AppendStatus(&models.StatusHistoryEntry{
			OrderID:    order.ID,
			Status:     mapped,
			RawStatus:  s.Status,
			Location:   s.StatusLocation,
			Source:     historySource,
			OccurredAt: occurredAt,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("append status history: %w", err)
		}

		// An unrecognised phrase is kept in history but does not replace
		// the order's current status.
		if mapped != courier.StatusUnknown {
			update := StatusUpdate{Status: mapped}
			if mapped == courier.StatusDelivered {
				update.DeliveredAt = &occurredAt
				if s.StatusLocation != "" {
					loc := s.StatusLocation
					update.DeliveryLocation = &loc
				}
			}
			if err := tx.UpdateOrderStatus(order.ID, update); err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
		}

		outcome = OutcomeProcessed
		return nil
	})
	if err != nil {
		return "", queue.Transient(err)
	}

	if p.fingerprints != nil {
		p.fingerprints.Remember(ctx, s.AWB, s.Status, s.StatusDateTime)
	}

	if outcome == OutcomeProcessed && mapped != courier.StatusUnknown {
		p.notify(models.Notification{
			EventType: models.ShipmentStatusUpdated,
			OrderID:   order.OrderID,
			AWB:       s.AWB,
			NewStatus: mapped,
			RawStatus: s.Status,
			Location:  s.StatusLocation,
			RequestID: requestID,
			Timestamp: occurredAt,
		})
	}
	return outcome, nil
}

func (p *Processor) processImage(ctx context.Context, requestID string, img payload.Image) (Outcome, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: image %s for %s has no data", ErrUnsupportedPayload, img.Kind(), img.AWB)
	}
	kind := img.DocumentKind()
	if !kind.Valid() {
		return "", fmt.Errorf("%w: document kind %q", ErrUnsupportedPayload, kind)
	}
	name := ObjectName(kind, img.AWB, img.ReturnID, img.MimeType)

	uploadCtx, cancelUpload := context.WithTimeout(ctx, p.cfg.UploadTimeout)
	stored, err := p.storage.Upload(uploadCtx, name, img.Data, img.MimeType)
	cancelUpload()
	if err != nil {
		return "", queue.Transient(fmt.Errorf("upload %s: %w", name, err))
	}

	now := p.now()
	doc := &models.ShipmentDocument{
		ID:              uuid.New(),
		AWB:             img.AWB,
		OrderID:         optional(img.OrderID),
		ReturnID:        optional(img.ReturnID),
		Kind:            kind,
		URL:             stored.URL,
		StorageProvider: stored.Provider,
		ObjectName:      stored.ObjectName,
		SizeBytes:       int64(len(img.Data)),
		MimeType:        img.MimeType,
		CreatedAt:       now,
	}

	var (
		outcome Outcome
		order   *models.Order
	)

	txCtx, cancel := context.WithTimeout(ctx, p.cfg.TxTimeout)
	defer cancel()

	err = p.repo.WithinTx(txCtx, func(tx Tx) error {
		var err error
		order, err = tx.FindOrderForDocument(img.AWB, img.OrderID)
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		if order != nil {
			doc.OrderID = &order.OrderID
			doc.Processed = true
		}
		if err := tx.InsertDocument(doc); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		if order == nil {
			outcome = OutcomeParentNotFound
			return nil
		}
		if kind == models.DocumentDeliveryProof {
			if err := tx.SetDeliveryProof(order.ID, stored.URL, now); err != nil {
				return fmt.Errorf("set delivery proof: %w", err)
			}
		}
		outcome = OutcomeProcessed
		return nil
	})
	if err != nil {
		return "", queue.Transient(err)
	}

	n := models.Notification{
		EventType:    models.ShipmentDocumentAdded,
		AWB:          img.AWB,
		DocumentKind: kind,
		DocumentURL:  stored.URL,
		RequestID:    requestID,
		Timestamp:    now,
	}
	if doc.OrderID != nil {
		n.OrderID = *doc.OrderID
	}
	p.notify(n)
	return outcome, nil
}

func (p *Processor) notify(n models.Notification) {
	if p.notifier == nil {
		return
	}
	p.notifier.Notify(n)
}

var kindFolders = map[models.DocumentKind]string{
	models.DocumentDeliveryProof:     "epod",
	models.DocumentSorterImage:       "sorter-images",
	models.DocumentQualityCheckImage: "qc-images",
	models.DocumentOther:             "other",
}

var mimeExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/bmp":       "bmp",
	"application/pdf": "pdf",
}

// ObjectName returns the storage name for a document:
// <kind folder>/<awb>[_<returnId>].<ext>. The same inputs always give the
// same name, so a redelivered image overwrites its earlier upload.
func ObjectName(kind models.DocumentKind, awb, returnID, mimeType string) string {
	folder, ok := kindFolders[kind]
	if !ok {
		folder = kindFolders[models.DocumentOther]
	}
	base := sanitize(awb)
	if returnID != "" {
		base += "_" + sanitize(returnID)
	}
	ext, ok := mimeExtensions[strings.ToLower(strings.TrimSpace(mimeType))]
	if !ok {
		ext = "bin"
	}
	return folder + "/" + base + "." + ext
}

// sanitize keeps object names to a path-safe character set.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, s)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rawJSON(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}
