// Package store is the PostgreSQL persistence layer for tracking events,
// shipment documents and the order aggregate.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
	"github.com/UDDITwork/shipsarthi-sub005/internal/processor"
	"github.com/UDDITwork/shipsarthi-sub005/internal/utils"
)

// Store implements processor.Repository and the read paths used by the HTTP
// layer.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a Store over db.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// WithinTx runs fn in one transaction. Returning an error from fn rolls back.
func (s *Store) WithinTx(ctx context.Context, fn func(tx processor.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

// TrackingEventExists reports whether a scan with this fingerprint is stored.
func (s *Store) TrackingEventExists(ctx context.Context, awb, status, statusDateTime string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.TrackingEvent{}).
		Where("awb = ? AND status = ? AND status_date_time = ?", awb, status, statusDateTime).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up tracking event: %w", err)
	}
	return count > 0, nil
}

// ListTrackingEvents returns a page of events for awb, newest first, and
// whether more rows follow.
func (s *Store) ListTrackingEvents(ctx context.Context, awb string, limit, offset int) ([]models.TrackingEvent, bool, error) {
	var events []models.TrackingEvent
	err := s.db.WithContext(ctx).
		Where("awb = ?", awb).
		Order("created_at DESC").
		Order("id").
		Limit(limit + 1). // one extra row tells us whether there is another page
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to list tracking events: %w", err)
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	return events, hasMore, nil
}

type gormTx struct {
	db *gorm.DB
}

var _ processor.Tx = (*gormTx)(nil)

func (t *gormTx) InsertTrackingEvent(ev *models.TrackingEvent) (bool, error) {
	// A concurrent or redelivered scan hits the fingerprint index and
	// inserts nothing.
	res := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (t *gormTx) FindOrderByTracking(awb, referenceNo string) (*models.Order, error) {
	order, err := t.lockOrder("awb = ?", awb)
	if err != nil || order != nil {
		return order, err
	}
	if strings.TrimSpace(referenceNo) == "" {
		return nil, nil
	}
	return t.lockOrder("reference_no = ?", referenceNo)
}

func (t *gormTx) FindOrderForDocument(awb, orderID string) (*models.Order, error) {
	if awb != "" {
		order, err := t.lockOrder("awb = ?", awb)
		if err != nil || order != nil {
			return order, err
		}
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil
	}
	if id, ok := utils.OrderUUID(orderID); ok {
		order, err := t.lockOrder("id = ?", id)
		if err != nil || order != nil {
			return order, err
		}
	}
	return t.lockOrder("order_id = ?", orderID)
}

// lockOrder loads the most recent matching order and holds a row lock on it
// until the transaction ends.
func (t *gormTx) lockOrder(query string, arg any) (*models.Order, error) {
	var order models.Order
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(query, arg).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (t *gormTx) AppendStatus(entry *models.StatusHistoryEntry) error {
	return t.db.Create(entry).Error
}

func (t *gormTx) UpdateOrderStatus(id uuid.UUID, update processor.StatusUpdate) error {
	updates := map[string]interface{}{
		"status":     update.Status,
		"updated_at": time.Now(),
	}
	if update.DeliveredAt != nil {
		updates["delivered_at"] = *update.DeliveredAt
	}
	if update.DeliveryLocation != nil {
		updates["delivery_location"] = *update.DeliveryLocation
	}

	return t.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (t *gormTx) InsertDocument(doc *models.ShipmentDocument) error {
	return t.db.Create(doc).Error
}

func (t *gormTx) SetDeliveryProof(id uuid.UUID, url string, at time.Time) error {
	return t.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"epod_url":   url,
			"epod_date":  at,
			"updated_at": time.Now(),
		}).Error
}
