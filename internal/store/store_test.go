package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/UDDITwork/shipsarthi-sub005/internal/courier"
	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
	"github.com/UDDITwork/shipsarthi-sub005/internal/processor"
)

// openTestDB connects to TEST_DATABASE_DSN (a postgres:// URL), applies the
// migrations and empties the tables. The test is skipped when it is unset.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set; skipping postgres integration test")
	}

	m, err := migrate.New("file://../../db/migrations", dsn)
	if err != nil {
		t.Fatalf("migrate.New: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
	_, _ = m.Close()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	if err := db.Exec("TRUNCATE tracking_events, shipment_documents, order_status_history, orders CASCADE").Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, awb string) models.Order {
	t.Helper()
	order := models.Order{
		ID:      uuid.New(),
		OrderID: "ORD-" + awb,
		AWB:     &awb,
		Status:  courier.StatusManifested,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestStoreScanRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := New(db, nil)
	ctx := context.Background()
	order := seedOrder(t, db, "TEST1234567890")

	insert := func() bool {
		var inserted bool
		err := s.WithinTx(ctx, func(tx processor.Tx) error {
			var err error
			inserted, err = tx.InsertTrackingEvent(&models.TrackingEvent{
				ID:             uuid.New(),
				AWB:            "TEST1234567890",
				Status:         "Manifested",
				StatusDateTime: "2024-01-15T10:30:00.000",
				MappedStatus:   courier.StatusManifested,
			})
			return err
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		return inserted
	}

	if !insert() {
		t.Fatal("first insert reported duplicate")
	}
	if insert() {
		t.Fatal("second insert should hit the fingerprint index")
	}

	exists, err := s.TrackingEventExists(ctx, "TEST1234567890", "Manifested", "2024-01-15T10:30:00.000")
	if err != nil || !exists {
		t.Fatalf("TrackingEventExists = %v, %v", exists, err)
	}

	err = s.WithinTx(ctx, func(tx processor.Tx) error {
		found, err := tx.FindOrderByTracking("TEST1234567890", "")
		if err != nil {
			return err
		}
		if found == nil || found.ID != order.ID {
			t.Fatalf("order not found by awb")
		}
		now := time.Now()
		loc := "Mumbai"
		return tx.UpdateOrderStatus(found.ID, processor.StatusUpdate{
			Status:           courier.StatusDelivered,
			DeliveredAt:      &now,
			DeliveryLocation: &loc,
		})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var got models.Order
	if err := db.First(&got, "id = ?", order.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status != courier.StatusDelivered || got.DeliveredAt == nil {
		t.Errorf("order not updated: %+v", got)
	}

	events, hasMore, err := s.ListTrackingEvents(ctx, "TEST1234567890", 10, 0)
	if err != nil || len(events) != 1 || hasMore {
		t.Fatalf("ListTrackingEvents = %d events, hasMore=%v, err=%v", len(events), hasMore, err)
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	s := New(db, nil)

	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(tx processor.Tx) error {
		if _, err := tx.InsertTrackingEvent(&models.TrackingEvent{
			ID: uuid.New(), AWB: "ROLLBACK", Status: "Manifested", MappedStatus: courier.StatusManifested,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	exists, err := s.TrackingEventExists(context.Background(), "ROLLBACK", "Manifested", "")
	if err != nil || exists {
		t.Fatalf("rolled back event persisted: %v %v", exists, err)
	}
}
