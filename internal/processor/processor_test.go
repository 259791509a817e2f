package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/UDDITwork/shipsarthi-sub005/internal/config"
	"github.com/UDDITwork/shipsarthi-sub005/internal/courier"
	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
	"github.com/UDDITwork/shipsarthi-sub005/internal/payload"
	"github.com/UDDITwork/shipsarthi-sub005/internal/queue"
)

// memStore is a transactional in-memory Repository. Writes are staged on a
// copy and only kept when the callback succeeds.
type memStore struct {
	mu        sync.Mutex
	events    []models.TrackingEvent
	documents []models.ShipmentDocument
	orders    map[uuid.UUID]models.Order
	history   []models.StatusHistoryEntry

	// failTx makes the next n transactions fail after their writes.
	failTx int
	txs    int
}

func newMemStore(orders ...models.Order) *memStore {
	m := &memStore{orders: make(map[uuid.UUID]models.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs++

	stage := &memTx{
		events:    append([]models.TrackingEvent(nil), m.events...),
		documents: append([]models.ShipmentDocument(nil), m.documents...),
		history:   append([]models.StatusHistoryEntry(nil), m.history...),
		orders:    make(map[uuid.UUID]models.Order, len(m.orders)),
	}
	for k, v := range m.orders {
		stage.orders[k] = v
	}

	if err := fn(stage); err != nil {
		return err
	}
	if m.failTx > 0 {
		m.failTx--
		return errors.New("connection reset by peer")
	}
	m.events, m.documents, m.history, m.orders = stage.events, stage.documents, stage.history, stage.orders
	return ctx.Err()
}

type memTx struct {
	events    []models.TrackingEvent
	documents []models.ShipmentDocument
	orders    map[uuid.UUID]models.Order
	history   []models.StatusHistoryEntry
}

func (t *memTx) InsertTrackingEvent(ev *models.TrackingEvent) (bool, error) {
	for _, e := range t.events {
		if e.AWB == ev.AWB && e.Status == ev.Status && e.StatusDateTime == ev.StatusDateTime {
			return false, nil
		}
	}
	t.events = append(t.events, *ev)
	return true, nil
}

func (t *memTx) FindOrderByTracking(awb, referenceNo string) (*models.Order, error) {
	for _, o := range t.orders {
		if o.AWB != nil && *o.AWB == awb {
			return &o, nil
		}
	}
	if referenceNo == "" {
		return nil, nil
	}
	for _, o := range t.orders {
		if o.ReferenceNo != nil && *o.ReferenceNo == referenceNo {
			return &o, nil
		}
	}
	return nil, nil
}

func (t *memTx) FindOrderForDocument(awb, orderID string) (*models.Order, error) {
	for _, o := range t.orders {
		if (o.AWB != nil && *o.AWB == awb) || (orderID != "" && o.OrderID == orderID) {
			return &o, nil
		}
	}
	return nil, nil
}

func (t *memTx) AppendStatus(entry *models.StatusHistoryEntry) error {
	t.history = append(t.history, *entry)
	return nil
}

func (t *memTx) UpdateOrderStatus(id uuid.UUID, u StatusUpdate) error {
	o, ok := t.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found", id)
	}
	o.Status = u.Status
	if u.DeliveredAt != nil {
		o.DeliveredAt = u.DeliveredAt
	}
	if u.DeliveryLocation != nil {
		o.DeliveryLocation = u.DeliveryLocation
	}
	t.orders[id] = o
	return nil
}

func (t *memTx) InsertDocument(doc *models.ShipmentDocument) error {
	t.documents = append(t.documents, *doc)
	return nil
}

func (t *memTx) SetDeliveryProof(id uuid.UUID, url string, at time.Time) error {
	o, ok := t.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found", id)
	}
	o.EPODURL = &url
	o.EPODDate = &at
	t.orders[id] = o
	return nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    int
}

func (s *memStorage) Upload(_ context.Context, name string, data []byte, _ string) (Stored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return Stored{}, errors.New("storage unavailable")
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[name] = append([]byte(nil), data...)
	return Stored{URL: "https://storage.example/" + name, ObjectName: name, Provider: "memory"}, nil
}

type memNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *memNotifier) Notify(note models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

type memFingerprints struct {
	keys []string
}

func (f *memFingerprints) Remember(_ context.Context, awb, status, sdt string) {
	f.keys = append(f.keys, awb+"|"+status+"|"+sdt)
}

func strPtr(s string) *string { return &s }

func testOrder(awb string) models.Order {
	return models.Order{
		ID:      uuid.New(),
		OrderID: "ORD-" + awb,
		AWB:     strPtr(awb),
		Status:  courier.StatusManifested,
	}
}

func newTestProcessor(store *memStore) (*Processor, *memStorage, *memNotifier, *memFingerprints) {
	storage := &memStorage{}
	notifier := &memNotifier{}
	fp := &memFingerprints{}
	p := New(store, storage, notifier, fp, config.ProcessorConfig{}, nil)
	p.now = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }
	return p, storage, notifier, fp
}

func scanPayload(awb, status string) payload.ScanStatus {
	return payload.ScanStatus{
		AWB:            awb,
		Status:         status,
		StatusDateTime: "2024-01-15T10:30:00.000",
		StatusType:     "UD",
		StatusLocation: "Mumbai_Hub",
		Raw:            []byte(`{"Shipment":{}}`),
	}
}

func TestScanUpdatesOrder(t *testing.T) {
	order := testOrder("TEST1234567890")
	store := newMemStore(order)
	p, _, notifier, fp := newTestProcessor(store)

	outcome, err := p.Process(context.Background(), "req-1", scanPayload("TEST1234567890", "In Transit"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s, want processed", outcome)
	}

	if len(store.events) != 1 {
		t.Fatalf("events = %d, want 1", len(store.events))
	}
	ev := store.events[0]
	if ev.Status != "In Transit" || ev.MappedStatus != courier.StatusInTransit || !ev.Processed {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.OrderID == nil || *ev.OrderID != order.OrderID || ev.StatusAt == nil {
		t.Errorf("event not linked or timestamp unparsed: %+v", ev)
	}
	if got := store.orders[order.ID].Status; got != courier.StatusInTransit {
		t.Errorf("order status = %s, want in-transit", got)
	}
	if len(store.history) != 1 || store.history[0].RawStatus != "In Transit" {
		t.Errorf("unexpected history %+v", store.history)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].NewStatus != courier.StatusInTransit {
		t.Errorf("unexpected notifications %+v", notifier.sent)
	}
	if len(fp.keys) != 1 {
		t.Errorf("fingerprint not remembered")
	}
}

func TestScanTwiceStoresOneEvent(t *testing.T) {
	store := newMemStore(testOrder("TEST1234567890"))
	p, _, notifier, _ := newTestProcessor(store)
	pl := scanPayload("TEST1234567890", "Manifested")

	first, err := p.Process(context.Background(), "req-1", pl)
	if err != nil || first != OutcomeProcessed {
		t.Fatalf("first: %s %v", first, err)
	}
	second, err := p.Process(context.Background(), "req-2", pl)
	if err != nil || second != OutcomeDuplicate {
		t.Fatalf("second: %s %v", second, err)
	}
	if len(store.events) != 1 || len(store.history) != 1 {
		t.Fatalf("events=%d history=%d, want 1 and 1", len(store.events), len(store.history))
	}
	if len(notifier.sent) != 1 {
		t.Errorf("duplicate must not notify, got %d notifications", len(notifier.sent))
	}
}

func TestScanWithoutOrderIsKeptForReconciliation(t *testing.T) {
	store := newMemStore()
	p, _, notifier, _ := newTestProcessor(store)

	outcome, err := p.Process(context.Background(), "req", scanPayload("NOPE", "Manifested"))
	if err != nil {
		t.Fatalf("parent not found must not be an error: %v", err)
	}
	if outcome != OutcomeParentNotFound {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(store.events) != 1 || store.events[0].Processed {
		t.Fatalf("event should be stored unprocessed: %+v", store.events)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("no notification expected")
	}
}

func TestScanFallsBackToReferenceNumber(t *testing.T) {
	order := testOrder("OTHER")
	order.ReferenceNo = strPtr("REF-9")
	store := newMemStore(order)
	p, _, _, _ := newTestProcessor(store)

	pl := scanPayload("UNMATCHED", "Out for Delivery")
	pl.ReferenceNo = "REF-9"
	outcome, err := p.Process(context.Background(), "req", pl)
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("Process: %s %v", outcome, err)
	}
	if store.orders[order.ID].Status != courier.StatusOutForDelivery {
		t.Errorf("order not updated via reference number")
	}
}

func TestScanDeliveredSetsDeliveryFields(t *testing.T) {
	order := testOrder("AWB1")
	store := newMemStore(order)
	p, _, _, _ := newTestProcessor(store)

	if _, err := p.Process(context.Background(), "req", scanPayload("AWB1", "Delivered")); err != nil {
		t.Fatal(err)
	}
	got := store.orders[order.ID]
	if got.Status != courier.StatusDelivered || got.DeliveredAt == nil {
		t.Fatalf("delivery fields not set: %+v", got)
	}
	if got.DeliveryLocation == nil || *got.DeliveryLocation != "Mumbai_Hub" {
		t.Errorf("delivery location = %v", got.DeliveryLocation)
	}
}

func TestScanUnknownStatusKeepsCurrentStatus(t *testing.T) {
	order := testOrder("AWB1")
	store := newMemStore(order)
	p, _, notifier, _ := newTestProcessor(store)

	outcome, err := p.Process(context.Background(), "req", scanPayload("AWB1", "Teleported"))
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("Process: %s %v", outcome, err)
	}
	if store.orders[order.ID].Status != courier.StatusManifested {
		t.Errorf("unknown status replaced current status")
	}
	if len(store.history) != 1 || store.history[0].Status != courier.StatusUnknown {
		t.Errorf("unknown scan should still be recorded in history")
	}
	if len(notifier.sent) != 0 {
		t.Errorf("unknown status should not notify")
	}
}

func TestTransactionFailureRollsBackAndIsTransient(t *testing.T) {
	order := testOrder("AWB1")
	store := newMemStore(order)
	store.failTx = 1
	p, _, notifier, _ := newTestProcessor(store)

	_, err := p.Process(context.Background(), "req", scanPayload("AWB1", "Delivered"))
	if !queue.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(store.events) != 0 || len(store.history) != 0 || store.orders[order.ID].Status != courier.StatusManifested {
		t.Fatalf("partial writes survived a failed transaction")
	}
	if len(notifier.sent) != 0 {
		t.Errorf("notification sent for failed transaction")
	}
}

func TestTransientTwiceThenSuccessThroughQueue(t *testing.T) {
	store := newMemStore(testOrder("AWB1"))
	store.failTx = 2
	p, _, _, _ := newTestProcessor(store)

	q := queue.New(config.QueueConfig{MaxSize: 10, MaxAttempts: 3, BaseBackoff: time.Millisecond, JobTimeout: time.Second}, nil)
	w := queue.NewWorker(q, p, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer func() {
		cancel()
		q.Stop()
		<-w.Done()
	}()

	if _, err := q.Enqueue(payload.KindScanStatus, scanPayload("AWB1", "Manifested"), "req"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for q.Stats().Processed == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	stats := q.Stats()
	if stats.Processed != 1 || stats.Retries != 2 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.events) != 1 {
		t.Fatalf("events = %d, want exactly 1", len(store.events))
	}
}

func TestEPODUploadsAndSetsProof(t *testing.T) {
	order := testOrder("W1")
	store := newMemStore(order)
	p, storage, notifier, _ := newTestProcessor(store)

	img := payload.Image{ImageKind: payload.KindEPOD, AWB: "W1", OrderID: order.OrderID, Data: []byte("img"), MimeType: "image/jpeg"}
	outcome, err := p.Process(context.Background(), "req", img)
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("Process: %s %v", outcome, err)
	}

	if _, ok := storage.objects["epod/W1.jpg"]; !ok {
		t.Fatalf("object not stored under deterministic name, have %v", storage.objects)
	}
	if len(store.documents) != 1 {
		t.Fatalf("documents = %d", len(store.documents))
	}
	doc := store.documents[0]
	if doc.Kind != models.DocumentDeliveryProof || doc.URL != "https://storage.example/epod/W1.jpg" || !doc.Processed {
		t.Errorf("unexpected document %+v", doc)
	}
	got := store.orders[order.ID]
	if got.EPODURL == nil || *got.EPODURL != doc.URL || got.EPODDate == nil {
		t.Errorf("delivery proof not set on order: %+v", got)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].DocumentURL != doc.URL {
		t.Errorf("unexpected notifications %+v", notifier.sent)
	}
}

func TestImageRedeliveryOverwritesSameObject(t *testing.T) {
	store := newMemStore()
	p, storage, _, _ := newTestProcessor(store)

	img := payload.Image{ImageKind: payload.KindQCImage, AWB: "W3", ReturnID: "R9", Data: []byte("a"), MimeType: "image/png"}
	for i := 0; i < 2; i++ {
		if _, err := p.Process(context.Background(), "req", img); err != nil {
			t.Fatal(err)
		}
	}
	if len(storage.objects) != 1 {
		t.Fatalf("objects = %v, want one overwritten object", storage.objects)
	}
	if _, ok := storage.objects["qc-images/W3_R9.png"]; !ok {
		t.Errorf("unexpected object names %v", storage.objects)
	}
}

func TestUploadFailureIsTransientAndWritesNothing(t *testing.T) {
	store := newMemStore(testOrder("W1"))
	p, storage, _, _ := newTestProcessor(store)
	storage.fail = 1

	img := payload.Image{ImageKind: payload.KindSorterImage, AWB: "W1", Data: []byte("a"), MimeType: "image/jpeg"}
	_, err := p.Process(context.Background(), "req", img)
	if !queue.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(store.documents) != 0 || store.txs != 0 {
		t.Errorf("no transaction should run after a failed upload")
	}
}

type otherPayload struct{}

func (otherPayload) Kind() payload.Kind      { return "other" }
func (otherPayload) TrackingNumber() string { return "X" }

func TestUnsupportedPayloadIsPermanent(t *testing.T) {
	p, _, _, _ := newTestProcessor(newMemStore())
	_, err := p.Process(context.Background(), "req", otherPayload{})
	if !errors.Is(err, ErrUnsupportedPayload) || queue.Retryable(err) {
		t.Fatalf("expected permanent ErrUnsupportedPayload, got %v", err)
	}
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		kind                    models.DocumentKind
		awb, returnID, mimeType string
		want                    string
	}{
		{models.DocumentDeliveryProof, "W1", "", "image/jpeg", "epod/W1.jpg"},
		{models.DocumentSorterImage, "W2", "", "image/png", "sorter-images/W2.png"},
		{models.DocumentQualityCheckImage, "W3", "R9", "image/webp", "qc-images/W3_R9.webp"},
		{models.DocumentOther, "a/b c", "", "application/octet-stream", "other/a-b-c.bin"},
	}
	for _, tt := range tests {
		if got := ObjectName(tt.kind, tt.awb, tt.returnID, tt.mimeType); got != tt.want {
			t.Errorf("ObjectName(%s, %q) = %q, want %q", tt.kind, tt.awb, got, tt.want)
		}
	}
}
