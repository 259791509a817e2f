package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/UDDITwork/shipsarthi-sub005/internal/payload"
	"github.com/UDDITwork/shipsarthi-sub005/internal/queue"
)

func TestCounters(t *testing.T) {
	m := New()

	m.WebhookReceived("scan-status", OutcomeQueued)
	m.WebhookReceived("scan-status", OutcomeQueued)
	m.WebhookReceived("epod", OutcomeInvalid)
	if got := testutil.ToFloat64(m.webhooksTotal.WithLabelValues("scan-status", OutcomeQueued)); got != 2 {
		t.Errorf("scan-status queued = %v, want 2", got)
	}

	m.JobFinished(payload.KindScanStatus, queue.StateRetryScheduled, 10*time.Millisecond)
	m.RetryScheduled(payload.KindScanStatus, 1, time.Second)
	m.JobFinished(payload.KindScanStatus, queue.StateCompleted, 5*time.Millisecond)
	if got := testutil.ToFloat64(m.retriesTotal.WithLabelValues(string(payload.KindScanStatus))); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.jobsTotal.WithLabelValues(string(payload.KindScanStatus), string(queue.StateCompleted))); got != 1 {
		t.Errorf("completed = %v, want 1", got)
	}

	m.NotificationDropped("log")
	m.NotificationFailed("http")
	if got := testutil.ToFloat64(m.notificationsDropped.WithLabelValues("log")); got != 1 {
		t.Errorf("dropped = %v", got)
	}
}

func TestQueueGauges(t *testing.T) {
	m := New()
	m.RegisterQueue(func() queue.Stats { return queue.Stats{Depth: 7, Processing: true, Scheduled: 2} })

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if g := metric.GetGauge(); g != nil {
				values[f.GetName()] = g.GetValue()
			}
		}
	}
	if values["courier_webhooks_queue_depth"] != 7 || values["courier_webhooks_queue_processing"] != 1 || values["courier_webhooks_queue_scheduled_retries"] != 2 {
		t.Errorf("unexpected gauges %v", values)
	}
}
