package metrics

import (
	"testing"
	"time"

	"github.com/me/rangerd/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordRequest()
	c.RecordRequest()
	c.RecordRetire(model.StatusSuccess)
	c.RecordRetire(model.StatusTimeout)
	c.ObserveRangingDuration(150 * time.Millisecond)
	c.SetQueueDepth(3)
	c.SetAvailability(true)

	if got := testutil.ToFloat64(c.requestsTotal); got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.retiredTotal.WithLabelValues("SUCCESS")); got != 1 {
		t.Errorf("retired_total{SUCCESS} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.retiredTotal.WithLabelValues("TIMEOUT")); got != 1 {
		t.Errorf("retired_total{TIMEOUT} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.queueDepth); got != 3 {
		t.Errorf("queue_depth = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.available); got != 1 {
		t.Errorf("available = %v, want 1", got)
	}

	c.SetAvailability(false)
	if got := testutil.ToFloat64(c.available); got != 0 {
		t.Errorf("available = %v, want 0", got)
	}
}
