package hal

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/me/rangerd/internal/logging"
	"github.com/me/rangerd/pkg/model"
)

type sinkRecorder struct {
	mu      sync.Mutex
	batches map[int64][]model.Outcome
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{batches: make(map[int64][]model.Outcome)}
}

func (r *sinkRecorder) sink(opID int64, outcomes []model.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[opID] = outcomes
}

func (r *sinkRecorder) get(opID int64) ([]model.Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, ok := r.batches[opID]
	return out, ok
}

// waitFor polls until cond returns true. The mock clock fires AfterFunc
// callbacks on their own goroutine, so deliveries are observed by polling.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func newSim(t *testing.T) (*SimController, *clock.Mock, *sinkRecorder) {
	t.Helper()
	mock := clock.NewMock()
	rec := newSinkRecorder()
	sim := NewSimController(mock, 100*time.Millisecond, logging.Discard())
	sim.SetResultSink(rec.sink)
	return sim, mock, rec
}

func TestSimController_DeliversSeededDistances(t *testing.T) {
	sim, mock, rec := newSim(t)
	sim.SetDistance("AA:BB:CC:DD:EE:01", 1500)

	ok := sim.Range(1000, RangeCommand{Addrs: []string{"aa:bb:cc:dd:ee:01"}, BurstSize: 8})
	if !ok {
		t.Fatal("Range declined")
	}
	if _, got := rec.get(1000); got {
		t.Fatal("results delivered before latency elapsed")
	}

	mock.Add(100 * time.Millisecond)
	waitFor(t, func() bool { _, ok := rec.get(1000); return ok })

	out, _ := rec.get(1000)
	if len(out) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(out))
	}
	if out[0].Status != model.OutcomeSuccess || out[0].DistanceMm != 1500 {
		t.Errorf("outcome = %+v, want success at 1500mm", out[0])
	}
	if out[0].Addr != "aa:bb:cc:dd:ee:01" {
		t.Errorf("outcome addr = %q, want normalized aa:bb:cc:dd:ee:01", out[0].Addr)
	}
}

func TestSimController_OmitsUnseededAddresses(t *testing.T) {
	sim, mock, rec := newSim(t)
	sim.SetDistance("aa:bb:cc:dd:ee:01", 1500)

	sim.Range(1001, RangeCommand{Addrs: []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02"}, BurstSize: 8})
	mock.Add(100 * time.Millisecond)
	waitFor(t, func() bool { _, ok := rec.get(1001); return ok })

	out, _ := rec.get(1001)
	if len(out) != 1 {
		t.Fatalf("got %d outcomes, want 1 (unseeded address omitted)", len(out))
	}
}

func TestSimController_DeclinesWhenNotAccepting(t *testing.T) {
	sim, _, _ := newSim(t)
	sim.SetAccepting(false)
	if sim.Range(1002, RangeCommand{Addrs: []string{"aa:bb:cc:dd:ee:01"}}) {
		t.Error("Range accepted while controller is not accepting")
	}
}

func TestSimController_AbortDropsPendingDelivery(t *testing.T) {
	sim, mock, rec := newSim(t)
	sim.SetDistance("aa:bb:cc:dd:ee:01", 1500)

	var ackMu sync.Mutex
	var acked []int64
	sim.SetAbortAckSink(func(opID int64) {
		ackMu.Lock()
		defer ackMu.Unlock()
		acked = append(acked, opID)
	})

	sim.Range(1003, RangeCommand{Addrs: []string{"aa:bb:cc:dd:ee:01"}, BurstSize: 8})
	sim.AbortRange(1003, []string{"aa:bb:cc:dd:ee:01"})
	mock.Add(100 * time.Millisecond)

	waitFor(t, func() bool {
		ackMu.Lock()
		defer ackMu.Unlock()
		return len(acked) == 1 && acked[0] == 1003
	})
	if _, ok := rec.get(1003); ok {
		t.Error("aborted operation still delivered results")
	}
}
