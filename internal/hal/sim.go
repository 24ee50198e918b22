package hal

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/me/rangerd/pkg/model"
)

// SimController is a deterministic in-memory Controller used by the daemon
// when no hardware is present, and by end-to-end tests. It answers from a
// seeded per-address distance table after a configurable latency; addresses
// missing from the table are omitted from the result batch, exercising the
// scheduler's failure synthesis.
type SimController struct {
	mu        sync.Mutex
	clock     clock.Clock
	logger    *slog.Logger
	latency   time.Duration
	distances map[string]int // addr -> distance mm
	aborted   map[int64]bool
	accepting bool
	sink      ResultSink
	ackSink   func(opID int64)
}

// ResultSink receives result batches from the controller. The sink is called
// on its own goroutine, never from within Range.
type ResultSink func(opID int64, outcomes []model.Outcome)

// NewSimController creates a simulated controller. latency is how long a
// ranging burst takes before results are delivered.
func NewSimController(clk clock.Clock, latency time.Duration, logger *slog.Logger) *SimController {
	return &SimController{
		clock:     clk,
		logger:    logger.With("component", "simctrl"),
		latency:   latency,
		distances: make(map[string]int),
		aborted:   make(map[int64]bool),
		accepting: true,
	}
}

// SetResultSink wires the destination for result batches. Must be called
// before the first Range.
func (c *SimController) SetResultSink(sink ResultSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// SetDistance seeds the measured distance for an address. Addresses without
// a seeded distance are omitted from results.
func (c *SimController) SetDistance(addr string, distanceMm int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.distances[model.NormalizeAddr(addr)] = distanceMm
}

// SetAbortAckSink wires the destination for abort acknowledgements. The ack
// fires when an aborted operation's pending results are dropped.
func (c *SimController) SetAbortAckSink(sink func(opID int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ackSink = sink
}

// SetAccepting controls whether Range accepts new operations. Used to
// simulate a controller that declines dispatch.
func (c *SimController) SetAccepting(accepting bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepting = accepting
}

// Range implements Controller. Results are delivered after the configured
// latency unless the operation is aborted first.
func (c *SimController) Range(opID int64, cmd RangeCommand) bool {
	c.mu.Lock()
	if !c.accepting || c.sink == nil {
		c.mu.Unlock()
		return false
	}
	outcomes := make([]model.Outcome, 0, len(cmd.Addrs))
	now := c.clock.Now().UnixMilli()
	for _, addr := range cmd.Addrs {
		dist, ok := c.distances[addr]
		if !ok {
			continue // controller could not measure this target
		}
		outcomes = append(outcomes, model.Outcome{
			Status:           model.OutcomeSuccess,
			Addr:             addr,
			DistanceMm:       dist,
			DistanceStdDevMm: dist / 50,
			RSSI:             -55,
			NumAttempted:     cmd.BurstSize,
			NumSuccessful:    cmd.BurstSize,
			MeasuredAtMs:     now,
		})
	}
	sink := c.sink
	c.mu.Unlock()

	c.clock.AfterFunc(c.latency, func() {
		c.mu.Lock()
		dropped := c.aborted[opID]
		delete(c.aborted, opID)
		ack := c.ackSink
		c.mu.Unlock()
		if dropped {
			c.logger.Debug("dropping results for aborted operation", "op_id", opID)
			if ack != nil {
				ack(opID)
			}
			return
		}
		sink(opID, outcomes)
	})
	return true
}

// AbortRange implements Controller.
func (c *SimController) AbortRange(opID int64, addrs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted[opID] = true
	c.logger.Debug("abort", "op_id", opID, "targets", len(addrs))
}

// Capabilities implements Controller.
func (c *SimController) Capabilities() model.Capabilities {
	return model.Capabilities{
		OneSidedSupported:  true,
		TwoSidedSupported:  true,
		ResponderSupported: false,
		MaxPeers:           10,
	}
}
