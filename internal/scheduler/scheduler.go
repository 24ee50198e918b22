// Package scheduler serializes ranging requests onto a controller that can
// run only one operation at a time. Requests enter a FIFO queue at submit,
// peer-handle targets are resolved while the entry holds its queue slot, and
// at most one entry is dispatched to the controller at any moment. All state
// lives behind one mutex; controller results, directory replies, and timer
// fires re-enter through exported methods that validate the event is still
// current before acting on it.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/me/rangerd/internal/admission"
	"github.com/me/rangerd/internal/directory"
	"github.com/me/rangerd/internal/hal"
	"github.com/me/rangerd/pkg/model"
)

// firstOpID is where operation ids start. Ids below it never tag a real
// operation, which makes stray controller events easy to spot in logs.
const firstOpID = 1000

// CallbackSink receives the terminal event for one request. Exactly one of
// the three methods is invoked, exactly once, possibly while the scheduler
// lock is held: implementations must return quickly and must not call back
// into the scheduler.
type CallbackSink interface {
	// OnResults delivers per-target outcomes in the order the targets were
	// requested. Individual outcomes may still be failures.
	OnResults(outcomes []model.Outcome)
	// OnFailure reports that the whole request failed before producing
	// outcomes.
	OnFailure(reason model.ReasonCode)
	// OnCancelled reports that the request was cancelled and will produce
	// nothing.
	OnCancelled()
}

// Telemetry receives scheduler measurements. The Collector in
// internal/metrics implements it; tests use NopTelemetry.
type Telemetry interface {
	RecordRequest()
	RecordRetire(status model.OverallStatus)
	ObserveRangingDuration(d time.Duration)
	SetQueueDepth(depth int)
	SetAvailability(available bool)
}

// NopTelemetry discards all measurements.
type NopTelemetry struct{}

func (NopTelemetry) RecordRequest()                       {}
func (NopTelemetry) RecordRetire(model.OverallStatus)     {}
func (NopTelemetry) ObserveRangingDuration(time.Duration) {}
func (NopTelemetry) SetQueueDepth(int)                    {}
func (NopTelemetry) SetAvailability(bool)                 {}

// Config carries the scheduler timing knobs.
type Config struct {
	MaxTargets           int
	RangingTimeout       time.Duration
	HandleRangingTimeout time.Duration
}

// entry is one request's life in the queue. An entry occupies its queue slot
// from submit until retirement; the dispatched entry stays at the head until
// its results, timeout, or cancellation retire it.
type entry struct {
	id          string
	caller      string
	callerUID   model.Principal
	attribution model.AttributionSet
	request     model.RangingRequest
	sink        CallbackSink
	state       model.EntryState

	// Resolution products, fixed once the entry leaves Resolving.
	resolved      map[model.PeerHandle]string // handle -> address
	dispatchAddrs []string                    // dispatch order, resolvable targets only

	opID         int64 // nonzero once dispatched
	createdAt    time.Time
	dispatchedAt time.Time
}

// Scheduler owns the queue and the single outstanding controller operation.
type Scheduler struct {
	mu         sync.Mutex
	clock      clock.Clock
	logger     *slog.Logger
	cfg        Config
	controller hal.Controller
	dir        directory.Directory
	admission  *admission.Controller
	tele       Telemetry

	queue    []*entry
	nextOpID int64

	timer     *clock.Timer
	timerOpID int64

	gates        map[string]bool
	controllerUp bool
	available    bool

	// onRetired is invoked under the scheduler lock after each retirement,
	// before the sink sees the terminal event. It blocks the scheduler for
	// its duration and must not re-enter it.
	onRetired func(model.Session)
	// onAvailability is invoked under the scheduler lock whenever the
	// derived availability flips. Same contract as onRetired.
	onAvailability func(available bool)
}

// New creates a scheduler. gatingConditions names the external preconditions
// that must all hold for ranging to be available; they start satisfied.
// Availability additionally requires SetControllerAvailable(true).
func New(clk clock.Clock, cfg Config, controller hal.Controller, dir directory.Directory, adm *admission.Controller, tele Telemetry, gatingConditions []string, logger *slog.Logger) *Scheduler {
	gates := make(map[string]bool, len(gatingConditions))
	for _, name := range gatingConditions {
		gates[name] = true
	}
	if tele == nil {
		tele = NopTelemetry{}
	}
	return &Scheduler{
		clock:      clk,
		logger:     logger.With("component", "scheduler"),
		cfg:        cfg,
		controller: controller,
		dir:        dir,
		admission:  adm,
		tele:       tele,
		nextOpID:   firstOpID,
		gates:      gates,
	}
}

// SetRetiredHook registers the hook invoked after each retirement. Must be
// called before the first Submit.
func (s *Scheduler) SetRetiredHook(hook func(model.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRetired = hook
}

// SetAvailabilityHook registers the hook invoked when availability flips.
// Must be called before the first Submit.
func (s *Scheduler) SetAvailabilityHook(hook func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAvailability = hook
}

// Submit validates and queues a request. The returned session id identifies
// the request for cancellation and history. A validation failure is returned
// as an error and nothing is queued; every other outcome, including
// unavailability and flood rejection, is delivered through the sink.
func (s *Scheduler) Submit(caller string, callerUID model.Principal, req model.RangingRequest, sink CallbackSink) (string, error) {
	if err := req.Validate(s.cfg.MaxTargets); err != nil {
		return "", err
	}
	if req.Attribution.IsEmpty() {
		req.Attribution = model.NewAttributionSet(callerUID)
	}

	e := &entry{
		id:          uuid.NewString(),
		caller:      caller,
		callerUID:   callerUID,
		attribution: req.Attribution.Clone(),
		request:     req,
		sink:        sink,
		createdAt:   s.clock.Now(),
	}

	s.mu.Lock()
	s.tele.RecordRequest()

	if !s.available {
		s.logger.Info("rejecting request, ranging unavailable", "session", e.id, "caller", caller)
		e.state = model.EntryStateQueued
		s.failEntryLocked(e, model.ReasonNotAvailable, model.StatusNotAvailable)
		s.mu.Unlock()
		return e.id, nil
	}
	if !s.admission.CheckFlood(e.attribution, s.queuedCountLocked) {
		e.state = model.EntryStateQueued
		s.failEntryLocked(e, model.ReasonNotAvailable, model.StatusNotAvailable)
		s.mu.Unlock()
		return e.id, nil
	}

	if req.HasHandleTargets() {
		e.state = model.EntryStateResolving
	} else {
		e.state = model.EntryStateQueued
		e.dispatchAddrs = make([]string, 0, len(req.Targets))
		for _, t := range req.Targets {
			e.dispatchAddrs = append(e.dispatchAddrs, t.Addr)
		}
	}
	s.queue = append(s.queue, e)
	s.tele.SetQueueDepth(len(s.queue))
	s.logger.Info("queued request",
		"session", e.id, "caller", caller, "targets", len(req.Targets),
		"attribution", e.attribution.String(), "state", e.state)

	var handles []model.PeerHandle
	if e.state == model.EntryStateResolving {
		for _, t := range req.Targets {
			if t.IsHandle() {
				handles = append(handles, t.Handle)
			}
		}
	} else {
		s.advanceLocked()
	}
	s.mu.Unlock()

	// The directory is consulted outside the lock; its reply re-enters
	// through onResolved and is ignored if the entry is already gone.
	if handles != nil {
		id := e.id
		s.dir.LookupAddresses(callerUID, handles, func(addrs map[model.PeerHandle]string) {
			s.onResolved(id, addrs)
		})
	}
	return e.id, nil
}

// Available reports whether ranging is currently available: the controller is
// up and every gating condition holds.
func (s *Scheduler) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Capabilities reports what the controller supports.
func (s *Scheduler) Capabilities() model.Capabilities {
	return s.controller.Capabilities()
}

// QueueDepth reports the number of entries currently queued, including the
// dispatched one.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// queuedCountLocked counts queue entries charged to a principal.
func (s *Scheduler) queuedCountLocked(p model.Principal) int {
	n := 0
	for _, e := range s.queue {
		if e.attribution.Contains(p) {
			n++
		}
	}
	return n
}

// findEntryLocked returns the queue index of the entry with the given
// session id, or -1.
func (s *Scheduler) findEntryLocked(id string) int {
	for i, e := range s.queue {
		if e.id == id {
			return i
		}
	}
	return -1
}
