package scheduler

import (
	"github.com/me/rangerd/internal/hal"
	"github.com/me/rangerd/pkg/model"
)

// advanceLocked drains the queue head until an entry is dispatched, the head
// is still resolving, or the queue empties. Throttled and declined entries
// are retired inline so one retirement can dispatch a later entry.
func (s *Scheduler) advanceLocked() {
	for len(s.queue) > 0 && s.available {
		head := s.queue[0]
		switch head.state {
		case model.EntryStateDispatched:
			// One operation outstanding; nothing to do until it retires.
			return
		case model.EntryStateResolving:
			// The head holds its slot while the directory replies.
			return
		}
		if !s.admission.TryAdmit(head.caller, head.attribution) {
			s.failEntryLocked(head, model.ReasonThrottled, model.StatusThrottle)
			continue
		}
		if s.dispatchLocked(head) {
			return
		}
	}
}

// dispatchLocked hands the entry to the controller. A decline retires the
// entry immediately and returns false so the caller can try the next one.
func (s *Scheduler) dispatchLocked(e *entry) bool {
	e.opID = s.nextOpID
	s.nextOpID++
	e.state = model.EntryStateDispatched
	e.dispatchedAt = s.clock.Now()

	cmd := hal.RangeCommand{Addrs: e.dispatchAddrs, BurstSize: e.request.BurstSize}
	if !s.controller.Range(e.opID, cmd) {
		s.logger.Warn("controller declined dispatch", "session", e.id, "op_id", e.opID)
		s.failEntryLocked(e, model.ReasonFailed, model.StatusControllerFailure)
		return false
	}
	s.logger.Info("dispatched operation",
		"session", e.id, "op_id", e.opID, "targets", len(cmd.Addrs))
	s.armTimeoutLocked(e)
	return true
}

// retireLocked finalizes an entry exactly once: terminal state, queue
// removal, telemetry, and the durable session record. Entries rejected at
// submit time were never queued; removal is a no-op for them. Returns false
// if the entry was already terminal. The session record is written before
// the caller notifies the sink, so history is consistent by the time the
// caller observes the terminal event.
func (s *Scheduler) retireLocked(e *entry, next model.EntryState, status model.OverallStatus, outcomes []model.Outcome) bool {
	if e.state.IsTerminal() {
		return false
	}
	if !e.state.CanTransitionTo(next) {
		s.logger.Error("invalid entry transition",
			"session", e.id, "from", e.state, "to", next)
	}
	wasDispatched := e.state == model.EntryStateDispatched
	e.state = next

	if idx := s.findEntryLocked(e.id); idx >= 0 {
		s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
		s.tele.SetQueueDepth(len(s.queue))
	}
	if wasDispatched {
		if s.timerOpID == e.opID {
			s.disarmTimeoutLocked()
		}
		s.tele.ObserveRangingDuration(s.clock.Now().Sub(e.dispatchedAt))
	}
	s.tele.RecordRetire(status)
	s.logger.Info("retired request", "session", e.id, "status", status)

	if s.onRetired != nil {
		s.onRetired(model.Session{
			ID:          e.id,
			OperationID: e.opID,
			Caller:      e.caller,
			CallerUID:   e.callerUID,
			Attribution: e.attribution,
			Targets:     e.request.Targets,
			Outcomes:    outcomes,
			Status:      status,
			CreatedAt:   e.createdAt,
			CompletedAt: s.clock.Now(),
		})
	}
	return true
}

// failEntryLocked retires the entry and delivers the failure reason.
func (s *Scheduler) failEntryLocked(e *entry, reason model.ReasonCode, status model.OverallStatus) {
	if !s.retireLocked(e, model.EntryStateFailed, status, nil) {
		return
	}
	if e.sink != nil {
		e.sink.OnFailure(reason)
	}
}
