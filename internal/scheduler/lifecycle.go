package scheduler

import "github.com/me/rangerd/pkg/model"

// SetControllerAvailable records whether the ranging controller is up.
func (s *Scheduler) SetControllerAvailable(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controllerUp == up {
		return
	}
	s.controllerUp = up
	s.recomputeAvailabilityLocked()
}

// SetGatingCondition records an external precondition flipping. An unknown
// condition name is adopted, so collaborators can introduce gates at runtime.
func (s *Scheduler) SetGatingCondition(name string, satisfied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, known := s.gates[name]; known && current == satisfied {
		return
	}
	s.gates[name] = satisfied
	s.recomputeAvailabilityLocked()
}

// GatingConditions returns a snapshot of the gates and their state.
func (s *Scheduler) GatingConditions() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]bool, len(s.gates))
	for name, satisfied := range s.gates {
		snapshot[name] = satisfied
	}
	return snapshot
}

// recomputeAvailabilityLocked derives availability from the controller flag
// and the gates. Flips are coalesced: two gates dropping in a row produce one
// transition. Losing availability purges the whole queue; throttle stamps in
// the admission controller survive the purge.
func (s *Scheduler) recomputeAvailabilityLocked() {
	available := s.controllerUp
	for _, satisfied := range s.gates {
		if !satisfied {
			available = false
			break
		}
	}
	if available == s.available {
		return
	}
	s.available = available
	s.tele.SetAvailability(available)
	s.logger.Info("availability changed", "available", available)
	if s.onAvailability != nil {
		s.onAvailability(available)
	}
	if !available {
		s.purgeQueueLocked()
	}
}

// purgeQueueLocked fails every queued entry with NOT_AVAILABLE, aborting the
// dispatched one first so the controller is idle when availability returns.
func (s *Scheduler) purgeQueueLocked() {
	for len(s.queue) > 0 {
		e := s.queue[0]
		if e.state == model.EntryStateDispatched {
			s.disarmTimeoutLocked()
			s.controller.AbortRange(e.opID, e.dispatchAddrs)
		}
		s.failEntryLocked(e, model.ReasonNotAvailable, model.StatusNotAvailable)
	}
}

// CancelByAttribution removes the given principals from every queued entry's
// attribution. An entry whose attribution empties is cancelled: the caller
// gets OnCancelled, a dispatched entry is aborted before the queue advances.
// Entries that retain other principals stay queued, now charged only to the
// survivors. Returns the number of entries cancelled.
func (s *Scheduler) CancelByAttribution(att model.AttributionSet) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for i := 0; i < len(s.queue); {
		e := s.queue[i]
		if !e.attribution.Overlaps(att) {
			i++
			continue
		}
		remaining := e.attribution.Subtract(att)
		if !remaining.IsEmpty() {
			s.logger.Info("reduced entry attribution",
				"session", e.id, "attribution", remaining.String())
			e.attribution = remaining
			i++
			continue
		}
		s.logger.Info("cancelling entry", "session", e.id, "state", e.state)
		if e.state == model.EntryStateDispatched {
			s.disarmTimeoutLocked()
			s.controller.AbortRange(e.opID, e.dispatchAddrs)
		}
		if s.retireLocked(e, model.EntryStateCancelled, model.StatusCancelled, nil) && e.sink != nil {
			e.sink.OnCancelled()
		}
		cancelled++
		// retireLocked removed the entry at i; the next one slid into place.
	}
	if cancelled > 0 {
		s.advanceLocked()
	}
	return cancelled
}

// OnCallerLost purges a request whose caller died or disconnected before the
// terminal event. No callback is delivered; there is nobody to deliver it to.
func (s *Scheduler) OnCallerLost(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findEntryLocked(sessionID)
	if idx < 0 {
		return
	}
	e := s.queue[idx]
	s.logger.Info("caller lost, purging request", "session", sessionID, "state", e.state)
	if e.state == model.EntryStateDispatched {
		s.disarmTimeoutLocked()
		s.controller.AbortRange(e.opID, e.dispatchAddrs)
	}
	e.sink = nil
	s.retireLocked(e, model.EntryStateCancelled, model.StatusCancelled, nil)
	s.advanceLocked()
}
