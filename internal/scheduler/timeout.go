package scheduler

import "github.com/me/rangerd/pkg/model"

// armTimeoutLocked starts the reply deadline for a freshly dispatched entry.
// Requests that went through handle resolution get the longer deadline, since
// those links take longer to settle. The fired callback carries the opID it
// was armed for; a stale fire is a no-op.
func (s *Scheduler) armTimeoutLocked(e *entry) {
	d := s.cfg.RangingTimeout
	if e.request.HasHandleTargets() {
		d = s.cfg.HandleRangingTimeout
	}
	opID := e.opID
	s.timerOpID = opID
	s.timer = s.clock.AfterFunc(d, func() {
		s.onTimeout(opID)
	})
}

// disarmTimeoutLocked stops the pending deadline, if any.
func (s *Scheduler) disarmTimeoutLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerOpID = 0
}

// onTimeout fires when the controller never answered. The operation is
// aborted before the queue advances so the controller is idle when the next
// entry dispatches. Results for the aborted opID that arrive later are
// discarded as stale.
func (s *Scheduler) onTimeout(opID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timerOpID != opID || len(s.queue) == 0 {
		return
	}
	head := s.queue[0]
	if head.state != model.EntryStateDispatched || head.opID != opID {
		return
	}
	s.logger.Warn("ranging operation timed out", "session", head.id, "op_id", opID)
	s.disarmTimeoutLocked()
	s.controller.AbortRange(opID, head.dispatchAddrs)
	s.failEntryLocked(head, model.ReasonFailed, model.StatusTimeout)
	s.advanceLocked()
}
