package scheduler

import "github.com/me/rangerd/pkg/model"

// OnControllerResults is the controller's result entry point. A batch is
// accepted only if it names the currently dispatched operation; anything else
// is a late arrival for a retired operation and is discarded.
func (s *Scheduler) OnControllerResults(opID int64, outcomes []model.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		s.logger.Debug("discarding controller results, queue empty", "op_id", opID)
		return
	}
	head := s.queue[0]
	if head.state != model.EntryStateDispatched || head.opID != opID {
		s.logger.Debug("discarding stale controller results",
			"op_id", opID, "current_op_id", head.opID)
		return
	}
	s.disarmTimeoutLocked()

	final := reconcile(head, outcomes)
	status := model.StatusFail
	for _, o := range final {
		if o.Status == model.OutcomeSuccess {
			status = model.StatusSuccess
			break
		}
	}
	if s.retireLocked(head, model.EntryStateCompleted, status, final) && head.sink != nil {
		head.sink.OnResults(final)
	}
	s.advanceLocked()
}

// OnControllerAbortAck is the controller's acknowledgement that an abort
// completed. The operation is already retired by the time the ack arrives;
// the event exists for the log trail.
func (s *Scheduler) OnControllerAbortAck(opID int64) {
	s.logger.Debug("controller acknowledged abort", "op_id", opID)
}

// reconcile maps a controller batch back onto the caller's target list:
// one outcome per requested target, in request order, failures synthesized
// for targets the controller never answered for. A target requested by peer
// handle is reported by that handle; the resolved address never leaks back.
func reconcile(e *entry, got []model.Outcome) []model.Outcome {
	byAddr := make(map[string]model.Outcome, len(got))
	for _, o := range got {
		byAddr[model.NormalizeAddr(o.Addr)] = o
	}

	final := make([]model.Outcome, 0, len(e.request.Targets))
	for _, t := range e.request.Targets {
		addr := t.Addr
		if t.IsHandle() {
			resolvedAddr, ok := e.resolved[t.Handle]
			if !ok {
				final = append(final, model.FailedOutcome(t))
				continue
			}
			addr = resolvedAddr
		}
		o, ok := byAddr[addr]
		if !ok {
			final = append(final, model.FailedOutcome(t))
			continue
		}
		if t.IsHandle() {
			o.Handle = t.Handle
			o.Addr = ""
		}
		final = append(final, o)
	}
	return final
}
