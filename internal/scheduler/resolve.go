package scheduler

import (
	"net"

	"github.com/me/rangerd/pkg/model"
)

// onResolved handles a directory reply. The entry kept its queue slot while
// resolving, so a reply only ever moves it Resolving -> Queued; if every
// target failed resolution the entry completes in place with synthesized
// failures. A handle mapped to an empty or unparseable address counts as
// unresolved: that target fails permanently and is never sent to the
// controller. A reply for an entry that was cancelled or purged while the
// lookup was in flight is dropped.
func (s *Scheduler) onResolved(id string, addrs map[model.PeerHandle]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findEntryLocked(id)
	if idx < 0 {
		s.logger.Debug("dropping directory reply for retired entry", "session", id)
		return
	}
	e := s.queue[idx]
	if e.state != model.EntryStateResolving {
		s.logger.Debug("dropping directory reply, entry not resolving",
			"session", id, "state", e.state)
		return
	}

	// The directory is not trusted to return usable addresses; normalize so
	// result reconciliation matches by the same key the dispatch used.
	resolved := make(map[model.PeerHandle]string, len(addrs))
	for h, addr := range addrs {
		addr = model.NormalizeAddr(addr)
		if _, err := net.ParseMAC(addr); err != nil {
			s.logger.Warn("directory returned unusable address",
				"session", id, "handle", h)
			continue
		}
		resolved[h] = addr
	}

	e.resolved = resolved
	e.dispatchAddrs = make([]string, 0, len(e.request.Targets))
	unresolved := 0
	for _, t := range e.request.Targets {
		if t.IsHandle() {
			addr, ok := resolved[t.Handle]
			if !ok {
				unresolved++
				continue
			}
			e.dispatchAddrs = append(e.dispatchAddrs, addr)
		} else {
			e.dispatchAddrs = append(e.dispatchAddrs, t.Addr)
		}
	}
	e.state = model.EntryStateQueued

	if len(e.dispatchAddrs) == 0 {
		// Every target failed resolution. The request completes with
		// per-target failures rather than an opaque whole-request error.
		outcomes := make([]model.Outcome, 0, len(e.request.Targets))
		for _, t := range e.request.Targets {
			outcomes = append(outcomes, model.FailedOutcome(t))
		}
		if s.retireLocked(e, model.EntryStateCompleted, model.StatusTranslationFailure, outcomes) && e.sink != nil {
			e.sink.OnResults(outcomes)
		}
		s.advanceLocked()
		return
	}

	if unresolved > 0 {
		s.logger.Info("partial resolution, unresolved targets will be reported failed",
			"session", e.id, "unresolved", unresolved)
	}
	s.advanceLocked()
}
