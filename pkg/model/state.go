package model

// EntryState represents the lifecycle state of a queued ranging request.
type EntryState string

const (
	EntryStateResolving  EntryState = "RESOLVING"
	EntryStateQueued     EntryState = "QUEUED"
	EntryStateDispatched EntryState = "DISPATCHED"
	EntryStateCompleted  EntryState = "COMPLETED"
	EntryStateCancelled  EntryState = "CANCELLED"
	EntryStateFailed     EntryState = "FAILED"
)

// String returns the string representation of the entry state.
func (s EntryState) String() string {
	return string(s)
}

// IsTerminal returns true if the entry is in a final state. A terminal entry
// is retired: it is out of every tracking structure and will never produce
// another callback.
func (s EntryState) IsTerminal() bool {
	switch s {
	case EntryStateCompleted, EntryStateCancelled, EntryStateFailed:
		return true
	}
	return false
}

// ValidEntryTransitions defines the allowed state transitions. Cancellation,
// caller death, and availability loss can terminate an entry from any
// non-terminal state; only a dispatched entry can complete.
var ValidEntryTransitions = map[EntryState][]EntryState{
	EntryStateResolving:  {EntryStateQueued, EntryStateCancelled, EntryStateFailed},
	EntryStateQueued:     {EntryStateDispatched, EntryStateCancelled, EntryStateFailed, EntryStateCompleted},
	EntryStateDispatched: {EntryStateCompleted, EntryStateCancelled, EntryStateFailed},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s EntryState) CanTransitionTo(next EntryState) bool {
	for _, allowed := range ValidEntryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
