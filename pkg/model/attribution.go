package model

import (
	"fmt"
	"strings"
)

// Principal is a uid-like identity responsible for a request. Throttling,
// flood protection, and metrics are all attributed per Principal.
type Principal int64

// AttributionSet is the ordered, de-duplicated set of principals charged for
// a ranging request. A request submitted without an explicit attribution is
// attributed to the calling principal alone; chained work (e.g. a location
// service ranging on behalf of an app) names every principal in the chain.
type AttributionSet []Principal

// NewAttributionSet builds a set from the given principals, preserving first
// occurrence order and dropping duplicates.
func NewAttributionSet(principals ...Principal) AttributionSet {
	set := make(AttributionSet, 0, len(principals))
	for _, p := range principals {
		if !set.Contains(p) {
			set = append(set, p)
		}
	}
	return set
}

// Contains reports whether p is a member of the set.
func (a AttributionSet) Contains(p Principal) bool {
	for _, member := range a {
		if member == p {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the set names no principals.
func (a AttributionSet) IsEmpty() bool {
	return len(a) == 0
}

// Overlaps reports whether the two sets share at least one principal.
func (a AttributionSet) Overlaps(other AttributionSet) bool {
	for _, p := range other {
		if a.Contains(p) {
			return true
		}
	}
	return false
}

// Subtract returns a new set with every principal in other removed. Order of
// the remaining principals is preserved.
func (a AttributionSet) Subtract(other AttributionSet) AttributionSet {
	remaining := make(AttributionSet, 0, len(a))
	for _, p := range a {
		if !other.Contains(p) {
			remaining = append(remaining, p)
		}
	}
	return remaining
}

// Clone returns an independent copy of the set.
func (a AttributionSet) Clone() AttributionSet {
	out := make(AttributionSet, len(a))
	copy(out, a)
	return out
}

// String renders the set as "{1000,1200}" for logs.
func (a AttributionSet) String() string {
	parts := make([]string, len(a))
	for i, p := range a {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
