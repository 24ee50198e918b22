package model

import (
	"fmt"
	"net"
	"strings"
)

// PeerHandle is an opaque reference to a discovered peer. Handles are
// principal-scoped: the same handle may map to different link-layer addresses
// for different callers, so resolution always happens under the submitting
// principal's identity.
type PeerHandle int32

// Target is one endpoint of a ranging request. Exactly one of Addr or Handle
// is set: Addr targets carry a concrete link-layer address, Handle targets
// are resolved to an address before dispatch.
type Target struct {
	Addr   string     `json:"addr,omitempty"`
	Handle PeerHandle `json:"handle,omitempty"`
}

// AddrTarget builds a Target addressed by link-layer address.
func AddrTarget(addr string) Target {
	return Target{Addr: NormalizeAddr(addr)}
}

// HandleTarget builds a Target addressed by peer handle.
func HandleTarget(h PeerHandle) Target {
	return Target{Handle: h}
}

// IsHandle reports whether the target is a deferred peer-handle reference.
func (t Target) IsHandle() bool {
	return t.Addr == ""
}

// Validate checks that exactly one addressing mode is set and that an address
// target carries a parseable link-layer address.
func (t Target) Validate() error {
	if t.Addr == "" && t.Handle == 0 {
		return fmt.Errorf("target must set addr or handle")
	}
	if t.Addr != "" && t.Handle != 0 {
		return fmt.Errorf("target must not set both addr and handle")
	}
	if t.Addr != "" {
		if _, err := net.ParseMAC(t.Addr); err != nil {
			return fmt.Errorf("invalid target address %q: %w", t.Addr, err)
		}
	}
	return nil
}

// String renders the target identity for logs.
func (t Target) String() string {
	if t.IsHandle() {
		return fmt.Sprintf("handle:%d", t.Handle)
	}
	return t.Addr
}

// NormalizeAddr lower-cases a link-layer address so it can be used as a map
// key when matching controller results back to targets.
func NormalizeAddr(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Burst size bounds for a single ranging operation, matching what typical
// controllers accept.
const (
	MinBurstSize     = 2
	DefaultBurstSize = 8
	MaxBurstSize     = 31
)

// RangingRequest is an immutable ranging order: an ordered list of targets,
// a burst size, and the attribution set charged for the operation.
type RangingRequest struct {
	Targets     []Target       `json:"targets"`
	BurstSize   int            `json:"burst_size,omitempty"`
	Attribution AttributionSet `json:"attribution,omitempty"`
}

// HasHandleTargets reports whether any target needs peer-handle resolution.
func (r *RangingRequest) HasHandleTargets() bool {
	for _, t := range r.Targets {
		if t.IsHandle() {
			return true
		}
	}
	return false
}

// Validate checks the request shape. maxTargets bounds the target list; a
// zero BurstSize is replaced with DefaultBurstSize.
func (r *RangingRequest) Validate(maxTargets int) error {
	if len(r.Targets) == 0 {
		return fmt.Errorf("request must name at least one target")
	}
	if maxTargets > 0 && len(r.Targets) > maxTargets {
		return fmt.Errorf("request names %d targets, limit is %d", len(r.Targets), maxTargets)
	}
	for i, t := range r.Targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
	}
	if r.BurstSize == 0 {
		r.BurstSize = DefaultBurstSize
	}
	if r.BurstSize < MinBurstSize || r.BurstSize > MaxBurstSize {
		return fmt.Errorf("burst size %d out of range [%d, %d]", r.BurstSize, MinBurstSize, MaxBurstSize)
	}
	for i := range r.Targets {
		if !r.Targets[i].IsHandle() {
			r.Targets[i].Addr = NormalizeAddr(r.Targets[i].Addr)
		}
	}
	return nil
}
