// Package hal is the boundary to the ranging controller hardware. The
// scheduler drives it through the Controller interface and receives results
// through its own entry points; implementations must never call back into the
// scheduler from within Range or AbortRange.
package hal

import "github.com/me/rangerd/pkg/model"

// RangeCommand is the concrete, fully-resolved operation handed to the
// controller: address targets only, in dispatch order.
type RangeCommand struct {
	Addrs     []string
	BurstSize int
}

// Controller performs ranging operations. At most one operation is
// outstanding at any time; the scheduler enforces that.
type Controller interface {
	// Range starts an operation. A false return means the controller
	// declined; the operation is failed immediately and never retried.
	// Results arrive asynchronously, tagged with opID.
	Range(opID int64, cmd RangeCommand) bool

	// AbortRange cancels an in-flight operation. The controller stops
	// measuring the given addresses; a late result for the aborted opID
	// may still arrive and is discarded upstream.
	AbortRange(opID int64, addrs []string)

	// Capabilities describes what the controller supports.
	Capabilities() model.Capabilities
}
