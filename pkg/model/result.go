package model

// OutcomeStatus is the per-target measurement status.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "SUCCESS"
	OutcomeFailed  OutcomeStatus = "FAILED"
)

// Outcome is the per-target result of a ranging operation. Identity is
// carried exactly as the caller asked for it: a target requested by peer
// handle is reported by that handle, never by the raw address it resolved to.
type Outcome struct {
	Status           OutcomeStatus `json:"status"`
	Addr             string        `json:"addr,omitempty"`
	Handle           PeerHandle    `json:"handle,omitempty"`
	DistanceMm       int           `json:"distance_mm,omitempty"`
	DistanceStdDevMm int           `json:"distance_std_dev_mm,omitempty"`
	RSSI             int           `json:"rssi,omitempty"`
	NumAttempted     int           `json:"num_attempted,omitempty"`
	NumSuccessful    int           `json:"num_successful,omitempty"`
	MeasuredAtMs     int64         `json:"measured_at_ms,omitempty"`
}

// FailedOutcome synthesizes a failure outcome carrying the target's original
// identity so the caller can still correlate it.
func FailedOutcome(t Target) Outcome {
	out := Outcome{Status: OutcomeFailed}
	if t.IsHandle() {
		out.Handle = t.Handle
	} else {
		out.Addr = t.Addr
	}
	return out
}

// ReasonCode is the failure reason delivered on the callback path. There is
// no separate error channel: success and failure travel the same way.
type ReasonCode string

const (
	// ReasonFailed covers generic failures: controller decline, timeout,
	// or a dispatched operation that could not complete.
	ReasonFailed ReasonCode = "FAILED"
	// ReasonNotAvailable is reported when ranging is gated off or the
	// caller flooded the queue.
	ReasonNotAvailable ReasonCode = "NOT_AVAILABLE"
	// ReasonThrottled is reported when background throttling rejects the
	// request.
	ReasonThrottled ReasonCode = "THROTTLED"
)

// OverallStatus classifies how a request left the scheduler, for telemetry.
// It is deliberately finer-grained than the caller-visible ReasonCode: a
// timeout is delivered to the caller as ReasonFailed but recorded here as
// StatusTimeout.
type OverallStatus string

const (
	StatusSuccess            OverallStatus = "SUCCESS"
	StatusFail               OverallStatus = "FAIL"
	StatusNotAvailable       OverallStatus = "NOT_AVAILABLE"
	StatusTimeout            OverallStatus = "TIMEOUT"
	StatusThrottle           OverallStatus = "THROTTLE"
	StatusControllerFailure  OverallStatus = "CONTROLLER_FAILURE"
	StatusTranslationFailure OverallStatus = "TRANSLATION_FAILURE"
	StatusCancelled          OverallStatus = "CANCELLED"
)
