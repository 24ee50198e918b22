package model

import "time"

// Session is the durable record of one retired ranging request: what was
// asked, who asked, what came back, and how the scheduler classified it.
// Sessions are written after retirement and never updated.
type Session struct {
	ID          string         `json:"id"`
	OperationID int64          `json:"operation_id,omitempty"`
	Caller      string         `json:"caller"`
	CallerUID   Principal      `json:"caller_uid"`
	Attribution AttributionSet `json:"attribution"`
	Targets     []Target       `json:"targets"`
	Outcomes    []Outcome      `json:"outcomes,omitempty"`
	Status      OverallStatus  `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Capabilities describes what the underlying ranging controller supports.
type Capabilities struct {
	OneSidedSupported      bool `json:"one_sided_supported"`
	TwoSidedSupported      bool `json:"two_sided_supported"`
	ResponderSupported     bool `json:"responder_supported"`
	SecureRangingSupported bool `json:"secure_ranging_supported"`
	MaxPeers               int  `json:"max_peers"`
}
