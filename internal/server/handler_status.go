package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Uptime     string `json:"uptime"`
	Available  bool   `json:"available"`
	QueueDepth int    `json:"queue_depth"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, healthResponse{
		Status:     "healthy",
		Version:    "0.1.0",
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		Available:  s.sched.Available(),
		QueueDepth: s.sched.QueueDepth(),
	})
}

type availabilityResponse struct {
	Available        bool            `json:"available"`
	GatingConditions map[string]bool `json:"gating_conditions"`
}

// handleAvailability reports whether ranging is possible right now and which
// gating conditions hold.
// GET /api/v1/availability
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, availabilityResponse{
		Available:        s.sched.Available(),
		GatingConditions: s.sched.GatingConditions(),
	})
}

// handleCapabilities reports what the controller supports.
// GET /api/v1/capabilities
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.sched.Capabilities())
}
