package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/me/rangerd/pkg/model"
)

// submitRequest is the body of POST /api/v1/rangings.
type submitRequest struct {
	Caller      string            `json:"caller"`
	CallerUID   model.Principal   `json:"caller_uid"`
	Targets     []model.Target    `json:"targets"`
	BurstSize   int               `json:"burst_size,omitempty"`
	Attribution []model.Principal `json:"attribution,omitempty"`
}

// terminalEvent is the single event a request produces.
type terminalEvent struct {
	kind     string // results, failure, cancelled
	outcomes []model.Outcome
	reason   model.ReasonCode
}

// sseSink bridges the scheduler callback to the SSE stream. The channel is
// buffered so the scheduler never blocks on a slow client; exactly one event
// is ever sent.
type sseSink struct {
	ch chan terminalEvent
}

func newSSESink() *sseSink {
	return &sseSink{ch: make(chan terminalEvent, 1)}
}

func (s *sseSink) OnResults(outcomes []model.Outcome) {
	s.ch <- terminalEvent{kind: "results", outcomes: outcomes}
}

func (s *sseSink) OnFailure(reason model.ReasonCode) {
	s.ch <- terminalEvent{kind: "failure", reason: reason}
}

func (s *sseSink) OnCancelled() {
	s.ch <- terminalEvent{kind: "cancelled"}
}

// handleSubmitRanging submits a ranging request and streams its terminal
// event via Server-Sent Events. A client that disconnects before the terminal
// event counts as a dead caller and its request is purged.
// POST /api/v1/rangings
func (s *Server) handleSubmitRanging(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}
	if body.Caller == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("caller is required"))
		return
	}

	sink := newSSESink()
	req := model.RangingRequest{
		Targets:     body.Targets,
		BurstSize:   body.BurstSize,
		Attribution: model.NewAttributionSet(body.Attribution...),
	}
	id, err := s.sched.Submit(body.Caller, body.CallerUID, req, sink)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	if err := sendSSEEvent(w, flusher, "accepted", map[string]string{"session_id": id}); err != nil {
		s.sched.OnCallerLost(id)
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.sched.OnCallerLost(id)
			return
		case ev := <-sink.ch:
			s.streamTerminal(w, flusher, id, ev)
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				s.sched.OnCallerLost(id)
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) streamTerminal(w http.ResponseWriter, flusher http.Flusher, id string, ev terminalEvent) {
	switch ev.kind {
	case "results":
		sendSSEEvent(w, flusher, "results", map[string]any{
			"session_id": id,
			"outcomes":   ev.outcomes,
		})
	case "failure":
		sendSSEEvent(w, flusher, "failure", map[string]any{
			"session_id": id,
			"reason":     ev.reason,
		})
	case "cancelled":
		sendSSEEvent(w, flusher, "cancelled", map[string]any{
			"session_id": id,
		})
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}

// cancelRequest is the body of DELETE /api/v1/rangings.
type cancelRequest struct {
	Attribution []model.Principal `json:"attribution"`
}

// handleCancelRangings removes the given principals from every queued
// request, cancelling requests whose attribution empties.
// DELETE /api/v1/rangings
func (s *Server) handleCancelRangings(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}
	att := model.NewAttributionSet(body.Attribution...)
	if att.IsEmpty() {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("attribution is required"))
		return
	}

	n := s.sched.CancelByAttribution(att)
	respondOK(w, reqID, map[string]int{"cancelled": n})
}
