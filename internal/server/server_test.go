package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/me/rangerd/internal/admission"
	"github.com/me/rangerd/internal/config"
	"github.com/me/rangerd/internal/directory"
	"github.com/me/rangerd/internal/hal"
	"github.com/me/rangerd/internal/importance"
	"github.com/me/rangerd/internal/logging"
	"github.com/me/rangerd/internal/scheduler"
	"github.com/me/rangerd/internal/store"
	"github.com/me/rangerd/pkg/model"
)

type testEnv struct {
	srv   *Server
	sim   *hal.SimController
	sched *scheduler.Scheduler
	dir   *directory.StaticDirectory
	store *store.SQLiteStore
}

// testServer wires a full daemon on the real clock with a fast simulated
// controller, so submitted requests complete within the test.
func testServer(t *testing.T) *testEnv {
	return testServerWithLatency(t, 2*time.Millisecond)
}

func testServerWithLatency(t *testing.T, latency time.Duration) *testEnv {
	t.Helper()
	logger := logging.Discard()
	clk := clock.New()

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	cfg := config.Default()
	cfg.DBPath = ":memory:"
	cfg.GatingConditions = []string{"power_save_off"}

	dir := directory.NewStaticDirectory()
	cls := importance.NewStaticClassifier()
	adm := admission.New(clk, admission.Config{FloodCap: cfg.FloodCap}, cls, logger)
	sim := hal.NewSimController(clk, latency, logger)

	sched := scheduler.New(clk, scheduler.Config{
		MaxTargets:           cfg.MaxTargets,
		RangingTimeout:       cfg.RangingTimeout(),
		HandleRangingTimeout: cfg.HandleRangingTimeout(),
	}, sim, dir, adm, nil, cfg.GatingConditions, logger)
	sim.SetResultSink(sched.OnControllerResults)
	sim.SetAbortAckSink(sched.OnControllerAbortAck)
	sched.SetRetiredHook(func(sess model.Session) {
		st.CreateSession(context.Background(), &sess)
	})
	sched.SetControllerAvailable(true)

	srv := New(cfg, sched, st, logger,
		WithDirectory(dir),
		WithClassifier(cls),
		WithHeartbeat(50*time.Millisecond),
	)
	return &testEnv{srv: srv, sim: sim, sched: sched, dir: dir, store: st}
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, wantStatus int) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func doGet(t *testing.T, srv *Server, path string) envelope {
	t.Helper()
	return doJSON(t, srv, "GET", path, nil, http.StatusOK)
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	event string
	data  json.RawMessage
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		case line == "" && current.event != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func submitBody(addrs ...string) map[string]any {
	targets := make([]map[string]any, len(addrs))
	for i, a := range addrs {
		targets[i] = map[string]any{"addr": a}
	}
	return map[string]any{
		"caller":     "com.example.app",
		"caller_uid": 1000,
		"targets":    targets,
	}
}

func postRanging(t *testing.T, srv *Server, body any) []sseEvent {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest("POST", "/api/v1/rangings", &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/rangings: status=%d, body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	return parseSSE(t, w.Body.String())
}

func TestHealth(t *testing.T) {
	env := testServer(t)
	resp := doGet(t, env.srv, "/api/v1/health")

	var data healthResponse
	json.Unmarshal(resp.Data, &data)
	if data.Status != "healthy" || !data.Available {
		t.Errorf("health = %+v, want healthy and available", data)
	}
	if resp.RequestID == "" {
		t.Error("request_id is empty")
	}
}

func TestAvailability(t *testing.T) {
	env := testServer(t)
	resp := doGet(t, env.srv, "/api/v1/availability")

	var data availabilityResponse
	json.Unmarshal(resp.Data, &data)
	if !data.Available {
		t.Error("not available at boot")
	}
	if satisfied, ok := data.GatingConditions["power_save_off"]; !ok || !satisfied {
		t.Errorf("gating_conditions = %v, want power_save_off satisfied", data.GatingConditions)
	}
}

func TestCapabilities(t *testing.T) {
	env := testServer(t)
	resp := doGet(t, env.srv, "/api/v1/capabilities")

	var caps model.Capabilities
	json.Unmarshal(resp.Data, &caps)
	if !caps.OneSidedSupported || caps.MaxPeers != 10 {
		t.Errorf("capabilities = %+v", caps)
	}
}

func TestSubmitRanging_StreamsResults(t *testing.T) {
	env := testServer(t)
	env.sim.SetDistance("aa:bb:cc:dd:ee:01", 1500)

	events := postRanging(t, env.srv, submitBody("aa:bb:cc:dd:ee:01"))
	if len(events) < 2 {
		t.Fatalf("got %d events, want accepted + results: %+v", len(events), events)
	}
	if events[0].event != "accepted" {
		t.Errorf("first event = %q, want accepted", events[0].event)
	}
	last := events[len(events)-1]
	if last.event != "results" {
		t.Fatalf("terminal event = %q, want results", last.event)
	}
	var data struct {
		SessionID string          `json:"session_id"`
		Outcomes  []model.Outcome `json:"outcomes"`
	}
	json.Unmarshal(last.data, &data)
	if len(data.Outcomes) != 1 || data.Outcomes[0].DistanceMm != 1500 {
		t.Errorf("outcomes = %+v, want one at 1500mm", data.Outcomes)
	}

	// The retired session is in the history.
	resp := doGet(t, env.srv, "/api/v1/sessions/"+data.SessionID)
	var sess model.Session
	json.Unmarshal(resp.Data, &sess)
	if sess.Status != model.StatusSuccess {
		t.Errorf("session status = %s, want SUCCESS", sess.Status)
	}
}

func TestSubmitRanging_HandleTarget(t *testing.T) {
	env := testServer(t)
	env.dir.Set(1000, 7, "aa:bb:cc:dd:ee:07")
	env.sim.SetDistance("aa:bb:cc:dd:ee:07", 4200)

	body := map[string]any{
		"caller":     "com.example.app",
		"caller_uid": 1000,
		"targets":    []map[string]any{{"handle": 7}},
	}
	events := postRanging(t, env.srv, body)
	last := events[len(events)-1]
	if last.event != "results" {
		t.Fatalf("terminal event = %q, want results", last.event)
	}
	var data struct {
		Outcomes []model.Outcome `json:"outcomes"`
	}
	json.Unmarshal(last.data, &data)
	if len(data.Outcomes) != 1 || data.Outcomes[0].Handle != 7 || data.Outcomes[0].DistanceMm != 4200 {
		t.Errorf("outcomes = %+v, want handle 7 at 4200mm", data.Outcomes)
	}
}

func TestSubmitRanging_ValidationError(t *testing.T) {
	env := testServer(t)
	tests := []struct {
		name string
		body map[string]any
	}{
		{"no caller", map[string]any{"caller_uid": 1000, "targets": []map[string]any{{"addr": "aa:bb:cc:dd:ee:01"}}}},
		{"no targets", map[string]any{"caller": "app", "caller_uid": 1000}},
		{"bad address", submitBody("nope")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, env.srv, "POST", "/api/v1/rangings", tt.body, http.StatusBadRequest)
			if resp.Error == nil || resp.Error.Code != model.ErrValidation {
				t.Errorf("error = %+v, want VALIDATION_ERROR", resp.Error)
			}
		})
	}
}

func TestSubmitRanging_UnavailableStreamsFailure(t *testing.T) {
	env := testServer(t)
	doJSON(t, env.srv, "PUT", "/api/v1/admin/controller",
		map[string]bool{"available": false}, http.StatusOK)

	events := postRanging(t, env.srv, submitBody("aa:bb:cc:dd:ee:01"))
	last := events[len(events)-1]
	if last.event != "failure" {
		t.Fatalf("terminal event = %q, want failure", last.event)
	}
	var data struct {
		Reason model.ReasonCode `json:"reason"`
	}
	json.Unmarshal(last.data, &data)
	if data.Reason != model.ReasonNotAvailable {
		t.Errorf("reason = %q, want NOT_AVAILABLE", data.Reason)
	}
}

func TestCancelRangings(t *testing.T) {
	env := testServer(t)

	resp := doJSON(t, env.srv, "DELETE", "/api/v1/rangings",
		map[string]any{"attribution": []int64{1000}}, http.StatusOK)
	var data struct {
		Cancelled int `json:"cancelled"`
	}
	json.Unmarshal(resp.Data, &data)
	if data.Cancelled != 0 {
		t.Errorf("cancelled = %d, want 0 with an empty queue", data.Cancelled)
	}

	resp = doJSON(t, env.srv, "DELETE", "/api/v1/rangings",
		map[string]any{}, http.StatusBadRequest)
	if resp.Error == nil {
		t.Error("missing attribution must be a validation error")
	}
}

func TestListSessions(t *testing.T) {
	env := testServer(t)
	env.sim.SetDistance("aa:bb:cc:dd:ee:01", 1500)
	postRanging(t, env.srv, submitBody("aa:bb:cc:dd:ee:01"))
	postRanging(t, env.srv, submitBody("aa:bb:cc:dd:ee:01"))

	resp := doGet(t, env.srv, "/api/v1/sessions/?limit=1")
	if resp.Pagination == nil || resp.Pagination.Total != 2 || !resp.Pagination.HasMore {
		t.Errorf("pagination = %+v, want total 2 with more", resp.Pagination)
	}
	var sessions []*model.Session
	json.Unmarshal(resp.Data, &sessions)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}

	resp = doGet(t, env.srv, "/api/v1/sessions/?status=TIMEOUT")
	if resp.Pagination.Total != 0 {
		t.Errorf("TIMEOUT total = %d, want 0", resp.Pagination.Total)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	env := testServer(t)
	resp := doJSON(t, env.srv, "GET", "/api/v1/sessions/nope", nil, http.StatusNotFound)
	if resp.Error == nil || resp.Error.Code != model.ErrNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", resp.Error)
	}
}

func TestAdminGating(t *testing.T) {
	env := testServer(t)

	resp := doJSON(t, env.srv, "PUT", "/api/v1/admin/gating/power_save_off",
		map[string]bool{"satisfied": false}, http.StatusOK)
	var data availabilityResponse
	json.Unmarshal(resp.Data, &data)
	if data.Available {
		t.Error("available with a gate down")
	}

	doJSON(t, env.srv, "PUT", "/api/v1/admin/gating/power_save_off",
		map[string]bool{"satisfied": true}, http.StatusOK)
	resp = doGet(t, env.srv, "/api/v1/availability")
	json.Unmarshal(resp.Data, &data)
	if !data.Available {
		t.Error("not available after the gate came back")
	}
}

func TestAdminDirectory(t *testing.T) {
	env := testServer(t)

	doJSON(t, env.srv, "PUT", "/api/v1/admin/directory/1000/7",
		map[string]string{"addr": "AA:BB:CC:DD:EE:07"}, http.StatusOK)

	resp := doJSON(t, env.srv, "PUT", "/api/v1/admin/directory/1000/7",
		map[string]string{"addr": "nope"}, http.StatusBadRequest)
	if resp.Error == nil {
		t.Error("bad address must be a validation error")
	}

	doJSON(t, env.srv, "DELETE", "/api/v1/admin/directory/1000/7", nil, http.StatusOK)
}

func TestAdminImportance(t *testing.T) {
	env := testServer(t)

	doJSON(t, env.srv, "PUT", "/api/v1/admin/importance/1000",
		map[string]string{"importance": "foreground"}, http.StatusOK)

	resp := doJSON(t, env.srv, "PUT", "/api/v1/admin/importance/1000",
		map[string]string{"importance": "sideways"}, http.StatusBadRequest)
	if resp.Error == nil {
		t.Error("bad importance must be a validation error")
	}

	resp = doJSON(t, env.srv, "PUT", "/api/v1/admin/importance/abc",
		map[string]string{"importance": "foreground"}, http.StatusBadRequest)
	if resp.Error == nil {
		t.Error("non-numeric uid must be a validation error")
	}
}

func TestClientDisconnectPurgesRequest(t *testing.T) {
	// A long controller latency keeps the request dispatched until the
	// client goes away.
	env := testServerWithLatency(t, time.Hour)
	env.sim.SetDistance("aa:bb:cc:dd:ee:01", 1500)

	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(submitBody("aa:bb:cc:dd:ee:01"))
	req := httptest.NewRequest("POST", "/api/v1/rangings", &buf).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.srv.ServeHTTP(w, req)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for env.sched.QueueDepth() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}
	if env.sched.QueueDepth() != 0 {
		t.Errorf("queue depth = %d, want 0 after the dead caller was purged", env.sched.QueueDepth())
	}
}
