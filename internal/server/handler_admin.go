package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/rangerd/internal/importance"
	"github.com/me/rangerd/pkg/model"
)

// handleSetController flips the controller's availability. Operators use it
// to take the controller down for maintenance; the sim daemon uses it to
// bring the controller up at boot.
// PUT /api/v1/admin/controller
func (s *Server) handleSetController(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}
	s.sched.SetControllerAvailable(body.Available)
	respondOK(w, reqID, map[string]bool{"available": s.sched.Available()})
}

// handleSetGating flips one gating condition.
// PUT /api/v1/admin/gating/{name}
func (s *Server) handleSetGating(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	reqID := RequestIDFromContext(r.Context())

	var body struct {
		Satisfied bool `json:"satisfied"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}
	s.sched.SetGatingCondition(name, body.Satisfied)
	respondOK(w, reqID, map[string]any{
		"available":         s.sched.Available(),
		"gating_conditions": s.sched.GatingConditions(),
	})
}

// handleSetImportance records a principal's process importance.
// PUT /api/v1/admin/importance/{uid}
func (s *Server) handleSetImportance(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.cls == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("importance classifier", "admin"))
		return
	}
	uid, err := strconv.ParseInt(chi.URLParam(r, "uid"), 10, 64)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid uid"))
		return
	}

	var body struct {
		Importance string `json:"importance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}
	switch body.Importance {
	case "foreground":
		s.cls.Set(model.Principal(uid), importance.Foreground)
	case "background":
		s.cls.Set(model.Principal(uid), importance.Background)
	default:
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("importance must be foreground or background"))
		return
	}
	respondOK(w, reqID, map[string]string{"importance": body.Importance})
}

func (s *Server) directoryParams(w http.ResponseWriter, r *http.Request, reqID string) (model.Principal, model.PeerHandle, bool) {
	if s.dir == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("directory", "admin"))
		return 0, 0, false
	}
	uid, err := strconv.ParseInt(chi.URLParam(r, "uid"), 10, 64)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid uid"))
		return 0, 0, false
	}
	handle, err := strconv.ParseInt(chi.URLParam(r, "handle"), 10, 32)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid handle"))
		return 0, 0, false
	}
	return model.Principal(uid), model.PeerHandle(handle), true
}

// handleSetDirectoryEntry seeds a handle-to-address mapping for a principal.
// PUT /api/v1/admin/directory/{uid}/{handle}
func (s *Server) handleSetDirectoryEntry(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	uid, handle, ok := s.directoryParams(w, r, reqID)
	if !ok {
		return
	}

	var body struct {
		Addr string `json:"addr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}
	if err := model.AddrTarget(body.Addr).Validate(); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}
	s.dir.Set(uid, handle, body.Addr)
	respondOK(w, reqID, map[string]string{"addr": model.NormalizeAddr(body.Addr)})
}

// handleDeleteDirectoryEntry removes a handle-to-address mapping.
// DELETE /api/v1/admin/directory/{uid}/{handle}
func (s *Server) handleDeleteDirectoryEntry(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	uid, handle, ok := s.directoryParams(w, r, reqID)
	if !ok {
		return
	}
	s.dir.Delete(uid, handle)
	respondOK(w, reqID, map[string]bool{"deleted": true})
}
