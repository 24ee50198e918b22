package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/rangerd/pkg/model"
)

// handleListSessions lists retired sessions, newest first.
// GET /api/v1/sessions?limit=&offset=&status=
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	opts.Status = r.URL.Query().Get("status")
	opts.Clamp()

	sessions, total, err := s.store.ListSessions(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	respondList(w, reqID, sessions, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(sessions) < total,
	})
}

// handleGetSession returns one retired session.
// GET /api/v1/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reqID := RequestIDFromContext(r.Context())

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if sess == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("session", id))
		return
	}
	respondOK(w, reqID, sess)
}
