package http

import (
	"net/http"
	"sync/atomic"

	"shiire/internal/core"
	"shiire/internal/log"
	"shiire/internal/services"
)

// sessionListResponse is the session list for one view: the summary rows
// plus which of them the view has expanded.
type sessionListResponse struct {
	ViewID   string               `json:"view_id"`
	Sessions []core.SessionSummary `json:"sessions"`
	Expanded []string             `json:"expanded"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	status, err := services.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	state, viewID := s.viewState(w, r)

	ctx, cancel := readContext(r)
	defer cancel()
	rows, err := s.deps.Sessions.ListSessions(ctx, status)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List sessions failed, returning empty list",
			log.FieldStatus, string(status),
			log.FieldError, err)
		rows = nil
	}
	if rows == nil {
		rows = []core.SessionSummary{}
	}
	NewJSONResponse().Data(sessionListResponse{
		ViewID:   viewID,
		Sessions: rows,
		Expanded: state.Expanded(),
	}).Write(w)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	sess, err := s.deps.Sessions.CreateSession(r.Context(), sessionForm(p))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	atomic.AddInt64(&s.metrics.sessionsCreated, 1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Session created",
		log.FieldSessionID, sess.ID,
		"title", sess.Title)
	NewJSONResponse().Status(http.StatusCreated).Data(sess).Write(w)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := readContext(r)
	defer cancel()
	sess, err := s.deps.Sessions.GetSession(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(sess).Write(w)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	sess, err := s.deps.Sessions.UpdateSession(r.Context(), r.PathValue("id"), sessionForm(p))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(sess).Write(w)
}

// handleDeleteSession requires ?confirm=true.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Sessions.DeleteSession(r.Context(), id, ParseConfirm(r.URL.Query())); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Session deleted", log.FieldSessionID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleExpandSession expands the session in the caller's view. The analysis
// is computed once per view and reused until the session changes.
func (s *Server) handleExpandSession(w http.ResponseWriter, r *http.Request) {
	state, viewID := s.viewState(w, r)
	ctx, cancel := readContext(r)
	defer cancel()

	atomic.AddInt64(&s.metrics.expands, 1)
	res, err := state.Expand(ctx, r.PathValue("id"), s.deps.Analysis)
	if err != nil {
		writeError(w, r, log.OpAnalyze, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Session expanded",
		log.FieldSessionID, res.Session.ID,
		log.FieldViewID, viewID)
	NewJSONResponse().Data(res).Write(w)
}

func (s *Server) handleCollapseSession(w http.ResponseWriter, r *http.Request) {
	state, _ := s.viewState(w, r)
	state.Collapse(r.PathValue("id"))
	NewJSONResponse().Data(map[string]any{"expanded": state.Expanded()}).Write(w)
}

// handleSessionAnalysis computes the breakdown without touching view state.
func (s *Server) handleSessionAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := readContext(r)
	defer cancel()
	res, err := s.deps.Analysis.AnalyzeSession(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpAnalyze, err)
		return
	}
	NewJSONResponse().Data(res).Write(w)
}

func (s *Server) handleSessionRegistration(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := readContext(r)
	defer cancel()
	reg, err := s.deps.Analysis.Registration(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpAnalyze, err)
		return
	}
	NewJSONResponse().Data(reg).Write(w)
}
