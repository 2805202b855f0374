package api

import (
	"net/http"
	"strconv"

	"github.com/rpattn/bugboard/internal/auth"
	"github.com/rpattn/bugboard/internal/domain"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	_, bugs, err := s.ownedBugs(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	q := parseBugQuery(r.URL.Query())
	writeJSON(w, http.StatusOK, s.engine.Summarize(s.engine.Filter(bugs, q.Search, q.Filters)))
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	_, bugs, err := s.ownedBugs(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.FilterOptions(bugs))
}

func (s *Server) handleIngestionLogs(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.RequireOwnerID(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []domain.IngestionLogEntry{})
		return
	}
	params := r.URL.Query()
	limit, _ := strconv.Atoi(params.Get("limit"))
	offset, _ := strconv.Atoi(params.Get("offset"))

	entries, err := s.logs.List(r.Context(), ownerID, params.Get("file"), limit, offset)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
