package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rpattn/bugboard/internal/auth"
	"github.com/rpattn/bugboard/internal/bugloader"
	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/internal/export"
	"github.com/rpattn/bugboard/internal/middleware"
	"github.com/rpattn/bugboard/internal/repository"
	"github.com/rpattn/bugboard/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ownedBugs lists every record of the request owner in storage order.
func (s *Server) ownedBugs(r *http.Request) (string, []domain.Bug, error) {
	ownerID, err := auth.RequireOwnerID(r.Context())
	if err != nil {
		return "", nil, err
	}
	bugs, err := s.bugs.List(r.Context(), ownerID)
	if err != nil {
		return ownerID, nil, fmt.Errorf("failed to list bugs: %w", err)
	}
	return ownerID, bugs, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	_, bugs, err := s.ownedBugs(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Visible(bugs, parseBugQuery(r.URL.Query())))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid query body: %v", err))
		return
	}
	_, bugs, err := s.ownedBugs(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Visible(bugs, req.toQuery()))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.RequireOwnerID(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid bug body: %v", err))
		return
	}
	if !s.checkFields(w, fields) {
		return
	}
	bug := domain.NewBug(ownerID, toFieldPatch(fields))
	if !bug.HasContent() {
		writeError(w, http.StatusUnprocessableEntity, "bug has no known fields")
		return
	}

	created, err := s.bugs.Create(r.Context(), bug)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.logger.Debug("bug created", zap.String("owner", ownerID), zap.String("id", created.ID.String()))
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireOwnerID(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid bug id: %v", err))
		return
	}

	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid patch body: %v", err))
		return
	}
	if !s.checkFields(w, fields) {
		return
	}

	current, err := s.loader(r).Load(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := auth.EnforceOwnerScope(r.Context(), current.OwnerID); err != nil {
		s.writeFailure(w, r, repository.ErrNotFound)
		return
	}

	updated, err := s.bugs.Update(r.Context(), current.WithFields(toFieldPatch(fields)))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type invalidFieldsResponse struct {
	Error  string                      `json:"error"`
	Fields []validator.ValidationError `json:"fields"`
}

// bulkPatchItem is one entry of a PATCH /bugs body.
type bulkPatchItem struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// bulkPatchResult reports the outcome for one entry.
type bulkPatchResult struct {
	ID    string      `json:"id"`
	Bug   *domain.Bug `json:"bug,omitempty"`
	Error string      `json:"error,omitempty"`
}

func (s *Server) handleBulkPatch(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireOwnerID(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	var items []bulkPatchItem
	if err := decodeJSON(r, &items); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid patch body: %v", err))
		return
	}

	results := make([]bulkPatchResult, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	positions := make([]int, 0, len(items))
	for i, item := range items {
		results[i].ID = item.ID
		id, err := uuid.Parse(item.ID)
		if err != nil {
			results[i].Error = "invalid bug id"
			continue
		}
		if check := s.validator.ValidatePayload(item.Fields); !check.IsValid {
			results[i].Error = check.Errors[0].Message
			continue
		}
		ids = append(ids, id)
		positions = append(positions, i)
	}

	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, results)
		return
	}
	loader := s.loader(r)
	loaded, loadErrs := loader.LoadMany(r.Context(), ids)
	// a repeated id patches the result of its previous item
	latest := make(map[uuid.UUID]domain.Bug, len(ids))
	for j, pos := range positions {
		if loadErrs[j] != nil {
			results[pos].Error = repository.ErrNotFound.Error()
			continue
		}
		current, ok := latest[ids[j]]
		if !ok {
			current = loaded[j]
		}
		if err := auth.EnforceOwnerScope(r.Context(), current.OwnerID); err != nil {
			results[pos].Error = repository.ErrNotFound.Error()
			continue
		}
		updated, err := s.bugs.Update(r.Context(), current.WithFields(toFieldPatch(items[pos].Fields)))
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				s.logger.Error("bulk update failed", zap.String("id", items[pos].ID), zap.Error(err))
			}
			results[pos].Error = err.Error()
			continue
		}
		latest[ids[j]] = updated
		loader.Prime(r.Context(), updated)
		results[pos].Bug = &updated
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.RequireOwnerID(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid bug id: %v", err))
		return
	}
	if err := s.bugs.Delete(r.Context(), id, ownerID); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.RequireOwnerID(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	deleted, err := s.bugs.DeleteAll(r.Context(), ownerID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.logger.Info("deleted all bugs", zap.String("owner", ownerID), zap.Int64("deleted", deleted))
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// exportSource lists the owner's records narrowed by the search and filter
// parameters of the export request.
func (s *Server) exportSource(r *http.Request) ([]domain.Bug, error) {
	_, bugs, err := s.ownedBugs(r)
	if err != nil {
		if errors.Is(err, auth.ErrMissingOwner) {
			return nil, &export.StatusError{Status: http.StatusUnauthorized, Err: err}
		}
		return nil, err
	}
	q := parseBugQuery(r.URL.Query())
	return s.engine.Filter(bugs, q.Search, q.Filters), nil
}

// loader returns the request's bug loader, creating one when the
// middleware is not installed.
func (s *Server) loader(r *http.Request) *bugloader.BugLoader {
	if l := middleware.BugLoaderFromContext(r.Context()); l != nil {
		return l
	}
	return bugloader.NewBugLoader(s.bugs)
}

// checkFields writes a 422 listing the payload errors when fields are unusable.
func (s *Server) checkFields(w http.ResponseWriter, fields map[string]any) bool {
	result := s.validator.ValidatePayload(fields)
	for _, warning := range result.Warnings {
		s.logger.Debug("bug payload warning", zap.String("field", warning.Field), zap.String("message", warning.Message))
	}
	if !result.IsValid {
		writeJSON(w, http.StatusUnprocessableEntity, invalidFieldsResponse{
			Error:  "invalid bug fields",
			Fields: result.Errors,
		})
		return false
	}
	return true
}

func toFieldPatch(fields map[string]any) map[string]string {
	patch := make(map[string]string, len(fields))
	for key, value := range fields {
		patch[key] = domain.FieldValue(key, value)
	}
	return patch
}
