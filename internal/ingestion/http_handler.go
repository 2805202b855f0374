package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rpattn/bugboard/internal/auth"
)

const defaultMaxUploadBytes = 32 << 20

// Handler exposes ingestion as an HTTP endpoint.
type Handler struct {
	service        *Service
	maxUploadBytes int64
}

// NewHTTPHandler wraps the service with a POST endpoint accepting a
// multipart "file" field. maxUploadBytes <= 0 selects 32 MiB.
func NewHTTPHandler(service *Service, maxUploadBytes int64) http.Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

// uploadError is the body returned for rejected uploads.
type uploadError struct {
	Error string     `json:"error"`
	Rows  []RowError `json:"rows,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, err := auth.RequireOwnerID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	summary, err := h.service.Ingest(r.Context(), Request{
		OwnerID:  ownerID,
		FileName: header.Filename,
		Data:     file,
	})
	if err != nil {
		var validation *ValidationError
		switch {
		case errors.As(err, &validation):
			writeJSON(w, http.StatusUnprocessableEntity, uploadError{Error: ErrInvalidRecords.Error(), Rows: validation.Rows})
		case errors.Is(err, ErrUnsupportedFormat):
			writeJSON(w, http.StatusUnsupportedMediaType, uploadError{Error: err.Error()})
		case errors.Is(err, ErrStore):
			writeJSON(w, http.StatusInternalServerError, uploadError{Error: ErrStore.Error()})
		case errors.Is(err, ErrNoRecords):
			writeJSON(w, http.StatusUnprocessableEntity, uploadError{Error: err.Error()})
		default:
			writeJSON(w, http.StatusBadRequest, uploadError{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
