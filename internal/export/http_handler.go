package export

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rpattn/bugboard/internal/domain"
)

// RecordSource loads the bugs a request wants exported.
type RecordSource func(r *http.Request) ([]domain.Bug, error)

// Handler serves report downloads.
type Handler struct {
	service *Service
	source  RecordSource
}

// NewHTTPHandler serves GET requests with a "format" query parameter
// (json, csv or xlsx) and streams the records returned by source.
func NewHTTPHandler(service *Service, source RecordSource) http.Handler {
	return &Handler{service: service, source: source}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bugs, err := h.source(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := h.service.Write(&buf, format, bugs); err != nil {
		if errors.Is(err, ErrNothingToExport) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("export failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// StatusError lets a RecordSource choose the response status.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

func statusFor(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status != 0 {
		return statusErr.Status
	}
	return http.StatusInternalServerError
}
