package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/bugboard/internal/imagelink"
)

type validateImageRequest struct {
	URL string `json:"url"`
}

// handleValidateImage accepts either a JSON body {"url": ...} or a multipart
// upload with an "image" part.
func (s *Server) handleValidateImage(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, imagelink.MaxPastedImageBytes+1<<20)
		if err := r.ParseMultipartForm(imagelink.MaxPastedImageBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusOK, imagelink.Result{Error: "Image size exceeds 5MB limit"})
				return
			}
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("image required: %v", err))
			return
		}
		defer file.Close()
		writeJSON(w, http.StatusOK, imagelink.ValidatePasted(header.Header.Get("Content-Type"), header.Size))
		return
	}

	var req validateImageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, s.images.Validate(r.Context(), req.URL))
}
