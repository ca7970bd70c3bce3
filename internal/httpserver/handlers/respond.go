package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/datastore"
	"github.com/MrSnakeDoc/marks/internal/library"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/search"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine and storage errors to HTTP statuses.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	var qe *search.QueryError
	switch {
	case errors.As(err, &qe):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: qe.Error(), Field: qe.Field})
	case errors.Is(err, search.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "bookmark not found"})
	case errors.Is(err, library.ErrEmpty), errors.Is(err, library.ErrInvalidURL):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, datastore.ErrLocked):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "datastore busy, retry later"})
	default:
		// ErrInvariant and I/O failures: the caller cannot fix these
		log.Error("request failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
