package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atelierhq/atelier/internal/api/dto"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseIDParam rejects malformed id segments with a 400 before anything
// touches the database. Returns uuid.Nil and false after writing the
// response when the segment does not parse.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// writeNotFound is the single scope-hiding response: resources that are
// absent and resources that belong to another tenant answer identically.
func writeNotFound(w http.ResponseWriter, resource string) {
	writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: resource + " not found"})
}

func writeInternal(w http.ResponseWriter, action string) {
	writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to " + action})
}
