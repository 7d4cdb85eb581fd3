package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DoyleJ11/tourney/internal/hub"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps the tournament error categories onto status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tournament.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, tournament.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tournament.ErrRejected), errors.Is(err, hub.ErrCodeTaken):
		status = http.StatusConflict
	case errors.Is(err, tournament.ErrConnection), errors.Is(err, hub.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
