package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/J9273/quizbattle/internal/db"
	"github.com/J9273/quizbattle/internal/hub"
)

func readJSON(body io.Reader, dest any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeHubError maps command/taxonomy errors to HTTP statuses for the pull
// transport and the admin surface.
func writeHubError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrEpisodeNotFound),
		errors.Is(err, db.ErrTeamNotFound),
		errors.Is(err, db.ErrQuestionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, hub.ErrGameAlreadyStarted),
		errors.Is(err, hub.ErrEpisodeNotActive):
		status = http.StatusConflict
	case errors.Is(err, hub.ErrInvalidRole):
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   err.Error(),
		"kind":    hub.ErrorKind(err),
	})
}
