// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jason-s-yu/typerace/internal/models"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrLobbyNotFound),
		errors.Is(err, models.ErrIdentityNotFound),
		errors.Is(err, models.ErrParticipantNotFound),
		errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSessionActive), errors.Is(err, models.ErrAlreadyFinished):
		return http.StatusConflict
	case errors.Is(err, models.ErrCollaboratorUnavailable), errors.Is(err, models.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeModelError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), models.PublicMessage(err))
}
