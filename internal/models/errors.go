// internal/models/errors.go
package models

import "errors"

// Failures reported back to the connection that sent the offending event.
var (
	ErrLobbyNotFound           = errors.New("lobby not found")
	ErrSessionNotFound         = errors.New("game session not found")
	ErrIdentityNotFound        = errors.New("user not found")
	ErrParticipantNotFound     = errors.New("participant not found")
	ErrCollaboratorUnavailable = errors.New("service temporarily unavailable")
	ErrAuthenticationFailed    = errors.New("authentication failed")

	ErrAlreadyFinished = errors.New("already finished this race")
	ErrSessionActive   = errors.New("a game is already in progress for this lobby")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrShuttingDown    = errors.New("server is shutting down")
)

var publicErrors = []error{
	ErrLobbyNotFound,
	ErrSessionNotFound,
	ErrIdentityNotFound,
	ErrParticipantNotFound,
	ErrCollaboratorUnavailable,
	ErrAuthenticationFailed,
	ErrAlreadyFinished,
	ErrSessionActive,
	ErrInvalidPayload,
	ErrShuttingDown,
}

// PublicMessage maps err onto the message a client is allowed to see.
// Anything outside the taxonomy is reported as a generic failure.
func PublicMessage(err error) string {
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
