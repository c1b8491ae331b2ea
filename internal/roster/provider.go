// internal/roster/provider.go
package roster

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the requested user, lobby or participant does not exist.
	ErrNotFound = errors.New("roster: record not found")
	// ErrCodeTaken is returned by CreateLobby when another lobby already owns the code.
	ErrCodeTaken = errors.New("roster: lobby code already in use")
)

// User is the identity half of the provider.
type User struct {
	ID       uuid.UUID
	Username string
}

// ParticipantRecord is a durable lobby membership row.
type ParticipantRecord struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Username string
	IsReady  bool
}

// LobbyRecord is a durable lobby row with its participants in join order.
type LobbyRecord struct {
	ID           uuid.UUID
	Code         string
	Name         string
	IsPublic     bool
	CreatorID    uuid.UUID
	Participants []ParticipantRecord
}

// Provider resolves identities and stores lobby membership. Any error other than
// ErrNotFound or ErrCodeTaken is treated by callers as the provider being unavailable.
type Provider interface {
	ResolveUser(ctx context.Context, userID uuid.UUID) (User, error)

	// CreateLobby stores the lobby together with its creator as the first participant.
	CreateLobby(ctx context.Context, rec LobbyRecord) (LobbyRecord, error)
	GetLobby(ctx context.Context, code string) (LobbyRecord, error)
	DeleteLobby(ctx context.Context, lobbyID uuid.UUID) error

	// UpsertParticipant returns the existing row when the user already belongs to the lobby.
	UpsertParticipant(ctx context.Context, lobbyID, userID uuid.UUID) (ParticipantRecord, error)
	SetParticipantReady(ctx context.Context, lobbyID, userID uuid.UUID, ready bool) error
	RemoveParticipant(ctx context.Context, participantID uuid.UUID) error
	ResetAllReady(ctx context.Context, lobbyID uuid.UUID) error
}
