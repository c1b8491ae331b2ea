// internal/lobby/lobby.go
package lobby

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/jason-s-yu/typerace/internal/roster"
)

// Visibility controls whether a lobby shows up in the public listing.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// MinPlayers is the smallest roster that may start a race.
const MinPlayers = 2

// Participant is a user's membership in a waiting lobby.
type Participant struct {
	ID          uuid.UUID // durable participant record id
	UserID      uuid.UUID
	DisplayName string
	IsReady     bool
}

// Lobby is a pre-game waiting room. Values returned by the Manager are
// copies and may be read freely.
type Lobby struct {
	ID           uuid.UUID
	Code         string
	Name         string
	Visibility   Visibility
	CreatorID    uuid.UUID
	Participants []Participant
}

// CanStart reports whether the ready quorum is met: at least MinPlayers
// participants and every one of them ready.
func (l Lobby) CanStart() bool {
	if len(l.Participants) < MinPlayers {
		return false
	}
	for _, p := range l.Participants {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// Has reports whether userID is a participant.
func (l Lobby) Has(userID uuid.UUID) bool {
	return l.indexOf(userID) >= 0
}

// Roster builds the lobbyUpdate payload.
func (l Lobby) Roster() []models.RosterEntry {
	out := make([]models.RosterEntry, 0, len(l.Participants))
	for _, p := range l.Participants {
		out = append(out, models.RosterEntry{
			ID:       p.ID,
			Username: p.DisplayName,
			IsReady:  p.IsReady,
		})
	}
	return out
}

// Info builds the lobbyInfo payload.
func (l Lobby) Info() models.LobbyInfo {
	return models.LobbyInfo{
		Code:     l.Code,
		Name:     l.Name,
		IsPublic: l.Visibility == Public,
	}
}

// CreatorName returns the creator's display name if they are still in the lobby.
func (l Lobby) CreatorName() string {
	if i := l.indexOf(l.CreatorID); i >= 0 {
		return l.Participants[i].DisplayName
	}
	return ""
}

func (l Lobby) indexOf(userID uuid.UUID) int {
	for i, p := range l.Participants {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

func (l *Lobby) clone() Lobby {
	out := *l
	out.Participants = append([]Participant(nil), l.Participants...)
	return out
}

func fromRecord(rec roster.LobbyRecord) *Lobby {
	vis := Private
	if rec.IsPublic {
		vis = Public
	}
	l := &Lobby{
		ID:         rec.ID,
		Code:       rec.Code,
		Name:       rec.Name,
		Visibility: vis,
		CreatorID:  rec.CreatorID,
	}
	for _, p := range rec.Participants {
		l.Participants = append(l.Participants, Participant{
			ID:          p.ID,
			UserID:      p.UserID,
			DisplayName: p.Username,
			IsReady:     p.IsReady,
		})
	}
	return l
}
