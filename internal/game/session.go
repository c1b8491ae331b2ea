// internal/game/session.go
package game

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
)

// Phase is the informational stage of a live session.
type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
)

// Entrant seeds a game participant from the lobby roster.
type Entrant struct {
	UserID       uuid.UUID
	DisplayName  string
	ConnectionID uuid.UUID
}

// Participant is a racer's progress. Once Finished is set, WPM and Score are final.
type Participant struct {
	UserID       uuid.UUID
	DisplayName  string
	Finished     bool
	WPM          int
	Score        int
	ConnectionID uuid.UUID // uuid.Nil while disconnected
}

// Session is one timed race. Fields are guarded by the owning Store.
type Session struct {
	ID           uuid.UUID
	LobbyCode    string
	StartTime    time.Time
	EndTime      time.Time
	Participants []*Participant

	words    []string
	deadline *time.Timer
}

// Phase reports whether the countdown is still pending at now.
func (s *Session) Phase(now time.Time) Phase {
	if now.Before(s.StartTime) {
		return PhaseStarting
	}
	return PhaseRunning
}

func (s *Session) find(userID uuid.UUID) *Participant {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *Session) allFinished() bool {
	for _, p := range s.Participants {
		if !p.Finished {
			return false
		}
	}
	return true
}

func (s *Session) state() models.GameState {
	st := models.GameState{
		Code:         s.LobbyCode,
		WordList:     append([]string(nil), s.words...),
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Participants: make([]models.GameParticipantView, 0, len(s.Participants)),
	}
	for _, p := range s.Participants {
		st.Participants = append(st.Participants, models.GameParticipantView{
			UserID:   p.UserID,
			Username: p.DisplayName,
			Finished: p.Finished,
			WPM:      p.WPM,
			Score:    p.Score,
		})
	}
	return st
}

// Finalize force-finishes every racer who has not reported, with zero wpm and
// score, and returns the leaderboard. It must only be called on a session that
// has been removed from its Store.
func (s *Session) Finalize() []models.Result {
	for _, p := range s.Participants {
		if !p.Finished {
			p.Finished = true
			p.WPM = 0
			p.Score = 0
		}
	}
	return Rank(s.Participants)
}

// Rank orders participants by wpm, highest first. Ties keep roster order.
func Rank(participants []*Participant) []models.Result {
	out := make([]models.Result, 0, len(participants))
	for _, p := range participants {
		out = append(out, models.Result{Username: p.DisplayName, WPM: p.WPM, Score: p.Score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WPM > out[j].WPM })
	return out
}
