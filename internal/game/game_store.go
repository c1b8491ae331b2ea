// internal/game/game_store.go
package game

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/sirupsen/logrus"
)

// GameStore holds at most one live session per lobby code. Sessions leave the
// store only through Remove, which the race coordinator calls exactly once per
// session when it ends.
type GameStore struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	wordCount int
	logger    logrus.FieldLogger
}

func NewGameStore(wordCount int, logger logrus.FieldLogger) *GameStore {
	if wordCount <= 0 {
		wordCount = DefaultWordCount
	}
	return &GameStore{
		sessions:  make(map[string]*Session),
		wordCount: wordCount,
		logger:    logger,
	}
}

// Create starts a session for code. StartTime is now+countdown and EndTime is
// StartTime+race. Returns ErrSessionActive if the code already has one.
func (s *GameStore) Create(code string, entrants []Entrant, now time.Time, countdown, race time.Duration) (models.GameState, uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[code]; ok {
		s.logger.WithFields(logrus.Fields{
			"code":    code,
			"session": existing.ID,
		}).Warn("refusing to start a second session for lobby")
		return models.GameState{}, uuid.Nil, models.ErrSessionActive
	}

	sess := &Session{
		ID:        uuid.New(),
		LobbyCode: code,
		StartTime: now.Add(countdown),
		words:     DealWords(s.wordCount),
	}
	sess.EndTime = sess.StartTime.Add(race)
	for _, e := range entrants {
		sess.Participants = append(sess.Participants, &Participant{
			UserID:       e.UserID,
			DisplayName:  e.DisplayName,
			ConnectionID: e.ConnectionID,
		})
	}
	s.sessions[code] = sess
	return sess.state(), sess.ID, nil
}

// ArmDeadline schedules fire at the session's EndTime. fire runs on its own
// goroutine and must tolerate the session having ended already.
func (s *GameStore) ArmDeadline(code string, sessionID uuid.UUID, fire func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok || sess.ID != sessionID {
		return false
	}
	if sess.deadline != nil {
		sess.deadline.Stop()
	}
	sess.deadline = time.AfterFunc(time.Until(sess.EndTime), fire)
	return true
}

// Active reports the id of the live session for code.
func (s *GameStore) Active(code string) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok {
		return uuid.Nil, false
	}
	return sess.ID, true
}

// State returns a snapshot of the live session for code.
func (s *GameStore) State(code string) (models.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok {
		return models.GameState{}, models.ErrSessionNotFound
	}
	return sess.state(), nil
}

// Phase reports the session phase for code at now.
func (s *GameStore) Phase(code string, now time.Time) (Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok {
		return "", models.ErrSessionNotFound
	}
	return sess.Phase(now), nil
}

// IsParticipant reports whether userID races in the session for code.
func (s *GameStore) IsParticipant(code string, userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	return ok && sess.find(userID) != nil
}

// RecordFinish stores a racer's final wpm and score. The first report wins;
// later ones fail with ErrAlreadyFinished. allFinished is true once every
// participant has reported.
func (s *GameStore) RecordFinish(code string, userID uuid.UUID, wpm, score int) (res models.Result, allFinished bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok {
		return models.Result{}, false, models.ErrSessionNotFound
	}
	p := sess.find(userID)
	if p == nil {
		return models.Result{}, false, models.ErrParticipantNotFound
	}
	if p.Finished {
		return models.Result{}, false, models.ErrAlreadyFinished
	}
	p.Finished = true
	p.WPM = wpm
	p.Score = score
	return models.Result{Username: p.DisplayName, WPM: wpm, Score: score}, sess.allFinished(), nil
}

// AttachConnection binds connID to userID's participant entry.
func (s *GameStore) AttachConnection(code string, userID, connID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok {
		return models.ErrSessionNotFound
	}
	p := sess.find(userID)
	if p == nil {
		return models.ErrParticipantNotFound
	}
	p.ConnectionID = connID
	return nil
}

// DetachConnection clears connID from whichever participant holds it. It
// returns the number of participants still connected.
func (s *GameStore) DetachConnection(code string, connID uuid.UUID) (connected int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, exists := s.sessions[code]
	if !exists {
		return 0, false
	}
	for _, p := range sess.Participants {
		if p.ConnectionID == connID {
			p.ConnectionID = uuid.Nil
			ok = true
		}
		if p.ConnectionID != uuid.Nil {
			connected++
		}
	}
	return connected, ok
}

// Connected returns how many racers in the session for code hold a live
// connection. ok is false when no session exists.
func (s *GameStore) Connected(code string) (connected int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, exists := s.sessions[code]
	if !exists {
		return 0, false
	}
	for _, p := range sess.Participants {
		if p.ConnectionID != uuid.Nil {
			connected++
		}
	}
	return connected, true
}

// ExtendWords appends a fresh batch to the session's word list. Existing
// words are never changed; Offset is the index of the first new word.
func (s *GameStore) ExtendWords(code string) (models.WordBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok {
		return models.WordBatch{}, models.ErrSessionNotFound
	}
	batch := DealWords(s.wordCount)
	offset := len(sess.words)
	sess.words = append(sess.words, batch...)
	return models.WordBatch{Offset: offset, Words: batch}, nil
}

// Remove takes the session for code out of the store and stops its deadline.
// It is a no-op unless the live session has the given id, which makes a late
// deadline firing harmless.
func (s *GameStore) Remove(code string, sessionID uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok || sess.ID != sessionID {
		return nil, false
	}
	delete(s.sessions, code)
	if sess.deadline != nil {
		sess.deadline.Stop()
		sess.deadline = nil
	}
	return sess, true
}

// Codes lists lobby codes with a live session.
func (s *GameStore) Codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sessions))
	for code := range s.sessions {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
