// internal/roster/memory.go
package roster

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is a Provider held entirely in process memory. Fail, when set, is
// returned from every call and simulates an unreachable store.
type Memory struct {
	mu      sync.Mutex
	users   map[uuid.UUID]User
	lobbies map[string]*LobbyRecord
	Fail    error
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[uuid.UUID]User),
		lobbies: make(map[string]*LobbyRecord),
	}
}

// AddUser registers a resolvable identity and returns its id.
func (m *Memory) AddUser(username string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.users[id] = User{ID: id, Username: username}
	return id
}

// SetFailure toggles the simulated outage.
func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fail = err
}

func (m *Memory) ResolveUser(ctx context.Context, userID uuid.UUID) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return User{}, m.Fail
	}
	u, ok := m.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) CreateLobby(ctx context.Context, rec LobbyRecord) (LobbyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return LobbyRecord{}, m.Fail
	}
	if _, exists := m.lobbies[rec.Code]; exists {
		return LobbyRecord{}, ErrCodeTaken
	}
	creator, ok := m.users[rec.CreatorID]
	if !ok {
		return LobbyRecord{}, ErrNotFound
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.Participants = []ParticipantRecord{{
		ID:       uuid.New(),
		UserID:   creator.ID,
		Username: creator.Username,
	}}
	stored := rec
	m.lobbies[rec.Code] = &stored
	return copyLobby(&stored), nil
}

func (m *Memory) GetLobby(ctx context.Context, code string) (LobbyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return LobbyRecord{}, m.Fail
	}
	l, ok := m.lobbies[code]
	if !ok {
		return LobbyRecord{}, ErrNotFound
	}
	return copyLobby(l), nil
}

func (m *Memory) DeleteLobby(ctx context.Context, lobbyID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for code, l := range m.lobbies {
		if l.ID == lobbyID {
			delete(m.lobbies, code)
		}
	}
	return nil
}

func (m *Memory) UpsertParticipant(ctx context.Context, lobbyID, userID uuid.UUID) (ParticipantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return ParticipantRecord{}, m.Fail
	}
	l := m.lobbyByID(lobbyID)
	if l == nil {
		return ParticipantRecord{}, ErrNotFound
	}
	for _, p := range l.Participants {
		if p.UserID == userID {
			return p, nil
		}
	}
	u, ok := m.users[userID]
	if !ok {
		return ParticipantRecord{}, ErrNotFound
	}
	p := ParticipantRecord{ID: uuid.New(), UserID: userID, Username: u.Username}
	l.Participants = append(l.Participants, p)
	return p, nil
}

func (m *Memory) SetParticipantReady(ctx context.Context, lobbyID, userID uuid.UUID, ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	l := m.lobbyByID(lobbyID)
	if l == nil {
		return ErrNotFound
	}
	for i := range l.Participants {
		if l.Participants[i].UserID == userID {
			l.Participants[i].IsReady = ready
		}
	}
	return nil
}

func (m *Memory) RemoveParticipant(ctx context.Context, participantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for _, l := range m.lobbies {
		for i, p := range l.Participants {
			if p.ID == participantID {
				l.Participants = append(l.Participants[:i], l.Participants[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (m *Memory) ResetAllReady(ctx context.Context, lobbyID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	l := m.lobbyByID(lobbyID)
	if l == nil {
		return ErrNotFound
	}
	for i := range l.Participants {
		l.Participants[i].IsReady = false
	}
	return nil
}

// lobbyByID assumes the lock is held.
func (m *Memory) lobbyByID(id uuid.UUID) *LobbyRecord {
	for _, l := range m.lobbies {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func copyLobby(l *LobbyRecord) LobbyRecord {
	out := *l
	out.Participants = append([]ParticipantRecord(nil), l.Participants...)
	return out
}
