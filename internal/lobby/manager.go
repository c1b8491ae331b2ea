// internal/lobby/manager.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/jason-s-yu/typerace/internal/roster"
	"github.com/sirupsen/logrus"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts = 16
)

// Manager owns the waiting lobbies. Every mutation is written through to the
// roster provider first and applied in memory only once the provider accepted it.
//
// The Manager guards its own map, but compound operations on one code are not
// atomic on their own; callers serialize operations per lobby code.
type Manager struct {
	mu       sync.RWMutex
	lobbies  map[string]*Lobby
	provider roster.Provider
	timeout  time.Duration
	logger   logrus.FieldLogger
}

// NewManager returns an empty Manager backed by provider. Each provider call is
// bounded by timeout.
func NewManager(provider roster.Provider, timeout time.Duration, logger logrus.FieldLogger) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		lobbies:  make(map[string]*Lobby),
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// GenerateCode returns a random candidate lobby code.
func GenerateCode() string {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// NormalizeCode upper-cases and trims a client supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create makes a lobby with the creator as its only, unready participant.
func (m *Manager) Create(ctx context.Context, creatorID uuid.UUID, name string, vis Visibility) (Lobby, error) {
	if _, err := m.resolveUser(ctx, creatorID); err != nil {
		return Lobby{}, err
	}
	if vis != Private {
		vis = Public
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := GenerateCode()
		if _, taken := m.Get(code); taken {
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		rec, err := m.provider.CreateLobby(cctx, roster.LobbyRecord{
			Code:      code,
			Name:      name,
			IsPublic:  vis == Public,
			CreatorID: creatorID,
		})
		cancel()
		if errors.Is(err, roster.ErrCodeTaken) {
			m.logger.WithField("lobby", code).Debug("lobby code collision, retrying")
			continue
		}
		if err != nil {
			return Lobby{}, m.classify(err, models.ErrIdentityNotFound)
		}

		l := fromRecord(rec)
		m.mu.Lock()
		m.lobbies[code] = l
		snap := l.clone()
		m.mu.Unlock()

		m.logger.WithFields(logrus.Fields{"lobby": code, "user": creatorID}).Info("lobby created")
		return snap, nil
	}
	return Lobby{}, fmt.Errorf("%w: no free lobby code after %d attempts", models.ErrCollaboratorUnavailable, codeAttempts)
}

// Join adds userID to the lobby. Joining a lobby the user already belongs to is a
// no-op; added reports whether a participant was created.
func (m *Manager) Join(ctx context.Context, userID uuid.UUID, code string) (snap Lobby, added bool, err error) {
	l, err := m.load(ctx, code)
	if err != nil {
		return Lobby{}, false, err
	}
	if m.snapshot(l).Has(userID) {
		return m.snapshot(l), false, nil
	}

	user, err := m.resolveUser(ctx, userID)
	if err != nil {
		return Lobby{}, false, err
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	rec, err := m.provider.UpsertParticipant(cctx, l.ID, userID)
	cancel()
	if err != nil {
		return Lobby{}, false, m.classify(err, models.ErrLobbyNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l.indexOf(userID) < 0 {
		l.Participants = append(l.Participants, Participant{
			ID:          rec.ID,
			UserID:      userID,
			DisplayName: user.Username,
			IsReady:     rec.IsReady,
		})
		added = true
	}
	return l.clone(), added, nil
}

// SetReady updates the user's ready flag. A user who is not a participant is
// ignored; changed reports whether the flag was written.
func (m *Manager) SetReady(ctx context.Context, userID uuid.UUID, code string, ready bool) (snap Lobby, changed bool, err error) {
	l, err := m.load(ctx, code)
	if err != nil {
		return Lobby{}, false, err
	}
	if !m.snapshot(l).Has(userID) {
		return m.snapshot(l), false, nil
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	err = m.provider.SetParticipantReady(cctx, l.ID, userID, ready)
	cancel()
	if err != nil {
		return Lobby{}, false, m.classify(err, models.ErrLobbyNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i := l.indexOf(userID); i >= 0 {
		l.Participants[i].IsReady = ready
		changed = true
	}
	return l.clone(), changed, nil
}

// Leave removes userID from the lobby, deleting the lobby once it is empty.
func (m *Manager) Leave(ctx context.Context, userID uuid.UUID, code string) (snap Lobby, deleted bool, err error) {
	l, ok := m.lookup(code)
	if !ok {
		return Lobby{}, false, models.ErrLobbyNotFound
	}
	return m.removeWhere(ctx, l, func(p Participant) bool { return p.UserID == userID })
}

// Prune removes every participant for which keep returns false.
func (m *Manager) Prune(ctx context.Context, code string, keep func(userID uuid.UUID) bool) (snap Lobby, deleted bool, err error) {
	l, ok := m.lookup(code)
	if !ok {
		return Lobby{}, false, models.ErrLobbyNotFound
	}
	return m.removeWhere(ctx, l, func(p Participant) bool { return !keep(p.UserID) })
}

// ResetReady clears every ready flag. The in-memory flags are always cleared; a
// provider failure is returned for the caller to report.
func (m *Manager) ResetReady(ctx context.Context, code string) (Lobby, error) {
	l, ok := m.lookup(code)
	if !ok {
		return Lobby{}, models.ErrLobbyNotFound
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	perr := m.provider.ResetAllReady(cctx, l.ID)
	cancel()

	m.mu.Lock()
	for i := range l.Participants {
		l.Participants[i].IsReady = false
	}
	snap := l.clone()
	m.mu.Unlock()

	if perr != nil {
		return snap, m.classify(perr, models.ErrLobbyNotFound)
	}
	return snap, nil
}

// Get returns a copy of the lobby held in memory.
func (m *Manager) Get(code string) (Lobby, bool) {
	l, ok := m.lookup(code)
	if !ok {
		return Lobby{}, false
	}
	return m.snapshot(l), true
}

// Find returns the lobby, loading it from the provider when it is not yet in memory.
func (m *Manager) Find(ctx context.Context, code string) (Lobby, error) {
	l, err := m.load(ctx, code)
	if err != nil {
		return Lobby{}, err
	}
	return m.snapshot(l), nil
}

// ListPublic returns the public lobbies that have at least one participant, ordered by code.
func (m *Manager) ListPublic() []Lobby {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Lobby, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		if l.Visibility == Public && len(l.Participants) > 0 {
			out = append(out, l.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (m *Manager) removeWhere(ctx context.Context, l *Lobby, drop func(Participant) bool) (Lobby, bool, error) {
	for _, p := range m.snapshot(l).Participants {
		if !drop(p) {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := m.provider.RemoveParticipant(cctx, p.ID)
		cancel()
		if err != nil {
			return Lobby{}, false, m.classify(err, models.ErrParticipantNotFound)
		}
		m.mu.Lock()
		if i := l.indexOf(p.UserID); i >= 0 {
			l.Participants = append(l.Participants[:i], l.Participants[i+1:]...)
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	empty := len(l.Participants) == 0
	if empty {
		delete(m.lobbies, l.Code)
	}
	snap := l.clone()
	m.mu.Unlock()

	if empty {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		if err := m.provider.DeleteLobby(cctx, l.ID); err != nil {
			m.logger.WithError(err).WithField("lobby", l.Code).Warn("failed to delete empty lobby record")
		}
		cancel()
		m.logger.WithField("lobby", l.Code).Info("lobby deleted, no participants left")
	}
	return snap, empty, nil
}

// load returns the in-memory lobby or hydrates it from the provider.
func (m *Manager) load(ctx context.Context, code string) (*Lobby, error) {
	if l, ok := m.lookup(code); ok {
		return l, nil
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	rec, err := m.provider.GetLobby(cctx, code)
	cancel()
	if err != nil {
		return nil, m.classify(err, models.ErrLobbyNotFound)
	}
	if len(rec.Participants) == 0 {
		return nil, models.ErrLobbyNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.lobbies[code]; ok {
		return existing, nil
	}
	l := fromRecord(rec)
	m.lobbies[code] = l
	m.logger.WithField("lobby", code).Debug("lobby loaded from roster provider")
	return l, nil
}

func (m *Manager) lookup(code string) (*Lobby, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lobbies[code]
	return l, ok
}

func (m *Manager) snapshot(l *Lobby) Lobby {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return l.clone()
}

func (m *Manager) resolveUser(ctx context.Context, userID uuid.UUID) (roster.User, error) {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	u, err := m.provider.ResolveUser(cctx, userID)
	if err != nil {
		return roster.User{}, m.classify(err, models.ErrIdentityNotFound)
	}
	return u, nil
}

// classify maps a provider error onto the taxonomy: missing records become
// notFound, everything else means the provider is unavailable.
func (m *Manager) classify(err error, notFound error) error {
	if errors.Is(err, roster.ErrNotFound) {
		return notFound
	}
	m.logger.WithError(err).Warn("roster provider call failed")
	return fmt.Errorf("%w: %v", models.ErrCollaboratorUnavailable, err)
}
