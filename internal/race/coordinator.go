// internal/race/coordinator.go
package race

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/game"
	"github.com/jason-s-yu/typerace/internal/lobby"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/jason-s-yu/typerace/internal/registry"
	"github.com/sirupsen/logrus"
)

// Config holds the race timing and end policy.
type Config struct {
	Countdown    time.Duration
	RaceDuration time.Duration
	// EndOnAbandon ends a race as soon as no racer has a live connection,
	// instead of waiting for the deadline.
	EndOnAbandon bool
	// AbandonGrace delays the abandon check so a racer can move to a new
	// socket and joinGame before the race is ended. Zero ends at once.
	AbandonGrace time.Duration
	// PublishTimeout bounds a single ResultSink call.
	PublishTimeout time.Duration
}

// ResultSink receives every finished race. Publishing is best effort and
// never delays the terminal broadcast.
type ResultSink interface {
	PublishResult(ctx context.Context, res models.RaceResult) error
}

// Coordinator drives each lobby from WAITING through a timed race and back.
// All operations on one lobby code run under that code's lock, so roster
// writes, session changes and broadcasts for a lobby never interleave.
type Coordinator struct {
	cfg      Config
	lobbies  *lobby.Manager
	games    *game.GameStore
	registry *registry.Registry
	sink     ResultSink
	locks    *keyedLocker
	logger   logrus.FieldLogger

	// lifecycle guards closing; sessions are only created under its read lock.
	lifecycle sync.RWMutex
	closing   bool

	pubMu      sync.Mutex
	pubClosed  bool
	publishing sync.WaitGroup
}

// NewCoordinator wires the lifecycle controller. sink may be nil.
func NewCoordinator(cfg Config, lobbies *lobby.Manager, games *game.GameStore, reg *registry.Registry, sink ResultSink, logger logrus.FieldLogger) *Coordinator {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Coordinator{
		cfg:      cfg,
		lobbies:  lobbies,
		games:    games,
		registry: reg,
		sink:     sink,
		locks:    newKeyedLocker(),
		logger:   logger,
	}
}

// Connect makes a new socket addressable.
func (c *Coordinator) Connect(conn *registry.Connection) {
	c.registry.Register(conn)
	c.logger.WithFields(logrus.Fields{"conn": conn.ID, "user": conn.UserID}).Debug("connection registered")
}

// CreateLobby creates a lobby owned by userID. When connID is set the socket
// joins the new room and receives lobbyCreated and lobbyInfo.
func (c *Coordinator) CreateLobby(ctx context.Context, connID, userID uuid.UUID, name string, public bool) (lobby.Lobby, error) {
	vis := lobby.Private
	if public {
		vis = lobby.Public
	}
	l, err := c.lobbies.Create(ctx, userID, name, vis)
	if err != nil {
		return lobby.Lobby{}, err
	}

	if connID != uuid.Nil {
		c.leaveCurrentRoom(ctx, connID, l.Code)
	}

	unlock := c.locks.Lock(l.Code)
	defer unlock()

	if connID != uuid.Nil {
		if err := c.registry.AttachToRoom(connID, l.Code); err != nil {
			c.logger.WithError(err).WithField("lobby", l.Code).Warn("creator connection vanished before attach")
		} else {
			c.registry.Send(connID, models.Event{Type: models.EventLobbyCreated, Payload: l.Code})
			c.registry.Send(connID, models.Event{Type: models.EventLobbyInfo, Payload: l.Info()})
		}
	}
	c.registry.Broadcast(l.Code, models.Event{Type: models.EventLobbyUpdate, Payload: l.Roster()})
	return l, nil
}

// JoinLobby adds userID to the lobby, or reattaches the socket if the user is
// already a participant. A socket sitting in another lobby leaves it first.
func (c *Coordinator) JoinLobby(ctx context.Context, connID, userID uuid.UUID, code string) (lobby.Lobby, error) {
	code = lobby.NormalizeCode(code)
	if prev := c.registry.Room(connID); prev != "" && prev != code {
		if _, err := c.lobbies.Find(ctx, code); err != nil {
			return lobby.Lobby{}, err
		}
		c.leaveCurrentRoom(ctx, connID, code)
	}

	unlock := c.locks.Lock(code)
	defer unlock()

	l, added, err := c.lobbies.Join(ctx, userID, code)
	if err != nil {
		return lobby.Lobby{}, err
	}
	if err := c.registry.AttachToRoom(connID, code); err != nil {
		return l, err
	}
	c.logger.WithFields(logrus.Fields{"lobby": code, "user": userID, "rejoin": !added}).Info("user joined lobby")

	c.registry.Send(connID, models.Event{Type: models.EventLobbyInfo, Payload: l.Info()})
	c.registry.Broadcast(code, models.Event{Type: models.EventLobbyUpdate, Payload: l.Roster()})
	return l, nil
}

// LeaveLobby removes userID from the lobby and detaches the socket from its room.
func (c *Coordinator) LeaveLobby(ctx context.Context, connID, userID uuid.UUID, code string) error {
	code = lobby.NormalizeCode(code)
	unlock := c.locks.Lock(code)
	defer unlock()

	l, deleted, err := c.lobbies.Leave(ctx, userID, code)
	if err != nil {
		return err
	}
	if connID != uuid.Nil && c.registry.Room(connID) == code {
		c.registry.LeaveRoom(connID)
	}
	if !deleted {
		c.registry.Broadcast(code, models.Event{Type: models.EventLobbyUpdate, Payload: l.Roster()})
	}
	return nil
}

// SetReady records the ready flag and starts a race once the quorum holds.
// The quorum is evaluated on the roster returned by the write itself.
func (c *Coordinator) SetReady(ctx context.Context, userID uuid.UUID, code string, ready bool) error {
	code = lobby.NormalizeCode(code)
	unlock := c.locks.Lock(code)
	defer unlock()

	if _, active := c.games.Active(code); active {
		return models.ErrSessionActive
	}
	l, changed, err := c.lobbies.SetReady(ctx, userID, code, ready)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	c.registry.Broadcast(code, models.Event{Type: models.EventLobbyUpdate, Payload: l.Roster()})

	if l.CanStart() {
		return c.startLocked(l)
	}
	return nil
}

// startLocked assumes the lobby lock is held.
func (c *Coordinator) startLocked(l lobby.Lobby) error {
	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	if c.closing {
		return models.ErrShuttingDown
	}

	entrants := make([]game.Entrant, 0, len(l.Participants))
	for _, p := range l.Participants {
		entrants = append(entrants, game.Entrant{
			UserID:       p.UserID,
			DisplayName:  p.DisplayName,
			ConnectionID: c.registry.ConnectionForUser(l.Code, p.UserID),
		})
	}

	now := time.Now()
	state, sessionID, err := c.games.Create(l.Code, entrants, now, c.cfg.Countdown, c.cfg.RaceDuration)
	if err != nil {
		return err
	}
	code := l.Code
	if phase, err := c.games.Phase(code, now); err == nil {
		state.Phase = string(phase)
	}
	c.games.ArmDeadline(code, sessionID, func() { c.onDeadline(code, sessionID) })

	c.logger.WithFields(logrus.Fields{
		"lobby":   code,
		"session": sessionID,
		"players": len(entrants),
		"start":   state.StartTime,
		"end":     state.EndTime,
	}).Info("race starting")

	c.registry.Broadcast(code, models.Event{Type: models.EventGameStarting, Payload: code})
	c.registry.Broadcast(code, models.Event{Type: models.EventStartCountdown, Payload: models.CountdownInfo{
		Seconds:   int(c.cfg.Countdown / time.Second),
		StartTime: state.StartTime,
	}})
	c.registry.Broadcast(code, models.Event{Type: models.EventGameState, Payload: state})
	return nil
}

// JoinGame attaches a racer's socket to the running session and sends it the
// current game state.
func (c *Coordinator) JoinGame(ctx context.Context, connID, userID uuid.UUID, code string) error {
	code = lobby.NormalizeCode(code)
	if c.games.IsParticipant(code, userID) {
		c.leaveCurrentRoom(ctx, connID, code)
	}

	unlock := c.locks.Lock(code)
	defer unlock()

	if err := c.games.AttachConnection(code, userID, connID); err != nil {
		return err
	}
	if err := c.registry.AttachToRoom(connID, code); err != nil {
		return err
	}
	state, err := c.games.State(code)
	if err != nil {
		return err
	}
	phase, err := c.games.Phase(code, time.Now())
	if err != nil {
		return err
	}
	state.Phase = string(phase)
	c.registry.Send(connID, models.Event{Type: models.EventGameState, Payload: state})
	return nil
}

// FinishGame records a racer's result and ends the race when nobody is left typing.
func (c *Coordinator) FinishGame(ctx context.Context, userID uuid.UUID, code string, wpm, score int) error {
	if wpm < 0 || score < 0 {
		return models.ErrInvalidPayload
	}
	code = lobby.NormalizeCode(code)
	unlock := c.locks.Lock(code)
	defer unlock()

	sessionID, ok := c.games.Active(code)
	if !ok {
		return models.ErrSessionNotFound
	}
	res, allFinished, err := c.games.RecordFinish(code, userID, wpm, score)
	if err != nil {
		return err
	}
	c.registry.Broadcast(code, models.Event{Type: models.EventPlayerFinished, Payload: res})

	if allFinished {
		c.endLocked(ctx, code, sessionID, models.EndAllFinished)
	}
	return nil
}

// RequestMoreWords appends a batch to the race's word list and sends it to
// the whole room so every racer keeps the same list.
func (c *Coordinator) RequestMoreWords(ctx context.Context, userID uuid.UUID, code string) error {
	code = lobby.NormalizeCode(code)
	unlock := c.locks.Lock(code)
	defer unlock()

	if _, ok := c.games.Active(code); !ok {
		return models.ErrSessionNotFound
	}
	if !c.games.IsParticipant(code, userID) {
		return models.ErrParticipantNotFound
	}
	batch, err := c.games.ExtendWords(code)
	if err != nil {
		return err
	}
	c.registry.Broadcast(code, models.Event{Type: models.EventAdditionalWords, Payload: batch})
	return nil
}

// RequestRematch tells the room that a participant wants another race.
func (c *Coordinator) RequestRematch(ctx context.Context, userID uuid.UUID, code string) error {
	code = lobby.NormalizeCode(code)
	unlock := c.locks.Lock(code)
	defer unlock()

	l, err := c.lobbies.Find(ctx, code)
	if err != nil {
		return err
	}
	if !l.Has(userID) {
		return models.ErrParticipantNotFound
	}
	c.registry.Broadcast(code, models.Event{Type: models.EventRematchRequest})
	return nil
}

// AcceptRematch clears every ready flag and sends the room back to the lobby
// view. The next race still needs the full ready quorum.
func (c *Coordinator) AcceptRematch(ctx context.Context, userID uuid.UUID, code string) error {
	code = lobby.NormalizeCode(code)
	unlock := c.locks.Lock(code)
	defer unlock()

	if _, active := c.games.Active(code); active {
		return models.ErrSessionActive
	}
	l, err := c.lobbies.Find(ctx, code)
	if err != nil {
		return err
	}
	if !l.Has(userID) {
		return models.ErrParticipantNotFound
	}
	l, err = c.lobbies.ResetReady(ctx, code)
	if err != nil {
		return err
	}
	c.registry.Broadcast(code, models.Event{Type: models.EventLobbyUpdate, Payload: l.Roster()})
	c.registry.Broadcast(code, models.Event{Type: models.EventRematchAccept})
	return nil
}

// Disconnect forgets a closed socket and releases its seat in the room it was in.
func (c *Coordinator) Disconnect(ctx context.Context, connID uuid.UUID) {
	conn, room, ok := c.registry.Detach(connID)
	if !ok || room == "" {
		return
	}
	unlock := c.locks.Lock(room)
	defer unlock()
	c.departLocked(ctx, room, connID, conn.UserID)
}

// leaveCurrentRoom takes the socket out of its current room unless that room
// is next, releasing the seat there the same way a disconnect does.
func (c *Coordinator) leaveCurrentRoom(ctx context.Context, connID uuid.UUID, next string) {
	conn, ok := c.registry.Lookup(connID)
	if !ok {
		return
	}
	prev := c.registry.Room(connID)
	if prev == "" || prev == next {
		return
	}
	unlock := c.locks.Lock(prev)
	defer unlock()
	if c.registry.Room(connID) != prev {
		return
	}
	c.registry.LeaveRoom(connID)
	c.departLocked(ctx, prev, connID, conn.UserID)
}

// departLocked handles a socket that is no longer in room. Outside a race the
// user leaves the lobby unless another of their sockets is still in the room.
// During a race the lobby seat is kept and only the racer's connection is
// cleared. Assumes the lobby lock is held.
func (c *Coordinator) departLocked(ctx context.Context, room string, connID, userID uuid.UUID) {
	log := c.logger.WithFields(logrus.Fields{"lobby": room, "user": userID, "conn": connID})

	if sessionID, active := c.games.Active(room); active {
		connected, held := c.games.DetachConnection(room, connID)
		if held && connected == 0 && c.cfg.EndOnAbandon {
			c.abandonLocked(ctx, room, sessionID)
		}
		return
	}

	if c.registry.UserInRoom(room, userID) {
		return
	}
	l, deleted, err := c.lobbies.Leave(ctx, userID, room)
	switch {
	case errors.Is(err, models.ErrLobbyNotFound), errors.Is(err, models.ErrParticipantNotFound):
		return
	case err != nil:
		log.WithError(err).Warn("could not remove departed participant")
		return
	}
	if !deleted {
		c.registry.Broadcast(room, models.Event{Type: models.EventLobbyUpdate, Payload: l.Roster()})
	}
}

// abandonLocked ends a race that has no connected racer left. With a grace
// period the count is checked again once it passes. Assumes the lobby lock is held.
func (c *Coordinator) abandonLocked(ctx context.Context, code string, sessionID uuid.UUID) {
	log := c.logger.WithFields(logrus.Fields{"lobby": code, "session": sessionID})
	if c.cfg.AbandonGrace <= 0 {
		log.Info("last racer disconnected, ending race")
		c.endLocked(ctx, code, sessionID, models.EndAbandoned)
		return
	}

	log.WithField("grace", c.cfg.AbandonGrace).Info("last racer disconnected, waiting for a reconnect")
	time.AfterFunc(c.cfg.AbandonGrace, func() {
		unlock := c.locks.Lock(code)
		defer unlock()
		if id, ok := c.games.Active(code); !ok || id != sessionID {
			return
		}
		if connected, _ := c.games.Connected(code); connected > 0 {
			return
		}
		log.Info("nobody came back, ending race")
		c.endLocked(context.Background(), code, sessionID, models.EndAbandoned)
	})
}

func (c *Coordinator) onDeadline(code string, sessionID uuid.UUID) {
	unlock := c.locks.Lock(code)
	defer unlock()
	c.endLocked(context.Background(), code, sessionID, models.EndDeadline)
}

// endLocked is the single path to a race's end. Only the caller that removes
// the session from the store proceeds, so each session emits exactly one
// gameOver no matter how the all-finished, deadline and abandon triggers
// interleave. Assumes the lobby lock is held.
func (c *Coordinator) endLocked(ctx context.Context, code string, sessionID uuid.UUID, reason models.EndReason) bool {
	sess, ok := c.games.Remove(code, sessionID)
	if !ok {
		return false
	}
	log := c.logger.WithFields(logrus.Fields{"lobby": code, "session": sessionID, "reason": reason})

	results := sess.Finalize()
	c.registry.Broadcast(code, models.Event{Type: models.EventGameOver, Payload: results})
	log.Info("race over")

	c.publish(models.RaceResult{
		SessionID: sessionID,
		LobbyCode: code,
		Reason:    reason,
		StartTime: sess.StartTime,
		EndTime:   sess.EndTime,
		Results:   results,
	})

	// The durable reset may fail; memory is reset regardless and the next
	// ready write restores the stored flag.
	if _, err := c.lobbies.ResetReady(ctx, code); err != nil {
		if errors.Is(err, models.ErrLobbyNotFound) {
			return true
		}
		log.WithError(err).Warn("ready flags reset in memory only")
	}
	l, deleted, err := c.lobbies.Prune(ctx, code, func(userID uuid.UUID) bool {
		return c.registry.UserInRoom(code, userID)
	})
	if err != nil {
		log.WithError(err).Warn("could not prune disconnected participants")
		if l, ok = c.lobbies.Get(code); !ok {
			return true
		}
	} else if deleted {
		return true
	}
	c.registry.Broadcast(code, models.Event{Type: models.EventLobbyUpdate, Payload: l.Roster()})
	return true
}

func (c *Coordinator) publish(res models.RaceResult) {
	if c.sink == nil {
		return
	}
	c.pubMu.Lock()
	late := c.pubClosed
	if !late {
		c.publishing.Add(1)
	}
	c.pubMu.Unlock()

	if late {
		c.sendResult(res)
		return
	}
	go func() {
		defer c.publishing.Done()
		c.sendResult(res)
	}()
}

func (c *Coordinator) sendResult(res models.RaceResult) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
	defer cancel()
	if err := c.sink.PublishResult(ctx, res); err != nil {
		c.logger.WithError(err).WithField("session", res.SessionID).Warn("failed to publish race result")
	}
}

// Shutdown stops new races from starting, ends every live one and waits for
// pending result publishes.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.lifecycle.Lock()
	c.closing = true
	c.lifecycle.Unlock()

	for _, code := range c.games.Codes() {
		unlock := c.locks.Lock(code)
		if sessionID, ok := c.games.Active(code); ok {
			c.endLocked(ctx, code, sessionID, models.EndShutdown)
		}
		unlock()
	}

	c.pubMu.Lock()
	c.pubClosed = true
	c.pubMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.publishing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
