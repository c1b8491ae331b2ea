// internal/race/coordinator_test.go
package race

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/game"
	"github.com/jason-s-yu/typerace/internal/lobby"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/jason-s-yu/typerace/internal/registry"
	"github.com/jason-s-yu/typerace/internal/roster"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectingSink records published race results instead of sending them to Redis.
type collectingSink struct {
	mu      sync.Mutex
	results []models.RaceResult
}

func (s *collectingSink) PublishResult(_ context.Context, res models.RaceResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

func (s *collectingSink) all() []models.RaceResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RaceResult(nil), s.results...)
}

type harness struct {
	c    *Coordinator
	mem  *roster.Memory
	reg  *registry.Registry
	sink *collectingSink
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mem := roster.NewMemory()
	reg := registry.New(logger)
	sink := &collectingSink{}
	c := NewCoordinator(cfg,
		lobby.NewManager(mem, time.Second, logger),
		game.NewGameStore(game.DefaultWordCount, logger),
		reg, sink, logger)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return &harness{c: c, mem: mem, reg: reg, sink: sink}
}

func longRace() Config {
	return Config{Countdown: 5 * time.Second, RaceDuration: 30 * time.Second}
}

func (h *harness) connect(userID uuid.UUID) *registry.Connection {
	conn := registry.NewConnection(userID, 256, nil)
	h.c.Connect(conn)
	return conn
}

func drain(conn *registry.Connection) []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-conn.OutChan:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func types(events []models.Event) []models.EventType {
	out := make([]models.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func countType(events []models.Event, typ models.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, conn *registry.Connection, typ models.EventType) models.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-conn.OutChan:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return models.Event{}
		}
	}
}

type player struct {
	id   uuid.UUID
	conn *registry.Connection
}

// seatLobby creates a lobby for the first name and joins the rest, all connected.
func (h *harness) seatLobby(t *testing.T, names ...string) (string, []player) {
	t.Helper()
	ctx := context.Background()
	players := make([]player, 0, len(names))
	for _, n := range names {
		id := h.mem.AddUser(n)
		players = append(players, player{id: id, conn: h.connect(id)})
	}
	l, err := h.c.CreateLobby(ctx, players[0].conn.ID, players[0].id, "race room", true)
	require.NoError(t, err)
	for _, p := range players[1:] {
		_, err := h.c.JoinLobby(ctx, p.conn.ID, p.id, l.Code)
		require.NoError(t, err)
	}
	for _, p := range players {
		drain(p.conn)
	}
	return l.Code, players
}

func (h *harness) readyAll(t *testing.T, code string, players []player) {
	t.Helper()
	for _, p := range players {
		require.NoError(t, h.c.SetReady(context.Background(), p.id, code, true))
	}
}

func TestCreateLobbyNotifiesCreator(t *testing.T) {
	h := newHarness(t, longRace())
	alice := h.mem.AddUser("alice")
	conn := h.connect(alice)

	l, err := h.c.CreateLobby(context.Background(), conn.ID, alice, "sprint", false)
	require.NoError(t, err)

	events := drain(conn)
	assert.Equal(t, []models.EventType{models.EventLobbyCreated, models.EventLobbyInfo, models.EventLobbyUpdate}, types(events))
	assert.Equal(t, l.Code, events[0].Payload)
	assert.Equal(t, models.LobbyInfo{Code: l.Code, Name: "sprint", IsPublic: false}, events[1].Payload)
	assert.Equal(t, l.Code, h.reg.Room(conn.ID))
}

func TestJoinLobbyTwiceKeepsOneEntry(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice", "bob")
	bob := players[1]

	second := h.connect(bob.id)
	l, err := h.c.JoinLobby(context.Background(), second.ID, bob.id, code)
	require.NoError(t, err)
	assert.Len(t, l.Participants, 2)

	update := waitFor(t, players[0].conn, models.EventLobbyUpdate)
	assert.Len(t, update.Payload, 2)
}

func TestJoinUnknownLobbyReportsToSenderOnly(t *testing.T) {
	h := newHarness(t, longRace())
	_, players := h.seatLobby(t, "alice")
	carol := h.mem.AddUser("carol")
	conn := h.connect(carol)

	h.c.Dispatch(context.Background(), conn.ID, models.ClientMessage{Type: models.MsgJoinLobby, Code: "ZZZZZZ"})

	events := drain(conn)
	require.Len(t, events, 1)
	assert.Equal(t, models.Event{Type: models.EventError, Payload: models.ErrLobbyNotFound.Error()}, events[0])
	assert.Empty(t, drain(players[0].conn))
}

func TestRaceStartsOnlyWithFullQuorum(t *testing.T) {
	h := newHarness(t, longRace())
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")

	require.NoError(t, h.c.SetReady(ctx, players[0].id, code, true))
	assert.Equal(t, []models.EventType{models.EventLobbyUpdate}, types(drain(players[1].conn)))
	_, active := h.c.games.Active(code)
	assert.False(t, active)

	require.NoError(t, h.c.SetReady(ctx, players[1].id, code, true))
	events := drain(players[1].conn)
	assert.Equal(t, []models.EventType{
		models.EventLobbyUpdate,
		models.EventGameStarting,
		models.EventStartCountdown,
		models.EventGameState,
	}, types(events))

	countdown := events[2].Payload.(models.CountdownInfo)
	assert.Equal(t, 5, countdown.Seconds)
	state := events[3].Payload.(models.GameState)
	assert.Len(t, state.WordList, game.DefaultWordCount)
	assert.Equal(t, 30*time.Second, state.EndTime.Sub(state.StartTime))
	assert.Len(t, state.Participants, 2)
}

func TestJoiningAnotherLobbyReleasesTheSeat(t *testing.T) {
	h := newHarness(t, longRace())
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")
	alice, bob := players[0], players[1]
	require.NoError(t, h.c.SetReady(ctx, alice.id, code, true))

	// A typo keeps alice where she is.
	_, err := h.c.JoinLobby(ctx, alice.conn.ID, alice.id, "ZZZZZZ")
	assert.ErrorIs(t, err, models.ErrLobbyNotFound)
	assert.Equal(t, code, h.reg.Room(alice.conn.ID))

	carol := h.mem.AddUser("carol")
	other, err := h.c.CreateLobby(ctx, h.connect(carol).ID, carol, "other room", true)
	require.NoError(t, err)
	drain(bob.conn)

	_, err = h.c.JoinLobby(ctx, alice.conn.ID, alice.id, other.Code)
	require.NoError(t, err)
	assert.Equal(t, other.Code, h.reg.Room(alice.conn.ID))

	l, ok := h.c.lobbies.Get(code)
	require.True(t, ok)
	assert.False(t, l.Has(alice.id))
	assert.Len(t, l.Participants, 1)
	update := waitFor(t, bob.conn, models.EventLobbyUpdate)
	assert.Len(t, update.Payload, 1)

	// bob alone is no quorum, so no race starts around a missing alice.
	require.NoError(t, h.c.SetReady(ctx, bob.id, code, true))
	_, active := h.c.games.Active(code)
	assert.False(t, active)
	assert.Zero(t, countType(drain(alice.conn), models.EventGameStarting))
}

func TestCreatingALobbyReleasesTheSeat(t *testing.T) {
	h := newHarness(t, longRace())
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")

	fresh, err := h.c.CreateLobby(ctx, players[1].conn.ID, players[1].id, "bob's room", false)
	require.NoError(t, err)
	assert.Equal(t, fresh.Code, h.reg.Room(players[1].conn.ID))

	l, ok := h.c.lobbies.Get(code)
	require.True(t, ok)
	assert.False(t, l.Has(players[1].id))
}

func TestSoloLobbyNeverStarts(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice")

	require.NoError(t, h.c.SetReady(context.Background(), players[0].id, code, true))
	_, active := h.c.games.Active(code)
	assert.False(t, active)
}

func TestReadyFromNonParticipantIsIgnored(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice", "bob")
	outsider := h.mem.AddUser("mallory")

	require.NoError(t, h.c.SetReady(context.Background(), outsider, code, true))
	assert.Empty(t, drain(players[0].conn))
}

func TestDeadlineForfeitsNonFinishers(t *testing.T) {
	h := newHarness(t, Config{Countdown: 20 * time.Millisecond, RaceDuration: 100 * time.Millisecond})
	code, players := h.seatLobby(t, "alice", "bob")
	alice, bob := players[0], players[1]
	h.readyAll(t, code, players)

	require.NoError(t, h.c.FinishGame(context.Background(), alice.id, code, 40, 20))
	finished := waitFor(t, bob.conn, models.EventPlayerFinished)
	assert.Equal(t, models.Result{Username: "alice", WPM: 40, Score: 20}, finished.Payload)

	over := waitFor(t, bob.conn, models.EventGameOver)
	assert.Equal(t, []models.Result{
		{Username: "alice", WPM: 40, Score: 20},
		{Username: "bob", WPM: 0, Score: 0},
	}, over.Payload)

	update := waitFor(t, bob.conn, models.EventLobbyUpdate)
	entries := update.Payload.([]models.RosterEntry)
	require.Len(t, entries, 2)
	for _, r := range entries {
		assert.False(t, r.IsReady, r.Username)
	}

	_, active := h.c.games.Active(code)
	assert.False(t, active)

	require.Eventually(t, func() bool { return len(h.sink.all()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, models.EndDeadline, h.sink.all()[0].Reason)
}

func TestAllFinishedEndsExactlyOnce(t *testing.T) {
	h := newHarness(t, Config{Countdown: 10 * time.Millisecond, RaceDuration: 80 * time.Millisecond})
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)

	require.NoError(t, h.c.FinishGame(ctx, players[1].id, code, 70, 35))
	require.NoError(t, h.c.FinishGame(ctx, players[0].id, code, 55, 27))

	// Let the cancelled deadline pass; it must not produce a second gameOver.
	time.Sleep(150 * time.Millisecond)
	events := drain(players[0].conn)
	assert.Equal(t, 1, countType(events, models.EventGameOver))
	assert.Equal(t, 2, countType(events, models.EventPlayerFinished))

	var over models.Event
	for _, ev := range events {
		if ev.Type == models.EventGameOver {
			over = ev
		}
	}
	assert.Equal(t, []models.Result{
		{Username: "bob", WPM: 70, Score: 35},
		{Username: "alice", WPM: 55, Score: 27},
	}, over.Payload)

	require.Eventually(t, func() bool { return len(h.sink.all()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, models.EndAllFinished, h.sink.all()[0].Reason)
}

func TestGameOverKeepsRosterOrderOnTies(t *testing.T) {
	h := newHarness(t, longRace())
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob", "carol")
	h.readyAll(t, code, players)

	require.NoError(t, h.c.FinishGame(ctx, players[2].id, code, 40, 20))
	require.NoError(t, h.c.FinishGame(ctx, players[1].id, code, 100, 50))
	require.NoError(t, h.c.FinishGame(ctx, players[0].id, code, 100, 50))

	over := waitFor(t, players[0].conn, models.EventGameOver)
	assert.Equal(t, []models.Result{
		{Username: "alice", WPM: 100, Score: 50},
		{Username: "bob", WPM: 100, Score: 50},
		{Username: "carol", WPM: 40, Score: 20},
	}, over.Payload)
}

func TestDuplicateFinishIsRejected(t *testing.T) {
	h := newHarness(t, longRace())
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)
	drain(players[0].conn)
	drain(players[1].conn)

	wpm, score := 60, 30
	msg := models.ClientMessage{Type: models.MsgGameFinished, Code: code, WPM: &wpm, Score: &score}
	h.c.Dispatch(ctx, players[0].conn.ID, msg)
	h.c.Dispatch(ctx, players[0].conn.ID, msg)

	events := drain(players[0].conn)
	assert.Equal(t, []models.EventType{models.EventPlayerFinished, models.EventError}, types(events))
	assert.Equal(t, models.ErrAlreadyFinished.Error(), events[1].Payload)
	assert.Equal(t, []models.EventType{models.EventPlayerFinished}, types(drain(players[1].conn)))
}

func TestFinishRequiresScores(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)
	drain(players[0].conn)

	h.c.Dispatch(context.Background(), players[0].conn.ID, models.ClientMessage{Type: models.MsgGameFinished, Code: code})
	events := drain(players[0].conn)
	require.Len(t, events, 1)
	assert.Equal(t, models.ErrInvalidPayload.Error(), events[0].Payload)
}

func TestSetReadyDuringRaceIsRejected(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)

	err := h.c.SetReady(context.Background(), players[0].id, code, false)
	assert.ErrorIs(t, err, models.ErrSessionActive)
}

func TestProviderOutageDoesNotAdvance(t *testing.T) {
	h := newHarness(t, longRace())
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")
	require.NoError(t, h.c.SetReady(ctx, players[0].id, code, true))

	h.mem.SetFailure(errors.New("connection refused"))
	err := h.c.SetReady(ctx, players[1].id, code, true)
	assert.ErrorIs(t, err, models.ErrCollaboratorUnavailable)
	_, active := h.c.games.Active(code)
	assert.False(t, active)

	l, ok := h.c.lobbies.Get(code)
	require.True(t, ok)
	assert.False(t, l.CanStart())

	h.mem.SetFailure(nil)
	require.NoError(t, h.c.SetReady(ctx, players[1].id, code, true))
	_, active = h.c.games.Active(code)
	assert.True(t, active)
}

func TestJoinGameSendsStateToSocket(t *testing.T) {
	h := newHarness(t, longRace())
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)

	gameConn := h.connect(players[0].id)
	require.NoError(t, h.c.JoinGame(ctx, gameConn.ID, players[0].id, code))
	state := waitFor(t, gameConn, models.EventGameState).Payload.(models.GameState)
	assert.Equal(t, code, state.Code)
	assert.Equal(t, string(game.PhaseStarting), state.Phase)

	broadcast := waitFor(t, players[1].conn, models.EventGameState).Payload.(models.GameState)
	assert.Equal(t, string(game.PhaseStarting), broadcast.Phase)

	outsider := h.mem.AddUser("mallory")
	err := h.c.JoinGame(ctx, h.connect(outsider).ID, outsider, code)
	assert.ErrorIs(t, err, models.ErrParticipantNotFound)

	err = h.c.JoinGame(ctx, gameConn.ID, players[0].id, "NOPE00")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestRequestMoreWordsBroadcastsBatch(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)
	drain(players[1].conn)

	require.NoError(t, h.c.RequestMoreWords(context.Background(), players[0].id, code))
	batch := waitFor(t, players[1].conn, models.EventAdditionalWords).Payload.(models.WordBatch)
	assert.Equal(t, game.DefaultWordCount, batch.Offset)
	assert.Len(t, batch.Words, game.DefaultWordCount)

	state, err := h.c.games.State(code)
	require.NoError(t, err)
	assert.Equal(t, batch.Words, state.WordList[game.DefaultWordCount:])
}

func TestDisconnectInLobbyRemovesParticipant(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice", "bob")

	h.c.Disconnect(context.Background(), players[1].conn.ID)
	update := waitFor(t, players[0].conn, models.EventLobbyUpdate)
	assert.Len(t, update.Payload, 1)

	h.c.Disconnect(context.Background(), players[0].conn.ID)
	_, ok := h.c.lobbies.Get(code)
	assert.False(t, ok)
}

func TestDisconnectDuringRaceKeepsSeat(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)

	h.c.Disconnect(context.Background(), players[1].conn.ID)
	_, active := h.c.games.Active(code)
	assert.True(t, active)
	l, ok := h.c.lobbies.Get(code)
	require.True(t, ok)
	assert.Len(t, l.Participants, 2)

	// bob comes back on a new socket before the race ends.
	back := h.connect(players[1].id)
	require.NoError(t, h.c.JoinGame(context.Background(), back.ID, players[1].id, code))
	waitFor(t, back, models.EventGameState)
}

func TestAbandonPolicyEndsRace(t *testing.T) {
	cfg := longRace()
	cfg.EndOnAbandon = true
	h := newHarness(t, cfg)
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)

	h.c.Disconnect(context.Background(), players[0].conn.ID)
	_, active := h.c.games.Active(code)
	assert.True(t, active)

	h.c.Disconnect(context.Background(), players[1].conn.ID)
	_, active = h.c.games.Active(code)
	assert.False(t, active)

	require.Eventually(t, func() bool { return len(h.sink.all()) == 1 }, time.Second, 10*time.Millisecond)
	res := h.sink.all()[0]
	assert.Equal(t, models.EndAbandoned, res.Reason)
	assert.Equal(t, []models.Result{{Username: "alice"}, {Username: "bob"}}, res.Results)

	// Nobody is left in the room, so the lobby is pruned away.
	_, ok := h.c.lobbies.Get(code)
	assert.False(t, ok)
}

func TestAbandonGraceWaitsForRejoin(t *testing.T) {
	cfg := longRace()
	cfg.EndOnAbandon = true
	cfg.AbandonGrace = 50 * time.Millisecond
	h := newHarness(t, cfg)
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)

	// Both lobby sockets close while the clients switch to the game view.
	h.c.Disconnect(ctx, players[0].conn.ID)
	h.c.Disconnect(ctx, players[1].conn.ID)
	gameConn := h.connect(players[0].id)
	require.NoError(t, h.c.JoinGame(ctx, gameConn.ID, players[0].id, code))

	time.Sleep(3 * cfg.AbandonGrace)
	_, active := h.c.games.Active(code)
	assert.True(t, active)
	assert.Empty(t, h.sink.all())

	h.c.Disconnect(ctx, gameConn.ID)
	require.Eventually(t, func() bool {
		_, active := h.c.games.Active(code)
		return !active
	}, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(h.sink.all()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, models.EndAbandoned, h.sink.all()[0].Reason)
}

func TestRematchFlow(t *testing.T) {
	h := newHarness(t, longRace())
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)

	assert.ErrorIs(t, h.c.AcceptRematch(ctx, players[0].id, code), models.ErrSessionActive)

	require.NoError(t, h.c.FinishGame(ctx, players[0].id, code, 10, 5))
	require.NoError(t, h.c.FinishGame(ctx, players[1].id, code, 20, 10))
	drain(players[0].conn)
	drain(players[1].conn)

	require.NoError(t, h.c.RequestRematch(ctx, players[0].id, code))
	waitFor(t, players[1].conn, models.EventRematchRequest)

	require.NoError(t, h.c.AcceptRematch(ctx, players[1].id, code))
	events := drain(players[0].conn)
	assert.Equal(t, []models.EventType{models.EventRematchRequest, models.EventLobbyUpdate, models.EventRematchAccept}, types(events))

	// The next race still needs everyone ready again.
	require.NoError(t, h.c.SetReady(ctx, players[0].id, code, true))
	_, active := h.c.games.Active(code)
	assert.False(t, active)
	require.NoError(t, h.c.SetReady(ctx, players[1].id, code, true))
	_, active = h.c.games.Active(code)
	assert.True(t, active)
}

func TestLeaveLobbyDetachesSocket(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice", "bob")

	h.c.Dispatch(context.Background(), players[1].conn.ID, models.ClientMessage{Type: models.MsgLeaveLobby, Code: code})
	assert.Equal(t, "", h.reg.Room(players[1].conn.ID))
	update := waitFor(t, players[0].conn, models.EventLobbyUpdate)
	assert.Len(t, update.Payload, 1)
}

func TestDispatchRejectsUnknownType(t *testing.T) {
	h := newHarness(t, longRace())
	alice := h.mem.AddUser("alice")
	conn := h.connect(alice)

	h.c.Dispatch(context.Background(), conn.ID, models.ClientMessage{Type: "teleport", Code: "ABC123"})
	events := drain(conn)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventError, events[0].Type)
}

func TestShutdownEndsLiveRaces(t *testing.T) {
	h := newHarness(t, longRace())
	code, players := h.seatLobby(t, "alice", "bob")
	h.readyAll(t, code, players)

	require.NoError(t, h.c.Shutdown(context.Background()))
	waitFor(t, players[0].conn, models.EventGameOver)
	require.Len(t, h.sink.all(), 1)
	assert.Equal(t, models.EndShutdown, h.sink.all()[0].Reason)
}

func TestShutdownRefusesNewRaces(t *testing.T) {
	h := newHarness(t, longRace())
	ctx := context.Background()
	code, players := h.seatLobby(t, "alice", "bob")

	require.NoError(t, h.c.Shutdown(ctx))
	require.NoError(t, h.c.SetReady(ctx, players[0].id, code, true))
	err := h.c.SetReady(ctx, players[1].id, code, true)
	assert.ErrorIs(t, err, models.ErrShuttingDown)

	_, active := h.c.games.Active(code)
	assert.False(t, active)
	assert.Empty(t, h.c.games.Codes())
}

func TestConcurrentFinishAndDeadline(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, Config{Countdown: 0, RaceDuration: 5 * time.Millisecond})
		code, players := h.seatLobby(t, "alice", "bob")
		h.readyAll(t, code, players)

		var wg sync.WaitGroup
		for _, p := range players {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				time.Sleep(4 * time.Millisecond)
				_ = h.c.FinishGame(context.Background(), id, code, 30, 15)
			}(p.id)
		}
		wg.Wait()
		time.Sleep(20 * time.Millisecond)

		assert.Equal(t, 1, countType(drain(players[0].conn), models.EventGameOver))
		require.Eventually(t, func() bool { return len(h.sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	}
}
