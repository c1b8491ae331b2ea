// internal/game/game_store_test.go
package game

import (
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GameStore {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewGameStore(10, logger)
}

func twoEntrants() (Entrant, Entrant) {
	return Entrant{UserID: uuid.New(), DisplayName: "alice", ConnectionID: uuid.New()},
		Entrant{UserID: uuid.New(), DisplayName: "bob", ConnectionID: uuid.New()}
}

func TestDealWords(t *testing.T) {
	words := DealWords(25)
	require.Len(t, words, 25)
	for _, w := range words {
		assert.Contains(t, dictionary, w)
	}
	assert.Len(t, DealWords(0), DefaultWordCount)
}

func TestCreateSetsTimeline(t *testing.T) {
	s := newTestStore(t)
	a, b := twoEntrants()
	now := time.Now()

	st, id, err := s.Create("ABC123", []Entrant{a, b}, now, 5*time.Second, 30*time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, now.Add(5*time.Second), st.StartTime)
	assert.Equal(t, now.Add(35*time.Second), st.EndTime)
	assert.Len(t, st.WordList, 10)
	require.Len(t, st.Participants, 2)
	assert.Equal(t, "alice", st.Participants[0].Username)
	assert.False(t, st.Participants[0].Finished)

	phase, err := s.Phase("ABC123", now)
	require.NoError(t, err)
	assert.Equal(t, PhaseStarting, phase)
	phase, _ = s.Phase("ABC123", now.Add(6*time.Second))
	assert.Equal(t, PhaseRunning, phase)
}

func TestCreateRejectsSecondSession(t *testing.T) {
	s := newTestStore(t)
	a, b := twoEntrants()
	_, first, err := s.Create("ABC123", []Entrant{a, b}, time.Now(), time.Second, time.Second)
	require.NoError(t, err)

	_, _, err = s.Create("ABC123", []Entrant{a, b}, time.Now(), time.Second, time.Second)
	assert.ErrorIs(t, err, models.ErrSessionActive)

	id, ok := s.Active("ABC123")
	assert.True(t, ok)
	assert.Equal(t, first, id)
}

func TestRecordFinishAcceptsFirstReport(t *testing.T) {
	s := newTestStore(t)
	a, b := twoEntrants()
	_, _, err := s.Create("ABC123", []Entrant{a, b}, time.Now(), 0, time.Minute)
	require.NoError(t, err)

	res, all, err := s.RecordFinish("ABC123", a.UserID, 40, 20)
	require.NoError(t, err)
	assert.False(t, all)
	assert.Equal(t, models.Result{Username: "alice", WPM: 40, Score: 20}, res)

	_, _, err = s.RecordFinish("ABC123", a.UserID, 99, 99)
	assert.ErrorIs(t, err, models.ErrAlreadyFinished)

	st, _ := s.State("ABC123")
	assert.Equal(t, 40, st.Participants[0].WPM)

	_, all, err = s.RecordFinish("ABC123", b.UserID, 50, 25)
	require.NoError(t, err)
	assert.True(t, all)
}

func TestRecordFinishErrors(t *testing.T) {
	s := newTestStore(t)
	a, b := twoEntrants()

	_, _, err := s.RecordFinish("NOPE00", a.UserID, 1, 1)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	_, _, err = s.Create("ABC123", []Entrant{a, b}, time.Now(), 0, time.Minute)
	require.NoError(t, err)
	_, _, err = s.RecordFinish("ABC123", uuid.New(), 1, 1)
	assert.ErrorIs(t, err, models.ErrParticipantNotFound)
}

func TestExtendWordsAppendsOnly(t *testing.T) {
	s := newTestStore(t)
	a, b := twoEntrants()
	before, _, err := s.Create("ABC123", []Entrant{a, b}, time.Now(), 0, time.Minute)
	require.NoError(t, err)

	batch, err := s.ExtendWords("ABC123")
	require.NoError(t, err)
	assert.Equal(t, 10, batch.Offset)
	assert.Len(t, batch.Words, 10)

	after, _ := s.State("ABC123")
	require.Len(t, after.WordList, 20)
	assert.Equal(t, before.WordList, after.WordList[:10])
	assert.Equal(t, batch.Words, after.WordList[10:])
}

func TestDetachConnectionCountsRemaining(t *testing.T) {
	s := newTestStore(t)
	a, b := twoEntrants()
	_, _, err := s.Create("ABC123", []Entrant{a, b}, time.Now(), 0, time.Minute)
	require.NoError(t, err)

	left, ok := s.DetachConnection("ABC123", a.ConnectionID)
	assert.True(t, ok)
	assert.Equal(t, 1, left)

	replacement := uuid.New()
	require.NoError(t, s.AttachConnection("ABC123", a.UserID, replacement))
	left, ok = s.DetachConnection("ABC123", b.ConnectionID)
	assert.True(t, ok)
	assert.Equal(t, 1, left)

	_, ok = s.DetachConnection("ABC123", uuid.New())
	assert.False(t, ok)

	connected, ok := s.Connected("ABC123")
	assert.True(t, ok)
	assert.Equal(t, 1, connected)
	_, ok = s.Connected("ZZZ999")
	assert.False(t, ok)
}

func TestRemoveIgnoresStaleSession(t *testing.T) {
	s := newTestStore(t)
	a, b := twoEntrants()
	_, id, err := s.Create("ABC123", []Entrant{a, b}, time.Now(), 0, time.Minute)
	require.NoError(t, err)

	_, ok := s.Remove("ABC123", uuid.New())
	assert.False(t, ok)

	sess, ok := s.Remove("ABC123", id)
	require.True(t, ok)
	assert.Equal(t, id, sess.ID)

	_, ok = s.Remove("ABC123", id)
	assert.False(t, ok)
	assert.Empty(t, s.Codes())
}

func TestFinalizeForfeitsAndRanks(t *testing.T) {
	s := newTestStore(t)
	a, b := twoEntrants()
	c := Entrant{UserID: uuid.New(), DisplayName: "carol"}
	_, id, err := s.Create("ABC123", []Entrant{a, b, c}, time.Now(), 0, time.Minute)
	require.NoError(t, err)
	_, _, err = s.RecordFinish("ABC123", b.UserID, 40, 20)
	require.NoError(t, err)

	sess, ok := s.Remove("ABC123", id)
	require.True(t, ok)
	results := sess.Finalize()

	require.Len(t, results, 3)
	assert.Equal(t, models.Result{Username: "bob", WPM: 40, Score: 20}, results[0])
	// Forfeits tie at zero and keep roster order.
	assert.Equal(t, models.Result{Username: "alice"}, results[1])
	assert.Equal(t, models.Result{Username: "carol"}, results[2])
}

func TestArmDeadlineFires(t *testing.T) {
	s := newTestStore(t)
	a, b := twoEntrants()
	_, id, err := s.Create("ABC123", []Entrant{a, b}, time.Now(), 0, 20*time.Millisecond)
	require.NoError(t, err)

	fired := make(chan struct{})
	require.True(t, s.ArmDeadline("ABC123", id, func() { close(fired) }))
	assert.False(t, s.ArmDeadline("ABC123", uuid.New(), func() {}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("deadline did not fire")
	}
}
