// internal/models/events.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an outbound websocket event.
type EventType string

const (
	EventLobbyCreated    EventType = "lobbyCreated"
	EventLobbyInfo       EventType = "lobbyInfo"
	EventLobbyUpdate     EventType = "lobbyUpdate"
	EventGameStarting    EventType = "gameStarting"
	EventStartCountdown  EventType = "startCountdown"
	EventGameState       EventType = "gameState"
	EventAdditionalWords EventType = "additionalWords"
	EventPlayerFinished  EventType = "playerFinished"
	EventGameOver        EventType = "gameOver"
	EventRematchRequest  EventType = "rematchRequested"
	EventRematchAccept   EventType = "rematchAccepted"
	EventError           EventType = "error"
)

// Event is a single outbound frame.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Inbound event types.
const (
	MsgCreateLobby      = "createLobby"
	MsgJoinLobby        = "joinLobby"
	MsgLeaveLobby       = "leaveLobby"
	MsgPlayerReady      = "playerReady"
	MsgJoinGame         = "joinGame"
	MsgRequestMoreWords = "requestMoreWords"
	MsgGameFinished     = "gameFinished"
	MsgRematchRequest   = "rematchRequest"
	MsgRematchAccept    = "rematchAccept"
)

// ClientMessage is a decoded inbound frame. Fields not used by Type are ignored.
type ClientMessage struct {
	Type     string `json:"type"`
	Code     string `json:"code,omitempty"`
	Name     string `json:"name,omitempty"`
	IsPublic *bool  `json:"isPublic,omitempty"`
	IsReady  bool   `json:"isReady,omitempty"`
	WPM      *int   `json:"wpm,omitempty"`
	Score    *int   `json:"score,omitempty"`
}

// RosterEntry is one row of a lobbyUpdate payload.
type RosterEntry struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	IsReady  bool      `json:"isReady"`
}

// LobbyInfo is the lobbyInfo payload.
type LobbyInfo struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsPublic bool   `json:"isPublic"`
}

// CountdownInfo is the startCountdown payload.
type CountdownInfo struct {
	Seconds   int       `json:"seconds"`
	StartTime time.Time `json:"startTime"`
}

// GameParticipantView is a participant as shown in gameState.
type GameParticipantView struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Finished bool      `json:"finished"`
	WPM      int       `json:"wpm"`
	Score    int       `json:"score"`
}

// GameState is the gameState payload. Phase is "starting" until StartTime, then "running".
type GameState struct {
	Code         string                `json:"code"`
	Phase        string                `json:"phase"`
	WordList     []string              `json:"wordList"`
	StartTime    time.Time             `json:"startTime"`
	EndTime      time.Time             `json:"endTime"`
	Participants []GameParticipantView `json:"participants"`
}

// WordBatch is the additionalWords payload. Offset is the index of Words[0]
// within the session's full list.
type WordBatch struct {
	Offset int      `json:"offset"`
	Words  []string `json:"words"`
}

// Result is one row of playerFinished and gameOver.
type Result struct {
	Username string `json:"username"`
	WPM      int    `json:"wpm"`
	Score    int    `json:"score"`
}
