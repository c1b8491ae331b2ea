// internal/models/race.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// EndReason records which trigger terminated a race.
type EndReason string

const (
	EndAllFinished EndReason = "allFinished"
	EndDeadline    EndReason = "deadline"
	EndAbandoned   EndReason = "abandoned"
	EndShutdown    EndReason = "shutdown"
)

// RaceResult is the record of a finished race handed to downstream consumers.
type RaceResult struct {
	SessionID uuid.UUID `json:"sessionId"`
	LobbyCode string    `json:"lobbyCode"`
	Reason    EndReason `json:"reason"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Results   []Result  `json:"results"`
}
