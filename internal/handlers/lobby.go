// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/typerace/internal/lobby"
	"github.com/jason-s-yu/typerace/internal/models"
)

type lobbySummary struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Players     int    `json:"players"`
	IsPublic    bool   `json:"isPublic"`
	CreatorName string `json:"creatorName,omitempty"`
}

type lobbyDetail struct {
	Code         string               `json:"code"`
	Name         string               `json:"name"`
	IsPublic     bool                 `json:"isPublic"`
	Participants []models.RosterEntry `json:"participants"`
}

type createLobbyRequest struct {
	Name     string `json:"name"`
	IsPublic *bool  `json:"isPublic"`
}

type createLobbyResponse struct {
	LobbyCode string `json:"lobbyCode"`
}

// ListLobbiesHandler returns the public lobbies that still have players.
func (s *Server) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	lobbies := s.Lobbies.ListPublic()
	out := make([]lobbySummary, 0, len(lobbies))
	for _, l := range lobbies {
		out = append(out, lobbySummary{
			Code:        l.Code,
			Name:        l.Name,
			Players:     len(l.Participants),
			IsPublic:    l.Visibility == lobby.Public,
			CreatorName: l.CreatorName(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetLobbyHandler returns one lobby with its roster.
func (s *Server) GetLobbyHandler(w http.ResponseWriter, r *http.Request) {
	code := lobby.NormalizeCode(chi.URLParam(r, "code"))
	l, err := s.Lobbies.Find(r.Context(), code)
	if err != nil {
		writeModelError(w, err)
		return
	}
	info := l.Info()
	writeJSON(w, http.StatusOK, lobbyDetail{
		Code:         info.Code,
		Name:         info.Name,
		IsPublic:     info.IsPublic,
		Participants: l.Roster(),
	})
}

// CreateLobbyHandler creates a lobby for the authenticated user. Lobbies are
// public unless isPublic is false.
//
// Request payload:
//
//	{
//	  "name": "friday sprint",
//	  "isPublic": true
//	}
//
// Response payload (201):
//
//	{
//	  "lobbyCode": "K3X9QZ"
//	}
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	var req createLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "lobby name is required")
		return
	}
	public := true
	if req.IsPublic != nil {
		public = *req.IsPublic
	}

	l, err := s.Coordinator.CreateLobby(r.Context(), noConnection, userFromContext(r.Context()), req.Name, public)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createLobbyResponse{LobbyCode: l.Code})
}
