// internal/database/lobby.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/typerace/internal/roster"
)

// RosterStore is the PostgreSQL roster provider.
type RosterStore struct {
	pool *pgxpool.Pool
}

var _ roster.Provider = (*RosterStore)(nil)

func NewRosterStore(pool *pgxpool.Pool) *RosterStore {
	return &RosterStore{pool: pool}
}

func (s *RosterStore) ResolveUser(ctx context.Context, userID uuid.UUID) (roster.User, error) {
	u := roster.User{ID: userID}
	err := s.pool.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, userID).Scan(&u.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return roster.User{}, roster.ErrNotFound
	}
	if err != nil {
		return roster.User{}, err
	}
	return u, nil
}

// CreateLobby inserts the lobby and its creator's participant row in one transaction.
func (s *RosterStore) CreateLobby(ctx context.Context, rec roster.LobbyRecord) (roster.LobbyRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	creator := roster.ParticipantRecord{ID: uuid.New(), UserID: rec.CreatorID}

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, rec.CreatorID).Scan(&creator.Username)
		if errors.Is(err, pgx.ErrNoRows) {
			return roster.ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO lobbies (id, code, name, is_public, creator_id) VALUES ($1, $2, $3, $4, $5)`,
			rec.ID, rec.Code, rec.Name, rec.IsPublic, rec.CreatorID)
		if hasCode(err, uniqueViolation) {
			return roster.ErrCodeTaken
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO lobby_participants (id, lobby_id, user_id) VALUES ($1, $2, $3)`,
			creator.ID, rec.ID, rec.CreatorID)
		return err
	})
	if err != nil {
		return roster.LobbyRecord{}, err
	}
	rec.Participants = []roster.ParticipantRecord{creator}
	return rec, nil
}

// GetLobby loads a lobby by code with its participants in join order.
func (s *RosterStore) GetLobby(ctx context.Context, code string) (roster.LobbyRecord, error) {
	var rec roster.LobbyRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name, is_public, creator_id FROM lobbies WHERE code = $1`, code,
	).Scan(&rec.ID, &rec.Code, &rec.Name, &rec.IsPublic, &rec.CreatorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return roster.LobbyRecord{}, roster.ErrNotFound
	}
	if err != nil {
		return roster.LobbyRecord{}, err
	}

	rows, err := s.pool.Query(ctx, `
	SELECT p.id, p.user_id, u.username, p.is_ready
	  FROM lobby_participants p
	  JOIN users u ON u.id = p.user_id
	 WHERE p.lobby_id = $1
	 ORDER BY p.joined_at, p.id`, rec.ID)
	if err != nil {
		return roster.LobbyRecord{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var p roster.ParticipantRecord
		if err := rows.Scan(&p.ID, &p.UserID, &p.Username, &p.IsReady); err != nil {
			return roster.LobbyRecord{}, err
		}
		rec.Participants = append(rec.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return roster.LobbyRecord{}, fmt.Errorf("read participants: %w", err)
	}
	return rec, nil
}

// DeleteLobby removes the lobby; participant rows go with it.
func (s *RosterStore) DeleteLobby(ctx context.Context, lobbyID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM lobbies WHERE id = $1`, lobbyID)
	return err
}

// UpsertParticipant adds the user to the lobby or returns their existing row.
func (s *RosterStore) UpsertParticipant(ctx context.Context, lobbyID, userID uuid.UUID) (roster.ParticipantRecord, error) {
	q := `
	WITH ins AS (
		INSERT INTO lobby_participants (id, lobby_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (lobby_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, is_ready
	)
	SELECT ins.id, ins.user_id, u.username, ins.is_ready
	  FROM ins JOIN users u ON u.id = ins.user_id`

	var p roster.ParticipantRecord
	err := s.pool.QueryRow(ctx, q, uuid.New(), lobbyID, userID).Scan(&p.ID, &p.UserID, &p.Username, &p.IsReady)
	if hasCode(err, foreignKeyViolation) || errors.Is(err, pgx.ErrNoRows) {
		return roster.ParticipantRecord{}, roster.ErrNotFound
	}
	if err != nil {
		return roster.ParticipantRecord{}, err
	}
	return p, nil
}

func (s *RosterStore) SetParticipantReady(ctx context.Context, lobbyID, userID uuid.UUID, ready bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lobby_participants SET is_ready = $3 WHERE lobby_id = $1 AND user_id = $2`,
		lobbyID, userID, ready)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return roster.ErrNotFound
	}
	return nil
}

func (s *RosterStore) RemoveParticipant(ctx context.Context, participantID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM lobby_participants WHERE id = $1`, participantID)
	return err
}

func (s *RosterStore) ResetAllReady(ctx context.Context, lobbyID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lobbies WHERE id = $1)`, lobbyID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return roster.ErrNotFound
		}
		_, err := tx.Exec(ctx, `UPDATE lobby_participants SET is_ready = false WHERE lobby_id = $1`, lobbyID)
		return err
	})
}
