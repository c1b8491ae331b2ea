// internal/race/dispatch.go
package race

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/sirupsen/logrus"
)

// Dispatch routes one inbound message from connID. Any failure is reported as
// an error event to that connection only.
func (c *Coordinator) Dispatch(ctx context.Context, connID uuid.UUID, msg models.ClientMessage) {
	conn, ok := c.registry.Lookup(connID)
	if !ok {
		c.logger.WithField("conn", connID).Warn("message from unregistered connection dropped")
		return
	}
	if err := c.handle(ctx, connID, conn.UserID, msg); err != nil {
		c.logger.WithFields(logrus.Fields{
			"conn": connID,
			"user": conn.UserID,
			"type": msg.Type,
			"code": msg.Code,
		}).WithError(err).Debug("inbound event rejected")
		conn.WriteError(models.PublicMessage(err))
	}
}

func (c *Coordinator) handle(ctx context.Context, connID, userID uuid.UUID, msg models.ClientMessage) error {
	if msg.Type != models.MsgCreateLobby && msg.Code == "" {
		return fmt.Errorf("%w: code is required", models.ErrInvalidPayload)
	}

	switch msg.Type {
	case models.MsgCreateLobby:
		if msg.Name == "" {
			return fmt.Errorf("%w: name is required", models.ErrInvalidPayload)
		}
		public := true
		if msg.IsPublic != nil {
			public = *msg.IsPublic
		}
		_, err := c.CreateLobby(ctx, connID, userID, msg.Name, public)
		return err
	case models.MsgJoinLobby:
		_, err := c.JoinLobby(ctx, connID, userID, msg.Code)
		return err
	case models.MsgLeaveLobby:
		return c.LeaveLobby(ctx, connID, userID, msg.Code)
	case models.MsgPlayerReady:
		return c.SetReady(ctx, userID, msg.Code, msg.IsReady)
	case models.MsgJoinGame:
		return c.JoinGame(ctx, connID, userID, msg.Code)
	case models.MsgRequestMoreWords:
		return c.RequestMoreWords(ctx, userID, msg.Code)
	case models.MsgGameFinished:
		if msg.WPM == nil || msg.Score == nil {
			return fmt.Errorf("%w: wpm and score are required", models.ErrInvalidPayload)
		}
		return c.FinishGame(ctx, userID, msg.Code, *msg.WPM, *msg.Score)
	case models.MsgRematchRequest:
		return c.RequestRematch(ctx, userID, msg.Code)
	case models.MsgRematchAccept:
		return c.AcceptRematch(ctx, userID, msg.Code)
	default:
		return fmt.Errorf("%w: unknown event type %q", models.ErrInvalidPayload, msg.Type)
	}
}
