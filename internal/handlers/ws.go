// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/middleware"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/jason-s-yu/typerace/internal/registry"
	"github.com/sirupsen/logrus"
)

// noConnection marks coordinator calls that do not come from a socket.
var noConnection = uuid.Nil

var errEvicted = errors.New("outbound queue overflow")

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// WSHandler authenticates the request, upgrades it and runs the socket's
// read and write pumps until either side goes away.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := s.Issuer.AuthenticateRequest(r)
	if err != nil {
		s.Logger.WithError(err).WithField("remote", r.RemoteAddr).Info("websocket upgrade refused")
		writeError(w, http.StatusUnauthorized, models.ErrAuthenticationFailed.Error())
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: s.AllowedOrigins,
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	c.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancelCause(r.Context())
	conn := registry.NewConnection(userID, s.SendBuffer, func() { cancel(errEvicted) })
	s.Coordinator.Connect(conn)
	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, userID, conn.ID)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writePump(ctx, cancel, c, conn)
	}()

	readErr := s.readPump(ctx, c, conn)
	cancel(nil)
	<-writeDone

	s.Coordinator.Disconnect(context.Background(), conn.ID)

	if errors.Is(context.Cause(ctx), errEvicted) {
		c.Close(SlowConsumerError, "too slow, reconnect to resync")
	} else {
		c.Close(websocket.StatusNormalClosure, "")
	}
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, userID, conn.ID, readErr)
}

// readPump decodes inbound frames and hands them to the coordinator. It
// returns the error that ended the connection, or nil on a clean close.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *registry.Connection) error {
	log := s.Logger.WithFields(logrus.Fields{"conn": conn.ID, "user": conn.UserID})
	// Event handling outlives a socket that closes mid-event.
	handleCtx := context.WithoutCancel(ctx)

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			log.Debug("ignoring binary frame")
			conn.WriteError(models.ErrInvalidPayload.Error())
			continue
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Debug("invalid json from client")
			conn.WriteError(models.ErrInvalidPayload.Error())
			continue
		}
		s.Coordinator.Dispatch(handleCtx, conn.ID, msg)
	}
}

// writePump drains the connection's queue onto the socket and keeps it alive
// with pings. A failed write ends the connection.
func (s *Server) writePump(ctx context.Context, cancel context.CancelCauseFunc, c *websocket.Conn, conn *registry.Connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				s.Logger.Warnf("failed to marshal outgoing %s for user %v: %v", ev.Type, conn.UserID, err)
				continue
			}
			writeCtx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				cancel(err)
				return
			}
		case <-ticker.C:
			pingCtx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			pcancel()
			if err != nil {
				cancel(err)
				return
			}
		}
	}
}
