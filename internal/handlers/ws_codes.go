// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes. These give clients a more specific reason
// for closure than the standard codes.
const (
	// SlowConsumerError means the outbound queue overflowed and the socket was
	// dropped; the client should reconnect and rejoin to resynchronize.
	SlowConsumerError websocket.StatusCode = 3004
)

// Subprotocol is offered to clients that negotiate one. It is not required.
const Subprotocol = "typerace"

// maxMessageSize bounds a single inbound frame.
const maxMessageSize = 4096
