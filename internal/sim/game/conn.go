package game

import "lawrence.mp/internal/sim/liveness"

// Conn is a player's transport. Send must not block: the transport owns the
// outbound queue and drops frames when it is full.
type Conn interface {
	liveness.Conn
	ID() string
	Send(msg any)
	// Close releases the transport. It is idempotent.
	Close()
}
