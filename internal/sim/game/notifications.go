package game

import (
	"time"

	"lawrence.mp/internal/sim/entity"
)

// TickNotification starts a tick. Entity behaviors run here.
type TickNotification struct {
	Tick uint64
}

// PostTickNotification runs after every TickNotification handler; viewers
// synchronize here.
type PostTickNotification struct {
	Tick uint64
}

// EntityDeletedNotification is published once per entity removed from the
// arena, children before parents.
type EntityDeletedNotification struct {
	Handle entity.Handle
	Kind   entity.Kind
	Name   string
}

// PlayerJoinedNotification is published after the session is registered.
type PlayerJoinedNotification struct {
	SessionID string
	Username  string
	At        time.Time
}

// PlayerDisconnectedNotification is published after the session's avatar,
// labels and subscriptions are gone.
type PlayerDisconnectedNotification struct {
	SessionID string
	Username  string
	Reason    string
	Connected time.Duration
}
