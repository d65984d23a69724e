package game

import (
	"errors"

	"lawrence.mp/internal/protocol"
)

var (
	// ErrInvariant marks a request that breaks a protocol rule, e.g. a
	// collision reported for someone else's avatar. It fails the request,
	// never the tick.
	ErrInvariant = errors.New("invariant violation")
	// ErrNotImplemented marks a request for a path the host does not support
	// yet.
	ErrNotImplemented = errors.New("not implemented")

	ErrLevelNotFound = errors.New("level not found")
	ErrBadMessage    = errors.New("unsupported message")
)

// ErrorCode maps a handler error to the code sent back in an ERROR frame.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvariant):
		return protocol.ErrInvariant
	case errors.Is(err, ErrNotImplemented):
		return protocol.ErrNotImplemented
	case errors.Is(err, ErrLevelNotFound):
		return protocol.ErrLevelNotFound
	case errors.Is(err, ErrBadMessage):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}
