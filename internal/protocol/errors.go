package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Session/level routing.
	ErrServerBusy    = "E_SERVER_BUSY"
	ErrNoLevel       = "E_NO_LEVEL"
	ErrLevelNotFound = "E_LEVEL_NOT_FOUND"

	// Message handling.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrInvariant      = "E_INVARIANT"
	ErrNotImplemented = "E_NOT_IMPLEMENTED"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrServerBusy:      {},
	ErrNoLevel:         {},
	ErrLevelNotFound:   {},
	ErrBadRequest:      {},
	ErrInvariant:       {},
	ErrNotImplemented:  {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
