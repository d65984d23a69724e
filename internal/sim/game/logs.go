package game

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type SessionLogger interface {
	WriteSession(entry SessionLogEntry) error
}

type TickLogEntry struct {
	Tick     uint64   `json:"tick"`
	Sessions int      `json:"sessions"`
	Joins    []string `json:"joins,omitempty"`
	Leaves   []string `json:"leaves,omitempty"`
	Messages int      `json:"messages"`
	Errors   int      `json:"errors"`
	Updates  int      `json:"updates"`
	Labels   int      `json:"labels"`
	StepMS   float64  `json:"step_ms"`
}

// Session log events.
const (
	SessionJoin    = "JOIN"
	SessionLevel   = "LEVEL"
	SessionTimeout = "TIMEOUT"
	SessionClosed  = "CLOSED"
	SessionKicked  = "KICKED"
	SessionDeleted = "DELETED"
)

type SessionLogEntry struct {
	Tick        uint64 `json:"tick"`
	Time        string `json:"time"`
	SessionID   string `json:"session_id"`
	Username    string `json:"username"`
	Event       string `json:"event"`
	Reason      string `json:"reason,omitempty"`
	Level       string `json:"level,omitempty"`
	ConnectedMS int64  `json:"connected_ms,omitempty"`
}
