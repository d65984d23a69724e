// Package liveness decides, once per tick, whether a session's connection is
// still worth synchronizing.
package liveness

import "time"

const DefaultTimeout = 30 * time.Second

type Verdict uint8

const (
	Alive Verdict = iota
	// Closed means the transport already reported the connection gone.
	Closed
	// Expired means the peer has been silent longer than the timeout.
	Expired
)

func (v Verdict) String() string {
	switch v {
	case Alive:
		return "alive"
	case Closed:
		return "closed"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Conn is the view of a transport connection the manager needs.
type Conn interface {
	IsClosed() bool
	LastActivity() time.Time
}

type Manager struct {
	Timeout time.Duration
	Now     func() time.Time
}

func (m Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m Manager) timeout() time.Duration {
	if m.Timeout <= 0 {
		return DefaultTimeout
	}
	return m.Timeout
}

// Check classifies c. Closure wins over expiry.
func (m Manager) Check(c Conn) Verdict {
	if c == nil || c.IsClosed() {
		return Closed
	}
	if m.Idle(c) > m.timeout() {
		return Expired
	}
	return Alive
}

// Idle returns how long c has been silent.
func (m Manager) Idle(c Conn) time.Duration {
	d := m.now().Sub(c.LastActivity())
	if d < 0 {
		return 0
	}
	return d
}
