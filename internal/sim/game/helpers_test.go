package game

import (
	"sync"
	"testing"
	"time"

	"lawrence.mp/internal/protocol"
	"lawrence.mp/internal/sim/entity"
	"lawrence.mp/internal/sim/script/scripttest"
)

type fakeConn struct {
	mu     sync.Mutex
	id     string
	closed bool
	last   time.Time
	sent   []any
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *fakeConn) Send(msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) touch(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = t
}

func (c *fakeConn) take() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sent
	c.sent = nil
	return out
}

func updates(msgs []any) []protocol.MobyUpdateMsg {
	var out []protocol.MobyUpdateMsg
	for _, m := range msgs {
		if u, ok := m.(protocol.MobyUpdateMsg); ok {
			out = append(out, u)
		}
	}
	return out
}

func updatedHandles(msgs []any) map[uint32]bool {
	out := map[uint32]bool{}
	for _, u := range updates(msgs) {
		out[u.UUID] = true
	}
	return out
}

func countType[T any](msgs []any) int {
	n := 0
	for _, m := range msgs {
		if _, ok := m.(T); ok {
			n++
		}
	}
	return n
}

type harness struct {
	g     *Game
	host  *scripttest.Host
	now   time.Time
	level *Level
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		host: scripttest.NewHost(),
		now:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	h.g = New(Config{
		InactivityTimeout: 30 * time.Second,
		Now:               func() time.Time { return h.now },
	}, h.host, nil)
	l, err := h.g.AddLevel("veldin", 1)
	if err != nil {
		t.Fatalf("AddLevel: %v", err)
	}
	h.level = l
	return h
}

func (h *harness) step(msgs ...Envelope) { h.g.Step(nil, msgs) }

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

// join registers a session and places it in the default test level.
func (h *harness) join(t *testing.T, name string) (*Player, *fakeConn) {
	t.Helper()
	p, c := h.joinNoLevel(t, name)
	if err := p.LoadLevel(h.level.Name); err != nil {
		t.Fatalf("LoadLevel: %v", err)
	}
	return p, c
}

func (h *harness) joinNoLevel(t *testing.T, name string) (*Player, *fakeConn) {
	t.Helper()
	c := &fakeConn{id: name, last: h.now}
	resp := make(chan JoinResponse, 1)
	h.g.Step([]JoinRequest{{Conn: c, Username: name, Resp: resp}}, nil)
	r := <-resp
	if r.Err != nil {
		t.Fatalf("join %s: %v", name, r.Err)
	}
	p := h.g.Player(r.SessionID)
	if p == nil {
		t.Fatalf("join %s: no player registered", name)
	}
	c.take()
	return p, c
}

func (h *harness) spawn(t *testing.T, parent entity.Handle, name string) *entity.Entity {
	t.Helper()
	e, err := h.g.Arena().Spawn(parent, entity.KindMoby, name)
	if err != nil {
		t.Fatalf("spawn %s: %v", name, err)
	}
	return e
}

func (h *harness) recorder(e *entity.Entity) *scripttest.Recorder {
	return h.host.ByHandle[uint32(e.Handle())]
}
