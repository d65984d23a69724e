package game

import (
	"lawrence.mp/internal/protocol"
	"lawrence.mp/internal/sim/entity"
	"lawrence.mp/internal/sim/liveness"
	"lawrence.mp/internal/sim/throttle"
	"lawrence.mp/internal/sim/visibility"
)

// PostTick is the per-viewer synchronization pass. Liveness is checked
// first; a session that fails it gets no further work this tick.
func (p *Player) PostTick(tick uint64) {
	if p.state.Terminal() {
		return
	}
	switch p.g.liveness.Check(p.conn) {
	case liveness.Closed:
		p.Delete("connection closed")
		return
	case liveness.Expired:
		p.g.log.Printf("[session %s] client inactive for more than %s (last activity %s)",
			p.id, p.g.cfg.InactivityTimeout, p.idleFor())
		p.Disconnect("inactive")
		return
	}
	if p.state == StateNoLevel {
		return
	}

	p.flush()
	p.g.cur.labels += p.labels.Sync(tick, labelSink{p})
	p.g.cur.updates += p.syncMobys(tick)
}

func (p *Player) flush() {
	for _, msg := range p.pending {
		p.conn.Send(msg)
	}
	p.pending = p.pending[:0]
}

// syncMobys sends every entity in the avatar's visibility group that this
// viewer has not seen at its current generation, subject to throttling.
func (p *Player) syncMobys(tick uint64) int {
	a := p.g.arena
	self := p.avatar.Handle()
	sent := 0
	for _, h := range visibility.Group(a, self, p.level.Root) {
		e := a.Get(h)
		if e == nil {
			continue
		}
		pair := throttle.Pair{
			Self:          h == self,
			Dirty:         e.ChangedSince(p.seen[h]),
			Instanced:     e.Instanced(),
			OwnedByViewer: a.IsDescendant(h, self),
			Distance:      a.Distance(self, h),
		}
		if !p.g.throttle.ShouldSend(pair, tick) {
			continue
		}
		p.conn.Send(p.mobyUpdate(e))
		p.seen[h] = e.Generation()
		e.MarkSynced()
		sent++
	}
	return sent
}

func (p *Player) mobyUpdate(e *entity.Entity) protocol.MobyUpdateMsg {
	pos, rot := e.Position(), e.Rotation()
	m := protocol.MobyUpdateMsg{
		Type:              protocol.TypeMobyUpdate,
		UUID:              uint32(e.Handle()),
		X:                 pos.X(),
		Y:                 pos.Y(),
		Z:                 pos.Z(),
		RotX:              rot.X(),
		RotY:              rot.Y(),
		RotZ:              rot.Z(),
		Scale:             e.Scale(),
		Alpha:             e.Alpha(),
		State:             e.State(),
		AnimationID:       e.AnimationID(),
		AnimationDuration: e.AnimationDuration(),
		Active:            e.Active(),
	}
	if parent := p.g.arena.Get(e.Parent()); parent != nil && parent.Kind() != entity.KindLevel {
		m.Parent = uint32(parent.Handle())
	}
	return m
}
