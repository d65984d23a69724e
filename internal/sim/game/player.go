package game

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl32"

	"lawrence.mp/internal/protocol"
	"lawrence.mp/internal/sim/entity"
	"lawrence.mp/internal/sim/labels"
	"lawrence.mp/internal/sim/notify"
	"lawrence.mp/internal/sim/script"
)

type SessionState uint8

const (
	StateNoLevel SessionState = iota
	StateInLevel
	StateDisconnecting
	StateDeleted
)

func (s SessionState) String() string {
	switch s {
	case StateNoLevel:
		return "no_level"
	case StateInLevel:
		return "in_level"
	case StateDisconnecting:
		return "disconnecting"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Terminal states never process another tick.
func (s SessionState) Terminal() bool { return s == StateDisconnecting || s == StateDeleted }

// Player is one connected viewer and its avatar.
type Player struct {
	g    *Game
	conn Conn

	id       string
	number   uint64
	username string
	joinedAt time.Time

	avatar    *entity.Entity
	state     SessionState
	level     *Level
	gameState int

	labels labels.Slots
	// seen holds, per entity, the generation this viewer was last sent.
	seen map[entity.Handle]uint64
	// pending own-state messages, flushed at the start of the next sync.
	pending []any
	// owned mobys were spawned by this player's script and leave with it.
	owned map[entity.Handle]struct{}

	subs []*notify.Subscription
}

func (p *Player) ID() string { return p.id }

func (p *Player) Number() uint64 { return p.number }

func (p *Player) Username() string { return p.username }

func (p *Player) Avatar() *entity.Entity { return p.avatar }

func (p *Player) State() SessionState { return p.state }

func (p *Player) Level() *Level { return p.level }

func (p *Player) GameState() int { return p.gameState }

func (p *Player) target() string {
	return fmt.Sprintf("player %s (%s)", p.username, p.avatar.Handle())
}

func (p *Player) queue(msg any) { p.pending = append(p.pending, msg) }

// LoadLevel moves the avatar into the named level and tells the client to
// load it. Loading while already in a level is a level switch: everything
// the client knew about the old level is forgotten.
func (p *Player) LoadLevel(name string) error {
	if p.state.Terminal() {
		return fmt.Errorf("load level %q: session %s: %w", name, p.state, ErrInvariant)
	}
	l := p.g.levels[name]
	if l == nil {
		return fmt.Errorf("load level %q: %w", name, ErrLevelNotFound)
	}
	if err := p.g.arena.SetParent(p.avatar.Handle(), l.Root); err != nil {
		return fmt.Errorf("load level %q: %w", name, err)
	}
	if p.state == StateInLevel {
		clear(p.seen)
	}
	p.level = l
	p.state = StateInLevel
	p.queue(protocol.GoToLevelMsg{Type: protocol.TypeGoToLevel, Level: l.Name, GameID: l.GameID})
	p.g.writeSession(p, SessionLevel, "")
	return nil
}

func (p *Player) GiveItem(item uint16) {
	p.queue(protocol.SetItemMsg{Type: protocol.TypeSetItem, Item: item, Equip: true})
}

func (p *Player) SetRespawn(x, y, z, rotZ float32) {
	p.queue(protocol.SetRespawnMsg{Type: protocol.TypeSetRespawn, X: x, Y: y, Z: z, RotZ: rotZ})
}

// SetPosition moves the avatar server-side and tells the client.
func (p *Player) SetPosition(pos mgl32.Vec3) {
	p.avatar.SetPosition(pos)
	p.queue(protocol.SetPositionMsg{Type: protocol.TypeSetPosition, X: pos.X(), Y: pos.Y(), Z: pos.Z()})
}

// SetState changes the avatar state server-side and tells the client.
func (p *Player) SetState(s uint16) {
	p.avatar.SetState(s)
	p.queue(protocol.SetPlayerStateMsg{Type: protocol.TypeSetPlayerState, State: s})
}

func (p *Player) AddLabel(l *labels.Label) bool { return p.labels.Add(l) }

func (p *Player) RemoveLabel(l *labels.Label) bool { return p.labels.Remove(l, labelSink{p}) }

func (p *Player) RemoveAllLabels() { p.labels.RemoveAll(labelSink{p}) }

// SpawnMoby creates a moby owned by this player under parent, or under the
// player's level when parent is 0.
func (p *Player) SpawnMoby(name string, parent entity.Handle) (*entity.Entity, error) {
	if p.state.Terminal() {
		return nil, fmt.Errorf("spawn %q: session %s: %w", name, p.state, ErrInvariant)
	}
	if parent == 0 {
		if p.level == nil {
			return nil, fmt.Errorf("spawn %q: player %s is not in a level: %w", name, p.id, ErrInvariant)
		}
		parent = p.level.Root
	}
	e, err := p.g.arena.Spawn(parent, entity.KindMoby, name)
	if err != nil {
		return nil, err
	}
	p.owned[e.Handle()] = struct{}{}
	return e, nil
}

// DeleteMoby deletes a moby this player spawned, with its subtree.
func (p *Player) DeleteMoby(h entity.Handle) error {
	if _, ok := p.owned[h]; !ok {
		return fmt.Errorf("delete %s: not owned by player %s: %w", h, p.id, ErrInvariant)
	}
	delete(p.owned, h)
	p.g.arena.Delete(h)
	return nil
}

// Owned returns the handles of the mobys this player spawned, ascending.
func (p *Player) Owned() []entity.Handle {
	out := make([]entity.Handle, 0, len(p.owned))
	for h := range p.owned {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Player) deleteOwned() {
	for _, h := range p.Owned() {
		p.g.arena.Delete(h)
	}
	p.owned = map[entity.Handle]struct{}{}
}

type labelSink struct{ p *Player }

func (s labelSink) SetLabel(slot uint16, text string, x, y uint16, color uint32) {
	s.p.conn.Send(protocol.SetLabelMsg{Type: protocol.TypeSetLabel, Slot: slot, Text: text, X: x, Y: y, Color: color})
}

func (s labelSink) DeleteLabel(slot uint16) {
	s.p.conn.Send(protocol.DeleteLabelMsg{Type: protocol.TypeDeleteLabel, Slot: slot})
}

// Kick disconnects the session on an administrator's request.
func (p *Player) Kick(reason string) {
	if reason == "" {
		reason = "kicked"
	}
	p.disconnect(SessionKicked, reason)
}

// Disconnect tells the client it is being dropped, then releases the session.
func (p *Player) Disconnect(reason string) { p.disconnect(SessionTimeout, reason) }

func (p *Player) disconnect(event, reason string) {
	if p.state.Terminal() {
		return
	}
	p.state = StateDisconnecting
	p.conn.Send(protocol.DisconnectMsg{Type: protocol.TypeDisconnect, Reason: reason})
	p.release(event, reason)
}

// Delete releases the session without notifying the client. It is safe to
// call mid-tick; the session is not visited by any later notification.
func (p *Player) Delete(reason string) {
	if p.state.Terminal() {
		return
	}
	p.state = StateDeleted
	event := SessionDeleted
	if p.conn.IsClosed() {
		event = SessionClosed
	}
	p.release(event, reason)
}

func (p *Player) release(event, reason string) {
	for _, s := range p.subs {
		s.Unsubscribe()
	}
	p.subs = nil
	p.labels.Clear()
	p.pending = nil
	p.seen = map[entity.Handle]uint64{}
	p.deleteOwned()
	p.g.arena.Delete(p.avatar.Handle())
	p.conn.Close()
	p.g.log.Printf("[session %s] %s left: %s", p.id, p.username, reason)
	p.g.removePlayer(p, event, reason)
}

func (p *Player) onTick(n TickNotification) {
	if p.state.Terminal() {
		return
	}
	args := []any{n.Tick}
	for _, c := range p.g.arena.TakeColliders(p.avatar.Handle()) {
		args = append(args, uint32(c))
	}
	p.g.dispatch.Dispatch(p.avatar.Behavior(), script.EventTick, p.target(), args...)
}

func (p *Player) onPostTick(n PostTickNotification) { p.PostTick(n.Tick) }

// OnDeleteEntity forgets a deleted entity and tells the client to drop it if
// it was ever sent.
func (p *Player) OnDeleteEntity(n EntityDeletedNotification) {
	delete(p.owned, n.Handle)
	if _, ok := p.seen[n.Handle]; !ok {
		return
	}
	delete(p.seen, n.Handle)
	p.queue(protocol.DeleteMobyMsg{Type: protocol.TypeDeleteMoby, UUID: uint32(n.Handle)})
}

func (p *Player) idleFor() string {
	return humanize.RelTime(p.conn.LastActivity(), p.g.cfg.Now(), "ago", "from now")
}
