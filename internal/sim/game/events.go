package game

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"lawrence.mp/internal/protocol"
	"lawrence.mp/internal/sim/entity"
	"lawrence.mp/internal/sim/script"
)

// alphaScale converts the game's raw alpha byte to [0,1].
const alphaScale = 128

// UpdateMoby applies a client-reported state for its own avatar (UUID 0).
// Rotation arrives in radians and is stored in degrees.
func (p *Player) UpdateMoby(m *protocol.MobyUpdateInMsg) error {
	if m == nil {
		return fmt.Errorf("moby update: empty message: %w", ErrInvariant)
	}
	if m.UUID != 0 {
		return fmt.Errorf("moby update for child moby %d: %w", m.UUID, ErrNotImplemented)
	}
	a := p.avatar
	a.SetActive(m.Active)
	a.SetPosition(mgl32.Vec3{m.X, m.Y, m.Z})
	a.SetState(m.State)
	a.SetRotation(mgl32.Vec3{
		mgl32.RadToDeg(m.RotX),
		mgl32.RadToDeg(m.RotY),
		mgl32.RadToDeg(m.RotZ),
	})
	a.SetScale(m.Scale)
	a.SetAlpha(float32(m.Alpha) / alphaScale)
	a.SetAnimationID(m.AnimationID)
	a.SetAnimationDuration(m.AnimationDuration)
	return nil
}

// CreateMoby would let a client spawn entities under its avatar.
func (p *Player) CreateMoby() (entity.Handle, error) {
	return 0, fmt.Errorf("create moby: players can't spawn child mobys yet: %w", ErrNotImplemented)
}

// Collision reports contact initiated by this player's avatar. A zero
// collidee is ignored. Passive contact is recorded on both sides for later
// polling; aggressive contact fires OnHit on the collidee and OnAttack on the
// collider.
func (p *Player) Collision(collider, collidee entity.Handle, aggressive bool) error {
	if collider == 0 {
		return fmt.Errorf("session %s: got null collider: %w", p.id, ErrInvariant)
	}
	if collidee == 0 {
		return nil
	}
	self := p.avatar.Handle()
	if collider != self {
		return fmt.Errorf("session %s: illegal collider %s for collision update: %w", p.id, collider, ErrInvariant)
	}
	if collider == collidee {
		return fmt.Errorf("session %s: collider and collidee can't be the same entity: %w", p.id, ErrInvariant)
	}
	other := p.g.arena.Get(collidee)
	if other == nil {
		return nil
	}
	if !aggressive {
		p.g.arena.AddCollider(collider, collidee)
		p.g.arena.AddCollider(collidee, collider)
		return nil
	}
	p.g.dispatch.Dispatch(other.Behavior(), script.EventHit, other.Handle().String(), uint32(collider))
	p.g.dispatch.Dispatch(p.avatar.Behavior(), script.EventAttack, p.target(), uint32(collidee))
	return nil
}

func (p *Player) ControllerInputHeld(input int) {
	p.g.dispatch.Dispatch(p.avatar.Behavior(), script.EventInputHeld, p.target(), input)
}

func (p *Player) ControllerInputReleased(input int) {
	p.g.dispatch.Dispatch(p.avatar.Behavior(), script.EventInputReleased, p.target(), input)
}

func (p *Player) ControllerInputTapped(input int) {
	p.g.dispatch.Dispatch(p.avatar.Behavior(), script.EventInputTapped, p.target(), input)
}

func (p *Player) PlayerRespawned() {
	p.g.dispatch.Dispatch(p.avatar.Behavior(), script.EventRespawned, p.target())
}

func (p *Player) GameStateChanged(state int) {
	p.gameState = state
	p.g.dispatch.Dispatch(p.avatar.Behavior(), script.EventGameStateChanged, p.target(), state)
}
