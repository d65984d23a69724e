package entity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"lawrence.mp/internal/sim/script"
)

// Handle addresses an entity in an Arena. Zero is "no entity".
type Handle uint32

func (h Handle) String() string { return fmt.Sprintf("moby#%d", uint32(h)) }

type Kind uint8

const (
	KindMoby Kind = iota
	KindLevel
	KindPlayer
)

// Entity is a simulated object ("moby"). Mutators bump the generation only
// when observable state actually changes.
type Entity struct {
	arena *Arena

	handle Handle
	kind   Kind
	name   string

	parent   Handle
	children []Handle

	pos   mgl32.Vec3
	rot   mgl32.Vec3 // degrees
	scale float32
	alpha float32

	state        uint16
	animID       int
	animDuration int
	active       bool

	opaque    bool
	instanced bool

	gen       uint64
	syncedGen uint64

	behavior script.Behavior
	// colliders is who this entity touched; contactedBy is the reverse, so a
	// delete can scrub both sides.
	colliders   map[Handle]struct{}
	contactedBy map[Handle]struct{}
}

func (e *Entity) Handle() Handle { return e.handle }

func (e *Entity) Kind() Kind { return e.kind }

func (e *Entity) Name() string { return e.name }

func (e *Entity) Parent() Handle { return e.parent }

func (e *Entity) Children() []Handle { return append([]Handle(nil), e.children...) }

func (e *Entity) Position() mgl32.Vec3 { return e.pos }

// Rotation is in degrees.
func (e *Entity) Rotation() mgl32.Vec3 { return e.rot }

func (e *Entity) Scale() float32 { return e.scale }

func (e *Entity) Alpha() float32 { return e.alpha }

func (e *Entity) State() uint16 { return e.state }

func (e *Entity) AnimationID() int { return e.animID }

func (e *Entity) AnimationDuration() int { return e.animDuration }

func (e *Entity) Active() bool { return e.active }

func (e *Entity) Opaque() bool { return e.opaque }

func (e *Entity) Instanced() bool { return e.instanced }

func (e *Entity) Behavior() script.Behavior { return e.behavior }

// Generation increases on every observable change. Viewers compare it with
// the generation they were last sent.
func (e *Entity) Generation() uint64 { return e.gen }

// HasChanged reports whether the entity changed since the last MarkSynced
// (or since it was spawned).
func (e *Entity) HasChanged() bool { return e.gen > e.syncedGen }

// ChangedSince reports whether the entity changed after generation seen.
func (e *Entity) ChangedSince(seen uint64) bool { return e.gen > seen }

func (e *Entity) MarkSynced() { e.syncedGen = e.gen }

func (e *Entity) touch() { e.gen++ }

func (e *Entity) SetPosition(p mgl32.Vec3) {
	if e.pos == p {
		return
	}
	e.pos = p
	e.touch()
}

// SetRotation takes degrees.
func (e *Entity) SetRotation(r mgl32.Vec3) {
	if e.rot == r {
		return
	}
	e.rot = r
	e.touch()
}

func (e *Entity) SetScale(s float32) {
	if e.scale == s {
		return
	}
	e.scale = s
	e.touch()
}

// SetAlpha clamps to [0,1].
func (e *Entity) SetAlpha(a float32) {
	a = mgl32.Clamp(a, 0, 1)
	if e.alpha == a {
		return
	}
	e.alpha = a
	e.touch()
}

func (e *Entity) SetState(s uint16) {
	if e.state == s {
		return
	}
	e.state = s
	e.touch()
}

// SetAnimationID ignores ids in the arena's filter list. It reports whether
// the stored id changed.
func (e *Entity) SetAnimationID(id int) bool {
	if e.animID == id || e.arena.animationFiltered(id) {
		return false
	}
	e.animID = id
	e.touch()
	return true
}

func (e *Entity) SetAnimationDuration(d int) {
	if e.animDuration == d {
		return
	}
	e.animDuration = d
	e.touch()
}

func (e *Entity) SetActive(v bool) {
	if e.active == v {
		return
	}
	e.active = v
	e.touch()
}

// SetOpaque marks the entity as terminating visibility resolution.
func (e *Entity) SetOpaque(v bool) { e.opaque = v }

// SetInstanced restricts the entity to viewers whose avatar is an ancestor.
func (e *Entity) SetInstanced(v bool) { e.instanced = v }

func (e *Entity) SetBehavior(b script.Behavior) { e.behavior = b }
