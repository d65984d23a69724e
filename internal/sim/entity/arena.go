// Package entity holds the world's simulated objects in an arena addressed by
// stable handles. Containment is a parent handle per entity; deleting an
// entity deletes its whole subtree.
package entity

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrCycle    = errors.New("containment cycle")
)

// DefaultFilteredAnimations are animation ids that crash other clients.
var DefaultFilteredAnimations = []int{
	130, // gold bolt collect
}

// Arena is not safe for concurrent use; it is owned by the world loop.
type Arena struct {
	next     Handle
	ents     map[Handle]*Entity
	filtered map[int]struct{}

	onDelete func(*Entity)
}

func NewArena(filteredAnimations []int) *Arena {
	a := &Arena{
		ents:     map[Handle]*Entity{},
		filtered: map[int]struct{}{},
	}
	for _, id := range filteredAnimations {
		a.filtered[id] = struct{}{}
	}
	return a
}

// OnDelete registers the hook called for every entity removed by Delete,
// children before parents.
func (a *Arena) OnDelete(fn func(*Entity)) { a.onDelete = fn }

func (a *Arena) animationFiltered(id int) bool {
	if a == nil {
		return false
	}
	_, ok := a.filtered[id]
	return ok
}

func (a *Arena) Len() int { return len(a.ents) }

func (a *Arena) Get(h Handle) *Entity {
	if h == 0 {
		return nil
	}
	return a.ents[h]
}

// Spawn creates an entity under parent (0 for a detached root).
func (a *Arena) Spawn(parent Handle, kind Kind, name string) (*Entity, error) {
	var p *Entity
	if parent != 0 {
		p = a.ents[parent]
		if p == nil {
			return nil, fmt.Errorf("spawn %q under %s: %w", name, parent, ErrNotFound)
		}
	}
	a.next++
	e := &Entity{
		arena:  a,
		handle: a.next,
		kind:   kind,
		name:   name,
		parent: parent,
		scale:  1,
		alpha:  1,
		active: true,
		gen:    1,
	}
	a.ents[e.handle] = e
	if p != nil {
		p.children = append(p.children, e.handle)
	}
	return e, nil
}

// SetParent moves h under parent (0 detaches). Moving an entity below one of
// its own descendants is rejected.
func (a *Arena) SetParent(h, parent Handle) error {
	e := a.ents[h]
	if e == nil {
		return fmt.Errorf("reparent %s: %w", h, ErrNotFound)
	}
	if parent != 0 {
		if a.ents[parent] == nil {
			return fmt.Errorf("reparent %s under %s: %w", h, parent, ErrNotFound)
		}
		if parent == h || a.IsDescendant(parent, h) {
			return fmt.Errorf("reparent %s under %s: %w", h, parent, ErrCycle)
		}
	}
	if e.parent == parent {
		return nil
	}
	if old := a.ents[e.parent]; old != nil {
		old.children = removeHandle(old.children, h)
	}
	e.parent = parent
	if p := a.ents[parent]; p != nil {
		p.children = append(p.children, h)
	}
	e.touch()
	return nil
}

// IsDescendant reports whether ancestor appears on h's parent chain.
func (a *Arena) IsDescendant(h, ancestor Handle) bool {
	if ancestor == 0 {
		return false
	}
	e := a.ents[h]
	for e != nil && e.parent != 0 {
		if e.parent == ancestor {
			return true
		}
		e = a.ents[e.parent]
	}
	return false
}

// Walk visits root and its subtree depth-first in child creation order.
// Returning false from fn skips that entity's children.
func (a *Arena) Walk(root Handle, fn func(*Entity) bool) {
	e := a.ents[root]
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	for _, c := range e.children {
		a.Walk(c, fn)
	}
}

// Delete removes h and its subtree. Unknown handles are ignored.
func (a *Arena) Delete(h Handle) {
	e := a.ents[h]
	if e == nil {
		return
	}
	if p := a.ents[e.parent]; p != nil {
		p.children = removeHandle(p.children, h)
	}
	a.deleteSubtree(e)
}

func (a *Arena) deleteSubtree(e *Entity) {
	for _, c := range e.children {
		if ce := a.ents[c]; ce != nil {
			a.deleteSubtree(ce)
		}
	}
	e.children = nil
	delete(a.ents, e.handle)
	for other := range e.colliders {
		if oe := a.ents[other]; oe != nil {
			delete(oe.contactedBy, e.handle)
		}
	}
	for other := range e.contactedBy {
		if oe := a.ents[other]; oe != nil {
			delete(oe.colliders, e.handle)
		}
	}
	e.colliders, e.contactedBy = nil, nil
	if a.onDelete != nil {
		a.onDelete(e)
	}
}

func (a *Arena) Distance(x, y Handle) float32 {
	ex, ey := a.ents[x], a.ents[y]
	if ex == nil || ey == nil {
		return 0
	}
	return ex.pos.Sub(ey.pos).Len()
}

// AddCollider records that x touched y. Contacts are one-directional; the
// caller records both sides for mutual contact.
func (a *Arena) AddCollider(x, y Handle) {
	ex, ey := a.ents[x], a.ents[y]
	if ex == nil || ey == nil {
		return
	}
	if ex.colliders == nil {
		ex.colliders = map[Handle]struct{}{}
	}
	if ey.contactedBy == nil {
		ey.contactedBy = map[Handle]struct{}{}
	}
	ex.colliders[y] = struct{}{}
	ey.contactedBy[x] = struct{}{}
}

// Colliders returns the handles h has recorded contact with, ascending.
func (a *Arena) Colliders(h Handle) []Handle {
	e := a.ents[h]
	if e == nil || len(e.colliders) == 0 {
		return nil
	}
	out := make([]Handle, 0, len(e.colliders))
	for c := range e.colliders {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TakeColliders returns and clears h's contacts.
func (a *Arena) TakeColliders(h Handle) []Handle {
	out := a.Colliders(h)
	for _, c := range out {
		if ce := a.ents[c]; ce != nil {
			delete(ce.contactedBy, h)
		}
	}
	if e := a.ents[h]; e != nil {
		e.colliders = nil
	}
	return out
}

func removeHandle(hs []Handle, h Handle) []Handle {
	for i, x := range hs {
		if x == h {
			return append(hs[:i], hs[i+1:]...)
		}
	}
	return hs
}
