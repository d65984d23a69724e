// Package visibility resolves which part of the containment graph a viewer can
// see.
package visibility

import "lawrence.mp/internal/sim/entity"

// Resolve walks up from avatar (inclusive) to the first opaque entity. If the
// chain ends without one, the level root is returned. The containment graph
// must be acyclic; Resolve does not check.
func Resolve(a *entity.Arena, avatar, levelRoot entity.Handle) entity.Handle {
	e := a.Get(avatar)
	for e != nil {
		if e.Opaque() {
			return e.Handle()
		}
		if e.Parent() == 0 {
			break
		}
		e = a.Get(e.Parent())
	}
	return levelRoot
}

// Group returns the subtree of the resolved stopping point, depth-first. The
// level root itself is not part of the group. Opacity of descendants does not
// limit the walk.
func Group(a *entity.Arena, avatar, levelRoot entity.Handle) []entity.Handle {
	stop := Resolve(a, avatar, levelRoot)
	var out []entity.Handle
	a.Walk(stop, func(e *entity.Entity) bool {
		if e.Handle() != levelRoot {
			out = append(out, e.Handle())
		}
		return true
	})
	return out
}
