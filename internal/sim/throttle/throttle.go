// Package throttle decides whether a changed entity is sent to a viewer on a
// given tick. Distant changes are sent on every Nth tick, N growing with
// distance, so bandwidth falls off with range.
package throttle

import "math"

const DefaultThreshold = 10

// Pair describes one (viewer, entity) candidate. Dirty means the entity
// changed since the viewer last saw it; OwnedByViewer means the viewer's
// avatar is one of the entity's ancestors.
type Pair struct {
	Self          bool
	Dirty         bool
	Instanced     bool
	OwnedByViewer bool
	Distance      float32
}

type Policy struct {
	Threshold float32
}

func (p Policy) threshold() float32 {
	if p.Threshold <= 0 {
		return DefaultThreshold
	}
	return p.Threshold
}

// Divisor is the tick spacing for an entity at distance d: 1 within the
// threshold, max(1, floor(d/threshold)) beyond it.
func (p Policy) Divisor(d float32) uint64 {
	th := p.threshold()
	if d <= th {
		return 1
	}
	n := uint64(math.Floor(float64(d / th)))
	if n < 1 {
		n = 1
	}
	return n
}

func (p Policy) ShouldSend(c Pair, tick uint64) bool {
	if c.Self || !c.Dirty {
		return false
	}
	if c.Instanced && !c.OwnedByViewer {
		return false
	}
	return tick%p.Divisor(c.Distance) == 0
}
