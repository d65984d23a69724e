// Package scripttest provides in-memory script behaviors for tests.
package scripttest

import "lawrence.mp/internal/sim/script"

type Call struct {
	Event script.Event
	Args  []any
}

// Recorder records every invocation. Err (if set) is returned from Invoke
// after recording.
type Recorder struct {
	Calls []Call
	Err   error
}

func (r *Recorder) Invoke(ev script.Event, args ...any) (any, error) {
	r.Calls = append(r.Calls, Call{Event: ev, Args: append([]any(nil), args...)})
	return nil, r.Err
}

// Count returns how many times ev was invoked.
func (r *Recorder) Count(ev script.Event) int {
	n := 0
	for _, c := range r.Calls {
		if c.Event == ev {
			n++
		}
	}
	return n
}

// Host hands out one Recorder per spawned handle and remembers the object
// each behavior was created for.
type Host struct {
	ByHandle map[uint32]*Recorder
	Selves   map[uint32]any
}

func NewHost() *Host {
	return &Host{ByHandle: map[uint32]*Recorder{}, Selves: map[uint32]any{}}
}

func (h *Host) NewBehavior(_ string, handle uint32, self any) (script.Behavior, error) {
	r := &Recorder{}
	h.ByHandle[handle] = r
	h.Selves[handle] = self
	return r, nil
}
