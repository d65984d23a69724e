// Package notify is a typed, synchronous publish/subscribe center owned by
// the world loop.
//
// Handlers may unsubscribe themselves or others while a publish is in flight;
// a handler removed mid-publish is not called for the remainder of it.
package notify

import "reflect"

type Center struct {
	handlers map[reflect.Type][]*Subscription
}

func NewCenter() *Center {
	return &Center{handlers: map[reflect.Type][]*Subscription{}}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	c      *Center
	t      reflect.Type
	fn     any
	active bool
}

// Unsubscribe is idempotent.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active {
		return
	}
	s.active = false
	hs := s.c.handlers[s.t]
	for i, h := range hs {
		if h == s {
			// Copy so snapshots held by an in-flight Publish stay intact.
			out := make([]*Subscription, 0, len(hs)-1)
			out = append(out, hs[:i]...)
			out = append(out, hs[i+1:]...)
			s.c.handlers[s.t] = out
			return
		}
	}
}

func (s *Subscription) Active() bool { return s != nil && s.active }

// Subscribe registers fn for events of type T, in subscription order.
func Subscribe[T any](c *Center, fn func(T)) *Subscription {
	t := reflect.TypeFor[T]()
	s := &Subscription{c: c, t: t, fn: fn, active: true}
	c.handlers[t] = append(c.handlers[t], s)
	return s
}

// Publish calls every handler subscribed to T when Publish began and still
// subscribed when its turn comes.
func Publish[T any](c *Center, ev T) {
	hs := c.handlers[reflect.TypeFor[T]()]
	for _, s := range hs {
		if !s.active {
			continue
		}
		s.fn.(func(T))(ev)
	}
}

// Count returns the number of live handlers for T.
func Count[T any](c *Center) int {
	return len(c.handlers[reflect.TypeFor[T]()])
}
