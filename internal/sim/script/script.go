// Package script is the boundary between the simulation core and externally
// authored entity behavior. The core only sees the Behavior capability; the
// concrete engine (Lua, Go test doubles) lives behind it.
package script

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
)

// Event names a script entry point.
type Event string

const (
	EventInputHeld        Event = "OnControllerInputHeld"
	EventInputReleased    Event = "OnControllerInputReleased"
	EventInputTapped      Event = "OnControllerInputTapped"
	EventRespawned        Event = "OnRespawned"
	EventGameStateChanged Event = "OnGameStateChanged"
	EventHit              Event = "OnHit"
	EventAttack           Event = "OnAttack"
	EventTick             Event = "OnTick"
)

// Behavior is the per-entity handle into the script engine.
// Invoke must run synchronously on the caller's goroutine.
type Behavior interface {
	Invoke(ev Event, args ...any) (any, error)
}

// Host creates behaviors for newly spawned entities of a script class
// (e.g. "Player"). self is the Go object the behavior may drive, such as the
// connected player; it may be nil.
type Host interface {
	NewBehavior(class string, handle uint32, self any) (Behavior, error)
}

type nopBehavior struct{}

func (nopBehavior) Invoke(Event, ...any) (any, error) { return nil, nil }

// Nop returns a behavior that accepts every event and does nothing.
func Nop() Behavior { return nopBehavior{} }

// NopHost hands out Nop behaviors.
type NopHost struct{}

func (NopHost) NewBehavior(string, uint32, any) (Behavior, error) { return Nop(), nil }

// Dispatcher forwards events into behaviors and contains their failures.
// A failing handler is logged and reported as not-ok; it never propagates
// into the caller's control flow.
type Dispatcher struct {
	log      *log.Logger
	calls    atomic.Uint64
	failures atomic.Uint64
}

func NewDispatcher(logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Dispatcher{log: logger}
}

// Dispatch calls ev on b. target identifies the entity in log lines.
func (d *Dispatcher) Dispatch(b Behavior, ev Event, target string, args ...any) (res any, ok bool) {
	if b == nil {
		return nil, false
	}
	d.calls.Add(1)
	defer func() {
		if r := recover(); r != nil {
			d.fail(ev, target, fmt.Errorf("panic: %v", r))
			res, ok = nil, false
		}
	}()
	res, err := b.Invoke(ev, args...)
	if err != nil {
		d.fail(ev, target, err)
		return nil, false
	}
	return res, true
}

func (d *Dispatcher) fail(ev Event, target string, err error) {
	d.failures.Add(1)
	d.log.Printf("script: %s on %s failed: %v", ev, target, err)
}

func (d *Dispatcher) Calls() uint64 { return d.calls.Load() }

func (d *Dispatcher) Failures() uint64 { return d.failures.Load() }
