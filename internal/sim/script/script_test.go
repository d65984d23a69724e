package script

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

type funcBehavior func(ev Event, args ...any) (any, error)

func (f funcBehavior) Invoke(ev Event, args ...any) (any, error) { return f(ev, args...) }

func TestDispatch_PassesArgsAndResult(t *testing.T) {
	d := NewDispatcher(nil)
	var gotEv Event
	var gotArgs []any
	b := funcBehavior(func(ev Event, args ...any) (any, error) {
		gotEv, gotArgs = ev, args
		return "ok", nil
	})

	res, ok := d.Dispatch(b, EventInputTapped, "moby#1", 7)
	if !ok || res != "ok" {
		t.Fatalf("dispatch = (%v,%v), want (ok,true)", res, ok)
	}
	if gotEv != EventInputTapped || len(gotArgs) != 1 || gotArgs[0] != 7 {
		t.Fatalf("handler saw ev=%s args=%v", gotEv, gotArgs)
	}
	if d.Calls() != 1 || d.Failures() != 0 {
		t.Fatalf("calls=%d failures=%d", d.Calls(), d.Failures())
	}
}

func TestDispatch_ErrorIsLoggedNotPropagated(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(log.New(&buf, "", 0))
	b := funcBehavior(func(Event, ...any) (any, error) { return nil, errors.New("bad script") })

	if _, ok := d.Dispatch(b, EventRespawned, "moby#9"); ok {
		t.Fatalf("expected not-ok on handler error")
	}
	line := buf.String()
	if !strings.Contains(line, "OnRespawned") || !strings.Contains(line, "moby#9") || !strings.Contains(line, "bad script") {
		t.Fatalf("log line missing context: %q", line)
	}
	if d.Failures() != 1 {
		t.Fatalf("failures=%d want 1", d.Failures())
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	d := NewDispatcher(nil)
	b := funcBehavior(func(Event, ...any) (any, error) { panic("nil table") })

	if _, ok := d.Dispatch(b, EventHit, "moby#2"); ok {
		t.Fatalf("expected not-ok on panic")
	}
	if d.Failures() != 1 {
		t.Fatalf("failures=%d want 1", d.Failures())
	}
}

func TestDispatch_NilBehavior(t *testing.T) {
	d := NewDispatcher(nil)
	if _, ok := d.Dispatch(nil, EventTick, "moby#3"); ok {
		t.Fatalf("nil behavior must not report ok")
	}
	if d.Calls() != 0 {
		t.Fatalf("nil behavior should not count as a call")
	}
}
