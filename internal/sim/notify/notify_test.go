package notify

import "testing"

type tick struct{ n uint64 }

type other struct{}

func TestPublish_OrderAndTypeIsolation(t *testing.T) {
	c := NewCenter()
	var got []string
	Subscribe(c, func(ev tick) { got = append(got, "a") })
	Subscribe(c, func(ev tick) { got = append(got, "b") })
	Subscribe(c, func(ev other) { got = append(got, "other") })

	Publish(c, tick{n: 1})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("handlers = %v, want [a b]", got)
	}
	if Count[other](c) != 1 {
		t.Fatalf("count other = %d", Count[other](c))
	}
}

func TestUnsubscribe_DuringPublishSkipsLaterHandler(t *testing.T) {
	c := NewCenter()
	var calls []string
	var second *Subscription
	Subscribe(c, func(ev tick) {
		calls = append(calls, "first")
		second.Unsubscribe()
	})
	second = Subscribe(c, func(ev tick) { calls = append(calls, "second") })
	Subscribe(c, func(ev tick) { calls = append(calls, "third") })

	Publish(c, tick{})
	if len(calls) != 2 || calls[1] != "third" {
		t.Fatalf("calls = %v, want [first third]", calls)
	}
	if second.Active() {
		t.Fatalf("second still active")
	}
	if Count[tick](c) != 2 {
		t.Fatalf("count = %d, want 2", Count[tick](c))
	}
}

func TestUnsubscribe_SelfAndIdempotent(t *testing.T) {
	c := NewCenter()
	n := 0
	var s *Subscription
	s = Subscribe(c, func(ev tick) {
		n++
		s.Unsubscribe()
		s.Unsubscribe()
	})
	Publish(c, tick{})
	Publish(c, tick{})
	if n != 1 {
		t.Fatalf("handler ran %d times, want 1", n)
	}
}

func TestSubscribe_DuringPublishWaitsForNext(t *testing.T) {
	c := NewCenter()
	late := 0
	Subscribe(c, func(ev tick) {
		if ev.n == 1 {
			Subscribe(c, func(tick) { late++ })
		}
	})
	Publish(c, tick{n: 1})
	if late != 0 {
		t.Fatalf("late subscriber ran during the publish that added it")
	}
	Publish(c, tick{n: 2})
	if late != 1 {
		t.Fatalf("late subscriber ran %d times on next publish", late)
	}
}
