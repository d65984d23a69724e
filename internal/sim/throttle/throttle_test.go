package throttle

import "testing"

func TestShouldSend_NeverWhenClean(t *testing.T) {
	p := Policy{}
	for _, d := range []float32{0, 5, 10, 25, 300} {
		for tick := uint64(0); tick < 64; tick++ {
			if p.ShouldSend(Pair{Distance: d}, tick) {
				t.Fatalf("clean entity sent at d=%v tick=%d", d, tick)
			}
		}
	}
}

func TestShouldSend_AlwaysWithinThreshold(t *testing.T) {
	p := Policy{Threshold: 10}
	for _, d := range []float32{0, 3.5, 9.99, 10} {
		for tick := uint64(0); tick < 64; tick++ {
			if !p.ShouldSend(Pair{Dirty: true, Distance: d}, tick) {
				t.Fatalf("near dirty entity skipped at d=%v tick=%d", d, tick)
			}
		}
	}
}

func TestShouldSend_Distance25EveryOtherTick(t *testing.T) {
	p := Policy{Threshold: 10}
	c := Pair{Dirty: true, Distance: 25}
	for tick := uint64(0); tick < 100; tick++ {
		want := tick%2 == 0
		if got := p.ShouldSend(c, tick); got != want {
			t.Fatalf("tick %d: got %v want %v", tick, got, want)
		}
	}
}

func TestShouldSend_Filters(t *testing.T) {
	p := Policy{}
	cases := []struct {
		name string
		pair Pair
		want bool
	}{
		{"self", Pair{Self: true, Dirty: true}, false},
		{"instanced foreign", Pair{Dirty: true, Instanced: true}, false},
		{"instanced owned", Pair{Dirty: true, Instanced: true, OwnedByViewer: true}, true},
		{"plain", Pair{Dirty: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.ShouldSend(tc.pair, 7); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestDivisor(t *testing.T) {
	p := Policy{Threshold: 10}
	cases := map[float32]uint64{
		0:    1,
		10:   1,
		10.5: 1,
		19.9: 1,
		20:   2,
		25:   2,
		99:   9,
		100:  10,
	}
	for d, want := range cases {
		if got := p.Divisor(d); got != want {
			t.Errorf("Divisor(%v) = %d, want %d", d, got, want)
		}
	}
}
