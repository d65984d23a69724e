package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"lawrence.mp/internal/protocol"
	"lawrence.mp/internal/sim/labels"
	"lawrence.mp/internal/sim/notify"
)

func TestJoin_NoLevelDoesNothingOnTick(t *testing.T) {
	h := newHarness(t)
	var joined []string
	notify.Subscribe(h.g.Center(), func(n PlayerJoinedNotification) {
		if h.g.Player(n.SessionID) == nil {
			t.Errorf("joined notification fired before the session was registered")
		}
		joined = append(joined, n.Username)
	})
	h.spawn(t, h.level.Root, "crate")

	p, c := h.joinNoLevel(t, "ratchet")
	if len(joined) != 1 || joined[0] != "ratchet" {
		t.Fatalf("joined = %v", joined)
	}
	if p.State() != StateNoLevel {
		t.Fatalf("state = %v, want no_level", p.State())
	}
	p.GiveItem(3)
	h.step()
	if got := c.take(); len(got) != 0 {
		t.Fatalf("NoLevel session received %v", got)
	}
}

func TestLoadLevel_SendsGoToLevelThenChangedMobys(t *testing.T) {
	h := newHarness(t)
	crate := h.spawn(t, h.level.Root, "crate")
	p, c := h.join(t, "ratchet")

	h.step()
	msgs := c.take()
	if len(msgs) == 0 {
		t.Fatalf("no messages after LoadLevel")
	}
	if g, ok := msgs[0].(protocol.GoToLevelMsg); !ok || g.GameID != 1 || g.Level != "veldin" {
		t.Fatalf("first message = %#v, want GO_TO_LEVEL veldin", msgs[0])
	}
	got := updatedHandles(msgs)
	if !got[uint32(crate.Handle())] {
		t.Fatalf("crate not sent: %v", msgs)
	}
	if got[uint32(p.Avatar().Handle())] {
		t.Fatalf("own avatar sent to self")
	}

	h.step()
	if got := updates(c.take()); len(got) != 0 {
		t.Fatalf("unchanged crate resent: %v", got)
	}

	crate.SetPosition(mgl32.Vec3{1, 0, 0})
	h.step()
	us := updates(c.take())
	if len(us) != 1 || us[0].X != 1 {
		t.Fatalf("moved crate: %v", us)
	}
}

func TestSync_LateViewerStillReceivesEntity(t *testing.T) {
	h := newHarness(t)
	crate := h.spawn(t, h.level.Root, "crate")
	_, a := h.join(t, "a")
	h.step()
	if !updatedHandles(a.take())[uint32(crate.Handle())] {
		t.Fatalf("first viewer did not receive crate")
	}

	_, b := h.join(t, "b")
	h.step()
	if !updatedHandles(b.take())[uint32(crate.Handle())] {
		t.Fatalf("late viewer did not receive crate already sent to another viewer")
	}
	if updatedHandles(a.take())[uint32(crate.Handle())] {
		t.Fatalf("first viewer got a duplicate")
	}
}

func TestSync_DistantEntityThrottled(t *testing.T) {
	h := newHarness(t)
	far := h.spawn(t, h.level.Root, "far")
	_, c := h.join(t, "ratchet")

	var sentAt []uint64
	for i := 0; i < 6; i++ {
		tick := h.g.CurrentTick()
		far.SetPosition(mgl32.Vec3{25, 0, float32(i) * 0.001})
		h.step()
		if updatedHandles(c.take())[uint32(far.Handle())] {
			sentAt = append(sentAt, tick)
		}
	}
	if len(sentAt) != 3 {
		t.Fatalf("sent at ticks %v, want every second tick", sentAt)
	}
	for _, tick := range sentAt {
		if tick%2 != 0 {
			t.Fatalf("sent at odd tick %d", tick)
		}
	}
}

func TestSync_InstancedOnlyForOwner(t *testing.T) {
	h := newHarness(t)
	pa, a := h.join(t, "a")
	_, b := h.join(t, "b")
	fx := h.spawn(t, pa.Avatar().Handle(), "shield")
	fx.SetInstanced(true)

	h.step()
	if !updatedHandles(a.take())[uint32(fx.Handle())] {
		t.Fatalf("owner did not receive its instanced child")
	}
	if updatedHandles(b.take())[uint32(fx.Handle())] {
		t.Fatalf("instanced child leaked to another viewer")
	}
}

func TestSync_OpaqueGroupHidesOutside(t *testing.T) {
	h := newHarness(t)
	ship := h.spawn(t, h.level.Root, "ship")
	ship.SetOpaque(true)
	inside := h.spawn(t, ship.Handle(), "seat")
	outside := h.spawn(t, h.level.Root, "tree")

	p, c := h.join(t, "ratchet")
	if err := h.g.Arena().SetParent(p.Avatar().Handle(), ship.Handle()); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	h.step()
	got := updatedHandles(c.take())
	if !got[uint32(ship.Handle())] || !got[uint32(inside.Handle())] {
		t.Fatalf("ship subtree not sent: %v", got)
	}
	if got[uint32(outside.Handle())] {
		t.Fatalf("entity outside the opaque group was sent")
	}
}

func TestLiveness_ExpiredSessionGetsNoSync(t *testing.T) {
	h := newHarness(t)
	crate := h.spawn(t, h.level.Root, "crate")
	p, c := h.join(t, "ratchet")
	var left []PlayerDisconnectedNotification
	notify.Subscribe(h.g.Center(), func(n PlayerDisconnectedNotification) {
		if h.g.Player(n.SessionID) != nil {
			t.Errorf("disconnected notification fired before the session was removed")
		}
		left = append(left, n)
	})

	h.advance(31 * time.Second)
	crate.SetPosition(mgl32.Vec3{1, 1, 1})
	h.step()

	msgs := c.take()
	if len(msgs) != 1 {
		t.Fatalf("expired session got %d messages, want only DISCONNECT: %v", len(msgs), msgs)
	}
	if _, ok := msgs[0].(protocol.DisconnectMsg); !ok {
		t.Fatalf("message = %#v, want DISCONNECT", msgs[0])
	}
	if p.State() != StateDisconnecting || !c.IsClosed() {
		t.Fatalf("state=%v closed=%v", p.State(), c.IsClosed())
	}
	if h.g.Arena().Get(p.Avatar().Handle()) != nil {
		t.Fatalf("avatar still in arena")
	}
	if len(left) != 1 || left[0].Username != "ratchet" {
		t.Fatalf("disconnect notifications = %v", left)
	}
	if st := h.g.Stats(); st.TimeoutDisconnects != 1 {
		t.Fatalf("timeout disconnects = %d", st.TimeoutDisconnects)
	}

	h.step()
	if got := c.take(); len(got) != 0 {
		t.Fatalf("terminal session processed again: %v", got)
	}
}

func TestLiveness_ActivityKeepsSessionAlive(t *testing.T) {
	h := newHarness(t)
	p, c := h.join(t, "ratchet")
	for i := 0; i < 5; i++ {
		h.advance(20 * time.Second)
		c.touch(h.now)
		h.step()
	}
	if p.State() != StateInLevel {
		t.Fatalf("active session dropped: %v", p.State())
	}
}

func TestLiveness_ClosedTransportDeletesMidTick(t *testing.T) {
	h := newHarness(t)
	pa, a := h.join(t, "a")
	pb, b := h.join(t, "b")
	h.step()
	if !updatedHandles(b.take())[uint32(pa.Avatar().Handle())] {
		t.Fatalf("b never saw a's avatar")
	}
	a.take()

	a.Close()
	pa.Avatar().SetPosition(mgl32.Vec3{2, 0, 0})
	h.step()

	if pa.State() != StateDeleted {
		t.Fatalf("a state = %v, want deleted", pa.State())
	}
	if got := a.take(); len(got) != 0 {
		t.Fatalf("closed session was sent %v", got)
	}
	msgs := b.take()
	if updatedHandles(msgs)[uint32(pa.Avatar().Handle())] {
		t.Fatalf("b received an update for a deleted avatar")
	}
	var deleted bool
	for _, m := range msgs {
		if d, ok := m.(protocol.DeleteMobyMsg); ok && d.UUID == uint32(pa.Avatar().Handle()) {
			deleted = true
		}
	}
	if !deleted {
		t.Fatalf("b was not told to delete a's avatar: %v", msgs)
	}
	if pb.State() != StateInLevel || len(h.g.Players()) != 1 {
		t.Fatalf("other session disturbed: state=%v players=%d", pb.State(), len(h.g.Players()))
	}
}

func TestLoadLevel_SwitchResendsWorld(t *testing.T) {
	h := newHarness(t)
	kerwan, err := h.g.AddLevel("kerwan", 2)
	if err != nil {
		t.Fatalf("AddLevel: %v", err)
	}
	h.spawn(t, h.level.Root, "crate")
	tower := h.spawn(t, kerwan.Root, "tower")
	p, c := h.join(t, "ratchet")
	h.step()
	c.take()

	if err := p.LoadLevel("kerwan"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	h.step()
	msgs := c.take()
	if g, ok := msgs[0].(protocol.GoToLevelMsg); !ok || g.GameID != 2 {
		t.Fatalf("first message = %#v", msgs[0])
	}
	if !updatedHandles(msgs)[uint32(tower.Handle())] {
		t.Fatalf("new level entity not sent")
	}
	if err := p.LoadLevel("nowhere"); !errors.Is(err, ErrLevelNotFound) {
		t.Fatalf("unknown level: %v", err)
	}
}

func TestLabels_ThroughPlayer(t *testing.T) {
	h := newHarness(t)
	p, c := h.join(t, "ratchet")
	hp := labels.New("HP 8", 20, 20, 0xffffffff)
	if !p.AddLabel(hp) || p.AddLabel(hp) {
		t.Fatalf("AddLabel duplicate handling")
	}
	h.step()
	if n := countType[protocol.SetLabelMsg](c.take()); n != 1 {
		t.Fatalf("set label frames = %d", n)
	}
	p.RemoveLabel(hp)
	msgs := c.take()
	if len(msgs) != 1 {
		t.Fatalf("remove emitted %v", msgs)
	}
	if d, ok := msgs[0].(protocol.DeleteLabelMsg); !ok || d.Slot != 0 {
		t.Fatalf("remove emitted %#v", msgs[0])
	}
}

func TestOwnStateSetters_FlushedInPostTick(t *testing.T) {
	h := newHarness(t)
	p, c := h.join(t, "ratchet")
	h.step()
	c.take()

	p.SetPosition(mgl32.Vec3{1, 2, 3})
	p.SetState(7)
	p.GiveItem(12)
	p.SetRespawn(1, 2, 3, 90)
	if got := c.take(); len(got) != 0 {
		t.Fatalf("setters emitted before flush: %v", got)
	}
	h.step()
	msgs := c.take()
	if len(msgs) != 4 {
		t.Fatalf("flushed %d messages, want 4: %v", len(msgs), msgs)
	}
	if pos, ok := msgs[0].(protocol.SetPositionMsg); !ok || pos.Z != 3 {
		t.Fatalf("first = %#v", msgs[0])
	}
	if st, ok := msgs[1].(protocol.SetPlayerStateMsg); !ok || st.State != 7 {
		t.Fatalf("second = %#v", msgs[1])
	}
	if p.Avatar().State() != 7 {
		t.Fatalf("avatar state not updated")
	}
}

type captureTicks struct{ entries []TickLogEntry }

func (c *captureTicks) WriteTick(e TickLogEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

type captureSessions struct{ entries []SessionLogEntry }

func (c *captureSessions) WriteSession(e SessionLogEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

func TestLoggers_RecordJoinsAndLeaves(t *testing.T) {
	h := newHarness(t)
	ticks := &captureTicks{}
	sessions := &captureSessions{}
	h.g.SetTickLogger(ticks)
	h.g.SetSessionLogger(sessions)

	_, c := h.join(t, "ratchet")
	c.Close()
	h.step()

	if len(ticks.entries) != 2 {
		t.Fatalf("tick entries = %d", len(ticks.entries))
	}
	if got := ticks.entries[0].Joins; len(got) != 1 || got[0] != "ratchet" {
		t.Fatalf("joins = %v", got)
	}
	if got := ticks.entries[1].Leaves; len(got) != 1 || got[0] != "ratchet" {
		t.Fatalf("leaves = %v", got)
	}
	var events []string
	for _, e := range sessions.entries {
		events = append(events, e.Event)
	}
	want := []string{SessionJoin, SessionLevel, SessionClosed}
	if len(events) != len(want) {
		t.Fatalf("session events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("session events = %v, want %v", events, want)
		}
	}
}

func TestRun_AdminStateAndKick(t *testing.T) {
	g := New(Config{TickRateHz: 200}, nil, nil)
	if _, err := g.AddLevel("veldin", 1); err != nil {
		t.Fatalf("AddLevel: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	c := &fakeConn{id: "s1", last: time.Now()}
	resp := make(chan JoinResponse, 1)
	g.Join() <- JoinRequest{Conn: c, Username: "ratchet", Resp: resp}
	select {
	case r := <-resp:
		if r.Err != nil || r.SessionID != "s1" || r.Avatar == 0 {
			t.Fatalf("join response = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("join timed out")
	}

	rctx, rcancel := context.WithTimeout(ctx, 2*time.Second)
	defer rcancel()
	st, err := g.RequestState(rctx)
	if err != nil {
		t.Fatalf("RequestState: %v", err)
	}
	if len(st.Sessions) != 1 || st.Sessions[0].Username != "ratchet" || len(st.Levels) != 1 {
		t.Fatalf("state = %+v", st)
	}
	if err := g.RequestKick(rctx, "nobody", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("kick unknown: %v", err)
	}
	if err := g.RequestKick(rctx, "s1", "maintenance"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	st, err = g.RequestState(rctx)
	if err != nil {
		t.Fatalf("RequestState: %v", err)
	}
	if len(st.Sessions) != 0 {
		t.Fatalf("kicked session still listed: %+v", st.Sessions)
	}
	if !c.IsClosed() {
		t.Fatalf("kicked conn not closed")
	}
	if countType[protocol.DisconnectMsg](c.take()) != 1 {
		t.Fatalf("kicked client not told")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}

func TestSpawnMoby_OwnedMobysLeaveWithPlayer(t *testing.T) {
	h := newHarness(t)
	pa, a := h.join(t, "a")
	_, b := h.join(t, "b")

	if h.host.Selves[uint32(pa.Avatar().Handle())] != pa {
		t.Fatalf("behavior was not created for the player")
	}
	marker, err := pa.SpawnMoby("marker", 0)
	if err != nil {
		t.Fatalf("SpawnMoby: %v", err)
	}
	if marker.Parent() != h.level.Root {
		t.Fatalf("marker parent = %s, want level root", marker.Parent())
	}
	if err := pa.DeleteMoby(pa.Avatar().Handle()); !errors.Is(err, ErrInvariant) {
		t.Fatalf("deleting the avatar through DeleteMoby: %v", err)
	}
	h.step()
	if !updatedHandles(b.take())[uint32(marker.Handle())] {
		t.Fatalf("b never saw the marker")
	}

	a.Close()
	h.step()
	if h.g.Arena().Get(marker.Handle()) != nil {
		t.Fatalf("marker outlived its player")
	}
	var deleted bool
	for _, m := range b.take() {
		if d, ok := m.(protocol.DeleteMobyMsg); ok && d.UUID == uint32(marker.Handle()) {
			deleted = true
		}
	}
	if !deleted {
		t.Fatalf("b was not told to delete the marker")
	}
}

func TestSpawnMoby_NeedsLevel(t *testing.T) {
	h := newHarness(t)
	p, _ := h.joinNoLevel(t, "a")
	if _, err := p.SpawnMoby("marker", 0); !errors.Is(err, ErrInvariant) {
		t.Fatalf("spawn without level: %v", err)
	}
	child, err := p.SpawnMoby("badge", p.Avatar().Handle())
	if err != nil {
		t.Fatalf("spawn under avatar: %v", err)
	}
	if err := p.DeleteMoby(child.Handle()); err != nil {
		t.Fatalf("DeleteMoby: %v", err)
	}
	if len(p.Owned()) != 0 || h.g.Arena().Get(child.Handle()) != nil {
		t.Fatalf("badge survived delete")
	}
}
