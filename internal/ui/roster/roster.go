// Package roster draws the list of connected players in the host's terminal.
//
// Join and leave notifications arrive on the world loop; they are posted to
// the screen's event queue and applied by the goroutine running Run, which
// owns all roster state.
package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"lawrence.mp/internal/sim/game"
	"lawrence.mp/internal/sim/notify"
)

const nameCols = 20

type Entry struct {
	SessionID string
	Username  string
	Since     time.Time
}

type joined struct{ entry Entry }

type left struct{ sessionID string }

type refresh struct{}

type quit struct{}

type Roster struct {
	screen tcell.Screen
	now    func() time.Time
	title  string
	every  time.Duration

	entries []Entry
	subs    []*notify.Subscription
}

func New(screen tcell.Screen, title string) *Roster {
	return &Roster{screen: screen, now: time.Now, title: title, every: time.Second}
}

// Attach subscribes to player join/leave. It must run on the world loop
// goroutine (or before it starts).
func (r *Roster) Attach(c *notify.Center) {
	r.subs = append(r.subs,
		notify.Subscribe(c, func(n game.PlayerJoinedNotification) {
			r.post(joined{Entry{SessionID: n.SessionID, Username: n.Username, Since: n.At}})
		}),
		notify.Subscribe(c, func(n game.PlayerDisconnectedNotification) {
			r.post(left{sessionID: n.SessionID})
		}),
	)
}

func (r *Roster) Detach() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.subs = nil
}

// post never blocks the caller; a full event queue drops the update.
func (r *Roster) post(data any) {
	_ = r.screen.PostEvent(tcell.NewEventInterrupt(data))
}

// Run draws until ctx ends or the operator presses q, Esc or Ctrl-C. The
// refresh goroutine has exited by the time Run returns.
func (r *Roster) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	stopped := make(chan struct{})
	defer func() {
		cancel()
		<-stopped
	}()
	go func() {
		defer close(stopped)
		t := time.NewTicker(r.every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				if parent.Err() != nil {
					r.post(quit{})
				}
				return
			case <-t.C:
				r.post(refresh{})
			}
		}
	}()

	r.Draw()
	for {
		ev := r.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			r.screen.Sync()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				return nil
			}
		case *tcell.EventInterrupt:
			if _, ok := ev.Data().(quit); ok {
				return parent.Err()
			}
			r.apply(ev.Data())
		}
		r.Draw()
	}
}

func (r *Roster) apply(data any) {
	switch d := data.(type) {
	case joined:
		r.Add(d.entry)
	case left:
		r.Remove(d.sessionID)
	}
}

// Add appends e unless its session is already listed.
func (r *Roster) Add(e Entry) bool {
	for _, x := range r.entries {
		if x.SessionID == e.SessionID {
			return false
		}
	}
	r.entries = append(r.entries, e)
	return true
}

func (r *Roster) Remove(sessionID string) bool {
	for i, x := range r.entries {
		if x.SessionID == sessionID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Roster) Entries() []Entry { return append([]Entry(nil), r.entries...) }

func (r *Roster) Draw() {
	r.screen.Clear()
	head := tcell.StyleDefault.Bold(true)
	putText(r.screen, 0, 0, fmt.Sprintf("%s  players: %d", r.title, len(r.entries)), head)
	putText(r.screen, 0, 2, runewidth.FillRight("PLAYER", nameCols)+"  CONNECTED", head.Underline(true))

	_, h := r.screen.Size()
	now := r.now()
	for i, e := range r.entries {
		y := 3 + i
		if y >= h {
			break
		}
		name := runewidth.FillRight(runewidth.Truncate(e.Username, nameCols, "…"), nameCols)
		putText(r.screen, 0, y, name+"  "+strings.TrimSpace(humanize.RelTime(e.Since, now, "", "")), tcell.StyleDefault)
	}
	r.screen.Show()
}

// putText writes s from (x, y), advancing by each rune's display width and
// stopping at the right edge.
func putText(scr tcell.Screen, x, y int, s string, st tcell.Style) {
	sw, _ := scr.Size()
	for _, c := range s {
		w := runewidth.RuneWidth(c)
		if x+w > sw {
			break
		}
		scr.SetContent(x, y, c, nil, st)
		x += max(w, 1)
	}
}
