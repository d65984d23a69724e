// Package labels keeps a viewer's HUD text slots in step with the client.
//
// The client addresses labels by slot index, so the server mirrors the
// client's slot table exactly: removed labels leave a hole that the next Add
// fills before the table grows.
package labels

const DefaultRefreshTicks = 60

// Label is a piece of HUD text. A Label may be shown to several viewers; each
// viewer's Slots tracks which generation it last emitted.
type Label struct {
	text  string
	x, y  uint16
	color uint32
	gen   uint64
}

func New(text string, x, y uint16, color uint32) *Label {
	return &Label{text: text, x: x, y: y, color: color, gen: 1}
}

func (l *Label) Text() string       { return l.text }
func (l *Label) X() uint16          { return l.x }
func (l *Label) Y() uint16          { return l.y }
func (l *Label) Color() uint32      { return l.color }
func (l *Label) Generation() uint64 { return l.gen }

func (l *Label) SetText(s string) {
	if l.text == s {
		return
	}
	l.text = s
	l.gen++
}

func (l *Label) SetPosition(x, y uint16) {
	if l.x == x && l.y == y {
		return
	}
	l.x, l.y = x, y
	l.gen++
}

func (l *Label) SetColor(c uint32) {
	if l.color == c {
		return
	}
	l.color = c
	l.gen++
}

// ForceSetChanged makes every viewer resend the label on its next sync.
func (l *Label) ForceSetChanged() { l.gen++ }

// Sink receives label messages for one viewer.
type Sink interface {
	SetLabel(slot uint16, text string, x, y uint16, color uint32)
	DeleteLabel(slot uint16)
}

type slot struct {
	label  *Label
	sent   uint64
	forced bool
}

// Slots is one viewer's label table.
type Slots struct {
	// RefreshTicks forces a resend of every label on ticks divisible by it,
	// covering messages the client may have missed. Zero means 60.
	RefreshTicks uint64

	slots []slot
}

func (s *Slots) refresh() uint64 {
	if s.RefreshTicks == 0 {
		return DefaultRefreshTicks
	}
	return s.RefreshTicks
}

// Add places l in the first free slot, or appends a new one. The label is
// emitted on the next Sync regardless of its state. Adding a label that is
// already present is a no-op and returns false.
func (s *Slots) Add(l *Label) bool {
	if l == nil {
		return false
	}
	for _, sl := range s.slots {
		if sl.label == l {
			return false
		}
	}
	for i := range s.slots {
		if s.slots[i].label == nil {
			s.slots[i] = slot{label: l, forced: true}
			return true
		}
	}
	s.slots = append(s.slots, slot{label: l, forced: true})
	return true
}

// Remove frees l's slot and emits the delete immediately.
func (s *Slots) Remove(l *Label, sink Sink) bool {
	if l == nil {
		return false
	}
	for i := range s.slots {
		if s.slots[i].label == l {
			s.slots[i] = slot{}
			sink.DeleteLabel(uint16(i))
			return true
		}
	}
	return false
}

// RemoveAll deletes every occupied slot in ascending index order.
func (s *Slots) RemoveAll(sink Sink) {
	for i := range s.slots {
		if s.slots[i].label == nil {
			continue
		}
		s.slots[i] = slot{}
		sink.DeleteLabel(uint16(i))
	}
	s.slots = s.slots[:0]
}

// Clear drops every slot without emitting anything, for viewers whose
// connection is already gone.
func (s *Slots) Clear() { s.slots = nil }

// Sync emits every occupied slot whose label changed since it was last
// emitted, was just assigned, or is due for the periodic refresh. It returns
// the number of labels emitted.
func (s *Slots) Sync(tick uint64, sink Sink) int {
	periodic := tick%s.refresh() == 0
	n := 0
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.label == nil {
			continue
		}
		if !sl.forced && !periodic && sl.label.gen <= sl.sent {
			continue
		}
		l := sl.label
		sink.SetLabel(uint16(i), l.text, l.x, l.y, l.color)
		sl.sent = l.gen
		sl.forced = false
		n++
	}
	return n
}

// Index returns l's slot, or -1.
func (s *Slots) Index(l *Label) int {
	for i := range s.slots {
		if s.slots[i].label == l {
			return i
		}
	}
	return -1
}

// Occupied counts non-empty slots.
func (s *Slots) Occupied() int {
	n := 0
	for _, sl := range s.slots {
		if sl.label != nil {
			n++
		}
	}
	return n
}
