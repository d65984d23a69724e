package game

import (
	"math"
	"sync/atomic"
)

// Stats are read by the metrics endpoint from other goroutines.
type Stats struct {
	ticks         atomic.Uint64
	sessions      atomic.Int64
	joins         atomic.Uint64
	updatesSent   atomic.Uint64
	labelsSent    atomic.Uint64
	messagesIn    atomic.Uint64
	messageErrors atomic.Uint64
	timeouts      atomic.Uint64
	closed        atomic.Uint64
	kicked        atomic.Uint64
	lastStepMicro atomic.Uint64
	maxStepMicro  atomic.Uint64
}

type StatsSnapshot struct {
	Ticks              uint64
	Sessions           int64
	Joins              uint64
	UpdatesSent        uint64
	LabelsSent         uint64
	MessagesIn         uint64
	MessageErrors      uint64
	TimeoutDisconnects uint64
	ClosedDisconnects  uint64
	Kicks              uint64
	LastStepMS         float64
	MaxStepMS          float64
}

func (s *Stats) record(c stepCounters, sessions int, stepMS float64) {
	s.ticks.Add(1)
	s.sessions.Store(int64(sessions))
	s.joins.Add(uint64(len(c.joins)))
	s.updatesSent.Add(uint64(c.updates))
	s.labelsSent.Add(uint64(c.labels))
	s.messagesIn.Add(uint64(c.messages))
	us := uint64(math.Round(stepMS * 1000))
	s.lastStepMicro.Store(us)
	if us > s.maxStepMicro.Load() {
		s.maxStepMicro.Store(us)
	}
}

func (s *Stats) disconnect(event string) {
	switch event {
	case SessionTimeout:
		s.timeouts.Add(1)
	case SessionKicked:
		s.kicked.Add(1)
	default:
		s.closed.Add(1)
	}
}

// Stats is safe to call from any goroutine.
func (g *Game) Stats() StatsSnapshot {
	s := &g.stats
	return StatsSnapshot{
		Ticks:              s.ticks.Load(),
		Sessions:           s.sessions.Load(),
		Joins:              s.joins.Load(),
		UpdatesSent:        s.updatesSent.Load(),
		LabelsSent:         s.labelsSent.Load(),
		MessagesIn:         s.messagesIn.Load(),
		MessageErrors:      s.messageErrors.Load(),
		TimeoutDisconnects: s.timeouts.Load(),
		ClosedDisconnects:  s.closed.Load(),
		Kicks:              s.kicked.Load(),
		LastStepMS:         float64(s.lastStepMicro.Load()) / 1000,
		MaxStepMS:          float64(s.maxStepMicro.Load()) / 1000,
	}
}

type QueueDepths struct {
	Join  int
	Inbox int
	Admin int
}

// QueueDepths reports channel backlogs. Safe from any goroutine.
func (g *Game) QueueDepths() QueueDepths {
	return QueueDepths{Join: len(g.join), Inbox: len(g.inbox), Admin: len(g.admin)}
}
