// Package game runs the world clock and drives every connected player's
// synchronization once per tick.
//
// All simulation state is owned by the goroutine running Game.Run (or the
// caller of Step in tests). Transports talk to it through the Join and Inbox
// channels and the admin request methods; nothing else may touch the arena.
package game

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"lawrence.mp/internal/sim/entity"
	"lawrence.mp/internal/sim/labels"
	"lawrence.mp/internal/sim/liveness"
	"lawrence.mp/internal/sim/notify"
	"lawrence.mp/internal/sim/script"
	"lawrence.mp/internal/sim/throttle"
)

const DefaultPlayerClass = "Player"

type Config struct {
	TickRateHz         int
	InactivityTimeout  time.Duration
	ThrottleThreshold  float32
	LabelRefreshTicks  uint64
	FilteredAnimations []int
	// DefaultLevel is loaded for every new player. Empty leaves players in
	// NoLevel until something calls LoadLevel.
	DefaultLevel string
	PlayerClass  string

	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 60
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = liveness.DefaultTimeout
	}
	if c.ThrottleThreshold <= 0 {
		c.ThrottleThreshold = throttle.DefaultThreshold
	}
	if c.LabelRefreshTicks == 0 {
		c.LabelRefreshTicks = labels.DefaultRefreshTicks
	}
	if c.FilteredAnimations == nil {
		c.FilteredAnimations = entity.DefaultFilteredAnimations
	}
	if c.PlayerClass == "" {
		c.PlayerClass = DefaultPlayerClass
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type JoinRequest struct {
	Conn     Conn
	Username string
	Resp     chan JoinResponse
}

type JoinResponse struct {
	SessionID  string
	Avatar     uint32
	TickRateHz int
	Err        error
}

// Envelope carries one decoded inbound message from a session.
type Envelope struct {
	SessionID string
	Msg       any
}

type Game struct {
	cfg Config
	log *log.Logger

	tick atomic.Uint64

	center   *notify.Center
	arena    *entity.Arena
	scripts  script.Host
	dispatch *script.Dispatcher
	liveness liveness.Manager
	throttle throttle.Policy

	levels      map[string]*Level
	players     map[string]*Player
	nextSession uint64

	join  chan JoinRequest
	inbox chan Envelope
	admin chan adminReq
	stop  chan struct{}

	tickLogger    TickLogger
	sessionLogger SessionLogger

	cur   stepCounters
	stats Stats
}

type stepCounters struct {
	joins    []string
	leaves   []string
	messages int
	errors   int
	updates  int
	labels   int
}

// New builds a game. A nil host gives every entity a no-op behavior; a nil
// logger discards.
func New(cfg Config, host script.Host, logger *log.Logger) *Game {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if host == nil {
		host = script.NopHost{}
	}
	cfg = cfg.withDefaults()
	g := &Game{
		cfg:      cfg,
		log:      logger,
		center:   notify.NewCenter(),
		arena:    entity.NewArena(cfg.FilteredAnimations),
		scripts:  host,
		dispatch: script.NewDispatcher(logger),
		liveness: liveness.Manager{Timeout: cfg.InactivityTimeout, Now: cfg.Now},
		throttle: throttle.Policy{Threshold: cfg.ThrottleThreshold},
		levels:   map[string]*Level{},
		players:  map[string]*Player{},
		join:     make(chan JoinRequest, 64),
		inbox:    make(chan Envelope, 1024),
		admin:    make(chan adminReq, 16),
		stop:     make(chan struct{}),
	}
	g.arena.OnDelete(func(e *entity.Entity) {
		notify.Publish(g.center, EntityDeletedNotification{Handle: e.Handle(), Kind: e.Kind(), Name: e.Name()})
	})
	return g
}

func (g *Game) SetTickLogger(l TickLogger) { g.tickLogger = l }

func (g *Game) SetSessionLogger(l SessionLogger) { g.sessionLogger = l }

func (g *Game) Join() chan<- JoinRequest { return g.join }

func (g *Game) Inbox() chan<- Envelope { return g.inbox }

func (g *Game) Center() *notify.Center { return g.center }

func (g *Game) Arena() *entity.Arena { return g.arena }

func (g *Game) Dispatcher() *script.Dispatcher { return g.dispatch }

func (g *Game) TickRateHz() int { return g.cfg.TickRateHz }

func (g *Game) CurrentTick() uint64 { return g.tick.Load() }

func (g *Game) Stop() { close(g.stop) }

func (g *Game) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(g.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingMsgs []Envelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.stop:
			return nil
		case req := <-g.join:
			pendingJoins = append(pendingJoins, req)
		case env := <-g.inbox:
			pendingMsgs = append(pendingMsgs, env)
		case req := <-g.admin:
			g.handleAdmin(req)
		case <-ticker.C:
			g.Step(pendingJoins, pendingMsgs)
			pendingJoins = pendingJoins[:0]
			pendingMsgs = pendingMsgs[:0]
		}
	}
}

// Step advances the world by one tick: joins, then inbound messages in
// arrival order, then the tick and post-tick notifications.
func (g *Game) Step(joins []JoinRequest, msgs []Envelope) {
	start := time.Now()
	tick := g.tick.Load()
	g.cur = stepCounters{}

	for _, req := range joins {
		g.handleJoin(tick, req)
	}
	for _, env := range msgs {
		g.handleEnvelope(tick, env)
	}

	notify.Publish(g.center, TickNotification{Tick: tick})
	notify.Publish(g.center, PostTickNotification{Tick: tick})

	stepMS := float64(time.Since(start).Microseconds()) / 1000
	g.stats.record(g.cur, len(g.players), stepMS)
	if g.tickLogger != nil {
		_ = g.tickLogger.WriteTick(TickLogEntry{
			Tick:     tick,
			Sessions: len(g.players),
			Joins:    g.cur.joins,
			Leaves:   g.cur.leaves,
			Messages: g.cur.messages,
			Errors:   g.cur.errors,
			Updates:  g.cur.updates,
			Labels:   g.cur.labels,
			StepMS:   stepMS,
		})
	}
	g.tick.Add(1)
}

func (g *Game) handleJoin(tick uint64, req JoinRequest) {
	p, err := g.addPlayer(req.Conn, req.Username)
	if err != nil {
		g.log.Printf("join %q: %v", req.Username, err)
		respond(req.Resp, JoinResponse{Err: err})
		return
	}
	respond(req.Resp, JoinResponse{
		SessionID:  p.id,
		Avatar:     uint32(p.avatar.Handle()),
		TickRateHz: g.cfg.TickRateHz,
	})
	g.cur.joins = append(g.cur.joins, p.id)
	g.writeSession(p, SessionJoin, "")
	g.log.Printf("[session %s] %s joined (avatar %s)", p.id, p.username, p.avatar.Handle())
	notify.Publish(g.center, PlayerJoinedNotification{SessionID: p.id, Username: p.username, At: p.joinedAt})

	if g.cfg.DefaultLevel != "" {
		if err := p.LoadLevel(g.cfg.DefaultLevel); err != nil {
			g.log.Printf("[session %s] default level: %v", p.id, err)
		}
	}
}

func respond(ch chan JoinResponse, r JoinResponse) {
	if ch == nil {
		return
	}
	select {
	case ch <- r:
	default:
		// Transport gave up waiting; don't block the sim loop.
	}
}

func (g *Game) addPlayer(conn Conn, username string) (*Player, error) {
	if conn == nil {
		return nil, fmt.Errorf("join: nil connection: %w", ErrInvariant)
	}
	id := conn.ID()
	if _, dup := g.players[id]; dup {
		return nil, fmt.Errorf("join: session %s already registered: %w", id, ErrInvariant)
	}
	if username == "" {
		username = "player"
	}
	avatar, err := g.arena.Spawn(0, entity.KindPlayer, username)
	if err != nil {
		return nil, err
	}
	p := &Player{
		g:        g,
		conn:     conn,
		id:       id,
		username: username,
		avatar:   avatar,
		seen:     map[entity.Handle]uint64{},
		owned:    map[entity.Handle]struct{}{},
		joinedAt: g.cfg.Now(),
	}
	p.labels.RefreshTicks = g.cfg.LabelRefreshTicks
	b, err := g.scripts.NewBehavior(g.cfg.PlayerClass, uint32(avatar.Handle()), p)
	if err != nil {
		p.deleteOwned()
		g.arena.Delete(avatar.Handle())
		return nil, fmt.Errorf("create %s entity: %w", g.cfg.PlayerClass, err)
	}
	avatar.SetBehavior(b)

	g.nextSession++
	p.number = g.nextSession
	p.subs = []*notify.Subscription{
		notify.Subscribe(g.center, p.onTick),
		notify.Subscribe(g.center, p.onPostTick),
		notify.Subscribe(g.center, p.OnDeleteEntity),
	}
	g.players[id] = p
	return p, nil
}

// removePlayer runs once the player has released everything it owns.
func (g *Game) removePlayer(p *Player, event, reason string) {
	delete(g.players, p.id)
	g.cur.leaves = append(g.cur.leaves, p.id)
	g.stats.disconnect(event)
	g.writeSession(p, event, reason)
	notify.Publish(g.center, PlayerDisconnectedNotification{
		SessionID: p.id,
		Username:  p.username,
		Reason:    reason,
		Connected: g.cfg.Now().Sub(p.joinedAt),
	})
}

func (g *Game) writeSession(p *Player, event, reason string) {
	if g.sessionLogger == nil {
		return
	}
	now := g.cfg.Now()
	e := SessionLogEntry{
		Tick:      g.tick.Load(),
		Time:      now.UTC().Format(time.RFC3339Nano),
		SessionID: p.id,
		Username:  p.username,
		Event:     event,
		Reason:    reason,
	}
	if p.level != nil {
		e.Level = p.level.Name
	}
	if event != SessionJoin {
		e.ConnectedMS = now.Sub(p.joinedAt).Milliseconds()
	}
	_ = g.sessionLogger.WriteSession(e)
}

// Player returns the live session with id, or nil.
func (g *Game) Player(id string) *Player { return g.players[id] }

// Players returns live sessions in join order.
func (g *Game) Players() []*Player {
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].number < out[j].number })
	return out
}
