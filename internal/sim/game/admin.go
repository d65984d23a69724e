package game

import (
	"context"
	"errors"
	"fmt"
)

type adminKind int

const (
	adminState adminKind = iota + 1
	adminKick
)

type adminReq struct {
	kind      adminKind
	sessionID string
	reason    string
	resp      chan adminResp
}

type adminResp struct {
	state StateSnapshot
	err   error
}

type SessionInfo struct {
	SessionID string  `json:"session_id"`
	Number    uint64  `json:"number"`
	Username  string  `json:"username"`
	State     string  `json:"state"`
	Level     string  `json:"level,omitempty"`
	Avatar    uint32  `json:"avatar"`
	GameState int     `json:"game_state"`
	IdleSec   float64 `json:"idle_sec"`
	JoinedAt  string  `json:"joined_at"`
}

type LevelInfo struct {
	Name   string `json:"name"`
	GameID int    `json:"game_id"`
	Root   uint32 `json:"root"`
}

type StateSnapshot struct {
	Tick     uint64        `json:"tick"`
	Entities int           `json:"entities"`
	Levels   []LevelInfo   `json:"levels"`
	Sessions []SessionInfo `json:"sessions"`
}

var ErrSessionNotFound = errors.New("session not found")

// RequestState asks the world loop for a snapshot of sessions and levels.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (g *Game) RequestState(ctx context.Context) (StateSnapshot, error) {
	r, err := g.adminCall(ctx, adminReq{kind: adminState})
	return r.state, err
}

// RequestKick disconnects a session from the world loop.
func (g *Game) RequestKick(ctx context.Context, sessionID, reason string) error {
	_, err := g.adminCall(ctx, adminReq{kind: adminKick, sessionID: sessionID, reason: reason})
	return err
}

func (g *Game) adminCall(ctx context.Context, req adminReq) (adminResp, error) {
	req.resp = make(chan adminResp, 1)
	select {
	case g.admin <- req:
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
	select {
	case r := <-req.resp:
		return r, r.err
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
}

func (g *Game) handleAdmin(req adminReq) {
	var resp adminResp
	switch req.kind {
	case adminState:
		resp.state = g.Snapshot()
	case adminKick:
		p := g.players[req.sessionID]
		if p == nil {
			resp.err = fmt.Errorf("kick %s: %w", req.sessionID, ErrSessionNotFound)
			break
		}
		p.Kick(req.reason)
	}
	select {
	case req.resp <- resp:
	default:
		// Client timed out; don't block the sim loop.
	}
}

// Snapshot must be called from the world loop goroutine.
func (g *Game) Snapshot() StateSnapshot {
	s := StateSnapshot{
		Tick:     g.tick.Load(),
		Entities: g.arena.Len(),
		Levels:   []LevelInfo{},
		Sessions: []SessionInfo{},
	}
	for _, l := range g.Levels() {
		s.Levels = append(s.Levels, LevelInfo{Name: l.Name, GameID: l.GameID, Root: uint32(l.Root)})
	}
	for _, p := range g.Players() {
		info := SessionInfo{
			SessionID: p.id,
			Number:    p.number,
			Username:  p.username,
			State:     p.state.String(),
			Avatar:    uint32(p.avatar.Handle()),
			GameState: p.gameState,
			IdleSec:   g.liveness.Idle(p.conn).Seconds(),
			JoinedAt:  p.joinedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if p.level != nil {
			info.Level = p.level.Name
		}
		s.Sessions = append(s.Sessions, info)
	}
	return s
}
