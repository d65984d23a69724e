// Package observer serves read-only views of the running game to local
// operators: a JSON state endpoint and a websocket that streams state
// snapshots at a requested interval.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lawrence.mp/internal/sim/game"
)

const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeState     = "STATE"
)

type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IntervalMS      int    `json:"interval_ms,omitempty"`
}

type StateMsg struct {
	Type       string             `json:"type"`
	ObserverID string             `json:"observer_id"`
	State      game.StateSnapshot `json:"state"`
}

// StateSource is satisfied by *game.Game.
type StateSource interface {
	RequestState(ctx context.Context) (game.StateSnapshot, error)
}

type Server struct {
	src StateSource
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(src StateSource, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		src: src,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
		},
	}
}

func (s *Server) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := s.src.RequestState(ctx)
		if err != nil {
			http.Error(rw, "timeout", http.StatusGatewayTimeout)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(st)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		oid := fmt.Sprintf("O%d", s.nextID.Add(1))
		var interval atomic.Int64
		interval.Store(int64(sub.IntervalMS))
		s.log.Printf("[observer %s] subscribed from %s every %dms", oid, r.RemoteAddr, sub.IntervalMS)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			writeErr <- s.stream(ctx, conn, oid, &interval)
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				interval.Store(int64(sub.IntervalMS))
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn, oid string, interval *atomic.Int64) error {
	for {
		reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		st, err := s.src.RequestState(reqCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		} else {
			b, err := json.Marshal(StateMsg{Type: TypeState, ObserverID: oid, State: st})
			if err != nil {
				return err
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(interval.Load()) * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (SubscribeMsg, bool) {
	var sub SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != TypeSubscribe || sub.ProtocolVersion != Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *SubscribeMsg) {
	if sub.IntervalMS <= 0 {
		sub.IntervalMS = 1000
	}
	if sub.IntervalMS < 100 {
		sub.IntervalMS = 100
	}
	if sub.IntervalMS > 10000 {
		sub.IntervalMS = 10000
	}
}

// IsLoopbackRemote reports whether an http.Request.RemoteAddr is local.
func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
