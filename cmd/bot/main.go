package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lawrence.mp/internal/protocol"
)

// Buttons the bot taps at random.
var buttons = []int{0x10, 0x20, 0x40, 0x80}

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "username")
		encoding = flag.String("encoding", protocol.EncodingJSON, "outbound encoding to request (json|msgpack)")
		hz       = flag.Int("hz", 30, "moby update rate")
		radius   = flag.Float64("radius", 5, "radius of the circle the bot walks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	codec, err := protocol.CodecFor(*encoding)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Username:        *name,
		Encoding:        codec.Name(),
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	var w protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	if err := codec.Decode(msg, &w); err != nil || w.Type != protocol.TypeWelcome {
		logger.Fatalf("expected WELCOME, got %s (%v)", msg, err)
	}
	logger.Printf("WELCOME session=%s avatar=%d tick_rate=%d encoding=%s", w.SessionID, w.Avatar, w.TickRateHz, w.Encoding)
	_ = conn.SetReadDeadline(time.Time{})

	var updates atomic.Uint64
	done := make(chan struct{})
	go func() {
		defer close(done)
		read(conn, codec, logger, &updates)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	move := time.NewTicker(time.Second / time.Duration(max(*hz, 1)))
	defer move.Stop()
	ping := time.NewTicker(time.Second)
	defer ping.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now()
	for {
		var out any
		select {
		case <-stop:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case <-done:
			return
		case <-ping.C:
			logger.Printf("moby updates received: %d", updates.Load())
			out = protocol.PingMsg{Type: protocol.TypePing}
		case now := <-move.C:
			if rng.Intn(20) == 0 {
				out = protocol.ControllerInputMsg{Type: protocol.TypeControllerInput, Action: protocol.InputTapped, Input: buttons[rng.Intn(len(buttons))]}
				break
			}
			out = step(now.Sub(start).Seconds(), *radius)
		}
		if err := conn.WriteJSON(out); err != nil {
			logger.Printf("write: %v", err)
			return
		}
	}
}

// step puts the avatar on a circle, facing along it.
func step(t, radius float64) protocol.MobyUpdateInMsg {
	a := t * 0.5
	return protocol.MobyUpdateInMsg{
		Type:   protocol.TypeMobyUpdate,
		X:      float32(radius * math.Cos(a)),
		Y:      float32(radius * math.Sin(a)),
		Z:      0,
		RotZ:   float32(a + math.Pi/2),
		Scale:  1,
		Alpha:  128,
		Active: true,
	}
}

func read(conn *websocket.Conn, codec protocol.Codec, logger *log.Logger, updates *atomic.Uint64) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var base protocol.BaseMessage
		if err := codec.Decode(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeMobyUpdate:
			updates.Add(1)
		case protocol.TypeGoToLevel:
			var m protocol.GoToLevelMsg
			if codec.Decode(msg, &m) == nil {
				logger.Printf("GO_TO_LEVEL %s (game id %d)", m.Level, m.GameID)
			}
		case protocol.TypeError:
			var m protocol.ErrorMsg
			if codec.Decode(msg, &m) == nil {
				logger.Printf("ERROR %s: %s (re %s)", m.Code, m.Message, m.InReplyTo)
			}
		case protocol.TypeDisconnect:
			var m protocol.DisconnectMsg
			if codec.Decode(msg, &m) == nil {
				logger.Printf("DISCONNECT: %s", m.Reason)
			}
			return
		}
	}
}
