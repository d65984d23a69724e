// Package ws is the player-facing websocket transport.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lawrence.mp/internal/protocol"
	"lawrence.mp/internal/sim/game"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second

	minQueue = 8
	maxQueue = 1024
)

// Host is the part of the game the transport talks to.
type Host interface {
	Join() chan<- game.JoinRequest
	Inbox() chan<- game.Envelope
}

type Options struct {
	// OutQueue is the per-client outbound queue used when HELLO does not ask
	// for one.
	OutQueue int
	Now      func() time.Time
}

type Server struct {
	host      Host
	log       *log.Logger
	validator *protocol.Validator
	opts      Options

	upgrader websocket.Upgrader
}

func NewServer(host Host, v *protocol.Validator, opts Options, logger *log.Logger) *Server {
	if opts.OutQueue <= 0 {
		opts.OutQueue = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		host:      host,
		log:       logger,
		validator: v,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		c := s.handshake(ws)
		if c == nil {
			return
		}
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			s.writeLoop(ctx, ws, c)
		}()

		s.readLoop(ctx, ws, c)

		c.Close()
		select {
		case <-writerDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) handshake(ws *websocket.Conn) *conn {
	_ = ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return nil
	}

	in, err := s.validator.DecodeInbound(msg)
	if err != nil {
		reject(ws, protocol.ErrProtoBadRequest, err.Error(), protocol.TypeHello)
		return nil
	}
	hello, ok := in.(*protocol.HelloMsg)
	if !ok {
		reject(ws, protocol.ErrProtoBadRequest, "expected HELLO", protocol.TypeHello)
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		reject(ws, protocol.ErrProtoVersion, fmt.Sprintf("server speaks %s", protocol.Version), protocol.TypeHello)
		return nil
	}
	codec, err := protocol.CodecFor(hello.Encoding)
	if err != nil {
		reject(ws, protocol.ErrProtoBadRequest, err.Error(), protocol.TypeHello)
		return nil
	}
	if hello.Username == "" {
		hello.Username = "player"
	}

	q := hello.MaxQueue
	if q <= 0 {
		q = s.opts.OutQueue
	}
	q = min(max(q, minQueue), maxQueue)

	c := newConn(uuid.NewString(), codec, q, s.log)
	c.touch(s.opts.Now())

	respCh := make(chan game.JoinResponse, 1)
	select {
	case s.host.Join() <- game.JoinRequest{Conn: c, Username: hello.Username, Resp: respCh}:
	case <-time.After(handshakeTimeout):
		reject(ws, protocol.ErrServerBusy, "join queue full", protocol.TypeHello)
		return nil
	}
	var resp game.JoinResponse
	select {
	case resp = <-respCh:
	case <-time.After(handshakeTimeout):
		// The game may still admit the session; it will be reaped as closed.
		c.Close()
		reject(ws, protocol.ErrServerBusy, "join timed out", protocol.TypeHello)
		return nil
	}
	if resp.Err != nil {
		c.Close()
		reject(ws, game.ErrorCode(resp.Err), resp.Err.Error(), protocol.TypeHello)
		return nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       resp.SessionID,
		Avatar:          resp.Avatar,
		TickRateHz:      resp.TickRateHz,
		Encoding:        codec.Name(),
	}
	b, err := codec.Encode(welcome)
	if err != nil {
		c.Close()
		return nil
	}
	if err := writeFrame(ws, codec, b); err != nil {
		c.Close()
		return nil
	}
	s.log.Printf("[session %s] %s connected from %s (%s, queue %d)", c.id, hello.Username, ws.RemoteAddr(), codec.Name(), q)
	return c
}

// writeLoop drains the outbound queue. After Close it flushes what is
// already queued, then sends a close frame.
func (s *Server) writeLoop(ctx context.Context, ws *websocket.Conn, c *conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-c.out:
			if err := writeFrame(ws, c.codec, b); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			drain(ws, c)
			return
		}
	}
}

// drain writes what is still queued, then closes the websocket and gives the
// client a second to answer before the reader gives up.
func drain(ws *websocket.Conn, c *conn) {
	for {
		select {
		case b := <-c.out:
			if err := writeFrame(ws, c.codec, b); err != nil {
				return
			}
		default:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			_ = ws.SetReadDeadline(time.Now().Add(time.Second))
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, c *conn) {
	for {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		mt, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		c.touch(s.opts.Now())

		if mt != websocket.TextMessage {
			c.Send(protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrProtoBadRequest, Message: "inbound frames must be JSON text"})
			continue
		}
		in, err := s.validator.DecodeInbound(msg)
		if err != nil {
			base, _ := protocol.DecodeBase(msg)
			c.Send(protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrProtoBadRequest, Message: err.Error(), InReplyTo: base.Type})
			continue
		}
		if _, ok := in.(*protocol.HelloMsg); ok {
			c.Send(protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrProtoBadRequest, Message: "already joined", InReplyTo: protocol.TypeHello})
			continue
		}

		select {
		case s.host.Inbox() <- game.Envelope{SessionID: c.id, Msg: in}:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func writeFrame(ws *websocket.Conn, codec protocol.Codec, b []byte) error {
	mt := websocket.TextMessage
	if codec.Binary() {
		mt = websocket.BinaryMessage
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteMessage(mt, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}

// reject answers a failed handshake with a JSON ERROR and closes the socket.
func reject(ws *websocket.Conn, code, message, inReplyTo string) {
	b, err := protocol.JSON.Encode(protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message, InReplyTo: inReplyTo})
	if err == nil {
		_ = writeFrame(ws, protocol.JSON, b)
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		time.Now().Add(time.Second))
}
