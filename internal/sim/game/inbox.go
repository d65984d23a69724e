package game

import (
	"fmt"

	"lawrence.mp/internal/protocol"
	"lawrence.mp/internal/sim/entity"
)

// handleEnvelope applies one inbound message. Errors stay scoped to the
// sending session: they are logged and reported back in an ERROR frame.
func (g *Game) handleEnvelope(tick uint64, env Envelope) {
	p := g.players[env.SessionID]
	if p == nil || p.state.Terminal() {
		return
	}
	g.cur.messages++
	err := g.apply(tick, p, env.Msg)
	if err == nil {
		return
	}
	g.cur.errors++
	g.stats.messageErrors.Add(1)
	typ := messageType(env.Msg)
	g.log.Printf("[session %s] %s: %v", p.id, typ, err)
	p.conn.Send(protocol.ErrorMsg{
		Type:      protocol.TypeError,
		Code:      ErrorCode(err),
		Message:   err.Error(),
		InReplyTo: typ,
	})
}

func (g *Game) apply(tick uint64, p *Player, msg any) error {
	switch m := msg.(type) {
	case *protocol.MobyUpdateInMsg:
		return p.UpdateMoby(m)
	case *protocol.CreateMobyMsg:
		_, err := p.CreateMoby()
		return err
	case *protocol.ControllerInputMsg:
		switch m.Action {
		case protocol.InputHeld:
			p.ControllerInputHeld(m.Input)
		case protocol.InputReleased:
			p.ControllerInputReleased(m.Input)
		case protocol.InputTapped:
			p.ControllerInputTapped(m.Input)
		default:
			return fmt.Errorf("controller input action %q: %w", m.Action, ErrBadMessage)
		}
		return nil
	case *protocol.CollisionMsg:
		return p.Collision(entity.Handle(m.Collider), entity.Handle(m.Collidee), m.Aggressive)
	case *protocol.RespawnedMsg:
		p.PlayerRespawned()
		return nil
	case *protocol.GameStateMsg:
		p.GameStateChanged(m.State)
		return nil
	case *protocol.PingMsg:
		p.conn.Send(protocol.PongMsg{Type: protocol.TypePong, Tick: tick})
		return nil
	default:
		return fmt.Errorf("%T: %w", msg, ErrBadMessage)
	}
}

func messageType(msg any) string {
	switch msg.(type) {
	case *protocol.MobyUpdateInMsg:
		return protocol.TypeMobyUpdate
	case *protocol.CreateMobyMsg:
		return protocol.TypeCreateMoby
	case *protocol.ControllerInputMsg:
		return protocol.TypeControllerInput
	case *protocol.CollisionMsg:
		return protocol.TypeCollision
	case *protocol.RespawnedMsg:
		return protocol.TypeRespawned
	case *protocol.GameStateMsg:
		return protocol.TypeGameState
	case *protocol.PingMsg:
		return protocol.TypePing
	default:
		return fmt.Sprintf("%T", msg)
	}
}
