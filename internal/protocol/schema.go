package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Inbound message types and their schema files.
var inboundSchemas = map[string]string{
	TypeHello:           "hello.schema.json",
	TypeMobyUpdate:      "moby_update.schema.json",
	TypeCreateMoby:      "create_moby.schema.json",
	TypeControllerInput: "controller_input.schema.json",
	TypeCollision:       "collision.schema.json",
	TypeRespawned:       "respawned.schema.json",
	TypeGameState:       "game_state.schema.json",
	TypePing:            "ping.schema.json",
}

var ErrUnknownType = errors.New("unknown message type")

// Validator checks inbound JSON frames against the embedded schemas.
// It is safe for concurrent use once built.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	for typ, file := range inboundSchemas {
		b, err := schemaFS.ReadFile("schemas/" + file)
		if err != nil {
			return nil, err
		}
		url := "mem://schemas/" + file
		if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", file, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

// Validate parses msg, checks it against the schema for its type, and returns
// the routing header.
func (v *Validator) Validate(msg []byte) (BaseMessage, error) {
	base, err := DecodeBase(msg)
	if err != nil {
		return BaseMessage{}, err
	}
	s := v.byType[base.Type]
	if s == nil {
		return base, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	var doc any
	if err := json.Unmarshal(msg, &doc); err != nil {
		return base, err
	}
	if err := s.Validate(doc); err != nil {
		return base, fmt.Errorf("%s: %w", base.Type, err)
	}
	return base, nil
}

// DecodeInbound validates msg and unmarshals it into its typed message.
func (v *Validator) DecodeInbound(msg []byte) (any, error) {
	base, err := v.Validate(msg)
	if err != nil {
		return nil, err
	}
	var out any
	switch base.Type {
	case TypeHello:
		out = &HelloMsg{}
	case TypeMobyUpdate:
		out = &MobyUpdateInMsg{}
	case TypeCreateMoby:
		out = &CreateMobyMsg{}
	case TypeControllerInput:
		out = &ControllerInputMsg{}
	case TypeCollision:
		out = &CollisionMsg{}
	case TypeRespawned:
		out = &RespawnedMsg{}
	case TypeGameState:
		out = &GameStateMsg{}
	case TypePing:
		out = &PingMsg{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	if err := json.Unmarshal(msg, out); err != nil {
		return nil, err
	}
	return out, nil
}
