package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeError   = "ERROR"
	TypePing    = "PING"
	TypePong    = "PONG"

	// Client -> server.
	TypeMobyUpdate      = "MOBY_UPDATE"
	TypeCreateMoby      = "CREATE_MOBY"
	TypeControllerInput = "CONTROLLER_INPUT"
	TypeCollision       = "COLLISION"
	TypeRespawned       = "RESPAWNED"
	TypeGameState       = "GAME_STATE"

	// Server -> client.
	TypeSetLabel       = "SET_LABEL"
	TypeDeleteLabel    = "DELETE_LABEL"
	TypeGoToLevel      = "GO_TO_LEVEL"
	TypeSetItem        = "SET_ITEM"
	TypeSetRespawn     = "SET_RESPAWN"
	TypeSetPosition    = "SET_POSITION"
	TypeSetPlayerState = "SET_PLAYER_STATE"
	TypeDeleteMoby     = "DELETE_MOBY"
	TypeDisconnect     = "DISCONNECT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
