package protocol

// Outbound frame encodings, negotiated in HELLO.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Username        string `json:"username"`
	Encoding        string `json:"encoding,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Avatar          uint32 `json:"avatar"`
	TickRateHz      int    `json:"tick_rate_hz"`
	Encoding        string `json:"encoding"`
}

// MOBY_UPDATE (server -> client): full state of one entity. Rotation is in
// degrees, alpha in [0,1].
type MobyUpdateMsg struct {
	Type              string  `json:"type"`
	UUID              uint32  `json:"uuid"`
	Parent            uint32  `json:"parent,omitempty"`
	X                 float32 `json:"x"`
	Y                 float32 `json:"y"`
	Z                 float32 `json:"z"`
	RotX              float32 `json:"rot_x"`
	RotY              float32 `json:"rot_y"`
	RotZ              float32 `json:"rot_z"`
	Scale             float32 `json:"scale"`
	Alpha             float32 `json:"alpha"`
	State             uint16  `json:"state"`
	AnimationID       int     `json:"animation_id"`
	AnimationDuration int     `json:"animation_duration"`
	Active            bool    `json:"active"`
}

// MOBY_UPDATE (client -> server). UUID 0 addresses the sender's own avatar.
// Rotation is in radians and Alpha is the game's raw 0-255 value, where 128
// is fully opaque.
type MobyUpdateInMsg struct {
	Type              string  `json:"type"`
	UUID              uint32  `json:"uuid"`
	X                 float32 `json:"x"`
	Y                 float32 `json:"y"`
	Z                 float32 `json:"z"`
	RotX              float32 `json:"rot_x"`
	RotY              float32 `json:"rot_y"`
	RotZ              float32 `json:"rot_z"`
	Scale             float32 `json:"scale"`
	Alpha             uint8   `json:"alpha"`
	State             uint16  `json:"state"`
	AnimationID       int     `json:"animation_id"`
	AnimationDuration int     `json:"animation_duration"`
	Active            bool    `json:"active"`
}

type CreateMobyMsg struct {
	Type   string `json:"type"`
	Parent uint32 `json:"parent,omitempty"`
}

// Controller input actions.
const (
	InputHeld     = "HELD"
	InputReleased = "RELEASED"
	InputTapped   = "TAPPED"
)

type ControllerInputMsg struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Input  int    `json:"input"`
}

type CollisionMsg struct {
	Type       string `json:"type"`
	Collider   uint32 `json:"collider"`
	Collidee   uint32 `json:"collidee"`
	Aggressive bool   `json:"aggressive,omitempty"`
}

type RespawnedMsg struct {
	Type string `json:"type"`
}

type GameStateMsg struct {
	Type  string `json:"type"`
	State int    `json:"state"`
}

type PingMsg struct {
	Type string `json:"type"`
}

type PongMsg struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
}

type SetLabelMsg struct {
	Type  string `json:"type"`
	Slot  uint16 `json:"slot"`
	Text  string `json:"text"`
	X     uint16 `json:"x"`
	Y     uint16 `json:"y"`
	Color uint32 `json:"color"`
}

type DeleteLabelMsg struct {
	Type string `json:"type"`
	Slot uint16 `json:"slot"`
}

type GoToLevelMsg struct {
	Type   string `json:"type"`
	Level  string `json:"level"`
	GameID int    `json:"game_id"`
}

type SetItemMsg struct {
	Type  string `json:"type"`
	Item  uint16 `json:"item"`
	Equip bool   `json:"equip"`
}

type SetRespawnMsg struct {
	Type string  `json:"type"`
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
	Z    float32 `json:"z"`
	RotZ float32 `json:"rot_z"`
}

type SetPositionMsg struct {
	Type string  `json:"type"`
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
	Z    float32 `json:"z"`
}

type SetPlayerStateMsg struct {
	Type  string `json:"type"`
	State uint16 `json:"state"`
}

type DeleteMobyMsg struct {
	Type string `json:"type"`
	UUID uint32 `json:"uuid"`
}

type DisconnectMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type ErrorMsg struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	InReplyTo string `json:"in_reply_to,omitempty"`
}
