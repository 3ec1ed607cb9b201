package main

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Client -> Server message types
const (
	MsgPlayerState = "player_state"
	MsgEatFood     = "eat_food"
)

// Server -> Client message types
const (
	MsgAssignID     = "assign_id"
	MsgMapState     = "map_state"
	MsgPlayerStates = "player_states"
)

// Direction is the heading attached to a body segment. Rendering only.
type Direction string

const (
	DirUp    Direction = "UP"
	DirDown  Direction = "DOWN"
	DirLeft  Direction = "LEFT"
	DirRight Direction = "RIGHT"
)

// Valid reports whether d is one of the four cardinal directions.
func (d Direction) Valid() bool {
	switch d {
	case DirUp, DirDown, DirLeft, DirRight:
		return true
	}
	return false
}

// Position is a grid cell. Bounds are not enforced server side.
type Position struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// BodySegment is one rendered cell of a participant's body
type BodySegment struct {
	X         int       `json:"x" msgpack:"x"`
	Y         int       `json:"y" msgpack:"y"`
	Direction Direction `json:"direction" msgpack:"direction" jsonschema:"enum=UP,enum=DOWN,enum=LEFT,enum=RIGHT"`
}

// PlayerState is the client-submitted snapshot of one participant, head first.
type PlayerState struct {
	PlayerID     int           `json:"player_id" msgpack:"player_id"`
	BodySegments []BodySegment `json:"body_segments" msgpack:"body_segments"`
}

// MapState is the world payload of a map_state message
type MapState struct {
	FoodPositions []Position `json:"food_positions" msgpack:"food_positions"`
}

// Envelope wraps every text message in both directions. Message holds the
// JSON-serialized payload as a string.
type Envelope struct {
	MessageType string `json:"message_type"`
	PlayerID    int    `json:"player_id"`
	Message     string `json:"message"`
}

// inEnvelope is the lenient inbound form. player_id is carried but unused.
type inEnvelope struct {
	MessageType string          `json:"message_type"`
	PlayerID    json.RawMessage `json:"player_id"`
	Message     json.RawMessage `json:"message"`
}

// Outbound is a server message before it is encoded for a connection.
// Payload is nil for assign_id.
type Outbound struct {
	Type     string
	PlayerID int
	Payload  any
}

// ProtocolError rejects an inbound message. It is logged and the message dropped.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Reason
}

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// ParseEnvelope decodes the outer wrapper and unwraps the nested message string.
func ParseEnvelope(raw []byte) (msgType string, message string, err error) {
	var env inEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", "", protocolErrorf("malformed envelope: %v", err)
	}
	if len(env.Message) == 0 {
		return env.MessageType, "", protocolErrorf("%q envelope has no message", env.MessageType)
	}
	if err := json.Unmarshal(env.Message, &message); err != nil {
		return env.MessageType, "", protocolErrorf("%q envelope message is not a string", env.MessageType)
	}
	return env.MessageType, message, nil
}

type rawSegment struct {
	X         json.RawMessage `json:"x"`
	Y         json.RawMessage `json:"y"`
	Direction json.RawMessage `json:"direction"`
}

// DecodePlayerState checks the shape of a player_state payload: numeric
// player_id, an array of body_segments, each with integer x, y and a known
// direction.
func DecodePlayerState(message string) (PlayerState, error) {
	var raw struct {
		PlayerID     json.RawMessage `json:"player_id"`
		BodySegments json.RawMessage `json:"body_segments"`
	}
	if err := json.Unmarshal([]byte(message), &raw); err != nil {
		return PlayerState{}, protocolErrorf("player_state: %v", err)
	}
	id, err := intField("player_id", raw.PlayerID)
	if err != nil {
		return PlayerState{}, err
	}
	if !isArray(raw.BodySegments) {
		return PlayerState{}, protocolErrorf("player_state: body_segments is not an array")
	}
	var segs []rawSegment
	if err := json.Unmarshal(raw.BodySegments, &segs); err != nil {
		return PlayerState{}, protocolErrorf("player_state: body_segments: %v", err)
	}

	state := PlayerState{PlayerID: id, BodySegments: make([]BodySegment, 0, len(segs))}
	for i, s := range segs {
		x, err := intField(fmt.Sprintf("body_segments[%d].x", i), s.X)
		if err != nil {
			return PlayerState{}, err
		}
		y, err := intField(fmt.Sprintf("body_segments[%d].y", i), s.Y)
		if err != nil {
			return PlayerState{}, err
		}
		var dir Direction
		if err := json.Unmarshal(s.Direction, &dir); err != nil || !dir.Valid() {
			return PlayerState{}, protocolErrorf("player_state: body_segments[%d].direction %s is not one of UP, DOWN, LEFT, RIGHT", i, string(s.Direction))
		}
		state.BodySegments = append(state.BodySegments, BodySegment{X: x, Y: y, Direction: dir})
	}
	return state, nil
}

// DecodePosition checks the shape of an eat_food payload
func DecodePosition(message string) (Position, error) {
	var raw struct {
		X json.RawMessage `json:"x"`
		Y json.RawMessage `json:"y"`
	}
	if err := json.Unmarshal([]byte(message), &raw); err != nil {
		return Position{}, protocolErrorf("eat_food: %v", err)
	}
	x, err := intField("x", raw.X)
	if err != nil {
		return Position{}, err
	}
	y, err := intField("y", raw.Y)
	if err != nil {
		return Position{}, err
	}
	return Position{X: x, Y: y}, nil
}

func intField(name string, raw json.RawMessage) (int, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, protocolErrorf("%s is missing", name)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, protocolErrorf("%s is not an integer: %s", name, string(raw))
	}
	return n, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
