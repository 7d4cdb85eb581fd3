// Package protocol defines the messages exchanged over the peer transport.
//
// Every frame is a JSON object {"type": <tag>, "payload": {...}}. The set of
// tags is closed: Decode refuses anything it does not know.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/tourney/internal/tournament"
)

var ErrUnknownType = errors.New("unknown message type")
var ErrMalformed = errors.New("malformed message")

type Type string

const (
	TypeJoinRequest  Type = "JOIN_REQUEST"
	TypeStateUpdate  Type = "STATE_UPDATE"
	TypeSubmitAnswer Type = "SUBMIT_ANSWER"
	TypeChatMessage  Type = "CHAT_MESSAGE"
	TypeStartRequest Type = "START_REQUEST"
	TypeError        Type = "ERROR"
)

type Message interface{ Kind() Type }

// JoinRequest: follower -> host.
type JoinRequest struct {
	Name string `json:"name"`
}

// StateUpdate: host -> every participant, after each accepted change.
type StateUpdate struct {
	Version int              `json:"version"`
	State   tournament.State `json:"state"`
}

// SubmitAnswer: follower -> host.
type SubmitAnswer struct {
	PlayerID    string `json:"playerId"`
	Answer      string `json:"answer"`
	TimeTakenMs int64  `json:"timeTakenMs"`
}

// ChatMessage: participant -> host -> every participant. Timestamp is in
// milliseconds since the epoch.
type ChatMessage struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// StartRequest: creator -> host.
type StartRequest struct {
	PlayerID string `json:"playerId"`
}

// Error: host -> the sender of a rejected message.
type Error struct {
	Reason string `json:"reason"`
}

func (JoinRequest) Kind() Type  { return TypeJoinRequest }
func (StateUpdate) Kind() Type  { return TypeStateUpdate }
func (SubmitAnswer) Kind() Type { return TypeSubmitAnswer }
func (ChatMessage) Kind() Type  { return TypeChatMessage }
func (StartRequest) Kind() Type { return TypeStartRequest }
func (Error) Kind() Type        { return TypeError }

type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", m.Kind(), err)
	}
	return json.Marshal(envelope{Type: m.Kind(), Payload: payload})
}

func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var m Message
	switch env.Type {
	case TypeJoinRequest:
		m = &JoinRequest{}
	case TypeStateUpdate:
		m = &StateUpdate{}
	case TypeSubmitAnswer:
		m = &SubmitAnswer{}
	case TypeChatMessage:
		m = &ChatMessage{}
	case TypeStartRequest:
		m = &StartRequest{}
	case TypeError:
		m = &Error{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, fmt.Errorf("%w: %s without payload", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Payload, m); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return deref(m), nil
}

// deref hands callers value types so a type switch needs one case per tag.
func deref(m Message) Message {
	switch v := m.(type) {
	case *JoinRequest:
		return *v
	case *StateUpdate:
		return *v
	case *SubmitAnswer:
		return *v
	case *ChatMessage:
		return *v
	case *StartRequest:
		return *v
	case *Error:
		return *v
	}
	return m
}
