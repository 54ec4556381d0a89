/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package protocol defines the wire format spoken between the relay
// server, the authoritative host client, and player clients. The relay
// never interprets game semantics; everything game-shaped travels as a
// GAME_MESSAGE and is enforced host-side.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Top-level envelope events.
const (
	EventCreateSession = "CREATE_SESSION"
	EventSessionCreate = "SESSION_CREATED"
	EventJoinRequest   = "JOIN_REQUEST"
	EventJoinSuccess   = "JOIN_SUCCESS"
	EventGameMessage   = "GAME_MESSAGE"
	EventStateUpdate   = "STATE_UPDATE"
	EventError         = "ERROR"
	EventPing          = "ping"
	EventPong          = "pong"
)

// Application-level message types carried inside a GAME_MESSAGE payload.
const (
	TypeRoleAssignment   = "ROLE_ASSIGNMENT"
	TypeRolesAssigned    = "ROLES_ASSIGNED"
	TypeAllocationSubmit = "ALLOCATION_SUBMIT"
	TypeVoteSubmit       = "VOTE_SUBMIT"
	TypeProtest          = "PROTEST"
	TypeProtestLevel     = "PROTEST_LEVEL"
	TypeChatMessage      = "CHAT_MESSAGE"
	TypeExecutionOrder   = "EXECUTION_ORDER"
	TypeStartRound       = "START_ROUND"
	TypeGameResult       = "GAME_RESULT"
	TypeGameOver         = "GAME_OVER"
	TypeNameAnnounce     = "NAME_ANNOUNCE"
)

// Envelope is the unit of transport: an event name plus an opaque
// payload. Payloads are only decoded by whoever owns the event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, v any) (Envelope, error) {
	if v == nil {
		return Envelope{Event: event}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", event, err)
	}

	return Envelope{Event: event, Data: data}, nil
}

// MustEnvelope is for payloads built from plain structs and maps, which
// cannot fail to marshal.
func MustEnvelope(event string, v any) Envelope {
	env, err := NewEnvelope(event, v)
	if err != nil {
		panic(err)
	}
	return env
}

type CreateSession struct {
	Code string `json:"code,omitempty"`
}

type SessionCreated struct {
	Code string `json:"code"`
}

type JoinRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type JoinSuccess struct {
	Name string `json:"name"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// StateUpdate is the roster broadcast sent on every join and leave.
// Player order is join order and is stable for the session's lifetime.
type StateUpdate struct {
	Type        string   `json:"type"`
	PlayerCount int      `json:"playerCount"`
	Players     []string `json:"players"`
	SessionCode string   `json:"sessionCode"`
}

// GameMessage payloads are open-ended by design: the relay stamps
// "sender" and forwards without validating shape.
type GameMessage map[string]any

func (m GameMessage) Type() string {
	s, _ := m["type"].(string)
	return s
}

func (m GameMessage) Sender() string {
	s, _ := m["sender"].(string)
	return s
}

func (m GameMessage) ID() string {
	s, _ := m["id"].(string)
	return s
}

// String fetches a string field, tolerating absence.
func (m GameMessage) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Strings fetches a []string field regardless of whether it arrived as
// []any (decoded JSON) or []string (in-process delivery).
func (m GameMessage) Strings(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func DecodeGameMessage(data json.RawMessage) (GameMessage, error) {
	var m GameMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMessageID returns a collision-safe id for deduplicating broadcasts
// that are echoed back to their sender.
func NewMessageID() string {
	return uuid.NewString()
}
