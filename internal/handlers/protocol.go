package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"impostor/internal/game"
)

// Client-to-server intents.
const (
	IntentCreateRoom     = "create-room"
	IntentJoinRoom       = "join-room"
	IntentLeaveRoom      = "leave-room"
	IntentUpdateSettings = "update-settings"
	IntentSetReady       = "set-ready"
	IntentStartGame      = "start-game"
	IntentSubmitHint     = "submit-hint"
	IntentVoteDecision   = "vote-decision"
	IntentVote           = "vote"
	IntentChat           = "chat"
	IntentAdvancePhase   = "advance-phase"
)

// frameSession tells a fresh connection which player id it acts as.
const frameSession = "session"

const codeRateLimited = "rate_limited"

// ClientFrame is an inbound websocket message.
type ClientFrame struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerFrame is an outbound event.
type ServerFrame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// WireError is the error part of an ack.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Ack answers exactly one ClientFrame.
type Ack struct {
	Type  string          `json:"type"`
	ID    json.RawMessage `json:"id,omitempty"`
	OK    bool            `json:"ok"`
	Error *WireError      `json:"error,omitempty"`
	Data  any             `json:"data,omitempty"`
}

func newAck(id json.RawMessage, data any, err error) Ack {
	if err != nil {
		return Ack{Type: "ack", ID: id, Error: wireError(err)}
	}
	return Ack{Type: "ack", ID: id, OK: true, Data: data}
}

func wireError(err error) *WireError {
	code := game.ErrorCode(err)
	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	return &WireError{Code: code, Message: msg}
}

func encodeFrame(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// only reachable with a programming error in a payload type
		b, _ = json.Marshal(ServerFrame{Type: string(game.EventError), Data: WireError{Code: "internal", Message: "internal error"}})
	}
	return b
}

var errBadPayload = errors.New("malformed payload")

// decodePayload unmarshals an optional payload.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", game.ErrInvalidInput, errBadPayload)
	}
	return nil
}

type namePayload struct {
	Name string `json:"name"`
}

type joinPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type readyPayload struct {
	Ready bool `json:"ready"`
}

type textPayload struct {
	Text string `json:"text"`
}

type choicePayload struct {
	Choice game.Decision `json:"choice"`
}

type targetPayload struct {
	TargetID string `json:"targetId"`
}

// RoomJoined answers create-room and join-room.
type RoomJoined struct {
	Room     game.RoomView `json:"room"`
	PlayerID string        `json:"playerId"`
}

// PlayerLeft is the player-left payload.
type PlayerLeft struct {
	PlayerID string `json:"playerId"`
	HostID   string `json:"hostId"`
}
