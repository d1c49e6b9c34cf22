package server

import (
	"encoding/json"
	"fmt"

	"github.com/lawnchairsociety/chaintiles/internal/game"
)

// Inbound message types
const (
	MsgBegin    = "begin"
	MsgExtend   = "extend"
	MsgEnd      = "end"
	MsgSnapshot = "snapshot"
)

// Outbound message types
const (
	MsgState  = "state"
	MsgResult = "result"
	MsgError  = "error"
)

// ClientMessage is a gesture or request sent by a client.
type ClientMessage struct {
	Type string `json:"type"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

// ServerMessage is any frame the server sends. Only the fields of the
// given Type are set.
type ServerMessage struct {
	Type     string         `json:"type"`
	State    *game.Snapshot `json:"state,omitempty"`
	Op       string         `json:"op,omitempty"`
	Accepted *bool          `json:"accepted,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// decodeClientMessage parses and checks one inbound frame.
func decodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("malformed message: %w", err)
	}
	switch msg.Type {
	case MsgBegin, MsgExtend, MsgEnd, MsgSnapshot:
		return msg, nil
	case "":
		return msg, fmt.Errorf("message has no type")
	default:
		return msg, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func stateMessage(snap game.Snapshot) ServerMessage {
	return ServerMessage{Type: MsgState, State: &snap}
}

func resultMessage(op string, accepted bool) ServerMessage {
	return ServerMessage{Type: MsgResult, Op: op, Accepted: &accepted}
}

func errorMessage(format string, args ...any) ServerMessage {
	return ServerMessage{Type: MsgError, Message: fmt.Sprintf(format, args...)}
}
