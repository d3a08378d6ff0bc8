package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "1.0"

// Message types (server -> client).
const (
	TypeBootstrap       = "bootstrap"
	TypeJoined          = "participant-joined"
	TypeLeft            = "participant-left"
	TypeChatMessage     = "chat-message"
	TypeActionEvent     = "action-event"
	TypePointsUpdate    = "points-update"
	TypeQuestUpdate     = "quest-update"
	TypeSnapshot        = "snapshot"
	TypeProfileAttached = "profile-attached"
)

// Message types (client -> server).
const (
	TypeState         = "state"
	TypeProfileUpdate = "profile-update"
	TypeChatSend      = "chat-send"
	TypeActionPlay    = "action-play"
	TypeZoneClaim     = "zone-claim"
)

// BaseMessage lets us route JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Encode marshals a server message. Every server message carries its own
// type field, so the result is ready to be written to the wire.
func Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	return json.Marshal(v)
}
