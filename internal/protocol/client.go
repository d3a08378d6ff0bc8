package protocol

import (
	"bytes"
	"encoding/json"
	"math"
)

// ClientMessage is the closed set of messages a client may send. Every
// inbound frame is decoded into exactly one variant at the transport
// boundary; frames with an unknown type become Unrecognized.
type ClientMessage interface {
	clientMessage()
}

// StateReport is a movement self-report. Nil fields were missing or not a
// finite number and must be left untouched.
type StateReport struct {
	X, Y, Z, Heading *float64
}

// ProfileUpdate carries optional identity edits.
type ProfileUpdate struct {
	Name   *string
	Rank   *string
	Wallet *string
}

type ChatSend struct {
	Text *string
}

type ActionPlay struct {
	Action *string
}

type ZoneClaim struct {
	Zone *string
}

type Unrecognized struct {
	Type string
}

func (StateReport) clientMessage()   {}
func (ProfileUpdate) clientMessage() {}
func (ChatSend) clientMessage()      {}
func (ActionPlay) clientMessage()    {}
func (ZoneClaim) clientMessage()     {}
func (Unrecognized) clientMessage()  {}

// DecodeClient decodes one client frame. It fails only when the frame is not
// a JSON object; individual fields of the wrong type decode as absent.
func DecodeClient(b []byte) (ClientMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	typ := stringField(fields, "type")
	if typ == nil {
		return Unrecognized{}, nil
	}
	switch *typ {
	case TypeState:
		return StateReport{
			X:       floatField(fields, "x"),
			Y:       floatField(fields, "y"),
			Z:       floatField(fields, "z"),
			Heading: floatField(fields, "heading"),
		}, nil
	case TypeProfileUpdate:
		return ProfileUpdate{
			Name:   stringField(fields, "name"),
			Rank:   stringField(fields, "rank"),
			Wallet: stringField(fields, "wallet"),
		}, nil
	case TypeChatSend:
		return ChatSend{Text: stringField(fields, "text")}, nil
	case TypeActionPlay:
		return ActionPlay{Action: stringField(fields, "action")}, nil
	case TypeZoneClaim:
		return ZoneClaim{Zone: stringField(fields, "zone")}, nil
	default:
		return Unrecognized{Type: *typ}, nil
	}
}

var jsonNull = []byte("null")

func floatField(fields map[string]json.RawMessage, key string) *float64 {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// Outbound client frames, used by bots and tests.

type StateMsg struct {
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
}

type ProfileUpdateMsg struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Rank   string `json:"rank,omitempty"`
	Wallet string `json:"wallet,omitempty"`
}

type ChatSendMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ActionPlayMsg struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

type ZoneClaimMsg struct {
	Type string `json:"type"`
	Zone string `json:"zone"`
}
