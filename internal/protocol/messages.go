package protocol

import "encoding/json"

// ParticipantView is the public record of a participant. Points and Visited
// are only filled in for the receiving participant's own record.
type ParticipantView struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Rank    string          `json:"rank"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Z       float64         `json:"z"`
	Heading float64         `json:"heading"`
	Points  int             `json:"points,omitempty"`
	Visited map[string]bool `json:"visited,omitempty"`
	Profile json.RawMessage `json:"profile,omitempty"`
}

type ZoneView struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
	R    float64 `json:"r"`
}

// bootstrap (server -> client, unicast on connect)
type BootstrapMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	TickRateHz      int               `json:"tick_rate_hz"`
	You             ParticipantView   `json:"you"`
	Participants    []ParticipantView `json:"participants"`
	Zones           []ZoneView        `json:"zones"`
}

// participant-joined (server -> all other clients)
type JoinedMsg struct {
	Type        string          `json:"type"`
	Participant ParticipantView `json:"participant"`
}

// participant-left (server -> remaining clients)
type LeftMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// chat-message (server -> all clients)
type ChatMessageMsg struct {
	Type      string `json:"type"`
	SenderID  string `json:"sender_id"`
	Name      string `json:"name"`
	Rank      string `json:"rank"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

// action-event (server -> all clients, pushed immediately)
type ActionEventMsg struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Action string `json:"action"`
	Until  int64  `json:"until"` // unix millis
}

// points-update (server -> owning client)
type PointsUpdateMsg struct {
	Type   string `json:"type"`
	Total  int    `json:"total"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// quest-update (server -> owning client)
type QuestUpdateMsg struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Progress int    `json:"progress"`
	Goal     int    `json:"goal"`
}

type SnapshotEntry struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
	Name    string  `json:"name"`
	Rank    string  `json:"rank"`
	Action  string  `json:"action,omitempty"`
}

// snapshot (server -> all clients, once per tick)
type SnapshotMsg struct {
	Type         string          `json:"type"`
	Tick         uint64          `json:"tick"`
	ServerTime   int64           `json:"server_time"` // unix millis
	Participants []SnapshotEntry `json:"participants"`
}

// profile-attached (server -> owning client)
type ProfileAttachedMsg struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Profile json.RawMessage `json:"profile"`
}
