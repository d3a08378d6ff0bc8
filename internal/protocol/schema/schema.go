// Package schema reflects JSON schemas for the wire protocol so client
// authors can validate frames without reading Go sources.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/invopop/jsonschema"

	"yogiworld.io/internal/protocol"
)

// Messages maps a schema file stem to the message it describes.
var Messages = map[string]any{
	protocol.TypeBootstrap:    new(protocol.BootstrapMsg),
	protocol.TypeJoined:       new(protocol.JoinedMsg),
	protocol.TypeLeft:         new(protocol.LeftMsg),
	protocol.TypeChatMessage:  new(protocol.ChatMessageMsg),
	protocol.TypeActionEvent:  new(protocol.ActionEventMsg),
	protocol.TypePointsUpdate: new(protocol.PointsUpdateMsg),
	protocol.TypeQuestUpdate:  new(protocol.QuestUpdateMsg),
	protocol.TypeSnapshot:     new(protocol.SnapshotMsg),

	protocol.TypeState:         new(protocol.StateMsg),
	protocol.TypeProfileUpdate: new(protocol.ProfileUpdateMsg),
	protocol.TypeChatSend:      new(protocol.ChatSendMsg),
	protocol.TypeActionPlay:    new(protocol.ActionPlayMsg),
	protocol.TypeZoneClaim:     new(protocol.ZoneClaimMsg),
}

// Names returns the message names in sorted order.
func Names() []string {
	out := make([]string, 0, len(Messages))
	for name := range Messages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reflect builds the schema for one message.
func Reflect(name string) (*jsonschema.Schema, error) {
	v, ok := Messages[name]
	if !ok {
		return nil, fmt.Errorf("unknown message %q", name)
	}
	r := jsonschema.Reflector{}
	s := r.Reflect(v)
	s.Title = name
	return s, nil
}

// Marshal returns the indented JSON form of a message schema.
func Marshal(name string) ([]byte, error) {
	s, err := Reflect(name)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	return append(b, '\n'), nil
}

// WriteAll writes <dir>/<name>.schema.json for every message.
func WriteAll(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	for _, name := range Names() {
		b, err := Marshal(name)
		if err != nil {
			return err
		}
		outPath := filepath.Join(dir, name+".schema.json")
		tmpPath := outPath + ".tmp"
		if err := os.WriteFile(tmpPath, b, 0o644); err != nil {
			return fmt.Errorf("write temp schema: %w", err)
		}
		if err := os.Rename(tmpPath, outPath); err != nil {
			return fmt.Errorf("replace schema: %w", err)
		}
	}
	return nil
}
