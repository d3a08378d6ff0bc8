package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"yogiworld.io/internal/protocol"
	"yogiworld.io/internal/sim/tuning"
	"yogiworld.io/internal/sim/world"
)

func startServer(t *testing.T) (*world.World, *Server, *httptest.Server) {
	t.Helper()
	tun := tuning.Defaults()
	w, err := world.New(world.ConfigFromTuning(tun), tun.Zones)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()

	srv := NewServer(w, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", srv.Handler())
	hs := httptest.NewServer(mux)
	t.Cleanup(func() {
		hs.Close()
		cancel()
	})
	return w, srv, hs
}

func dial(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until one of type typ arrives, skipping snapshots
// and anything else.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("bad frame %s: %v", b, err)
		}
		if m["type"] == typ {
			return m
		}
	}
}

func TestSession_BootstrapChatAndLeave(t *testing.T) {
	_, _, hs := startServer(t)

	a := dial(t, hs)
	bootA := readUntil(t, a, protocol.TypeBootstrap)
	idA := bootA["you"].(map[string]any)["id"].(string)
	if bootA["protocol_version"] != protocol.Version {
		t.Fatalf("unexpected version %v", bootA["protocol_version"])
	}

	b := dial(t, hs)
	bootB := readUntil(t, b, protocol.TypeBootstrap)
	idB := bootB["you"].(map[string]any)["id"].(string)
	if idA == idB {
		t.Fatalf("connection ids must differ")
	}
	joined := readUntil(t, a, protocol.TypeJoined)
	if joined["participant"].(map[string]any)["id"] != idB {
		t.Fatalf("unexpected joined %v", joined)
	}

	// Garbage and unknown frames are dropped without closing the session.
	_ = a.WriteMessage(websocket.TextMessage, []byte("not json"))
	_ = a.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`))
	if err := a.WriteJSON(protocol.ChatSendMsg{Type: protocol.TypeChatSend, Text: "  hi there "}); err != nil {
		t.Fatalf("write chat: %v", err)
	}
	chat := readUntil(t, b, protocol.TypeChatMessage)
	if chat["text"] != "hi there" || chat["sender_id"] != idA {
		t.Fatalf("unexpected chat %v", chat)
	}
	readUntil(t, a, protocol.TypeChatMessage)

	_ = b.Close()
	left := readUntil(t, a, protocol.TypeLeft)
	if left["id"] != idB {
		t.Fatalf("unexpected left %v", left)
	}
}

func TestSession_SnapshotsFlow(t *testing.T) {
	_, _, hs := startServer(t)
	a := dial(t, hs)
	readUntil(t, a, protocol.TypeBootstrap)
	if err := a.WriteJSON(protocol.StateMsg{Type: protocol.TypeState, X: 1.5, Y: 0, Z: -2, Heading: 0.5}); err != nil {
		t.Fatalf("write state: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := readUntil(t, a, protocol.TypeSnapshot)
		ps := snap["participants"].([]any)
		if len(ps) != 1 {
			t.Fatalf("expected 1 participant, got %d", len(ps))
		}
		e := ps[0].(map[string]any)
		if e["x"].(float64) == 1.5 && e["z"].(float64) == -2 {
			return
		}
	}
	t.Fatalf("state report never reflected in a snapshot")
}

func TestUpgradeRateLimited(t *testing.T) {
	_, srv, hs := startServer(t)
	srv.SetUpgradeLimit(0, 1)
	dial(t, hs)

	u := "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected bad handshake, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %+v", resp)
	}
}

func TestUpgradeLimiters_IdleEntriesPruned(t *testing.T) {
	srv := NewServer(nil, nil)
	clk := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return clk }
	srv.SetUpgradeLimit(1, 2)

	for i := 0; i < 50; i++ {
		if !srv.allowUpgrade(fmt.Sprintf("10.0.0.%d", i)) {
			t.Fatalf("first upgrade from a new ip refused")
		}
	}
	if !srv.allowUpgrade("10.9.9.9") || !srv.allowUpgrade("10.9.9.9") {
		t.Fatalf("burst refused")
	}
	if srv.allowUpgrade("10.9.9.9") {
		t.Fatalf("expected limit after burst")
	}
	if n := len(srv.ipLimiters); n != 51 {
		t.Fatalf("expected 51 limiters, got %d", n)
	}

	clk = clk.Add(limiterIdle + time.Second)
	srv.allowUpgrade("10.1.1.1")
	if n := len(srv.ipLimiters); n != 1 {
		t.Fatalf("expected idle limiters pruned, %d left", n)
	}
}

func TestUpgradeLimiters_ExhaustedEntryKept(t *testing.T) {
	srv := NewServer(nil, nil)
	clk := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return clk }
	srv.SetUpgradeLimit(0, 1)

	srv.allowUpgrade("10.0.0.1")
	clk = clk.Add(limiterIdle + time.Second)
	if srv.allowUpgrade("10.0.0.1") {
		t.Fatalf("pruning must not reset a limiter that never refilled")
	}
}
