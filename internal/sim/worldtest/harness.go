package worldtest

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"yogiworld.io/internal/protocol"
	"yogiworld.io/internal/sim/tuning"
	world "yogiworld.io/internal/sim/world"
)

// Harness drives a world through its exported API only:
// - Join/Leave/Send feed StepOnce
// - every session's Out channel is drained after each step
// - the clock is fake and only moves when Advance is called
type Harness struct {
	T     *testing.T
	W     *world.World
	Clock time.Time

	sessions map[string]*session
}

type session struct {
	ID   string
	Out  chan []byte
	Msgs [][]byte
}

func NewHarness(t *testing.T, tune tuning.Tuning) *Harness {
	t.Helper()
	h := &Harness{
		T:        t,
		Clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		sessions: map[string]*session{},
	}
	cfg := world.ConfigFromTuning(tune)
	cfg.Now = func() time.Time { return h.Clock }
	cfg.Rand = rand.New(rand.NewSource(7))
	w, err := world.New(cfg, tune.Zones)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	h.W = w
	return h
}

func (h *Harness) Advance(d time.Duration) { h.Clock = h.Clock.Add(d) }

func (h *Harness) Join(id string) {
	h.T.Helper()
	out := make(chan []byte, 256)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{ID: id, Out: out, Resp: resp}}, nil, nil)
	if jr := <-resp; !jr.OK {
		h.T.Fatalf("join %s refused", id)
	}
	h.sessions[id] = &session{ID: id, Out: out}
	h.drainAll()
}

func (h *Harness) Leave(id string) {
	h.T.Helper()
	h.W.StepOnce(nil, []string{id}, nil)
	h.drainAll()
}

// Send decodes raw the same way the transport does and applies it.
func (h *Harness) Send(id string, v any) {
	h.T.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		h.T.Fatalf("marshal: %v", err)
	}
	msg, err := protocol.DecodeClient(b)
	if err != nil {
		h.T.Fatalf("decode %s: %v", b, err)
	}
	h.W.StepOnce(nil, nil, []world.Envelope{{ID: id, Msg: msg}})
	h.drainAll()
}

func (h *Harness) Step() {
	h.W.StepOnce(nil, nil, nil)
	h.drainAll()
}

// Frames returns every raw frame id has received so far.
func (h *Harness) Frames(id string) [][]byte {
	h.T.Helper()
	s := h.sessions[id]
	if s == nil {
		h.T.Fatalf("unknown session %q", id)
	}
	return s.Msgs
}

// OfType returns decoded frames of one type received by id.
func (h *Harness) OfType(id, typ string) []map[string]any {
	h.T.Helper()
	var out []map[string]any
	for _, b := range h.Frames(id) {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			h.T.Fatalf("bad frame %s: %v", b, err)
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// LastSnapshot returns the newest snapshot id received.
func (h *Harness) LastSnapshot(id string) protocol.SnapshotMsg {
	h.T.Helper()
	frames := h.Frames(id)
	for i := len(frames) - 1; i >= 0; i-- {
		base, err := protocol.DecodeBase(frames[i])
		if err != nil || base.Type != protocol.TypeSnapshot {
			continue
		}
		var s protocol.SnapshotMsg
		if err := json.Unmarshal(frames[i], &s); err != nil {
			h.T.Fatalf("snapshot: %v", err)
		}
		return s
	}
	h.T.Fatalf("%s has no snapshot", id)
	return protocol.SnapshotMsg{}
}

func (h *Harness) drainAll() {
	for _, s := range h.sessions {
		for {
			select {
			case b := <-s.Out:
				s.Msgs = append(s.Msgs, b)
				continue
			default:
			}
			break
		}
	}
}
