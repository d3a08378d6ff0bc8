package reconcile

import (
	"math"
	"testing"
	"time"

	"yogiworld.io/internal/protocol"
)

func mustEncode(t *testing.T, v any) []byte {
	t.Helper()
	b, err := protocol.Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func bootstrapped(t *testing.T) *Reconciler {
	t.Helper()
	r := New()
	err := r.Apply(mustEncode(t, protocol.BootstrapMsg{
		Type: protocol.TypeBootstrap,
		You:  protocol.ParticipantView{ID: "me", Name: "Me", X: 1, Z: 2, Points: 5},
		Participants: []protocol.ParticipantView{
			{ID: "r1", Name: "Remote", X: 0, Z: 0},
		},
	}))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return r
}

func snapshot(t *testing.T, r *Reconciler, entries ...protocol.SnapshotEntry) {
	t.Helper()
	if err := r.Apply(mustEncode(t, protocol.SnapshotMsg{Type: protocol.TypeSnapshot, Participants: entries})); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
}

func TestBootstrap_SetsLocalAndRemotes(t *testing.T) {
	r := bootstrapped(t)
	if r.Local().ID != "me" || r.Local().Pos.X() != 1 || r.Local().Pos.Z() != 2 {
		t.Fatalf("unexpected local: %+v", r.Local())
	}
	if r.Points != 5 {
		t.Fatalf("expected 5 points, got %d", r.Points)
	}
	if _, ok := r.Remote("me"); ok {
		t.Fatalf("local participant must not be a remote")
	}
	if _, ok := r.Remote("r1"); !ok {
		t.Fatalf("remote missing")
	}
}

func TestFrame_ConvergesMonotonicallyWithoutOvershoot(t *testing.T) {
	r := bootstrapped(t)
	snapshot(t, r,
		protocol.SnapshotEntry{ID: "me", X: 99, Z: 99},
		protocol.SnapshotEntry{ID: "r1", Name: "Remote", X: 10, Z: -4, Heading: 1},
	)
	if r.Local().Pos.X() != 1 {
		t.Fatalf("snapshot must not move the local avatar")
	}
	rm, _ := r.Remote("r1")
	if rm.Pos.X() != 0 {
		t.Fatalf("remote snapped to target")
	}

	prev := math.Inf(1)
	for i := 0; i < 60; i++ {
		r.Frame()
		rm, _ = r.Remote("r1")
		d := rm.Target.Sub(rm.Pos).Len()
		if d > prev {
			t.Fatalf("frame %d: distance grew %v -> %v", i, prev, d)
		}
		if rm.Pos.X() > 10 || rm.Pos.Z() < -4 {
			t.Fatalf("frame %d: overshoot %v", i, rm.Pos)
		}
		prev = d
	}
	if prev > 0.01 {
		t.Fatalf("did not converge: %v", prev)
	}
	if math.Abs(rm.Heading-1) > 0.01 {
		t.Fatalf("heading did not converge: %v", rm.Heading)
	}
}

func TestFrame_HeadingTakesShortestArc(t *testing.T) {
	r := bootstrapped(t)
	snapshot(t, r, protocol.SnapshotEntry{ID: "r1", Name: "Remote", Heading: 3.0})
	// Force the current heading while keeping the target.
	r.remotes["r1"].Heading = 3.0
	snapshot(t, r, protocol.SnapshotEntry{ID: "r1", Name: "Remote", Heading: -3.0})
	r.Frame()
	rm, _ := r.Remote("r1")
	// The short way from 3.0 to -3.0 passes through pi, so the heading grows
	// (or wraps to a negative value near -pi).
	if rm.Heading > 0 && rm.Heading < 3.0 {
		t.Fatalf("heading went the long way: %v", rm.Heading)
	}
}

func TestNameTag_RebuiltOnlyOnChange(t *testing.T) {
	r := New()
	calls := map[string]int{}
	r.OnNameTag = func(id, name string) { calls[id+":"+name]++ }
	if err := r.Apply(mustEncode(t, protocol.BootstrapMsg{
		Type:         protocol.TypeBootstrap,
		You:          protocol.ParticipantView{ID: "me"},
		Participants: []protocol.ParticipantView{{ID: "r1", Name: "A"}},
	})); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	for i := 0; i < 5; i++ {
		snapshot(t, r, protocol.SnapshotEntry{ID: "r1", Name: "A"})
	}
	snapshot(t, r, protocol.SnapshotEntry{ID: "r1", Name: "B"})
	if calls["r1:A"] != 1 || calls["r1:B"] != 1 {
		t.Fatalf("unexpected name tag rebuilds: %v", calls)
	}
}

func TestLeft_RemovesRemote(t *testing.T) {
	r := bootstrapped(t)
	var left []string
	r.OnLeave = func(id string) { left = append(left, id) }
	for i := 0; i < 2; i++ {
		if err := r.Apply(mustEncode(t, protocol.LeftMsg{Type: protocol.TypeLeft, ID: "r1"})); err != nil {
			t.Fatalf("left: %v", err)
		}
	}
	if _, ok := r.Remote("r1"); ok {
		t.Fatalf("remote still present")
	}
	if len(left) != 1 {
		t.Fatalf("expected one leave callback, got %v", left)
	}
}

func TestSnapshot_DropsRemoteMissingWithoutLeftNotice(t *testing.T) {
	r := New()
	var left []string
	r.OnLeave = func(id string) { left = append(left, id) }
	if err := r.Apply(mustEncode(t, protocol.BootstrapMsg{
		Type: protocol.TypeBootstrap,
		You:  protocol.ParticipantView{ID: "me"},
		Participants: []protocol.ParticipantView{
			{ID: "a", Name: "A"},
			{ID: "b", Name: "B"},
		},
	})); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	for i := 0; i < 3; i++ {
		snapshot(t, r,
			protocol.SnapshotEntry{ID: "me"},
			protocol.SnapshotEntry{ID: "a", Name: "A"},
		)
	}
	if _, ok := r.Remote("b"); ok {
		t.Fatalf("b still rendered after snapshots without it")
	}
	if n := len(r.Remotes()); n != 1 {
		t.Fatalf("expected 1 remote, got %d", n)
	}
	if len(left) != 1 || left[0] != "b" {
		t.Fatalf("expected one leave callback for b, got %v", left)
	}
}

func TestActionEvent_SetsRemoteActionImmediately(t *testing.T) {
	r := bootstrapped(t)
	if err := r.Apply(mustEncode(t, protocol.ActionEventMsg{Type: protocol.TypeActionEvent, ID: "r1", Action: "wave", Until: 1})); err != nil {
		t.Fatalf("action-event: %v", err)
	}
	rm, _ := r.Remote("r1")
	if rm.Action != "wave" {
		t.Fatalf("expected wave, got %q", rm.Action)
	}
	// An expired action disappears with the next snapshot.
	snapshot(t, r, protocol.SnapshotEntry{ID: "r1", Name: "Remote"})
	rm, _ = r.Remote("r1")
	if rm.Action != "" {
		t.Fatalf("action not cleared by snapshot: %q", rm.Action)
	}
	// Events for unknown ids are ignored.
	if err := r.Apply(mustEncode(t, protocol.ActionEventMsg{Type: protocol.TypeActionEvent, ID: "ghost", Action: "wave"})); err != nil {
		t.Fatalf("action-event: %v", err)
	}
	if _, ok := r.Remote("ghost"); ok {
		t.Fatalf("action-event must not create remotes")
	}
}

func TestLocal_MoveAndPushSchedule(t *testing.T) {
	var l Local
	l.Move(1, 0, false, time.Second)
	if math.Abs(l.Pos.Z()-WalkSpeed) > 1e-9 {
		t.Fatalf("expected walk distance %v, got %v", WalkSpeed, l.Pos)
	}
	var d Local
	d.Move(1, 1, true, time.Second)
	if math.Abs(d.Pos.Len()-RunSpeed) > 1e-9 {
		t.Fatalf("diagonal should be normalized, got %v", d.Pos.Len())
	}

	pushes := 0
	for i := 0; i < 60; i++ {
		if l.Due(time.Second / 60) {
			pushes++
		}
	}
	if pushes < 11 || pushes > 12 {
		t.Fatalf("expected ~12 pushes per second, got %d", pushes)
	}
	if st := l.State(); st.Type != protocol.TypeState || st.Z != l.Pos.Z() {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestWrapAngle(t *testing.T) {
	for _, a := range []float64{0, 1, -1, 4, -4, 10, -10, math.Pi} {
		w := wrapAngle(a)
		if w <= -math.Pi-1e-12 || w > math.Pi+1e-12 {
			t.Fatalf("wrapAngle(%v) = %v", a, w)
		}
		if math.Abs(math.Remainder(w-a, 2*math.Pi)) > 1e-9 {
			t.Fatalf("wrapAngle(%v) changed direction: %v", a, w)
		}
	}
}
