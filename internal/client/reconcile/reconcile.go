package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"yogiworld.io/internal/protocol"
)

// EaseRatio is the fraction of the remaining gap closed per rendered frame.
const EaseRatio = 0.2

// Remote is another participant as seen by this client.
type Remote struct {
	ID      string
	Name    string
	Rank    string
	Action  string
	Pos     mgl64.Vec3
	Heading float64

	Target        mgl64.Vec3
	TargetHeading float64
}

// Reconciler applies server messages to the client view. It is not safe for
// concurrent use.
type Reconciler struct {
	local   Local
	remotes map[string]*Remote

	Points int
	Zones  []protocol.ZoneView
	Tick   uint64

	// OnNameTag fires when a remote appears or its display name changes.
	OnNameTag func(id, name string)
	// OnLeave fires when a remote is removed.
	OnLeave func(id string)
}

func New() *Reconciler {
	return &Reconciler{remotes: map[string]*Remote{}}
}

func (r *Reconciler) Local() *Local { return &r.local }

// Apply routes one server frame. Unknown types are ignored.
func (r *Reconciler) Apply(b []byte) error {
	base, err := protocol.DecodeBase(b)
	if err != nil {
		return err
	}
	switch base.Type {
	case protocol.TypeBootstrap:
		var m protocol.BootstrapMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		r.applyBootstrap(m)
	case protocol.TypeJoined:
		var m protocol.JoinedMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("participant-joined: %w", err)
		}
		r.upsert(m.Participant)
	case protocol.TypeLeft:
		var m protocol.LeftMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("participant-left: %w", err)
		}
		r.remove(m.ID)
	case protocol.TypeSnapshot:
		var m protocol.SnapshotMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		r.applySnapshot(m)
	case protocol.TypeActionEvent:
		var m protocol.ActionEventMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("action-event: %w", err)
		}
		if rm, ok := r.remotes[m.ID]; ok {
			rm.Action = m.Action
		}
	case protocol.TypePointsUpdate:
		var m protocol.PointsUpdateMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("points-update: %w", err)
		}
		if m.Total > r.Points {
			r.Points = m.Total
		}
	}
	return nil
}

func (r *Reconciler) applyBootstrap(m protocol.BootstrapMsg) {
	r.local.ID = m.You.ID
	r.local.Pos = mgl64.Vec3{m.You.X, m.You.Y, m.You.Z}
	r.local.Heading = m.You.Heading
	r.Points = m.You.Points
	r.Zones = append(r.Zones[:0], m.Zones...)
	for _, p := range m.Participants {
		r.upsert(p)
	}
}

// upsert creates a remote at its reported position. An existing remote only
// gets a new target.
func (r *Reconciler) upsert(v protocol.ParticipantView) {
	if v.ID == "" || v.ID == r.local.ID {
		return
	}
	pos := mgl64.Vec3{v.X, v.Y, v.Z}
	if rm, ok := r.remotes[v.ID]; ok {
		rm.Target = pos
		rm.TargetHeading = v.Heading
		r.rename(rm, v.Name)
		rm.Rank = v.Rank
		return
	}
	rm := &Remote{
		ID:            v.ID,
		Rank:          v.Rank,
		Pos:           pos,
		Heading:       v.Heading,
		Target:        pos,
		TargetHeading: v.Heading,
	}
	r.remotes[v.ID] = rm
	r.rename(rm, v.Name)
}

func (r *Reconciler) rename(rm *Remote, name string) {
	if rm.Name == name {
		return
	}
	rm.Name = name
	if r.OnNameTag != nil {
		r.OnNameTag(rm.ID, name)
	}
}

func (r *Reconciler) remove(id string) {
	if _, ok := r.remotes[id]; !ok {
		return
	}
	delete(r.remotes, id)
	if r.OnLeave != nil {
		r.OnLeave(id)
	}
}

// applySnapshot replaces the remote set: anyone missing from the snapshot is
// removed even if their participant-left notice never arrived.
func (r *Reconciler) applySnapshot(m protocol.SnapshotMsg) {
	r.Tick = m.Tick
	present := make(map[string]struct{}, len(m.Participants))
	for _, e := range m.Participants {
		if e.ID == r.local.ID {
			continue
		}
		present[e.ID] = struct{}{}
		r.upsert(protocol.ParticipantView{
			ID: e.ID, Name: e.Name, Rank: e.Rank,
			X: e.X, Y: e.Y, Z: e.Z, Heading: e.Heading,
		})
		r.remotes[e.ID].Action = e.Action
	}
	for id := range r.remotes {
		if _, ok := present[id]; !ok {
			r.remove(id)
		}
	}
}

// Frame eases every remote one step toward its target.
func (r *Reconciler) Frame() {
	for _, rm := range r.remotes {
		rm.Pos = rm.Pos.Add(rm.Target.Sub(rm.Pos).Mul(EaseRatio))
		rm.Heading = wrapAngle(rm.Heading + wrapAngle(rm.TargetHeading-rm.Heading)*EaseRatio)
	}
}

func (r *Reconciler) Remote(id string) (Remote, bool) {
	rm, ok := r.remotes[id]
	if !ok {
		return Remote{}, false
	}
	return *rm, true
}

// Remotes returns copies sorted by id.
func (r *Reconciler) Remotes() []Remote {
	out := make([]Remote, 0, len(r.remotes))
	for _, rm := range r.remotes {
		out = append(out, *rm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
