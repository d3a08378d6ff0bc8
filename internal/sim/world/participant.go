package world

import (
	"encoding/json"
	"time"

	"golang.org/x/time/rate"

	"yogiworld.io/internal/protocol"
	"yogiworld.io/internal/sim/progress"
)

// Participant is the server-held record of one open connection. Position and
// heading are client-reported; everything reward-bearing goes through Ledger.
type Participant struct {
	ID      string
	Name    string
	Rank    string
	X, Y, Z float64
	Heading float64

	Ledger *progress.Ledger

	Action      protocol.Action
	ActionUntil time.Time

	LastChatAt time.Time

	// Opaque inventory attachment from the external lookup, if any.
	Profile json.RawMessage

	chatLimiter    *rate.Limiter
	actionLimiter  *rate.Limiter
	profilePending bool
}

// ActiveAction returns the action tag if it has not expired at now. Expired
// tags are never cleared; they are just ignored.
func (p *Participant) ActiveAction(now time.Time) (protocol.Action, bool) {
	if p.Action == "" || !now.Before(p.ActionUntil) {
		return "", false
	}
	return p.Action, true
}

func (p *Participant) PublicView() protocol.ParticipantView {
	return protocol.ParticipantView{
		ID:      p.ID,
		Name:    p.Name,
		Rank:    p.Rank,
		X:       p.X,
		Y:       p.Y,
		Z:       p.Z,
		Heading: p.Heading,
		Profile: p.Profile,
	}
}

// SelfView is the public view plus the owner-only ledger fields.
func (p *Participant) SelfView() protocol.ParticipantView {
	v := p.PublicView()
	v.Points = p.Ledger.Points()
	v.Visited = p.Ledger.VisitedFlags()
	return v
}

func (p *Participant) snapshotEntry(now time.Time) protocol.SnapshotEntry {
	e := protocol.SnapshotEntry{
		ID:      p.ID,
		X:       p.X,
		Y:       p.Y,
		Z:       p.Z,
		Heading: p.Heading,
		Name:    p.Name,
		Rank:    p.Rank,
	}
	if a, ok := p.ActiveAction(now); ok {
		e.Action = string(a)
	}
	return e
}

func planarDist2(a, b *Participant) float64 {
	dx := a.X - b.X
	dz := a.Z - b.Z
	return dx*dx + dz*dz
}
