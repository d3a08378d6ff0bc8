package world

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"yogiworld.io/internal/protocol"
	"yogiworld.io/internal/sim/progress"
)

// claimZone validates a discovery claim against the server-held position.
// Every failure is a silent no-op for the client.
func (w *World) claimZone(id, zoneName string) bool {
	_, span := w.tracer.Start(context.Background(), "zone.claim")
	defer span.End()
	span.SetAttributes(
		attribute.String("participant.id", id),
		attribute.String("zone.name", zoneName),
	)

	outcome := w.tryClaim(id, zoneName)
	span.SetAttributes(attribute.String("zone.outcome", outcome))
	if outcome != "granted" {
		w.counters.claimsRejected.Add(1)
		w.CountDrop(outcome)
		return false
	}
	w.counters.claimsGranted.Add(1)
	return true
}

func (w *World) tryClaim(id, zoneName string) string {
	p, ok := w.reg.Get(id)
	if !ok {
		return protocol.DropUnknownActor
	}
	zone, ok := w.zones.Lookup(zoneName)
	if !ok {
		return protocol.DropUnknownZone
	}
	if !zone.Contains(p.X, p.Z, w.cfg.ClaimTolerance) {
		return protocol.DropTooFar
	}
	g, ok := p.Ledger.ClaimZone(zone.Name, w.cfg.ZoneReward)
	if !ok {
		return protocol.DropAlreadyClaim
	}
	w.sendGrant(p, g, zone.Name)
	w.unicast(p.ID, protocol.QuestUpdateMsg{
		Type:     protocol.TypeQuestUpdate,
		Code:     progress.QuestVisitZones,
		Progress: p.Ledger.VisitedCount(),
		Goal:     w.zones.Len(),
	})
	return "granted"
}
