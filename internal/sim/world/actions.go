package world

import (
	"yogiworld.io/internal/protocol"
	"yogiworld.io/internal/sim/progress"
)

// performAction tags the participant with a short-lived action and pushes it
// to everyone right away instead of waiting for the next snapshot.
func (w *World) performAction(id string, a protocol.Action) {
	p, ok := w.reg.Get(id)
	if !ok {
		return
	}
	now := w.now()
	p.Action = a
	p.ActionUntil = now.Add(w.cfg.ActionDuration)
	w.counters.actionsAccepted.Add(1)
	w.broadcast(protocol.ActionEventMsg{
		Type:   protocol.TypeActionEvent,
		ID:     p.ID,
		Action: string(a),
		Until:  p.ActionUntil.UnixMilli(),
	})

	if a == protocol.GreetingAction && w.someoneNear(p) {
		w.recordGreeting(p)
	}
}

func (w *World) someoneNear(p *Participant) bool {
	r2 := w.cfg.GreetRadius * w.cfg.GreetRadius
	near := false
	w.reg.Each(func(o *Participant) {
		if near || o.ID == p.ID {
			return
		}
		if planarDist2(p, o) <= r2 {
			near = true
		}
	})
	return near
}

func (w *World) recordGreeting(p *Participant) {
	res, ok := p.Ledger.RecordGreeting(w.cfg.GreetGoal, w.cfg.GreetBonus)
	if !ok {
		return
	}
	w.unicast(p.ID, protocol.QuestUpdateMsg{
		Type:     protocol.TypeQuestUpdate,
		Code:     progress.QuestGreet,
		Progress: res.Progress,
		Goal:     res.Goal,
	})
	if res.Bonus != nil {
		w.sendGrant(p, *res.Bonus, "")
	}
}
