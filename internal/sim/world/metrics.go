package world

import (
	"sync/atomic"

	"yogiworld.io/internal/protocol"
)

// WorldMetrics is a read-only view of world runtime signals. It is published
// from the world goroutine once per tick and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Participants int `json:"participants"`
	Clients      int `json:"clients"`

	SnapshotsSent uint64 `json:"snapshots_sent"`
	SendsSkipped  uint64 `json:"sends_skipped"`

	ChatAccepted    uint64 `json:"chat_accepted"`
	ActionsAccepted uint64 `json:"actions_accepted"`
	ClaimsGranted   uint64 `json:"claims_granted"`
	ClaimsRejected  uint64 `json:"claims_rejected"`

	Drops map[string]uint64 `json:"drops"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox  int `json:"inbox"`
	Join   int `json:"join"`
	Leave  int `json:"leave"`
	Attach int `json:"attach"`
}

type counters struct {
	snapshotsSent   atomic.Uint64
	sendsSkipped    atomic.Uint64
	chatAccepted    atomic.Uint64
	actionsAccepted atomic.Uint64
	claimsGranted   atomic.Uint64
	claimsRejected  atomic.Uint64
	drops           []atomic.Uint64
}

// CountDrop records one rejected input. Safe from any goroutine; the
// transport uses it for frames that never reach the world.
func (w *World) CountDrop(reason string) {
	if i := protocol.ReasonIndex(reason); i >= 0 {
		w.counters.drops[i].Add(1)
	}
}

func (w *World) publishMetrics(stepMS float64) {
	drops := make(map[string]uint64, len(protocol.DropReasons))
	for i, r := range protocol.DropReasons {
		drops[r] = w.counters.drops[i].Load()
	}
	w.metrics.Store(WorldMetrics{
		Tick:            w.tick.Load(),
		Participants:    w.reg.Len(),
		Clients:         len(w.clients),
		SnapshotsSent:   w.counters.snapshotsSent.Load(),
		SendsSkipped:    w.counters.sendsSkipped.Load(),
		ChatAccepted:    w.counters.chatAccepted.Load(),
		ActionsAccepted: w.counters.actionsAccepted.Load(),
		ClaimsGranted:   w.counters.claimsGranted.Load(),
		ClaimsRejected:  w.counters.claimsRejected.Load(),
		Drops:           drops,
		QueueDepths: QueueDepths{
			Inbox:  len(w.inbox),
			Join:   len(w.join),
			Leave:  len(w.leave),
			Attach: len(w.attach),
		},
		StepMS: stepMS,
	})
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, ok := w.metrics.Load().(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
