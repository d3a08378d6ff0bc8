package world

import (
	"time"

	"yogiworld.io/internal/protocol"
)

func (w *World) buildSnapshot(now time.Time) protocol.SnapshotMsg {
	entries := make([]protocol.SnapshotEntry, 0, w.reg.Len())
	w.reg.Each(func(p *Participant) {
		entries = append(entries, p.snapshotEntry(now))
	})
	return protocol.SnapshotMsg{
		Type:         protocol.TypeSnapshot,
		Tick:         w.tick.Load(),
		ServerTime:   now.UnixMilli(),
		Participants: entries,
	}
}

// broadcastSnapshot encodes one snapshot and offers it to every client. Slow
// clients miss a frame; the next tick carries fresh state anyway.
func (w *World) broadcastSnapshot() {
	start := time.Now()
	now := w.now()
	b, err := protocol.Encode(w.buildSnapshot(now))
	if err != nil {
		w.logger.Printf("snapshot encode: %v", err)
		return
	}
	for _, cl := range w.clients {
		if w.sendOrSkip(cl.Out, b) {
			w.counters.snapshotsSent.Add(1)
		}
	}
	w.tick.Add(1)
	w.publishMetrics(float64(time.Since(start).Microseconds()) / 1000.0)
}
