package world

import (
	"context"
	"errors"

	"yogiworld.io/internal/protocol"
)

// StateView is the operator view served on the loopback admin endpoint.
type StateView struct {
	Tick         uint64                     `json:"tick"`
	ServerTime   int64                      `json:"server_time"`
	Participants []protocol.ParticipantView `json:"participants"`
}

type adminStateReq struct {
	resp chan StateView
}

var ErrStopped = errors.New("world stopped")

// AdminState asks the world goroutine for a full view, including ledger
// fields that are never broadcast.
func (w *World) AdminState(ctx context.Context) (StateView, error) {
	req := adminStateReq{resp: make(chan StateView, 1)}
	select {
	case w.admin <- req:
	case <-w.stop:
		return StateView{}, ErrStopped
	case <-ctx.Done():
		return StateView{}, ctx.Err()
	}
	select {
	case v := <-req.resp:
		return v, nil
	case <-w.stop:
		return StateView{}, ErrStopped
	case <-ctx.Done():
		return StateView{}, ctx.Err()
	}
}

func (w *World) stateView() StateView {
	v := StateView{
		Tick:         w.tick.Load(),
		ServerTime:   w.now().UnixMilli(),
		Participants: make([]protocol.ParticipantView, 0, w.reg.Len()),
	}
	w.reg.Each(func(p *Participant) {
		v.Participants = append(v.Participants, p.SelfView())
	})
	return v
}
