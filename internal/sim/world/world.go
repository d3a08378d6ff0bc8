package world

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"yogiworld.io/internal/protocol"
	"yogiworld.io/internal/sim/geofence"
	"yogiworld.io/internal/sim/progress"
	"yogiworld.io/internal/sim/tuning"
)

type JoinRequest struct {
	// ID is assigned by the transport and must be unique while connected.
	ID   string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	ID string
	OK bool
}

// Envelope carries one decoded client message into the world goroutine.
type Envelope struct {
	ID  string
	Msg protocol.ClientMessage
}

// ProfileAttachment is the result of an inventory lookup. Lookups run outside
// the world goroutine and post their result back through Attach.
type ProfileAttachment struct {
	ID      string
	Wallet  string
	Profile json.RawMessage
	Err     error
}

// ProfileSource resolves a wallet to an opaque inventory document.
type ProfileSource interface {
	Profile(ctx context.Context, wallet string) (json.RawMessage, error)
}

// Journal receives join/leave/reward/chat entries. Implementations must not
// block the caller for long.
type Journal interface {
	WriteEntry(entry JournalEntry) error
}

const (
	EntryJoin   = "join"
	EntryLeave  = "leave"
	EntryReward = "reward"
	EntryChat   = "chat"
)

type JournalEntry struct {
	Time          time.Time `json:"time"`
	Kind          string    `json:"kind"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name,omitempty"`
	Zone          string    `json:"zone,omitempty"`
	Delta         int       `json:"delta,omitempty"`
	Total         int       `json:"total,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Text          string    `json:"text,omitempty"`
}

type clientState struct {
	Out chan []byte
}

// World is the authoritative session state. Everything below is touched only
// from the Run goroutine; other goroutines talk to it through channels.
type World struct {
	cfg   WorldConfig
	zones *geofence.Index
	reg   *Registry

	clients map[string]*clientState

	inbox  chan Envelope
	join   chan JoinRequest
	attach chan ProfileAttachment
	leave  chan string
	admin  chan adminStateReq
	stop   chan struct{}

	tick atomic.Uint64

	journal  Journal
	profiles ProfileSource

	logger *log.Logger
	tracer trace.Tracer

	counters counters
	metrics  atomic.Value // WorldMetrics
}

func New(cfg WorldConfig, zones []tuning.Zone) (*World, error) {
	cfg.applyDefaults()
	gz := make([]geofence.Zone, 0, len(zones))
	for _, z := range zones {
		gz = append(gz, geofence.Zone{Name: z.Name, X: z.X, Z: z.Z, R: z.R})
	}
	idx, err := geofence.NewIndex(gz)
	if err != nil {
		return nil, fmt.Errorf("zones: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	rng := cfg.Rand
	half := cfg.SpawnHalfExtent
	w := &World{
		cfg:   cfg,
		zones: idx,
		reg: newRegistry(registryConfig{
			spawn: func() (float64, float64) {
				return (rng.Float64() - 0.5) * 2 * half, (rng.Float64() - 0.5) * 2 * half
			},
			defaultRank: cfg.Ranks[0],
			chatEvery:   rate.Every(cfg.ChatMinInterval),
			actionEvery: rate.Every(cfg.ActionMinInterval),
			actionBurst: cfg.ActionBurst,
		}),
		clients: map[string]*clientState{},
		inbox:   make(chan Envelope, 1024),
		join:    make(chan JoinRequest, 64),
		attach:  make(chan ProfileAttachment, 64),
		leave:   make(chan string, 64),
		admin:   make(chan adminStateReq, 8),
		stop:    make(chan struct{}),
		logger:  logger,
		tracer:  otel.Tracer("yogiworld.io/internal/sim/world"),
	}
	w.counters.drops = make([]atomic.Uint64, len(protocol.DropReasons))
	w.publishMetrics(0)
	return w, nil
}

func (w *World) SetJournal(j Journal)             { w.journal = j }
func (w *World) SetProfileSource(s ProfileSource) { w.profiles = s }

func (w *World) Inbox() chan<- Envelope           { return w.inbox }
func (w *World) Join() chan<- JoinRequest         { return w.join }
func (w *World) Attach() chan<- ProfileAttachment { return w.attach }
func (w *World) Leave() chan<- string             { return w.leave }

func (w *World) CurrentTick() uint64    { return w.tick.Load() }
func (w *World) Config() WorldConfig    { return w.cfg }
func (w *World) Zones() []geofence.Zone { return w.zones.All() }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Printf("world running tick_hz=%d zones=%d", w.cfg.TickRateHz, w.zones.Len())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			w.handleJoin(req)
		case id := <-w.leave:
			w.handleLeave(id)
		case env := <-w.inbox:
			w.handleMessage(env)
		case att := <-w.attach:
			w.handleAttach(att)
		case req := <-w.admin:
			req.resp <- w.stateView()
		case <-ticker.C:
			w.broadcastSnapshot()
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) now() time.Time { return w.cfg.Now() }

func (w *World) handleJoin(req JoinRequest) {
	p, ok := w.reg.Register(req.ID)
	if !ok {
		if req.Resp != nil {
			req.Resp <- JoinResponse{ID: req.ID}
		}
		return
	}
	w.clients[p.ID] = &clientState{Out: req.Out}

	others := make([]protocol.ParticipantView, 0, w.reg.Len())
	w.reg.Each(func(o *Participant) {
		if o.ID != p.ID {
			others = append(others, o.PublicView())
		}
	})
	zones := w.zones.All()
	zv := make([]protocol.ZoneView, 0, len(zones))
	for _, z := range zones {
		zv = append(zv, protocol.ZoneView{Name: z.Name, X: z.X, Z: z.Z, R: z.R})
	}
	// Daily bonus before bootstrap so the self record already carries it.
	grant, granted := p.Ledger.DailyBonus(w.now(), w.cfg.DailyBonus)

	w.unicast(p.ID, protocol.BootstrapMsg{
		Type:            protocol.TypeBootstrap,
		ProtocolVersion: protocol.Version,
		TickRateHz:      w.cfg.TickRateHz,
		You:             p.SelfView(),
		Participants:    others,
		Zones:           zv,
	})
	w.broadcastExcept(p.ID, protocol.JoinedMsg{Type: protocol.TypeJoined, Participant: p.PublicView()})
	w.writeJournal(JournalEntry{Kind: EntryJoin, ParticipantID: p.ID, Name: p.Name})
	if granted {
		w.sendGrant(p, grant, "")
	}
	w.logger.Printf("join id=%s participants=%d", p.ID, w.reg.Len())
	if req.Resp != nil {
		req.Resp <- JoinResponse{ID: p.ID, OK: true}
	}
}

func (w *World) handleLeave(id string) {
	p, ok := w.reg.Get(id)
	if !ok {
		return
	}
	w.reg.Unregister(id)
	delete(w.clients, id)
	w.broadcast(protocol.LeftMsg{Type: protocol.TypeLeft, ID: id})
	w.writeJournal(JournalEntry{Kind: EntryLeave, ParticipantID: id, Name: p.Name, Total: p.Ledger.Points()})
	w.logger.Printf("leave id=%s participants=%d", id, w.reg.Len())
}

func (w *World) handleAttach(att ProfileAttachment) {
	p, ok := w.reg.Get(att.ID)
	if !ok {
		return
	}
	p.profilePending = false
	if att.Err != nil {
		w.logger.Printf("inventory lookup id=%s: %v", att.ID, att.Err)
		return
	}
	if len(att.Profile) == 0 || !json.Valid(att.Profile) {
		return
	}
	p.Profile = append(json.RawMessage(nil), att.Profile...)
	w.unicast(p.ID, protocol.ProfileAttachedMsg{Type: protocol.TypeProfileAttached, ID: p.ID, Profile: p.Profile})
}

func (w *World) sendGrant(p *Participant, g progress.Grant, zone string) {
	w.unicast(p.ID, protocol.PointsUpdateMsg{
		Type:   protocol.TypePointsUpdate,
		Total:  g.Total,
		Delta:  g.Delta,
		Reason: g.Reason,
	})
	w.writeJournal(JournalEntry{
		Kind:          EntryReward,
		ParticipantID: p.ID,
		Name:          p.Name,
		Zone:          zone,
		Delta:         g.Delta,
		Total:         g.Total,
		Reason:        g.Reason,
	})
}

func (w *World) writeJournal(e JournalEntry) {
	if w.journal == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = w.now().UTC()
	}
	if err := w.journal.WriteEntry(e); err != nil {
		w.logger.Printf("journal: %v", err)
	}
}

func (w *World) unicast(id string, msg any) {
	cl, ok := w.clients[id]
	if !ok {
		return
	}
	b, err := protocol.Encode(msg)
	if err != nil {
		w.logger.Printf("encode: %v", err)
		return
	}
	w.sendOrSkip(cl.Out, b)
}

func (w *World) broadcast(msg any) { w.broadcastExcept("", msg) }

func (w *World) broadcastExcept(skip string, msg any) {
	b, err := protocol.Encode(msg)
	if err != nil {
		w.logger.Printf("encode: %v", err)
		return
	}
	for id, cl := range w.clients {
		if id == skip {
			continue
		}
		w.sendOrSkip(cl.Out, b)
	}
}

// sendOrSkip offers b to a client queue without blocking. A full queue means
// the client misses this message; it is never disconnected for it.
func (w *World) sendOrSkip(ch chan []byte, b []byte) bool {
	if ch == nil {
		return false
	}
	select {
	case ch <- b:
		return true
	default:
		w.counters.sendsSkipped.Add(1)
		return false
	}
}

// StepOnce applies the given inputs in order (joins, messages, leaves) and
// broadcasts one snapshot, without the ticker. It must not be called while
// Run is active.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, msgs []Envelope) uint64 {
	for _, j := range joins {
		w.handleJoin(j)
	}
	for _, m := range msgs {
		w.handleMessage(m)
	}
	for _, id := range leaves {
		w.handleLeave(id)
	}
	w.broadcastSnapshot()
	return w.tick.Load()
}
