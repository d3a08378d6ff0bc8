package world

import (
	"fmt"
	"sort"

	"golang.org/x/time/rate"

	"yogiworld.io/internal/sim/progress"
)

// Registry owns the participant table. It is not safe for concurrent use;
// only the world goroutine touches it.
type Registry struct {
	byID map[string]*Participant

	spawn       func() (x, z float64)
	defaultRank string
	chatEvery   rate.Limit
	actionEvery rate.Limit
	actionBurst int
}

type registryConfig struct {
	spawn       func() (x, z float64)
	defaultRank string
	chatEvery   rate.Limit
	actionEvery rate.Limit
	actionBurst int
}

func newRegistry(rc registryConfig) *Registry {
	return &Registry{
		byID:        map[string]*Participant{},
		spawn:       rc.spawn,
		defaultRank: rc.defaultRank,
		chatEvery:   rc.chatEvery,
		actionEvery: rc.actionEvery,
		actionBurst: rc.actionBurst,
	}
}

// Register creates the record for a new connection at a random spawn point.
// It refuses ids that are already connected.
func (r *Registry) Register(id string) (*Participant, bool) {
	if id == "" {
		return nil, false
	}
	if _, dup := r.byID[id]; dup {
		return nil, false
	}
	x, z := r.spawn()
	p := &Participant{
		ID:            id,
		Name:          defaultName(id),
		Rank:          r.defaultRank,
		X:             x,
		Z:             z,
		Ledger:        progress.New(),
		chatLimiter:   rate.NewLimiter(r.chatEvery, 1),
		actionLimiter: rate.NewLimiter(r.actionEvery, r.actionBurst),
	}
	r.byID[id] = p
	return p, true
}

// Unregister removes the record. It reports whether anything was removed.
func (r *Registry) Unregister(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	return true
}

// Get returns the record for id. A missing record means the connection is
// gone; callers drop the event.
func (r *Registry) Get(id string) (*Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Each visits participants in id order.
func (r *Registry) Each(fn func(p *Participant)) {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(r.byID[id])
	}
}

func (r *Registry) Len() int { return len(r.byID) }

func defaultName(id string) string {
	short := id
	if len(short) > 4 {
		short = short[:4]
	}
	return fmt.Sprintf("Player-%s", short)
}
