package world

import (
	"testing"

	"golang.org/x/time/rate"
)

func testRegistry() *Registry {
	return newRegistry(registryConfig{
		spawn:       func() (float64, float64) { return 1, -1 },
		defaultRank: "Novice",
		chatEvery:   rate.Limit(1),
		actionEvery: rate.Limit(4),
		actionBurst: 2,
	})
}

func TestRegistry_RegisterAndUnregister(t *testing.T) {
	r := testRegistry()
	p, ok := r.Register("abcdef")
	if !ok {
		t.Fatalf("register failed")
	}
	if p.Name != "Player-abcd" || p.Rank != "Novice" || p.X != 1 || p.Z != -1 || p.Y != 0 {
		t.Fatalf("unexpected record: %+v", p)
	}
	if _, ok := r.Register("abcdef"); ok {
		t.Fatalf("duplicate register should fail")
	}
	if _, ok := r.Register(""); ok {
		t.Fatalf("empty id should fail")
	}
	if !r.Unregister("abcdef") {
		t.Fatalf("unregister failed")
	}
	if r.Unregister("abcdef") {
		t.Fatalf("second unregister should report false")
	}
	if _, ok := r.Get("abcdef"); ok {
		t.Fatalf("record still present")
	}
}

func TestRegistry_ShortIDName(t *testing.T) {
	r := testRegistry()
	p, _ := r.Register("ab")
	if p.Name != "Player-ab" {
		t.Fatalf("unexpected name %q", p.Name)
	}
}

func TestRegistry_EachSorted(t *testing.T) {
	r := testRegistry()
	for _, id := range []string{"zz", "mm", "aa"} {
		r.Register(id)
	}
	var got []string
	r.Each(func(p *Participant) { got = append(got, p.ID) })
	if len(got) != 3 || got[0] != "aa" || got[1] != "mm" || got[2] != "zz" {
		t.Fatalf("unexpected order %v", got)
	}
	if r.Len() != 3 {
		t.Fatalf("expected 3, got %d", r.Len())
	}
}
