// Package geofence holds the static set of named circular reward zones.
package geofence

import (
	"fmt"
	"strings"
)

type Zone struct {
	Name string
	X    float64
	Z    float64
	R    float64
}

// Contains reports whether the planar point (x, z) lies within the zone
// radius plus tolerance. Compared squared; no square roots.
func (z Zone) Contains(x, zz, tolerance float64) bool {
	dx := x - z.X
	dz := zz - z.Z
	lim := z.R + tolerance
	return dx*dx+dz*dz <= lim*lim
}

// Index is immutable after NewIndex returns and safe for concurrent reads.
type Index struct {
	zones  []Zone
	byName map[string]int
}

func NewIndex(zones []Zone) (*Index, error) {
	idx := &Index{
		zones:  make([]Zone, 0, len(zones)),
		byName: make(map[string]int, len(zones)),
	}
	for _, z := range zones {
		name := strings.TrimSpace(z.Name)
		if name == "" {
			return nil, fmt.Errorf("zone with empty name")
		}
		if z.R <= 0 {
			return nil, fmt.Errorf("zone %s: radius must be positive", name)
		}
		if _, dup := idx.byName[name]; dup {
			return nil, fmt.Errorf("duplicate zone %s", name)
		}
		z.Name = name
		idx.byName[name] = len(idx.zones)
		idx.zones = append(idx.zones, z)
	}
	return idx, nil
}

func (i *Index) Lookup(name string) (Zone, bool) {
	n, ok := i.byName[name]
	if !ok {
		return Zone{}, false
	}
	return i.zones[n], true
}

// All returns a copy of the zones in configuration order.
func (i *Index) All() []Zone {
	out := make([]Zone, len(i.zones))
	copy(out, i.zones)
	return out
}

func (i *Index) Len() int { return len(i.zones) }
