// Package progress is the per-participant points and quest ledger.
// Points only ever grow, visited flags are write-once, and the daily bonus
// key moves at most once per calendar day.
package progress

import (
	"fmt"
	"sort"
	"time"
)

const (
	QuestVisitZones = "visit_zones"
	QuestGreet      = "greet"
)

// Grant describes one successful credit.
type Grant struct {
	Total  int
	Delta  int
	Reason string
}

type Ledger struct {
	points    int
	visited   map[string]bool
	greetings int
	greetDone bool
	dailyKey  string
}

func New() *Ledger {
	return &Ledger{visited: map[string]bool{}}
}

func (l *Ledger) Points() int { return l.points }

// Credit adds a positive delta. Non-positive deltas are refused.
func (l *Ledger) Credit(delta int, reason string) (Grant, bool) {
	if delta <= 0 {
		return Grant{}, false
	}
	l.points += delta
	return Grant{Total: l.points, Delta: delta, Reason: reason}, true
}

func (l *Ledger) Visited(zone string) bool { return l.visited[zone] }

func (l *Ledger) VisitedCount() int { return len(l.visited) }

// VisitedFlags returns a copy of the visited set.
func (l *Ledger) VisitedFlags() map[string]bool {
	out := make(map[string]bool, len(l.visited))
	for k, v := range l.visited {
		out[k] = v
	}
	return out
}

// VisitedZones returns visited zone names in sorted order.
func (l *Ledger) VisitedZones() []string {
	out := make([]string, 0, len(l.visited))
	for k := range l.visited {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ClaimZone sets the visited flag and credits reward. A second claim for the
// same zone is refused.
func (l *Ledger) ClaimZone(zone string, reward int) (Grant, bool) {
	if l.visited[zone] {
		return Grant{}, false
	}
	l.visited[zone] = true
	g, _ := l.Credit(reward, fmt.Sprintf("Visited %s", zone))
	return g, true
}

// Greeting is the outcome of RecordGreeting.
type Greeting struct {
	Progress int
	Goal     int
	Bonus    *Grant
}

// RecordGreeting counts one greeting toward goal. Once the goal is reached the
// bonus is credited and further greetings are not counted.
func (l *Ledger) RecordGreeting(goal, bonus int) (Greeting, bool) {
	if l.greetDone || goal <= 0 {
		return Greeting{}, false
	}
	l.greetings++
	out := Greeting{Progress: l.greetings, Goal: goal}
	if l.greetings >= goal {
		l.greetDone = true
		if g, ok := l.Credit(bonus, "Greeted everyone"); ok {
			out.Bonus = &g
		}
	}
	return out, true
}

func (l *Ledger) GreetingDone() bool { return l.greetDone }

// DayKey is the UTC calendar key used for the daily bonus.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailyBonus credits bonus once per calendar day.
func (l *Ledger) DailyBonus(now time.Time, bonus int) (Grant, bool) {
	key := DayKey(now)
	if key == l.dailyKey {
		return Grant{}, false
	}
	l.dailyKey = key
	return l.Credit(bonus, "Daily bonus")
}

func (l *Ledger) DailyKey() string { return l.dailyKey }
