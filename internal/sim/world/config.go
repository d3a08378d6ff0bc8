package world

import (
	"log"
	"math/rand"
	"time"

	"yogiworld.io/internal/sim/tuning"
)

type WorldConfig struct {
	TickRateHz      int
	SpawnHalfExtent float64
	// Reported x/y/z beyond ±WorldBound are dropped per field.
	WorldBound   float64
	NameMaxRunes int
	// Ranks is the closed set accepted from profile updates. The first entry
	// is the default rank.
	Ranks []string

	ChatMaxRunes    int
	ChatMinInterval time.Duration

	ActionDuration    time.Duration
	ActionMinInterval time.Duration
	ActionBurst       int

	ClaimTolerance float64
	ZoneReward     int

	GreetRadius float64
	GreetGoal   int
	GreetBonus  int

	DailyBonus int

	ProfileTimeout time.Duration

	// Test hooks. Nil means wall clock / time-seeded source.
	Now  func() time.Time
	Rand *rand.Rand

	Logger *log.Logger
}

// ConfigFromTuning maps a tuning file onto a world config.
func ConfigFromTuning(t tuning.Tuning) WorldConfig {
	return WorldConfig{
		TickRateHz:        t.TickRateHz,
		SpawnHalfExtent:   t.SpawnHalfExtent,
		WorldBound:        t.WorldBound,
		NameMaxRunes:      t.NameMaxRunes,
		Ranks:             append([]string(nil), t.Ranks...),
		ChatMaxRunes:      t.Chat.MaxRunes,
		ChatMinInterval:   time.Duration(t.Chat.MinIntervalMs) * time.Millisecond,
		ActionDuration:    time.Duration(t.Actions.DurationMs) * time.Millisecond,
		ActionMinInterval: time.Duration(t.Actions.MinIntervalMs) * time.Millisecond,
		ActionBurst:       t.Actions.Burst,
		ClaimTolerance:    t.Claims.Tolerance,
		ZoneReward:        t.Claims.Reward,
		GreetRadius:       t.Greeting.Radius,
		GreetGoal:         t.Greeting.Goal,
		GreetBonus:        t.Greeting.Bonus,
		DailyBonus:        t.DailyBonus,
	}
}

func (c *WorldConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 10
	}
	if c.SpawnHalfExtent <= 0 {
		c.SpawnHalfExtent = 5
	}
	if c.WorldBound <= 0 {
		c.WorldBound = 1000
	}
	if c.NameMaxRunes <= 0 {
		c.NameMaxRunes = 20
	}
	if len(c.Ranks) == 0 {
		c.Ranks = []string{"Novice"}
	}
	if c.ChatMaxRunes <= 0 {
		c.ChatMaxRunes = 240
	}
	if c.ChatMinInterval <= 0 {
		c.ChatMinInterval = 1200 * time.Millisecond
	}
	if c.ActionDuration <= 0 {
		c.ActionDuration = 1200 * time.Millisecond
	}
	if c.ActionMinInterval <= 0 {
		c.ActionMinInterval = 250 * time.Millisecond
	}
	if c.ActionBurst <= 0 {
		c.ActionBurst = 2
	}
	if c.ClaimTolerance <= 0 {
		c.ClaimTolerance = 0.8
	}
	if c.ZoneReward <= 0 {
		c.ZoneReward = 10
	}
	if c.GreetRadius <= 0 {
		c.GreetRadius = 3
	}
	if c.GreetGoal <= 0 {
		c.GreetGoal = 3
	}
	if c.GreetBonus <= 0 {
		c.GreetBonus = 20
	}
	if c.DailyBonus <= 0 {
		c.DailyBonus = 5
	}
	if c.ProfileTimeout <= 0 {
		c.ProfileTimeout = 3 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}
