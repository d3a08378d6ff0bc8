package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz      int     `yaml:"tick_rate_hz"`
	SpawnHalfExtent float64 `yaml:"spawn_half_extent"`
	WorldBound      float64 `yaml:"world_bound"`
	NameMaxRunes    int     `yaml:"name_max_runes"`

	Ranks []string `yaml:"ranks"`

	Chat     Chat     `yaml:"chat"`
	Actions  Actions  `yaml:"actions"`
	Claims   Claims   `yaml:"claims"`
	Greeting Greeting `yaml:"greeting"`

	DailyBonus int `yaml:"daily_bonus"`

	Zones []Zone `yaml:"zones"`
}

type Chat struct {
	MaxRunes      int `yaml:"max_runes"`
	MinIntervalMs int `yaml:"min_interval_ms"`
}

type Actions struct {
	DurationMs    int `yaml:"duration_ms"`
	MinIntervalMs int `yaml:"min_interval_ms"`
	Burst         int `yaml:"burst"`
}

type Claims struct {
	Tolerance float64 `yaml:"tolerance"`
	Reward    int     `yaml:"reward"`
}

type Greeting struct {
	Radius float64 `yaml:"radius"`
	Goal   int     `yaml:"goal"`
	Bonus  int     `yaml:"bonus"`
}

type Zone struct {
	Name string  `yaml:"name"`
	X    float64 `yaml:"x"`
	Z    float64 `yaml:"z"`
	R    float64 `yaml:"r"`
}

// Defaults returns the built-in tuning used when no file is present.
func Defaults() Tuning {
	return Tuning{
		TickRateHz:      10,
		SpawnHalfExtent: 5,
		WorldBound:      1000,
		NameMaxRunes:    20,
		Ranks:           []string{"Novice", "Explorer", "Guide", "Master"},
		Chat:            Chat{MaxRunes: 240, MinIntervalMs: 1200},
		Actions:         Actions{DurationMs: 1200, MinIntervalMs: 250, Burst: 2},
		Claims:          Claims{Tolerance: 0.8, Reward: 10},
		Greeting:        Greeting{Radius: 3, Goal: 3, Bonus: 20},
		DailyBonus:      5,
		Zones: []Zone{
			{Name: "fountain", X: 0, Z: 0, R: 3},
			{Name: "garden", X: 12, Z: -8, R: 2.5},
			{Name: "pier", X: -15, Z: 10, R: 2.5},
			{Name: "summit", X: 20, Z: 18, R: 2},
		},
	}
}

// Load reads a tuning file. Keys missing from the file keep their default
// values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive")
	}
	if len(t.Ranks) == 0 {
		return fmt.Errorf("ranks must not be empty")
	}
	if t.Chat.MinIntervalMs < 0 || t.Actions.MinIntervalMs < 0 {
		return fmt.Errorf("rate limit intervals must not be negative")
	}
	if t.Claims.Tolerance <= 0 {
		return fmt.Errorf("claims.tolerance must be positive")
	}
	if t.Claims.Reward <= 0 || t.Greeting.Bonus <= 0 || t.DailyBonus <= 0 {
		return fmt.Errorf("rewards must be positive")
	}
	return nil
}
