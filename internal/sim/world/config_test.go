package world

import (
	"testing"
	"time"

	"yogiworld.io/internal/sim/tuning"
)

func TestApplyDefaults_ZeroConfig(t *testing.T) {
	var c WorldConfig
	c.applyDefaults()
	if c.ClaimTolerance != 0.8 {
		t.Fatalf("claim tolerance=%v want 0.8", c.ClaimTolerance)
	}
	if c.ChatMinInterval != 1200*time.Millisecond || c.ActionDuration != 1200*time.Millisecond {
		t.Fatalf("unexpected intervals: chat=%v action=%v", c.ChatMinInterval, c.ActionDuration)
	}
	if c.TickRateHz != 10 || c.Now == nil || c.Rand == nil {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestApplyDefaults_KeepsExplicitTolerance(t *testing.T) {
	c := ConfigFromTuning(tuning.Defaults())
	c.ClaimTolerance = 0.25
	c.applyDefaults()
	if c.ClaimTolerance != 0.25 {
		t.Fatalf("claim tolerance=%v want 0.25", c.ClaimTolerance)
	}
}
