package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte("tick_rate_hz: 20\nchat:\n  min_interval_ms: 2000\nzones:\n  - {name: dock, x: 1, z: 2, r: 4}\n")
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.TickRateHz != 20 {
		t.Fatalf("tick rate=%d want 20", tu.TickRateHz)
	}
	if tu.Chat.MinIntervalMs != 2000 {
		t.Fatalf("chat interval=%d want 2000", tu.Chat.MinIntervalMs)
	}
	if tu.Chat.MaxRunes != 240 {
		t.Fatalf("chat max runes=%d want default 240", tu.Chat.MaxRunes)
	}
	if len(tu.Zones) != 1 || tu.Zones[0].Name != "dock" || tu.Zones[0].R != 4 {
		t.Fatalf("zones=%+v", tu.Zones)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestValidate_ZeroToleranceRejected(t *testing.T) {
	tu := Defaults()
	tu.Claims.Tolerance = 0
	if err := tu.Validate(); err == nil {
		t.Fatalf("expected error for zero claim tolerance")
	}
}
