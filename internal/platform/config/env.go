package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ServerEnv holds environment overrides for cmd/server. Empty values leave
// the corresponding flag untouched.
type ServerEnv struct {
	Addr         string `env:"YOGIWORLD_ADDR"`
	Port         string `env:"PORT"`
	TuningPath   string `env:"YOGIWORLD_TUNING"`
	DataDir      string `env:"YOGIWORLD_DATA"`
	DisableDB    bool   `env:"YOGIWORLD_DISABLE_DB"`
	InventoryURL string `env:"YOGIWORLD_INVENTORY_URL"`
	InventoryKey string `env:"YOGIWORLD_INVENTORY_TOKEN"`
	OTelEndpoint string `env:"YOGIWORLD_OTEL_ENDPOINT"`
}

// ListenAddr resolves the listen address: YOGIWORLD_ADDR wins, then PORT,
// then fallback.
func (e ServerEnv) ListenAddr(fallback string) string {
	if e.Addr != "" {
		return e.Addr
	}
	if e.Port != "" {
		return ":" + e.Port
	}
	return fallback
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv loads the given files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
