package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  auth_token: "s3cret"
  allowed_origins:
    - "http://localhost:3000"
simulation:
  tick_interval: 50ms
  default_pattern: 3_alternating
  default_sessions: 250
  seed: 17
logging:
  level: debug
patterns:
  - key: hhth
    kind: sequence
    sequence: "HHTH"
    description: "Heads-Heads-Tails-Heads"
  - key: 5_consecutive_heads
    kind: run
    length: 5
    value: heads
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.AuthToken != "s3cret" {
		t.Errorf("Server.AuthToken = %q", cfg.Server.AuthToken)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Simulation.TickInterval != 50*time.Millisecond {
		t.Errorf("Simulation.TickInterval = %v, want 50ms", cfg.Simulation.TickInterval)
	}
	if cfg.Simulation.DefaultPattern != "3_alternating" {
		t.Errorf("Simulation.DefaultPattern = %q", cfg.Simulation.DefaultPattern)
	}
	if cfg.Simulation.DefaultSessions != 250 {
		t.Errorf("Simulation.DefaultSessions = %d, want 250", cfg.Simulation.DefaultSessions)
	}
	if cfg.Simulation.Seed != 17 {
		t.Errorf("Simulation.Seed = %d, want 17", cfg.Simulation.Seed)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Simulation.StatsInterval != 500*time.Millisecond {
		t.Errorf("Simulation.StatsInterval = %v, want default 500ms", cfg.Simulation.StatsInterval)
	}
	if cfg.Simulation.DefaultMaxFlips != 10000 {
		t.Errorf("Simulation.DefaultMaxFlips = %d, want default 10000", cfg.Simulation.DefaultMaxFlips)
	}
	if cfg.Simulation.SessionLimit != 100000 || cfg.Simulation.FlipLimit != 100000 {
		t.Errorf("limits = %d/%d, want defaults 100000/100000", cfg.Simulation.SessionLimit, cfg.Simulation.FlipLimit)
	}

	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry() error: %v", err)
	}
	if reg.Len() != 12 {
		t.Errorf("registry has %d patterns, want 12", reg.Len())
	}
	p, ok := reg.Lookup("hhth")
	if !ok {
		t.Fatal("hhth not registered")
	}
	if p.Description() != "Heads-Heads-Tails-Heads" {
		t.Errorf("hhth description = %q", p.Description())
	}
	if p, ok := reg.Lookup("5_consecutive_heads"); !ok || p.TheoreticalEV() != 62 {
		t.Errorf("5_consecutive_heads missing or wrong EV")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Simulation.TickInterval != 100*time.Millisecond {
		t.Errorf("TickInterval = %v, want 100ms", cfg.Simulation.TickInterval)
	}
	if cfg.Simulation.DefaultPattern != "2_consecutive_tails" {
		t.Errorf("DefaultPattern = %q", cfg.Simulation.DefaultPattern)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("FLIPSIM_PORT", "7070")
	t.Setenv("FLIPSIM_TICK_INTERVAL", "250ms")
	t.Setenv("FLIPSIM_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("FLIPSIM_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Simulation.TickInterval != 250*time.Millisecond {
		t.Errorf("TickInterval = %v, want 250ms", cfg.Simulation.TickInterval)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.Server.AllowedOrigins)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad yaml", "server: [", "parse config"},
		{"negative port", "server:\n  port: -1\n", "server.port"},
		{"zero tick", "simulation:\n  tick_interval: 0s\n", "tick_interval"},
		{"unknown default", "simulation:\n  default_pattern: nope\n", "default_pattern"},
		{"bad pattern kind", "patterns:\n  - key: x\n    kind: zigzag\n", "patterns[0]"},
		{"bad run value", "patterns:\n  - key: x\n    kind: run\n    length: 2\n    value: edge\n", "patterns[0]"},
		{"zero session limit", "simulation:\n  session_limit: 0\n", "session_limit"},
		{"sessions over limit", "simulation:\n  default_sessions: 500\n  session_limit: 100\n", "exceeds session_limit"},
		{"flips over limit", "simulation:\n  default_max_flips: 5000\n  flip_limit: 1000\n", "exceeds flip_limit"},
		{"duplicate key", "patterns:\n  - key: 3_alternating\n    kind: alternating\n    length: 3\n", "already registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestPatternConfigDescriptionOverride(t *testing.T) {
	p, err := PatternConfig{Kind: "alternating", Length: 5, Description: "Five alternating"}.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if p.Description() != "Five alternating" {
		t.Errorf("Description() = %q", p.Description())
	}
	if p.TheoreticalEV() != 32 {
		t.Errorf("TheoreticalEV() = %v, want 32", p.TheoreticalEV())
	}
}

func TestAddr(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.Addr(); got != "0.0.0.0:5000" {
		t.Errorf("Addr() = %q", got)
	}
}
