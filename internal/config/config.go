package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/flip-racer/flipsim/internal/pattern"
	"github.com/flip-racer/flipsim/internal/sim"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. FLIPSIM_PORT.
const EnvPrefix = "FLIPSIM_"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Simulation SimulationConfig `yaml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Patterns   []PatternConfig  `yaml:"patterns"`
}

type ServerConfig struct {
	Port           int      `yaml:"port" env:"PORT"`
	Host           string   `yaml:"host" env:"HOST"`
	AuthToken      string   `yaml:"auth_token" env:"AUTH_TOKEN"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxConnections int      `yaml:"max_connections" env:"MAX_CONNECTIONS"`
}

type SimulationConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	StatsInterval   time.Duration `yaml:"stats_interval" env:"STATS_INTERVAL"`
	DefaultPattern  string        `yaml:"default_pattern" env:"DEFAULT_PATTERN"`
	DefaultSessions int           `yaml:"default_sessions" env:"DEFAULT_SESSIONS"`
	DefaultMaxFlips int           `yaml:"default_max_flips" env:"DEFAULT_MAX_FLIPS"`
	SessionLimit    int           `yaml:"session_limit" env:"SESSION_LIMIT"`
	FlipLimit       int           `yaml:"flip_limit" env:"FLIP_LIMIT"`
	Seed            uint64        `yaml:"seed" env:"SEED"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// PatternConfig declares an extra registry entry.
type PatternConfig struct {
	Key         string `yaml:"key"`
	Kind        string `yaml:"kind"`
	Length      int    `yaml:"length"`
	Value       string `yaml:"value"`
	Sequence    string `yaml:"sequence"`
	Description string `yaml:"description"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 5000,
			Host: "0.0.0.0",
		},
		Simulation: SimulationConfig{
			TickInterval:    100 * time.Millisecond,
			StatsInterval:   500 * time.Millisecond,
			DefaultPattern:  "2_consecutive_tails",
			DefaultSessions: 1000,
			DefaultMaxFlips: 10000,
			SessionLimit:    sim.DefaultSessionLimit,
			FlipLimit:       sim.DefaultFlipLimit,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Default returns the built-in configuration with environment overrides
// applied.
func Default() (*Config, error) {
	cfg := defaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Load reads the YAML file at path over the defaults, then applies
// FLIPSIM_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	opts := env.Options{Prefix: EnvPrefix}
	for _, target := range []any{&c.Server, &c.Simulation, &c.Logging} {
		if err := env.ParseWithOptions(target, opts); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
	}
	return nil
}

// Validate checks value ranges and that every declared pattern builds.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must be >= 0")
	}
	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("simulation.tick_interval must be positive")
	}
	if c.Simulation.StatsInterval <= 0 {
		return fmt.Errorf("simulation.stats_interval must be positive")
	}
	if c.Simulation.DefaultSessions < 1 {
		return fmt.Errorf("simulation.default_sessions must be >= 1")
	}
	if c.Simulation.DefaultMaxFlips < 1 {
		return fmt.Errorf("simulation.default_max_flips must be >= 1")
	}
	if c.Simulation.SessionLimit < 1 || c.Simulation.FlipLimit < 1 {
		return fmt.Errorf("simulation.session_limit and simulation.flip_limit must be >= 1")
	}
	if c.Simulation.DefaultSessions > c.Simulation.SessionLimit {
		return fmt.Errorf("simulation.default_sessions %d exceeds session_limit %d",
			c.Simulation.DefaultSessions, c.Simulation.SessionLimit)
	}
	if c.Simulation.DefaultMaxFlips > c.Simulation.FlipLimit {
		return fmt.Errorf("simulation.default_max_flips %d exceeds flip_limit %d",
			c.Simulation.DefaultMaxFlips, c.Simulation.FlipLimit)
	}

	reg, err := c.Registry()
	if err != nil {
		return err
	}
	if _, ok := reg.Lookup(c.Simulation.DefaultPattern); !ok {
		return fmt.Errorf("simulation.default_pattern %q is not a registered pattern", c.Simulation.DefaultPattern)
	}
	return nil
}

// Registry returns the built-in patterns plus those declared in the config.
func (c *Config) Registry() (*pattern.Registry, error) {
	reg := pattern.DefaultRegistry()
	for i, pc := range c.Patterns {
		p, err := pc.Build()
		if err != nil {
			return nil, fmt.Errorf("patterns[%d] (%s): %w", i, pc.Key, err)
		}
		if err := reg.Register(pc.Key, p); err != nil {
			return nil, fmt.Errorf("patterns[%d]: %w", i, err)
		}
	}
	return reg, nil
}

// Build constructs the pattern this entry describes.
func (pc PatternConfig) Build() (*pattern.Pattern, error) {
	kind, err := pattern.ParseKind(pc.Kind)
	if err != nil {
		return nil, err
	}

	var p *pattern.Pattern
	switch kind {
	case pattern.KindRun:
		v, err := pattern.ParseOutcome(pc.Value)
		if err != nil {
			return nil, err
		}
		p, err = pattern.Run(pc.Length, v)
		if err != nil {
			return nil, err
		}
	case pattern.KindAlternating:
		p, err = pattern.Alternating(pc.Length)
		if err != nil {
			return nil, err
		}
	default:
		seq, err := pattern.ParseOutcomes(pc.Sequence)
		if err != nil {
			return nil, err
		}
		return pattern.Sequence(pc.Description, seq...)
	}

	if pc.Description != "" {
		p = p.Describe(pc.Description)
	}
	return p, nil
}

// Addr is the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
