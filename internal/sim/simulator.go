// Package sim drives a set of coin-flip sessions in lock-step and aggregates
// their results.
//
// A Simulator has no internal locking. Callers that share one across
// goroutines must serialise every call (see package runner).
package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/flip-racer/flipsim/internal/pattern"
	"github.com/flip-racer/flipsim/internal/session"
)

var (
	ErrUnknownPattern = errors.New("unknown pattern")
	ErrInvalidConfig  = errors.New("invalid simulation config")
	ErrNotConfigured  = errors.New("simulation not configured")
	ErrAlreadyRunning = errors.New("simulation already running")
)

const (
	DefaultSessions = 1000
	DefaultMaxFlips = 10000

	DefaultSessionLimit = 100_000
	DefaultFlipLimit    = 100_000
)

// State is the simulator lifecycle phase.
type State int

const (
	Unconfigured State = iota
	Configured
	Running
	Stopped
)

var stateNames = map[State]string{
	Unconfigured: "unconfigured",
	Configured:   "configured",
	Running:      "running",
	Stopped:      "stopped",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown simulator state %q", b)
}

// Option customises a Simulator.
type Option func(*Simulator)

// WithRand sets the random source shared by every session.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) { s.rng = rng }
}

// WithSeed seeds a deterministic source. A zero seed leaves the source
// unchanged.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		if seed != 0 {
			s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
	}
}

// WithLimits caps the session count and flip limit Configure accepts.
// Non-positive values keep the defaults.
func WithLimits(maxSessions, maxFlips int) Option {
	return func(s *Simulator) {
		if maxSessions > 0 {
			s.sessionLimit = maxSessions
		}
		if maxFlips > 0 {
			s.flipLimit = maxFlips
		}
	}
}

type Simulator struct {
	registry *pattern.Registry
	rng      *rand.Rand

	sessionLimit int
	flipLimit    int

	sessions   []*session.Session
	pattern    *pattern.Pattern
	patternKey string
	numSess    int
	maxFlips   int
	running    bool
	started    bool

	// The pattern the current session set was started with. Configure may
	// change the selection mid-run without affecting it.
	runPattern *pattern.Pattern
	runKey     string
}

// New creates an unconfigured simulator over reg. A nil reg uses
// pattern.DefaultRegistry.
func New(reg *pattern.Registry, opts ...Option) *Simulator {
	if reg == nil {
		reg = pattern.DefaultRegistry()
	}
	s := &Simulator{
		registry:     reg,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sessionLimit: DefaultSessionLimit,
		flipLimit:    DefaultFlipLimit,
		numSess:      DefaultSessions,
		maxFlips:     DefaultMaxFlips,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure selects the pattern and sizing for the next Start. It leaves the
// current session set untouched and mutates nothing on error.
func (s *Simulator) Configure(key string, numSessions, maxFlips int) error {
	p, ok := s.registry.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, key)
	}
	if numSessions < 1 || numSessions > s.sessionLimit {
		return fmt.Errorf("%w: session count %d not in [1, %d]", ErrInvalidConfig, numSessions, s.sessionLimit)
	}
	if maxFlips < 1 || maxFlips > s.flipLimit {
		return fmt.Errorf("%w: max flips %d not in [1, %d]", ErrInvalidConfig, maxFlips, s.flipLimit)
	}
	s.pattern = p
	s.patternKey = key
	s.numSess = numSessions
	s.maxFlips = maxFlips
	return nil
}

// Start replaces any previous sessions with a fresh set and begins running.
func (s *Simulator) Start() error {
	if s.pattern == nil {
		return ErrNotConfigured
	}
	if s.running {
		return ErrAlreadyRunning
	}

	s.sessions = make([]*session.Session, s.numSess)
	for i := range s.sessions {
		s.sessions[i] = session.New(i, s.pattern, s.maxFlips, s.rng)
	}
	s.runPattern = s.pattern
	s.runKey = s.patternKey
	s.running = true
	s.started = true
	return nil
}

// Stop halts stepping. Sessions remain inspectable.
func (s *Simulator) Stop() {
	s.running = false
}

// Reset discards all sessions. Configuration is kept.
func (s *Simulator) Reset() {
	s.sessions = nil
	s.running = false
	s.started = false
}

// Step flips once for every session that is still active. When no session
// was active the simulator stops and the result reports StatusCompleted.
func (s *Simulator) Step() StepResult {
	if !s.running {
		return StepResult{Status: StatusNotRunning, Updates: []session.Update{}}
	}

	updates := make([]session.Update, 0, len(s.sessions))
	active := 0
	for _, sess := range s.sessions {
		if sess.Completed() {
			continue
		}
		active++
		flip := sess.NextOutcome()
		sess.Record(flip)
		updates = append(updates, session.Update{
			ID:           sess.ID,
			FlipResult:   flip,
			FlipsCount:   sess.FlipCount(),
			Completed:    sess.Completed(),
			PatternFound: sess.PatternFound(),
		})
	}

	if active == 0 {
		s.running = false
	}

	status := StatusRunning
	if !s.running {
		status = StatusCompleted
	}
	return StepResult{
		Status:         status,
		ActiveSessions: active,
		Updates:        updates,
	}
}

// RunToCompletion starts a fresh run and drives every session to its end
// without stepping. It is the non-interactive path used by the CLI.
func (s *Simulator) RunToCompletion() (Statistics, error) {
	if err := s.Start(); err != nil {
		return Statistics{}, err
	}
	for _, sess := range s.sessions {
		sess.RunToCompletion()
	}
	s.running = false
	st, _ := s.Statistics()
	return st, nil
}

func (s *Simulator) State() State {
	switch {
	case s.running:
		return Running
	case s.started:
		return Stopped
	case s.pattern != nil:
		return Configured
	default:
		return Unconfigured
	}
}

func (s *Simulator) IsRunning() bool { return s.running }

// Limits reports the largest session count and flip limit Configure accepts.
func (s *Simulator) Limits() (maxSessions, maxFlips int) {
	return s.sessionLimit, s.flipLimit
}

// Config reports the currently configured pattern key and sizing.
func (s *Simulator) Config() (key string, numSessions, maxFlips int) {
	return s.patternKey, s.numSess, s.maxFlips
}

// Sessions returns a snapshot of every session in identifier order.
func (s *Simulator) Sessions() []session.Snapshot {
	out := make([]session.Snapshot, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Snapshot()
	}
	return out
}

// SessionCount is the size of the current session set.
func (s *Simulator) SessionCount() int { return len(s.sessions) }

// AvailablePatterns returns key -> description for every registered pattern.
func (s *Simulator) AvailablePatterns() map[string]string {
	return s.registry.Descriptions()
}

// PatternKeys returns registered keys in registration order.
func (s *Simulator) PatternKeys() []string {
	return s.registry.Keys()
}
