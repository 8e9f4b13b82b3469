// Package session models a single coin-flip run: it appends one outcome at a
// time, checks the whole history against its pattern, and stops on the first
// match or when the flip cap is reached.
package session

import (
	"math/rand/v2"

	"github.com/flip-racer/flipsim/internal/pattern"
)

// Session is not safe for concurrent use. Its Pattern is shared read-only.
type Session struct {
	ID       int
	MaxFlips int

	pattern   *pattern.Pattern
	rng       *rand.Rand
	flips     []pattern.Outcome
	completed bool
	found     bool
	position  *int
	reason    StopReason
}

// New creates a fresh session. A nil rng uses the package-level source.
func New(id int, p *pattern.Pattern, maxFlips int, rng *rand.Rand) *Session {
	return &Session{
		ID:       id,
		MaxFlips: maxFlips,
		pattern:  p,
		rng:      rng,
	}
}

// NextOutcome draws one fair flip.
func (s *Session) NextOutcome() pattern.Outcome {
	if s.rng == nil {
		return pattern.Outcome(rand.IntN(2))
	}
	return pattern.Outcome(s.rng.IntN(2))
}

// Record appends o and re-evaluates the session. It returns true while the
// session should keep flipping. Once completed, Record is a no-op.
func (s *Session) Record(o pattern.Outcome) bool {
	if s.completed {
		return false
	}

	s.flips = append(s.flips, o)

	if found, pos := s.pattern.Check(s.flips); found {
		s.found = true
		s.position = &pos
		s.complete(PatternFound)
		return false
	}

	if len(s.flips) >= s.MaxFlips {
		s.complete(MaxFlipsReached)
		return false
	}

	return true
}

func (s *Session) complete(reason StopReason) {
	s.completed = true
	s.reason = reason
}

// RunToCompletion flips until the pattern appears or the cap is hit.
func (s *Session) RunToCompletion() Snapshot {
	for !s.completed {
		s.Record(s.NextOutcome())
	}
	return s.Snapshot()
}

func (s *Session) Completed() bool { return s.completed }

func (s *Session) PatternFound() bool { return s.found }

func (s *Session) FlipCount() int { return len(s.flips) }

func (s *Session) Reason() StopReason { return s.reason }

// Position returns the start index of the earliest match, if any.
func (s *Session) Position() (int, bool) {
	if s.position == nil {
		return 0, false
	}
	return *s.position, true
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:                 s.ID,
		Flips:              append([]pattern.Outcome{}, s.flips...),
		FlipsCount:         len(s.flips),
		Completed:          s.completed,
		PatternFound:       s.found,
		StoppedReason:      s.reason,
		PatternDescription: s.pattern.Description(),
	}
	if s.position != nil {
		p := *s.position
		snap.PatternPosition = &p
	}
	return snap
}
