// Package pattern defines the stopping patterns a coin-flip session searches
// for. A Pattern is an immutable tagged value; matching is a pure function of
// the supplied flip history, so one Pattern can be shared by any number of
// sessions without locking.
package pattern

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidPattern = errors.New("invalid pattern")

// Outcome is a single coin flip.
type Outcome int

const (
	Tails Outcome = 0
	Heads Outcome = 1
)

func (o Outcome) String() string {
	if o == Heads {
		return "heads"
	}
	return "tails"
}

func (o Outcome) valid() bool { return o == Tails || o == Heads }

// Letter returns "H" or "T".
func (o Outcome) Letter() string {
	if o == Heads {
		return "H"
	}
	return "T"
}

// Kind tags which matching rule a Pattern uses.
type Kind int

const (
	KindRun Kind = iota
	KindAlternating
	KindSequence
)

var kindNames = map[Kind]string{
	KindRun:         "run",
	KindAlternating: "alternating",
	KindSequence:    "sequence",
}

var kindFromName = map[string]Kind{
	"run":         KindRun,
	"alternating": KindAlternating,
	"sequence":    KindSequence,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ParseKind maps a kind name ("run", "alternating", "sequence") to a Kind.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindFromName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidPattern, s)
}

// Pattern is one of three matching rules, selected by Kind:
//
//   - KindRun: Length consecutive occurrences of Value.
//   - KindAlternating: Length flips where every adjacent pair differs.
//   - KindSequence: the literal Sequence.
type Pattern struct {
	kind        Kind
	length      int
	value       Outcome
	sequence    []Outcome
	description string
}

// Run returns a pattern matching length consecutive flips of value.
func Run(length int, value Outcome) (*Pattern, error) {
	if length < 1 {
		return nil, fmt.Errorf("%w: run length %d", ErrInvalidPattern, length)
	}
	if !value.valid() {
		return nil, fmt.Errorf("%w: outcome %d", ErrInvalidPattern, value)
	}
	return &Pattern{
		kind:        KindRun,
		length:      length,
		value:       value,
		description: fmt.Sprintf("%d consecutive %s", length, value),
	}, nil
}

// Alternating returns a pattern matching length flips that alternate.
func Alternating(length int) (*Pattern, error) {
	if length < 1 {
		return nil, fmt.Errorf("%w: alternating length %d", ErrInvalidPattern, length)
	}
	return &Pattern{
		kind:        KindAlternating,
		length:      length,
		description: fmt.Sprintf("%d alternating flips", length),
	}, nil
}

// Sequence returns a pattern matching the exact outcomes given. An empty
// description is replaced by one listing the outcomes.
func Sequence(description string, outcomes ...Outcome) (*Pattern, error) {
	if len(outcomes) == 0 {
		return nil, fmt.Errorf("%w: empty sequence", ErrInvalidPattern)
	}
	seq := make([]Outcome, len(outcomes))
	for i, o := range outcomes {
		if !o.valid() {
			return nil, fmt.Errorf("%w: outcome %d at index %d", ErrInvalidPattern, o, i)
		}
		seq[i] = o
	}
	if description == "" {
		digits := make([]string, len(seq))
		for i, o := range seq {
			digits[i] = strconv.Itoa(int(o))
		}
		description = "Custom sequence: [" + strings.Join(digits, " ") + "]"
	}
	return &Pattern{
		kind:        KindSequence,
		length:      len(seq),
		sequence:    seq,
		description: description,
	}, nil
}

// Describe returns a copy of p carrying a different description.
func (p *Pattern) Describe(description string) *Pattern {
	c := *p
	c.sequence = append([]Outcome(nil), p.sequence...)
	c.description = description
	return &c
}

func (p *Pattern) Kind() Kind { return p.kind }

// MinLength is the shortest history that can possibly match.
func (p *Pattern) MinLength() int { return p.length }

func (p *Pattern) Description() string { return p.description }

// Outcomes returns a copy of the literal sequence for KindSequence patterns
// and nil otherwise.
func (p *Pattern) Outcomes() []Outcome {
	if p.kind != KindSequence {
		return nil
	}
	return append([]Outcome(nil), p.sequence...)
}

// Value is the target outcome of a KindRun pattern.
func (p *Pattern) Value() Outcome { return p.value }

// Check scans the whole history and reports whether the pattern occurs. pos
// is the index of the first flip of the earliest matching window, or -1.
func (p *Pattern) Check(flips []Outcome) (found bool, pos int) {
	if len(flips) < p.length {
		return false, -1
	}
	switch p.kind {
	case KindRun:
		pos = matchRun(flips, p.length, p.value)
	case KindAlternating:
		pos = matchAlternating(flips, p.length)
	case KindSequence:
		pos = matchSequence(flips, p.sequence)
	default:
		pos = -1
	}
	return pos >= 0, pos
}

// TheoreticalEV is the expected number of fair flips until the pattern first
// appears. Only the run formula is exact; alternating and sequence patterns
// use 2^n, which under- or over-states the true expectation depending on the
// pattern's self-overlap.
func (p *Pattern) TheoreticalEV() float64 {
	switch p.kind {
	case KindRun:
		return math.Pow(2, float64(p.length+1)) - 2
	default:
		return math.Pow(2, float64(p.length))
	}
}

func matchRun(flips []Outcome, length int, value Outcome) int {
	count := 0
	for i, f := range flips {
		if f != value {
			count = 0
			continue
		}
		count++
		if count >= length {
			return i - length + 1
		}
	}
	return -1
}

func matchAlternating(flips []Outcome, length int) int {
	for i := 0; i+length <= len(flips); i++ {
		ok := true
		for j := 1; j < length; j++ {
			if flips[i+j] == flips[i+j-1] {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

func matchSequence(flips, seq []Outcome) int {
outer:
	for i := 0; i+len(seq) <= len(flips); i++ {
		for j, o := range seq {
			if flips[i+j] != o {
				continue outer
			}
		}
		return i
	}
	return -1
}
