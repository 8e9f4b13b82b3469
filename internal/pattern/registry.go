package pattern

import (
	"errors"
	"fmt"
	"strings"
)

var ErrDuplicateKey = errors.New("pattern key already registered")

// Registry maps configuration keys to shared Pattern instances, preserving
// registration order for listings.
type Registry struct {
	keys     []string
	patterns map[string]*Pattern
}

func NewRegistry() *Registry {
	return &Registry{
		patterns: make(map[string]*Pattern),
	}
}

// DefaultRegistry returns the built-in pattern set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, n := range []int{2, 3, 4} {
		r.mustRegister(fmt.Sprintf("%d_consecutive_tails", n), mustPattern(Run(n, Tails)))
		r.mustRegister(fmt.Sprintf("%d_consecutive_heads", n), mustPattern(Run(n, Heads)))
	}
	r.mustRegister("3_alternating", mustPattern(Alternating(3)))
	r.mustRegister("4_alternating", mustPattern(Alternating(4)))
	r.mustRegister("heads_tails_heads", mustPattern(Sequence("Heads-Tails-Heads", Heads, Tails, Heads)))
	r.mustRegister("tails_heads_tails", mustPattern(Sequence("Tails-Heads-Tails", Tails, Heads, Tails)))
	return r
}

func (r *Registry) Register(key string, p *Pattern) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidPattern)
	}
	if p == nil {
		return fmt.Errorf("%w: nil pattern for %q", ErrInvalidPattern, key)
	}
	if _, ok := r.patterns[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	r.keys = append(r.keys, key)
	r.patterns[key] = p
	return nil
}

func (r *Registry) Lookup(key string) (*Pattern, bool) {
	p, ok := r.patterns[key]
	return p, ok
}

// Keys returns registered keys in registration order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Descriptions returns key -> human-readable description.
func (r *Registry) Descriptions() map[string]string {
	out := make(map[string]string, len(r.patterns))
	for k, p := range r.patterns {
		out[k] = p.Description()
	}
	return out
}

func (r *Registry) Len() int { return len(r.keys) }

func (r *Registry) mustRegister(key string, p *Pattern) {
	if err := r.Register(key, p); err != nil {
		panic(err)
	}
}

func mustPattern(p *Pattern, err error) *Pattern {
	if err != nil {
		panic(err)
	}
	return p
}
