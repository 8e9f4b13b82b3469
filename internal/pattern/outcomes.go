package pattern

import (
	"fmt"
	"strings"
)

// ParseOutcomes reads a compact flip string such as "HTH", "h-t-h" or
// "1,0,1". Separators (space, '-', ',') are ignored.
func ParseOutcomes(s string) ([]Outcome, error) {
	var out []Outcome
	for i, r := range s {
		switch r {
		case 'H', 'h', '1':
			out = append(out, Heads)
		case 'T', 't', '0':
			out = append(out, Tails)
		case ' ', '-', ',':
		default:
			return nil, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrInvalidPattern, r, i, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no outcomes in %q", ErrInvalidPattern, s)
	}
	return out, nil
}

// FormatOutcomes renders outcomes as H/T letters.
func FormatOutcomes(flips []Outcome) string {
	var b strings.Builder
	b.Grow(len(flips))
	for _, f := range flips {
		b.WriteString(f.Letter())
	}
	return b.String()
}

// ParseOutcome accepts "heads"/"tails", "h"/"t" or "1"/"0".
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heads", "h", "1":
		return Heads, nil
	case "tails", "t", "0":
		return Tails, nil
	}
	return 0, fmt.Errorf("%w: unknown outcome %q", ErrInvalidPattern, s)
}
