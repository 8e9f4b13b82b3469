package session

import (
	"encoding/json"

	"github.com/flip-racer/flipsim/internal/pattern"
)

// StopReason records why a session stopped flipping.
type StopReason int

const (
	NotStopped StopReason = iota
	PatternFound
	MaxFlipsReached
)

var reasonNames = map[StopReason]string{
	NotStopped:      "",
	PatternFound:    "pattern_found",
	MaxFlipsReached: "max_flips_reached",
}

var reasonFromName = map[string]StopReason{
	"":                  NotStopped,
	"pattern_found":     PatternFound,
	"max_flips_reached": MaxFlipsReached,
}

func (r StopReason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "unknown"
}

func (r StopReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *StopReason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := reasonFromName[s]; ok {
		*r = v
	}
	return nil
}

// Snapshot is a read-only copy of a session, safe to retain and serialise.
type Snapshot struct {
	ID                 int               `json:"session_id"`
	Flips              []pattern.Outcome `json:"flips"`
	FlipsCount         int               `json:"flips_count"`
	Completed          bool              `json:"completed"`
	PatternFound       bool              `json:"pattern_found"`
	PatternPosition    *int              `json:"pattern_position"`
	StoppedReason      StopReason        `json:"stopped_reason"`
	PatternDescription string            `json:"pattern_description"`
}

// Update is the per-tick delta for one session.
type Update struct {
	ID           int             `json:"session_id"`
	FlipResult   pattern.Outcome `json:"flip_result"`
	FlipsCount   int             `json:"flips_count"`
	Completed    bool            `json:"completed"`
	PatternFound bool            `json:"pattern_found"`
}
