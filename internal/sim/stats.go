package sim

import "github.com/flip-racer/flipsim/internal/session"

// StepStatus summarises the outcome of one Step call.
type StepStatus string

const (
	StatusRunning    StepStatus = "running"
	StatusCompleted  StepStatus = "completed"
	StatusNotRunning StepStatus = "not_running"
)

// StepResult is returned by Step and pushed to listeners every tick.
type StepResult struct {
	Status         StepStatus       `json:"status"`
	ActiveSessions int              `json:"active_sessions"`
	Updates        []session.Update `json:"updates"`
}

// Statistics aggregates the current session set.
type Statistics struct {
	TotalSessions            int     `json:"total_sessions"`
	CompletedSessions        int     `json:"completed_sessions"`
	PatternFoundSessions     int     `json:"pattern_found_sessions"`
	MaxFlipsReachedSessions  int     `json:"max_flips_reached_sessions"`
	CompletionRate           float64 `json:"completion_rate"`
	PatternSuccessRate       float64 `json:"pattern_success_rate"`
	AverageFlipsAll          float64 `json:"average_flips_all"`
	AverageFlipsPatternFound float64 `json:"average_flips_pattern_found"`
	TheoreticalEV            float64 `json:"theoretical_ev"`
	ActualEV                 float64 `json:"actual_ev"`
	EVDeviation              float64 `json:"ev_deviation"`
	PatternKey               string  `json:"pattern_key"`
	PatternDescription       string  `json:"pattern_description"`
	IsRunning                bool    `json:"is_running"`
}

// Statistics computes aggregates over the current sessions. ok is false when
// there are no sessions, in which case the zero value is returned.
func (s *Simulator) Statistics() (st Statistics, ok bool) {
	if len(s.sessions) == 0 {
		return Statistics{}, false
	}

	var completedFlips, foundFlips int
	for _, sess := range s.sessions {
		if !sess.Completed() {
			continue
		}
		st.CompletedSessions++
		completedFlips += sess.FlipCount()
		switch sess.Reason() {
		case session.PatternFound:
			st.PatternFoundSessions++
			foundFlips += sess.FlipCount()
		case session.MaxFlipsReached:
			st.MaxFlipsReachedSessions++
		}
	}

	st.TotalSessions = len(s.sessions)
	st.CompletionRate = ratio(st.CompletedSessions, st.TotalSessions)
	st.PatternSuccessRate = ratio(st.PatternFoundSessions, st.CompletedSessions)
	st.AverageFlipsAll = ratio(completedFlips, st.CompletedSessions)
	st.AverageFlipsPatternFound = ratio(foundFlips, st.PatternFoundSessions)
	st.ActualEV = st.AverageFlipsPatternFound
	st.IsRunning = s.running

	if s.runPattern != nil {
		st.TheoreticalEV = s.runPattern.TheoreticalEV()
		st.PatternDescription = s.runPattern.Description()
		st.PatternKey = s.runKey
	}
	if st.PatternFoundSessions > 0 {
		st.EVDeviation = st.ActualEV - st.TheoreticalEV
	}
	return st, true
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
