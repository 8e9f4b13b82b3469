// Package runner owns the single process-wide Simulator. It serialises
// every call behind one mutex and drives the periodic update task that
// steps the simulation and publishes results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flip-racer/flipsim/internal/logging"
	"github.com/flip-racer/flipsim/internal/session"
	"github.com/flip-racer/flipsim/internal/sim"
)

// ErrTickFault wraps a panic recovered while stepping.
var ErrTickFault = errors.New("simulation tick fault")

// Publisher receives the events produced by a run.
type Publisher interface {
	PublishStep(sim.StepResult)
	PublishStatistics(sim.Statistics)
	PublishCompleted(sim.Statistics)
	PublishError(error)
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) PublishStep(sim.StepResult)       {}
func (NopPublisher) PublishStatistics(sim.Statistics) {}
func (NopPublisher) PublishCompleted(sim.Statistics)  {}
func (NopPublisher) PublishError(error)               {}

type Options struct {
	TickInterval  time.Duration
	StatsInterval time.Duration
}

// ConfigureRequest carries the parameters of a Configure call.
type ConfigureRequest struct {
	PatternKey  string `json:"pattern_type"`
	NumSessions int    `json:"num_sessions"`
	MaxFlips    int    `json:"max_flips_per_session"`
}

type Runner struct {
	mu   sync.Mutex
	sim  *sim.Simulator
	pub  Publisher
	opts Options
	log  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	// stepHook runs inside every driven tick; tests use it to inject faults.
	stepHook func()
}

func New(s *sim.Simulator, pub Publisher, opts Options, logger *slog.Logger) *Runner {
	if pub == nil {
		pub = NopPublisher{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = 500 * time.Millisecond
	}
	return &Runner{
		sim:  s,
		pub:  pub,
		opts: opts,
		log:  logging.OrDefault(logger),
	}
}

func (r *Runner) Patterns() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.AvailablePatterns()
}

func (r *Runner) PatternKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.PatternKeys()
}

func (r *Runner) Configure(req ConfigureRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Configure(req.PatternKey, req.NumSessions, req.MaxFlips)
}

// Start optionally applies req, starts a fresh run and launches the update
// loop. The loop lives until the run completes, Stop or Reset is called, or
// ctx is cancelled.
func (r *Runner) Start(ctx context.Context, req *ConfigureRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req != nil {
		if err := r.sim.Configure(req.PatternKey, req.NumSessions, req.MaxFlips); err != nil {
			return err
		}
	}
	if err := r.sim.Start(); err != nil {
		return err
	}

	r.cancelLoopLocked()
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	key, n, maxFlips := r.sim.Config()
	r.log.Info("simulation started", "pattern", key, "sessions", n, "max_flips", maxFlips)

	go r.loop(loopCtx, done)
	return nil
}

func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sim.Stop()
	r.cancelLoopLocked()
	r.log.Info("simulation stopped")
}

func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sim.Reset()
	r.cancelLoopLocked()
	r.log.Info("simulation reset")
}

// Step advances the simulation by one manual tick and publishes the result.
// A step that completes the run also publishes the final statistics and
// ends the update loop.
func (r *Runner) Step() sim.StepResult {
	r.mu.Lock()
	res := r.sim.Step()
	var final sim.Statistics
	if res.Status == sim.StatusCompleted {
		final, _ = r.sim.Statistics()
		r.cancelLoopLocked()
	}
	r.mu.Unlock()

	if len(res.Updates) > 0 {
		r.pub.PublishStep(res)
	}
	if res.Status == sim.StatusCompleted {
		r.complete(final)
	}
	return res
}

func (r *Runner) complete(st sim.Statistics) {
	r.log.Info("simulation completed",
		"sessions", st.TotalSessions,
		"pattern_found", st.PatternFoundSessions,
		"actual_ev", st.ActualEV,
		"theoretical_ev", st.TheoreticalEV)
	r.pub.PublishCompleted(st)
}

func (r *Runner) Statistics() (sim.Statistics, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Statistics()
}

func (r *Runner) Sessions() []session.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Sessions()
}

func (r *Runner) State() sim.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.State()
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.IsRunning()
}

// Wait blocks until the current update loop, if any, has exited.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// cancelLoopLocked signals the active loop to exit. Caller must hold r.mu.
func (r *Runner) cancelLoopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer r.loopExited(done)

	tick := time.NewTicker(r.opts.TickInterval)
	defer tick.Stop()
	stats := time.NewTicker(r.opts.StatsInterval)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stats.C:
			if st, ok := r.Statistics(); ok {
				r.pub.PublishStatistics(st)
			}
		case <-tick.C:
			res, err := r.tick(ctx)
			if err != nil {
				r.log.Error("simulation update failed", "err", err)
				r.pub.PublishError(err)
				return
			}
			if ctx.Err() != nil {
				return
			}

			if len(res.Updates) > 0 {
				r.pub.PublishStep(res)
			}

			switch res.Status {
			case sim.StatusCompleted:
				st, _ := r.Statistics()
				r.complete(st)
				return
			case sim.StatusNotRunning:
				return
			}
		}
	}
}

// loopExited runs when the loop identified by done ends. If that loop is
// still the current one, nothing else has stopped the run (the parent
// context ended, or the run completed), so it stops the simulator and
// releases the cancel handle.
func (r *Runner) loopExited(done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != done {
		return
	}
	if r.sim.IsRunning() {
		r.sim.Stop()
		r.log.Info("simulation stopped", "reason", "update loop ended")
	}
	r.cancelLoopLocked()
}

// tick performs one guarded step. A panic aborts the tick, stops the
// simulator and is returned as an ErrTickFault. Sessions already advanced
// before the panic keep their new flips.
func (r *Runner) tick(ctx context.Context) (res sim.StepResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.sim.Stop()
			err = fmt.Errorf("%w: %v", ErrTickFault, p)
		}
	}()

	// Stop or Reset may have won the lock after this tick fired.
	if ctx.Err() != nil {
		return sim.StepResult{Status: sim.StatusNotRunning}, nil
	}
	if r.stepHook != nil {
		r.stepHook()
	}
	return r.sim.Step(), nil
}
