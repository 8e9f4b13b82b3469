package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flip-racer/flipsim/internal/logging"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	steps     []sim.StepResult
	stats     []sim.Statistics
	completed []sim.Statistics
	errs      []error
}

func (p *recordingPublisher) PublishStep(r sim.StepResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, r)
}

func (p *recordingPublisher) PublishStatistics(s sim.Statistics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = append(p.stats, s)
}

func (p *recordingPublisher) PublishCompleted(s sim.Statistics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, s)
}

func (p *recordingPublisher) PublishError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

func (p *recordingPublisher) counts() (steps, stats, completed, errs int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps), len(p.stats), len(p.completed), len(p.errs)
}

func newTestRunner(t *testing.T, opts Options) (*Runner, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	r := New(sim.New(nil, sim.WithSeed(5)), pub, opts, logging.Discard())
	t.Cleanup(func() {
		r.Stop()
		r.Wait()
	})
	return r, pub
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRunToCompletionPublishesFinalStatistics(t *testing.T) {
	r, pub := newTestRunner(t, Options{TickInterval: time.Millisecond, StatsInterval: time.Hour})

	err := r.Start(context.Background(), &ConfigureRequest{
		PatternKey:  "2_consecutive_tails",
		NumSessions: 20,
		MaxFlips:    30,
	})
	require.NoError(t, err)
	r.Wait()

	steps, _, completed, errs := pub.counts()
	assert.Positive(t, steps)
	assert.Equal(t, 1, completed)
	assert.Zero(t, errs)
	assert.False(t, r.Running())

	final := pub.completed[0]
	assert.Equal(t, 20, final.TotalSessions)
	assert.Equal(t, 20, final.CompletedSessions)
	assert.False(t, final.IsRunning)

	for _, res := range pub.steps {
		assert.NotEmpty(t, res.Updates)
	}

	r.mu.Lock()
	assert.Nil(t, r.cancel, "completed loop should release its cancel handle")
	r.mu.Unlock()
}

func TestStartErrors(t *testing.T) {
	r, _ := newTestRunner(t, Options{TickInterval: time.Hour})

	err := r.Start(context.Background(), nil)
	assert.ErrorIs(t, err, sim.ErrNotConfigured)

	err = r.Start(context.Background(), &ConfigureRequest{PatternKey: "nope", NumSessions: 1, MaxFlips: 1})
	assert.ErrorIs(t, err, sim.ErrUnknownPattern)

	require.NoError(t, r.Configure(ConfigureRequest{PatternKey: "3_alternating", NumSessions: 3, MaxFlips: 9}))
	require.NoError(t, r.Start(context.Background(), nil))
	assert.ErrorIs(t, r.Start(context.Background(), nil), sim.ErrAlreadyRunning)
}

func TestStopHaltsLoopAndKeepsSessions(t *testing.T) {
	r, pub := newTestRunner(t, Options{TickInterval: time.Millisecond, StatsInterval: time.Hour})

	require.NoError(t, r.Start(context.Background(), &ConfigureRequest{
		PatternKey:  "4_consecutive_heads",
		NumSessions: 10,
		MaxFlips:    sim.DefaultFlipLimit,
	}))
	waitFor(t, func() bool {
		steps, _, _, _ := pub.counts()
		return steps >= 3
	})

	r.Stop()
	r.Wait()
	assert.False(t, r.Running())
	assert.Equal(t, sim.Stopped, r.State())
	assert.Len(t, r.Sessions(), 10)

	steps, _, completed, _ := pub.counts()
	time.Sleep(20 * time.Millisecond)
	after, _, _, _ := pub.counts()
	assert.Equal(t, steps, after, "loop kept stepping after Stop")
	assert.Zero(t, completed)
}

func TestResetClearsSessions(t *testing.T) {
	r, _ := newTestRunner(t, Options{TickInterval: time.Hour})

	require.NoError(t, r.Start(context.Background(), &ConfigureRequest{
		PatternKey: "2_consecutive_heads", NumSessions: 5, MaxFlips: 10,
	}))
	r.Reset()
	r.Wait()

	assert.Empty(t, r.Sessions())
	assert.False(t, r.Running())
	_, ok := r.Statistics()
	assert.False(t, ok)

	// Configuration survives a reset.
	require.NoError(t, r.Start(context.Background(), nil))
	assert.Len(t, r.Sessions(), 5)
}

func TestPeriodicStatistics(t *testing.T) {
	r, pub := newTestRunner(t, Options{TickInterval: time.Hour, StatsInterval: 5 * time.Millisecond})

	require.NoError(t, r.Start(context.Background(), &ConfigureRequest{
		PatternKey: "3_consecutive_tails", NumSessions: 4, MaxFlips: 10,
	}))
	waitFor(t, func() bool {
		_, stats, _, _ := pub.counts()
		return stats >= 2
	})

	pub.mu.Lock()
	st := pub.stats[0]
	pub.mu.Unlock()
	assert.Equal(t, 4, st.TotalSessions)
	assert.True(t, st.IsRunning)
}

func TestTickFaultStopsLoop(t *testing.T) {
	r, pub := newTestRunner(t, Options{TickInterval: time.Millisecond, StatsInterval: time.Hour})
	r.stepHook = func() { panic("boom") }

	require.NoError(t, r.Start(context.Background(), &ConfigureRequest{
		PatternKey: "2_consecutive_tails", NumSessions: 3, MaxFlips: 10,
	}))
	r.Wait()

	_, _, completed, errs := pub.counts()
	require.Equal(t, 1, errs)
	assert.ErrorIs(t, pub.errs[0], ErrTickFault)
	assert.Contains(t, pub.errs[0].Error(), "boom")
	assert.Zero(t, completed)
	assert.False(t, r.Running())
}

func TestContextCancelEndsLoop(t *testing.T) {
	r, _ := newTestRunner(t, Options{TickInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, r.Start(ctx, &ConfigureRequest{
		PatternKey: "4_consecutive_tails", NumSessions: 2, MaxFlips: sim.DefaultFlipLimit,
	}))
	cancel()

	finished := make(chan struct{})
	go func() {
		r.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after context cancel")
	}

	// Nothing drives the run any more, so it must not look running.
	assert.False(t, r.Running())
	assert.Equal(t, sim.Stopped, r.State())
	require.NoError(t, r.Start(context.Background(), nil))
	assert.True(t, r.Running())
}

func TestManualStep(t *testing.T) {
	r, pub := newTestRunner(t, Options{TickInterval: time.Hour})

	res := r.Step()
	assert.Equal(t, sim.StatusNotRunning, res.Status)
	steps, _, _, _ := pub.counts()
	assert.Zero(t, steps, "no-op step should not be published")

	require.NoError(t, r.Start(context.Background(), &ConfigureRequest{
		PatternKey: "heads_tails_heads", NumSessions: 6, MaxFlips: 10,
	}))
	res = r.Step()
	assert.Equal(t, sim.StatusRunning, res.Status)
	assert.Len(t, res.Updates, 6)
	steps, _, _, _ = pub.counts()
	assert.Equal(t, 1, steps)
}

func TestManualStepCompletingRunPublishesFinalStatistics(t *testing.T) {
	r, pub := newTestRunner(t, Options{TickInterval: 200 * time.Millisecond, StatsInterval: time.Hour})

	require.NoError(t, r.Start(context.Background(), &ConfigureRequest{
		PatternKey: "2_consecutive_tails", NumSessions: 1, MaxFlips: 1,
	}))
	assert.Equal(t, sim.StatusRunning, r.Step().Status)
	assert.Equal(t, sim.StatusCompleted, r.Step().Status)

	finished := make(chan struct{})
	go func() {
		r.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("loop kept running after a manual step completed the run")
	}

	_, _, completed, errs := pub.counts()
	require.Equal(t, 1, completed)
	assert.Zero(t, errs)
	assert.False(t, r.Running())

	final := pub.completed[0]
	assert.Equal(t, 1, final.TotalSessions)
	assert.Equal(t, 1, final.CompletedSessions)
	assert.Equal(t, "2_consecutive_tails", final.PatternKey)

	// Further steps are no-ops and publish nothing.
	assert.Equal(t, sim.StatusNotRunning, r.Step().Status)
	_, _, completed, _ = pub.counts()
	assert.Equal(t, 1, completed)
}

func TestPatterns(t *testing.T) {
	r, _ := newTestRunner(t, Options{})
	assert.Len(t, r.Patterns(), 10)
	assert.Equal(t, "2_consecutive_tails", r.PatternKeys()[0])
	assert.Equal(t, sim.Unconfigured, r.State())
}
