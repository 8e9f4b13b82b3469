package grid

import (
	"strings"
	"testing"

	"github.com/flip-racer/flipsim/internal/session"
)

func TestResetAllRunning(t *testing.T) {
	m := New()
	m.Reset(5)
	running, found, maxed := m.Counts()
	if m.Len() != 5 || running != 5 || found != 0 || maxed != 0 {
		t.Errorf("Reset(5): len=%d counts=%d/%d/%d", m.Len(), running, found, maxed)
	}
}

func TestApply(t *testing.T) {
	m := New()
	m.Reset(3)
	m.Apply([]session.Update{
		{ID: 0, Completed: true, PatternFound: true},
		{ID: 2, Completed: true},
		{ID: -1, Completed: true},
	})
	running, found, maxed := m.Counts()
	if running != 1 || found != 1 || maxed != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", running, found, maxed)
	}

	// Applying the same update again changes nothing.
	m.Apply([]session.Update{{ID: 0, Completed: true, PatternFound: true}})
	if _, f, _ := m.Counts(); f != 1 {
		t.Errorf("found = %d after re-applying", f)
	}
}

func TestApplyGrows(t *testing.T) {
	m := New()
	m.Apply([]session.Update{{ID: 4, Completed: true, PatternFound: true}})
	if m.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", m.Len())
	}
	running, found, _ := m.Counts()
	if running != 4 || found != 1 {
		t.Errorf("counts = %d running, %d found", running, found)
	}
}

func TestLoad(t *testing.T) {
	m := New()
	m.Reset(10)
	m.Load([]session.Snapshot{
		{ID: 0},
		{ID: 1, Completed: true, PatternFound: true},
		{ID: 2, Completed: true},
	})
	running, found, maxed := m.Counts()
	if m.Len() != 3 || running != 1 || found != 1 || maxed != 1 {
		t.Errorf("Load: len=%d counts=%d/%d/%d", m.Len(), running, found, maxed)
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	if !strings.Contains(m.View(), "No sessions") {
		t.Errorf("expected placeholder, got:\n%s", m.View())
	}
}

func TestViewOverflow(t *testing.T) {
	m := New()
	m.Width = 44 // 40 glyphs per row
	m.MaxRows = 2
	m.Reset(100)
	v := m.View()
	if !strings.Contains(v, "+20 more") {
		t.Errorf("expected overflow marker:\n%s", v)
	}
	if !strings.Contains(v, "running 100") {
		t.Errorf("legend should count hidden sessions:\n%s", v)
	}
}

func TestViewNoOverflow(t *testing.T) {
	m := New()
	m.Width = 44
	m.Reset(30)
	if strings.Contains(m.View(), "more") {
		t.Error("unexpected overflow marker")
	}
}
