package tag

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/statekit"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
)

func newTestLifecycle(t *testing.T) *Lifecycle {
	t.Helper()
	l, err := NewLifecycle(component.NewID("acme", "foo"))
	if err != nil {
		t.Fatalf("NewLifecycle() error = %v", err)
	}
	return l
}

func TestLifecycle_Start(t *testing.T) {
	l := newTestLifecycle(t)

	if !l.Is(StatePending) {
		t.Errorf("State() = %v, want %v", l.State(), StatePending)
	}
	if l.Done() {
		t.Error("Done() = true in pending state, want false")
	}
}

func TestLifecycle_HappyPaths(t *testing.T) {
	tests := []struct {
		name   string
		events []statekit.EventType
		final  statekit.StateID
	}{
		{"committed", []statekit.EventType{EventGate, EventVersion, EventBuild, EventCommit}, StateTagged},
		{"soft", []statekit.EventType{EventGate, EventVersion, EventBuild, EventSoftTag}, StateSoftTagged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLifecycle(t)
			for _, e := range tt.events {
				if err := l.Fire(e); err != nil {
					t.Fatalf("Fire(%s) error = %v", e, err)
				}
			}
			if l.State() != tt.final {
				t.Errorf("State() = %v, want %v", l.State(), tt.final)
			}
			if !l.Done() {
				t.Error("Done() = false in final state")
			}
		})
	}
}

func TestLifecycle_InvalidTransition(t *testing.T) {
	l := newTestLifecycle(t)

	err := l.Fire(EventCommit)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fire(COMMIT) from pending error = %v, want ErrInvalidTransition", err)
	}
	if !l.Is(StatePending) {
		t.Errorf("State() = %v after rejected event, want pending", l.State())
	}
}

func TestLifecycle_Fail(t *testing.T) {
	l := newTestLifecycle(t)
	if err := l.Fire(EventGate); err != nil {
		t.Fatal(err)
	}

	l.Fail("pipeline failed")
	if !l.Is(StateFailed) {
		t.Errorf("State() = %v, want failed", l.State())
	}
	if l.Reason() != "pipeline failed" {
		t.Errorf("Reason() = %q", l.Reason())
	}

	// Failing again keeps the first reason.
	l.Fail("other")
	if l.Reason() != "pipeline failed" {
		t.Errorf("Reason() = %q after second Fail", l.Reason())
	}
}

func TestLifecycle_FailAfterTagIsNoop(t *testing.T) {
	l := newTestLifecycle(t)
	for _, e := range []statekit.EventType{EventGate, EventVersion, EventBuild, EventCommit} {
		if err := l.Fire(e); err != nil {
			t.Fatal(err)
		}
	}
	l.Fail("late")
	if !l.Is(StateTagged) {
		t.Errorf("State() = %v, want tagged", l.State())
	}
}
