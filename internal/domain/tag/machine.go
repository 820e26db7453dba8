package tag

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
)

// ErrInvalidTransition indicates an event that the current lifecycle state
// does not accept.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// LifecycleContext is the context passed to the state machine.
type LifecycleContext struct {
	Component component.ID
}

// Event names for the component lifecycle.
const (
	EventGate    statekit.EventType = "GATE"
	EventVersion statekit.EventType = "VERSION"
	EventBuild   statekit.EventType = "BUILD"
	EventSoftTag statekit.EventType = "SOFT_TAG"
	EventCommit  statekit.EventType = "COMMIT"
	EventFail    statekit.EventType = "FAIL"
)

// State IDs for the component lifecycle.
const (
	StatePending    statekit.StateID = "pending"
	StateGated      statekit.StateID = "gated"
	StateVersioned  statekit.StateID = "versioned"
	StateBuilt      statekit.StateID = "built"
	StateSoftTagged statekit.StateID = "soft_tagged"
	StateTagged     statekit.StateID = "tagged"
	StateFailed     statekit.StateID = "failed"
)

func newLifecycleInterpreter() (*statekit.Interpreter[LifecycleContext], error) {
	machine, err := statekit.NewMachine[LifecycleContext]("component-tag").
		WithInitial(StatePending).
		State(StatePending).
		On(EventGate).Target(StateGated).
		On(EventFail).Target(StateFailed).
		Done().
		State(StateGated).
		On(EventVersion).Target(StateVersioned).
		On(EventFail).Target(StateFailed).
		Done().
		// Pipelines may be skipped; BUILD is still sent so that soft and
		// committed tags share one path.
		State(StateVersioned).
		On(EventBuild).Target(StateBuilt).
		On(EventFail).Target(StateFailed).
		Done().
		State(StateBuilt).
		On(EventSoftTag).Target(StateSoftTagged).
		On(EventCommit).Target(StateTagged).
		On(EventFail).Target(StateFailed).
		Done().
		State(StateSoftTagged).
		Final().
		Done().
		State(StateTagged).
		Final().
		Done().
		State(StateFailed).
		Final().
		Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build lifecycle machine: %w", err)
	}
	return statekit.NewInterpreter(machine), nil
}

// Lifecycle tracks one component through a tag run.
type Lifecycle struct {
	id          component.ID
	interpreter *statekit.Interpreter[LifecycleContext]
	reason      string
}

// NewLifecycle starts a lifecycle in the pending state.
func NewLifecycle(id component.ID) (*Lifecycle, error) {
	interp, err := newLifecycleInterpreter()
	if err != nil {
		return nil, err
	}
	interp.Start()
	return &Lifecycle{id: id, interpreter: interp}, nil
}

// Fire sends an event and fails when the state does not accept it.
func (l *Lifecycle) Fire(event statekit.EventType) error {
	before := l.State()
	l.interpreter.Send(statekit.Event{Type: event})
	if l.State() == before {
		return fmt.Errorf("%w: %s cannot handle %s in state %s", ErrInvalidTransition, l.id, event, before)
	}
	return nil
}

// Fail moves the lifecycle to failed, recording why. Failing a finished
// lifecycle is a no-op.
func (l *Lifecycle) Fail(reason string) {
	if l.Done() {
		return
	}
	l.interpreter.Send(statekit.Event{Type: EventFail})
	l.reason = reason
}

// State returns the current state.
func (l *Lifecycle) State() statekit.StateID {
	return l.interpreter.State().Value
}

// Is reports whether the lifecycle is in state s.
func (l *Lifecycle) Is(s statekit.StateID) bool {
	return l.State() == s
}

// Done reports whether the lifecycle reached a final state.
func (l *Lifecycle) Done() bool {
	return l.interpreter.Done()
}

// Reason returns the failure reason, if any.
func (l *Lifecycle) Reason() string {
	return l.reason
}
