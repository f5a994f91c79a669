// Package session implements the capture/classify lifecycle as an explicit
// state machine. Transition is a pure function; Session wraps it with the side
// effects (camera, classification call) and Store keeps sessions by id.
package session

import (
	"errors"
	"fmt"

	"github.com/fleveque/ecosort/internal/model"
)

// State is the lifecycle phase of a session.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateLoading   State = "loading"
	StateResult    State = "result"
	StateError     State = "error"
)

// EventType is what happened to the session.
type EventType string

const (
	EventStartCapture  EventType = "start_capture"
	EventFrameCaptured EventType = "frame_captured"
	EventCancel        EventType = "cancel"
	EventFileSelected  EventType = "file_selected"
	EventSucceeded     EventType = "succeeded"
	EventFailed        EventType = "failed"
	EventReset         EventType = "reset"
)

var (
	// ErrInvalidTransition is returned for a (state, event) pair the table does not allow.
	ErrInvalidTransition = errors.New("session: invalid transition")

	// ErrStaleResult is returned when a classification outcome arrives for a
	// request the session no longer waits for (reset or superseded).
	ErrStaleResult = errors.New("session: stale result")
)

// Event is one input to the machine. Generation is set on Succeeded and Failed
// to the generation the request was issued for.
type Event struct {
	Type       EventType
	Generation uint64
	Result     model.ClassificationResult
	Err        error
}

// Machine is the complete machine value. It is copied, never shared.
type Machine struct {
	State      State
	Generation uint64
	Result     *model.ClassificationResult
	Err        error
}

// transitions is the table of allowed moves. Succeeded and Failed are further
// guarded by the generation check in Transition.
var transitions = map[State]map[EventType]State{
	StateIdle: {
		EventStartCapture: StateCapturing,
		EventFileSelected: StateLoading,
	},
	StateCapturing: {
		EventFrameCaptured: StateLoading,
		EventCancel:        StateIdle,
	},
	StateLoading: {
		EventSucceeded: StateResult,
		EventFailed:    StateError,
		EventReset:     StateIdle,
	},
	StateResult: {
		EventReset: StateIdle,
	},
	StateError: {
		EventReset: StateIdle,
	},
}

// Transition applies e to m and returns the new machine.
// On error the returned machine equals m.
func Transition(m Machine, e Event) (Machine, error) {
	if e.Type == EventSucceeded || e.Type == EventFailed {
		if m.State != StateLoading || e.Generation != m.Generation {
			return m, fmt.Errorf("%w: generation %d, session at %s/%d", ErrStaleResult, e.Generation, m.State, m.Generation)
		}
	}

	to, ok := transitions[m.State][e.Type]
	if !ok {
		return m, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e.Type, m.State)
	}

	next := m
	next.State = to

	switch to {
	case StateLoading:
		// Starting a request invalidates any previous outcome in the same step.
		next.Generation = m.Generation + 1
		next.Result = nil
		next.Err = nil
	case StateResult:
		r := e.Result
		next.Result = &r
		next.Err = nil
	case StateError:
		next.Result = nil
		next.Err = e.Err
		if next.Err == nil {
			next.Err = errors.New("classification failed")
		}
	case StateIdle:
		next.Result = nil
		next.Err = nil
	}
	return next, nil
}

// Allowed reports whether e is accepted in state s, ignoring generations.
func Allowed(s State, e EventType) bool {
	_, ok := transitions[s][e]
	return ok
}
