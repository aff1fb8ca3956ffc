// Package unwind releases acquired resources in reverse acquisition order.
//
// Every step that acquires something pushes the matching release onto a
// Stack. Unwind then runs the releases last-in first-out, on success and
// failure paths alike.
package unwind

import (
	"errors"
	"fmt"
	"sync"
)

// ReleaseError records the failure of one named release step.
type ReleaseError struct {
	Step string
	Err  error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %s: %v", e.Step, e.Err)
}

func (e *ReleaseError) Unwrap() error { return e.Err }

type step struct {
	name    string
	release func() error
}

// Stack is a LIFO of release steps. The zero value is ready to use.
type Stack struct {
	mu    sync.Mutex
	steps []step
	done  []string
}

// Push records a release step. Steps run in reverse push order.
func (s *Stack) Push(name string, release func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{name: name, release: release})
}

// Len returns the number of pending release steps.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// Unwind runs every pending step, newest first. A failing step does not stop
// the steps below it. The returned error joins one *ReleaseError per failed
// step, or is nil. The stack is empty afterwards, so calling Unwind again is
// a no-op.
func (s *Stack) Unwind() error {
	s.mu.Lock()
	steps := s.steps
	s.steps = nil
	s.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		if err := st.release(); err != nil {
			errs = append(errs, &ReleaseError{Step: st.name, Err: err})
		}
		s.mu.Lock()
		s.done = append(s.done, st.name)
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Released returns the names of the steps run so far, in execution order.
func (s *Stack) Released() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.done))
	copy(out, s.done)
	return out
}
