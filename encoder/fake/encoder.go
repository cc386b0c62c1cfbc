// Package fake implements a fake encoder.
package fake

import "sync"

// Encoder keeps track of a fake wheel position.
type Encoder struct {
	mu       sync.Mutex
	position int64
}

// Ticks returns the current position in terms of steps.
func (e *Encoder) Ticks() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position, nil
}

// Advance moves the fake wheel by the given number of steps.
func (e *Encoder) Advance(steps int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position += steps
}

// SetPosition sets the step counter to an absolute value.
func (e *Encoder) SetPosition(steps int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = steps
}
