// Package fake implements a fake motor driver.
package fake

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/viam-labs/omni3/motor"
)

// Motor records the last actuation command sent to it.
type Motor struct {
	mu        sync.Mutex
	magnitude int
	direction motor.Direction

	// FailCommands makes every driver call return an error, to exercise
	// caller fault paths.
	FailCommands bool
}

// SetMagnitude stores the requested actuation magnitude.
func (m *Motor) SetMagnitude(magnitude int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return errors.New("fake motor configured to fail")
	}
	if magnitude < 0 || magnitude > motor.MaxPower {
		return errors.Errorf("magnitude %d out of range [0, %d]", magnitude, motor.MaxPower)
	}
	m.magnitude = magnitude
	return nil
}

// SetDirection stores the requested direction.
func (m *Motor) SetDirection(dir motor.Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommands {
		return errors.New("fake motor configured to fail")
	}
	m.direction = dir
	return nil
}

// Direction returns the last commanded direction.
func (m *Motor) Direction() motor.Direction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.direction
}

// Power returns the last commanded actuation as a signed value in
// [-motor.MaxPower, motor.MaxPower].
func (m *Motor) Power() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.direction == motor.DirectionBackward {
		return -m.magnitude
	}
	return m.magnitude
}
