// Package motor abstracts the low-level motor driver hardware.
package motor

import "github.com/pkg/errors"

// MaxPower is the actuation ceiling of a driver. Feasible signed power
// values are in [-MaxPower, MaxPower].
const MaxPower = 255

// A Direction tells a driver how the motor shaft should behave.
type Direction uint8

const (
	// DirectionReleased leaves the motor free to rotate.
	DirectionReleased Direction = iota
	// DirectionForward rotates the motor forward at the set magnitude.
	DirectionForward
	// DirectionBackward rotates the motor backward at the set magnitude.
	DirectionBackward
	// DirectionBraked holds the shaft with the engine brake.
	DirectionBraked
)

func (d Direction) String() string {
	switch d {
	case DirectionReleased:
		return "released"
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	case DirectionBraked:
		return "braked"
	}
	return "unknown"
}

// A Driver is the capability exposed by a motor driver chip: an unsigned
// actuation magnitude plus a rotation direction. Implementations are expected
// to be non-blocking.
type Driver interface {
	// SetMagnitude sets the actuation magnitude, in [0, MaxPower].
	SetMagnitude(magnitude int) error

	// SetDirection sets which way the shaft rotates, or whether it is
	// released or braked.
	SetDirection(dir Direction) error
}

// SetPower commands a signed power value on a driver, deriving the direction
// from the sign and the magnitude from the absolute value. Values beyond
// [-MaxPower, MaxPower] are clamped. A power of zero releases the motor.
func SetPower(d Driver, power int) error {
	if power > MaxPower {
		power = MaxPower
	} else if power < -MaxPower {
		power = -MaxPower
	}

	dir := DirectionReleased
	switch {
	case power > 0:
		dir = DirectionForward
	case power < 0:
		dir = DirectionBackward
		power = -power
	}

	if err := d.SetDirection(dir); err != nil {
		return errors.Wrap(err, "failed to set motor direction")
	}
	if err := d.SetMagnitude(power); err != nil {
		return errors.Wrap(err, "failed to set motor magnitude")
	}
	return nil
}
