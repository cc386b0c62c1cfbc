// Package wheel implements closed-loop angular speed control of one wheel,
// using encoder feedback and a PID law over the motor actuation domain.
package wheel

import (
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/viam-labs/omni3/encoder"
	"github.com/viam-labs/omni3/motor"
)

// Rejection errors returned by the speed request operations. They are
// caller-visible refusals, not faults: no controller state changes when a
// request is rejected.
var (
	// ErrSpeedOutOfRange means the requested speed exceeds the wheel's
	// configured maximum.
	ErrSpeedOutOfRange = errors.New("requested speed beyond wheel maximum")
	// ErrWheelDisabled means the wheel's maximum speed is zero and a nonzero
	// speed was requested.
	ErrWheelDisabled = errors.New("wheel is disabled")
)

const (
	defaultTicksPerRotation = 64
	defaultGearRatio        = 30
)

// Config describes one wheel's drive train and control gains.
type Config struct {
	// MaxAngularSpeed is the wheel's maximum angular speed in rad/s. Zero
	// disables the wheel.
	MaxAngularSpeed float64 `json:"max_angular_speed"`
	// TicksPerRotation is the number of encoder steps per encoder shaft
	// revolution. Defaults to 64.
	TicksPerRotation int `json:"ticks_per_rotation,omitempty"`
	// GearRatio is the number of encoder shaft revolutions per wheel
	// revolution. Defaults to 30.
	GearRatio float64 `json:"gear_ratio,omitempty"`
	// PID gains.
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

// A Controller holds a wheel at a requested angular speed despite load
// variation. All state is owned by the control tick; Tick, Configure and the
// request operations must not be called concurrently.
type Controller struct {
	logger  golog.Logger
	driver  motor.Driver
	encoder encoder.Encoder

	maxSpeed       float64
	kP, kI, kD     float64
	radiansPerTick float64

	// targetPower and the PID accumulators live in the signed actuation
	// domain [-motor.MaxPower, motor.MaxPower].
	targetPower   float64
	integral      float64
	lastError     float64
	measuredSpeed float64

	lastTicks int64
	primed    bool
}

// New wires a controller to its motor driver and encoder.
func New(driver motor.Driver, enc encoder.Encoder, cfg Config, logger golog.Logger) *Controller {
	ticksPerRotation := cfg.TicksPerRotation
	if ticksPerRotation == 0 {
		ticksPerRotation = defaultTicksPerRotation
	}
	gearRatio := cfg.GearRatio
	if gearRatio == 0 {
		gearRatio = defaultGearRatio
	}
	return &Controller{
		logger:         logger,
		driver:         driver,
		encoder:        enc,
		maxSpeed:       cfg.MaxAngularSpeed,
		kP:             cfg.Kp,
		kI:             cfg.Ki,
		kD:             cfg.Kd,
		radiansPerTick: 2 * math.Pi / (float64(ticksPerRotation) * gearRatio),
	}
}

// Configure replaces the wheel's speed limit and PID gains. Setting
// maxAngularSpeed to zero is the fail-safe disable: the current target is
// zeroed and the still actuation value is commanded immediately.
func (c *Controller) Configure(maxAngularSpeed, kP, kI, kD float64) error {
	c.maxSpeed = math.Abs(maxAngularSpeed)
	c.kP = kP
	c.kI = kI
	c.kD = kD
	if c.maxSpeed == 0 {
		c.logger.Warn("wheel disabled; forcing still actuation")
		c.targetPower = 0
		c.integral = 0
		c.lastError = 0
		return motor.SetPower(c.driver, 0)
	}
	return nil
}

// Disable is the fail-safe shutoff: it zeroes the wheel's maximum speed,
// keeping the current gains, so every nonzero request is rejected and the
// still actuation value is commanded.
func (c *Controller) Disable() error {
	return c.Configure(0, c.kP, c.kI, c.kD)
}

// MaxSpeed returns the configured maximum angular speed in rad/s.
func (c *Controller) MaxSpeed() float64 {
	return c.maxSpeed
}

// MeasuredSpeed returns the angular speed measured on the last tick, rad/s.
func (c *Controller) MeasuredSpeed() float64 {
	return c.measuredSpeed
}

// Accepts reports whether a physical speed request would be accepted.
func (c *Controller) Accepts(radPerSec float64) bool {
	if c.maxSpeed == 0 {
		return radPerSec == 0
	}
	return math.Abs(radPerSec) <= c.maxSpeed
}

// AcceptsNormalized reports whether a normalized speed request would be
// accepted.
func (c *Controller) AcceptsNormalized(norm float64) bool {
	if c.maxSpeed == 0 {
		return norm == 0
	}
	return math.Abs(norm) <= 1
}

// RequestSpeed sets a new target angular speed in rad/s. Requests beyond the
// configured maximum, or nonzero requests on a disabled wheel, are rejected
// with no state change.
func (c *Controller) RequestSpeed(radPerSec float64) error {
	if c.maxSpeed == 0 {
		if radPerSec != 0 {
			return ErrWheelDisabled
		}
		c.targetPower = 0
		return nil
	}
	if math.Abs(radPerSec) > c.maxSpeed {
		return errors.Wrapf(ErrSpeedOutOfRange, "%.3f rad/s > %.3f rad/s", radPerSec, c.maxSpeed)
	}
	c.targetPower = radPerSec / c.maxSpeed * motor.MaxPower
	return nil
}

// RequestNormalizedSpeed sets a new target as a fraction of the wheel's
// maximum speed, in [-1, 1].
func (c *Controller) RequestNormalizedSpeed(norm float64) error {
	if c.maxSpeed == 0 {
		if norm != 0 {
			return ErrWheelDisabled
		}
		c.targetPower = 0
		return nil
	}
	if math.Abs(norm) > 1 {
		return errors.Wrapf(ErrSpeedOutOfRange, "normalized %.3f outside [-1, 1]", norm)
	}
	c.targetPower = norm * motor.MaxPower
	return nil
}

// Tick runs one closed-loop step: it reads the encoder, derives the measured
// angular speed over dt, runs the PID law toward the current target, commands
// the motor driver and returns the radians the wheel turned this tick.
//
// The first call only primes the encoder baseline and reports zero
// displacement; calls with dt <= 0 are no-ops as well.
func (c *Controller) Tick(dt time.Duration) (float64, error) {
	ticks, err := c.encoder.Ticks()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read encoder")
	}
	if !c.primed || dt <= 0 {
		// Priming call, or a re-baseline after a stall: adopt the current
		// count so a later tick never folds the gap into its delta.
		c.lastTicks = ticks
		c.measuredSpeed = 0
		c.primed = true
		return 0, nil
	}

	deltaTicks := ticks - c.lastTicks
	c.lastTicks = ticks
	radians := float64(deltaTicks) * c.radiansPerTick
	dtS := dt.Seconds()
	c.measuredSpeed = radians / dtS

	power := c.updatePID(dtS)
	if err := motor.SetPower(c.driver, power); err != nil {
		return radians, err
	}
	return radians, nil
}

// updatePID advances the PID accumulators one step and returns the bounded
// actuation command. Target and measured speed are compared in the actuation
// domain, mirroring how the target is stored.
func (c *Controller) updatePID(dtS float64) int {
	measuredPower := 0.0
	if c.maxSpeed != 0 {
		measuredPower = c.measuredSpeed / c.maxSpeed * motor.MaxPower
	}
	err := c.targetPower - measuredPower
	c.integral += err * dtS
	derivative := (err - c.lastError) / dtS
	c.lastError = err

	output := c.kP*err + c.kI*c.integral + c.kD*derivative
	if output > motor.MaxPower {
		output = motor.MaxPower
	} else if output < -motor.MaxPower {
		output = -motor.MaxPower
	}
	return int(math.Round(output))
}
