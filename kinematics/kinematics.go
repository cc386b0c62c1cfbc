// Package kinematics implements the geometric transforms of a three-wheel
// omnidirectional drive with wheels 120 degrees apart, plus the odometry
// integration of body-frame displacement into a global pose.
//
// Looking at the robot from the top with its forward direction at 12 o'clock,
// the "right" wheel sits at 2 o'clock, the "back" wheel at 6 o'clock and the
// "left" wheel at 10 o'clock.
package kinematics

import (
	"math"

	"github.com/pkg/errors"
)

const (
	sin30 = 0.5
	cos30 = 0.86602540378443864676
	tan30 = 0.57735026918962576451
)

// A Velocity is a body-frame velocity. Forward and Strafe are m/s and Angular
// is rad/s, unless the velocity is used in normalized form, in which case each
// component is a fraction of the wheels' combined budget (see
// NormalizedWheelSpeeds).
type Velocity struct {
	Forward float64
	Strafe  float64
	Angular float64
}

// A Displacement is a body-frame delta accumulated over one control tick.
// Forward and Strafe are meters, Theta is radians.
type Displacement struct {
	Forward float64
	Strafe  float64
	Theta   float64
}

// Wheels holds one angular quantity (speed or displacement) per wheel.
type Wheels struct {
	Right float64
	Back  float64
	Left  float64
}

// A Model holds the drive geometry and the constants derived from it.
type Model struct {
	wheelRadius float64
	robotRadius float64

	c30R float64 // cos(30°)/R
	s30R float64 // sin(30°)/R
	t30R float64 // tan(30°)·R
	r3   float64 // R/3
	lR   float64 // L/R
	r3L  float64 // R/(3L)
}

// NewModel builds a Model from the wheel radius and the robot radius (the
// distance from the robot center to a wheel), both in meters.
func NewModel(wheelRadius, robotRadius float64) (*Model, error) {
	if wheelRadius <= 0 {
		return nil, errors.Errorf("wheel radius must be positive, got %f", wheelRadius)
	}
	if robotRadius <= 0 {
		return nil, errors.Errorf("robot radius must be positive, got %f", robotRadius)
	}
	return &Model{
		wheelRadius: wheelRadius,
		robotRadius: robotRadius,
		c30R:        cos30 / wheelRadius,
		s30R:        sin30 / wheelRadius,
		t30R:        tan30 * wheelRadius,
		r3:          wheelRadius / 3,
		lR:          robotRadius / wheelRadius,
		r3L:         wheelRadius / (3 * robotRadius),
	}, nil
}

// WheelRadius returns the wheel radius in meters.
func (m *Model) WheelRadius() float64 {
	return m.wheelRadius
}

// RobotRadius returns the robot radius in meters.
func (m *Model) RobotRadius() float64 {
	return m.robotRadius
}

// Direct computes the body displacement produced by the given per-wheel
// angular displacements (radians).
func (m *Model) Direct(w Wheels) Displacement {
	return Displacement{
		Forward: m.t30R * (w.Right - w.Left),
		Strafe:  m.r3 * (w.Right - 2*w.Back + w.Left),
		Theta:   m.r3L * (w.Right + w.Back + w.Left),
	}
}

// WheelSpeeds computes the per-wheel angular speeds (rad/s) that realize the
// given physical body velocity.
func (m *Model) WheelSpeeds(v Velocity) Wheels {
	s := m.s30R * v.Strafe
	f := m.c30R * v.Forward
	t := m.lR * v.Angular
	return Wheels{
		Right: s + f + t,
		Back:  -v.Strafe/m.wheelRadius + t,
		Left:  s - f + t,
	}
}

// NormalizedWheelSpeeds is the scale-free counterpart of
// Model.WheelSpeeds: it maps a normalized body velocity onto normalized wheel
// speeds, each in [-1, 1]. The caller must guarantee that the magnitude of the
// (forward, strafe) pair plus the magnitude of the angular component stay
// within 1, or wheel speeds will exceed the normalized range.
func NormalizedWheelSpeeds(v Velocity) Wheels {
	s := sin30 * v.Strafe
	f := cos30 * v.Forward
	t := v.Angular
	return Wheels{
		Right: s + f + t,
		Back:  -v.Strafe + t,
		Left:  s - f + t,
	}
}

// PlanarMagnitude returns the magnitude of the (forward, strafe) pair of a
// velocity.
func (v Velocity) PlanarMagnitude() float64 {
	return math.Hypot(v.Forward, v.Strafe)
}
