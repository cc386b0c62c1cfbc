// Package movement implements the motion segments a robot can be asked to
// execute and the bounded scheduler that turns them, tick by tick, into one
// target body velocity.
package movement

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viam-labs/omni3/kinematics"
)

// ErrInvalidNormalizedSpeed means a normalized component was outside its
// valid range ([0, 1] for magnitudes, [-1, 1] for signed angular input).
var ErrInvalidNormalizedSpeed = errors.New("normalized speed outside valid range")

// Static arrival tolerances: a target-pose axis is never required to settle
// closer than these.
const (
	linearTolerance  = 0.01      // meters
	angularTolerance = 0.0174533 // radians, about one degree
)

type kind uint8

const (
	kindStill kind = iota
	kindConstantVelocity
	kindTargetPoseByTime
	kindTargetPoseBySpeed
	kindTargetVelocityForDuration
)

type axis int

const (
	axisForward axis = iota
	axisStrafe
	axisTheta
	axisCount
)

// A Segment is one motion intent, held by value in the scheduler's queue or
// in its default slot. Finite segments (target-pose and for-duration kinds)
// report completion; indefinite segments (still, constant velocity) run until
// replaced.
type Segment struct {
	kind       kind
	normalized bool

	// velocity is the commanded velocity of the constant kinds.
	velocity kinematics.Velocity

	// target and the speed magnitudes drive the target-pose kinds.
	target       kinematics.Pose
	planarSpeed  float64
	angularSpeed float64

	// duration bounds the timed kinds; the deadline is captured lazily on
	// the first evaluation.
	duration time.Duration
	started  bool
	deadline time.Time

	finished  [axisCount]bool
	remaining kinematics.Displacement
}

// Still returns the indefinite zero-velocity segment.
func Still() Segment {
	return Segment{kind: kindStill}
}

// ConstantVelocity returns an indefinite segment driving at a fixed physical
// body velocity (m/s, m/s, rad/s).
func ConstantVelocity(forward, strafe, angular float64) Segment {
	return Segment{
		kind:     kindConstantVelocity,
		velocity: kinematics.Velocity{Forward: forward, Strafe: strafe, Angular: angular},
	}
}

// ConstantNormalizedVelocity returns an indefinite segment driving at a fixed
// normalized velocity given in polar form: a speed magnitude in [0, 1], a
// body-frame heading in radians and a signed angular rate in [-1, 1].
func ConstantNormalizedVelocity(speed, heading, angular float64) (Segment, error) {
	v, err := normalizedTriple(speed, heading, angular)
	if err != nil {
		return Segment{}, err
	}
	return Segment{kind: kindConstantVelocity, normalized: true, velocity: v}, nil
}

// TargetPoseByTime returns a finite segment that reaches the target pose in
// the given duration by linear interpolation on each axis.
func TargetPoseByTime(x, y, phi float64, duration time.Duration) (Segment, error) {
	if duration <= 0 {
		return Segment{}, errors.Errorf("duration must be positive, got %v", duration)
	}
	return Segment{
		kind:     kindTargetPoseByTime,
		target:   kinematics.Pose{X: x, Y: y, Phi: phi},
		duration: duration,
	}, nil
}

// TargetPoseBySpeed returns a finite segment that drives toward the target
// pose at a fixed planar speed magnitude (m/s) and a fixed angular speed
// magnitude (rad/s). The velocity direction tracks the instantaneous
// displacement vector, so the path may curve as the heading changes.
func TargetPoseBySpeed(x, y, phi, planarSpeed, angularSpeed float64) Segment {
	return Segment{
		kind:         kindTargetPoseBySpeed,
		target:       kinematics.Pose{X: x, Y: y, Phi: phi},
		planarSpeed:  math.Abs(planarSpeed),
		angularSpeed: math.Abs(angularSpeed),
	}
}

// TargetPoseByNormalizedSpeed is the normalized counterpart of
// TargetPoseBySpeed: speed and angular are magnitudes in [0, 1] and share the
// wheels' joint normalized budget.
func TargetPoseByNormalizedSpeed(x, y, phi, speed, angular float64) (Segment, error) {
	if speed < 0 || speed > 1 || angular < 0 || angular > 1 {
		return Segment{}, errors.Wrapf(ErrInvalidNormalizedSpeed,
			"speed %.3f, angular %.3f", speed, angular)
	}
	planar, angularOut := allocateBudget(speed, angular)
	return Segment{
		kind:         kindTargetPoseBySpeed,
		normalized:   true,
		target:       kinematics.Pose{X: x, Y: y, Phi: phi},
		planarSpeed:  planar,
		angularSpeed: angularOut,
	}, nil
}

// TargetVelocityForDuration returns a finite segment commanding a fixed
// physical body velocity for a fixed duration; completion is purely
// time-based.
func TargetVelocityForDuration(forward, strafe, angular float64, duration time.Duration) (Segment, error) {
	if duration <= 0 {
		return Segment{}, errors.Errorf("duration must be positive, got %v", duration)
	}
	return Segment{
		kind:     kindTargetVelocityForDuration,
		velocity: kinematics.Velocity{Forward: forward, Strafe: strafe, Angular: angular},
		duration: duration,
	}, nil
}

// TargetNormalizedVelocityForDuration is the normalized polar counterpart of
// TargetVelocityForDuration.
func TargetNormalizedVelocityForDuration(speed, heading, angular float64, duration time.Duration) (Segment, error) {
	if duration <= 0 {
		return Segment{}, errors.Errorf("duration must be positive, got %v", duration)
	}
	v, err := normalizedTriple(speed, heading, angular)
	if err != nil {
		return Segment{}, err
	}
	return Segment{
		kind:       kindTargetVelocityForDuration,
		normalized: true,
		velocity:   v,
		duration:   duration,
	}, nil
}

// normalizedTriple converts a polar normalized command (speed magnitude in
// [0, 1], heading, signed angular rate in [-1, 1]) into the per-axis
// normalized triple consumed by the normalized inverse kinematics. The
// quadratic allocation keeps the joint linear+angular budget within 1
// whenever the inputs are in range.
func normalizedTriple(speed, heading, angular float64) (kinematics.Velocity, error) {
	if speed < 0 || speed > 1 || angular < -1 || angular > 1 {
		return kinematics.Velocity{}, errors.Wrapf(ErrInvalidNormalizedSpeed,
			"speed %.3f, angular %.3f", speed, angular)
	}
	planar, angularOut := allocateBudget(speed, math.Abs(angular))
	if angular < 0 {
		angularOut = -angularOut
	}
	sin, cos := math.Sincos(heading)
	return kinematics.Velocity{
		Forward: planar * cos,
		Strafe:  planar * sin,
		Angular: angularOut,
	}, nil
}

// allocateBudget splits the normalized budget between a planar and an angular
// magnitude: planar = s²/(s+a), angular = a²/(s+a), so planar+angular ≤ 1 for
// s, a in [0, 1].
func allocateBudget(speed, angular float64) (planar, angularOut float64) {
	total := speed + angular
	if total == 0 {
		return 0, 0
	}
	return speed * speed / total, angular * angular / total
}

// finite reports whether the segment has a completion condition.
func (s *Segment) finite() bool {
	switch s.kind {
	case kindTargetPoseByTime, kindTargetPoseBySpeed, kindTargetVelocityForDuration:
		return true
	}
	return false
}

// updateFinished refreshes the per-axis completion state against the current
// pose, the braking-space tolerance widening and the current time, and
// reports whether every axis is done. It must be called before velocityAt on
// the same tick: the target-pose kinds cache the remaining displacement it
// computes.
func (s *Segment) updateFinished(pose kinematics.Pose, braking kinematics.Displacement, now time.Time) bool {
	switch s.kind {
	case kindTargetPoseByTime:
		s.captureDeadline(now)
		if !now.Before(s.deadline) {
			// Out of time: done regardless of position.
			for a := range s.finished {
				s.finished[a] = true
			}
			return true
		}
		return s.updateRemaining(pose, braking)
	case kindTargetPoseBySpeed:
		return s.updateRemaining(pose, braking)
	case kindTargetVelocityForDuration:
		s.captureDeadline(now)
		done := !now.Before(s.deadline)
		for a := range s.finished {
			s.finished[a] = done
		}
		return done
	}
	// Indefinite segments never finish.
	return false
}

func (s *Segment) captureDeadline(now time.Time) {
	if !s.started {
		s.started = true
		s.deadline = now.Add(s.duration)
	}
}

// updateRemaining rotates the global-frame delta to the target into the body
// frame, stores it, and finishes each axis whose remaining magnitude is
// within max(braking space, static tolerance).
func (s *Segment) updateRemaining(pose kinematics.Pose, braking kinematics.Displacement) bool {
	sin, cos := math.Sincos(pose.Phi)
	dx := s.target.X - pose.X
	dy := s.target.Y - pose.Y
	s.remaining = kinematics.Displacement{
		Forward: dx*cos + dy*sin,
		Strafe:  -dx*sin + dy*cos,
		Theta:   s.target.Phi - pose.Phi,
	}

	s.finished[axisForward] = math.Abs(s.remaining.Forward) <= math.Max(braking.Forward, linearTolerance)
	s.finished[axisStrafe] = math.Abs(s.remaining.Strafe) <= math.Max(braking.Strafe, linearTolerance)
	s.finished[axisTheta] = math.Abs(s.remaining.Theta) <= math.Max(braking.Theta, angularTolerance)
	return s.finished[axisForward] && s.finished[axisStrafe] && s.finished[axisTheta]
}

// velocityAt produces the segment's target body velocity for this tick. For
// the target-pose kinds it relies on the remaining displacement cached by
// updateFinished earlier in the tick.
func (s *Segment) velocityAt(now time.Time) kinematics.Velocity {
	switch s.kind {
	case kindConstantVelocity, kindTargetVelocityForDuration:
		return s.velocity
	case kindTargetPoseByTime:
		s.captureDeadline(now)
		left := s.deadline.Sub(now).Seconds()
		if left <= 0 {
			return kinematics.Velocity{}
		}
		var v kinematics.Velocity
		if !s.finished[axisForward] {
			v.Forward = s.remaining.Forward / left
		}
		if !s.finished[axisStrafe] {
			v.Strafe = s.remaining.Strafe / left
		}
		if !s.finished[axisTheta] {
			v.Angular = s.remaining.Theta / left
		}
		return v
	case kindTargetPoseBySpeed:
		var v kinematics.Velocity
		planar := r3.Vector{X: s.remaining.Forward, Y: s.remaining.Strafe}
		if norm := planar.Norm(); norm > 0 {
			unit := planar.Mul(s.planarSpeed / norm)
			if !s.finished[axisForward] {
				v.Forward = unit.X
			}
			if !s.finished[axisStrafe] {
				v.Strafe = unit.Y
			}
		}
		if !s.finished[axisTheta] {
			v.Angular = math.Copysign(s.angularSpeed, s.remaining.Theta)
		}
		return v
	}
	// Still.
	return kinematics.Velocity{}
}
