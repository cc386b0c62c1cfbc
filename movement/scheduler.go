package movement

import (
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/viam-labs/omni3/kinematics"
)

// DefaultQueueCapacity bounds the finite-segment queue when no explicit
// capacity is configured.
const DefaultQueueCapacity = 10

// ErrQueueFull means the finite-segment queue is at capacity; the segment
// was discarded.
var ErrQueueFull = errors.New("movement queue is full")

// Friction holds the per-axis calibration coefficients converting the square
// of the current speed into an expected stopping distance (the braking
// space). Units are m per (m/s)² for the linear axes and rad per (rad/s)²
// for the angular axis.
type Friction struct {
	Forward float64 `json:"forward"`
	Strafe  float64 `json:"strafe"`
	Angular float64 `json:"angular"`
}

// A Scheduler maintains the active motion intent: a bounded FIFO queue of
// finite segments plus one always-present default indefinite segment
// (initially Still). It provides no internal locking; producers must
// serialize with the control tick.
type Scheduler struct {
	logger   golog.Logger
	friction Friction
	capacity int

	queue          []Segment
	defaultSegment Segment
}

// NewScheduler builds a scheduler with the given braking calibration and
// queue capacity. A capacity <= 0 selects DefaultQueueCapacity.
func NewScheduler(friction Friction, capacity int, logger golog.Logger) *Scheduler {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Scheduler{
		logger:         logger,
		friction:       friction,
		capacity:       capacity,
		queue:          make([]Segment, 0, capacity),
		defaultSegment: Still(),
	}
}

// Pending returns the number of queued finite segments.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// AddStop replaces the default indefinite segment with Still. Queued finite
// segments still run to completion; the stop takes effect once the queue
// drains.
func (s *Scheduler) AddStop() {
	s.defaultSegment = Still()
}

// AddConstantVelocity replaces the default indefinite segment with a fixed
// physical velocity.
func (s *Scheduler) AddConstantVelocity(forward, strafe, angular float64) {
	s.defaultSegment = ConstantVelocity(forward, strafe, angular)
}

// AddConstantNormalizedVelocity replaces the default indefinite segment with
// a fixed normalized polar velocity.
func (s *Scheduler) AddConstantNormalizedVelocity(speed, heading, angular float64) error {
	seg, err := ConstantNormalizedVelocity(speed, heading, angular)
	if err != nil {
		return err
	}
	s.defaultSegment = seg
	return nil
}

// AddTargetPoseByTime enqueues a segment reaching the target pose in the
// given duration.
func (s *Scheduler) AddTargetPoseByTime(x, y, phi float64, duration time.Duration) error {
	seg, err := TargetPoseByTime(x, y, phi, duration)
	if err != nil {
		return err
	}
	return s.enqueue(seg)
}

// AddTargetPoseBySpeed enqueues a segment driving to the target pose at
// fixed speed magnitudes.
func (s *Scheduler) AddTargetPoseBySpeed(x, y, phi, planarSpeed, angularSpeed float64) error {
	return s.enqueue(TargetPoseBySpeed(x, y, phi, planarSpeed, angularSpeed))
}

// AddTargetPoseByNormalizedSpeed enqueues the normalized counterpart of
// AddTargetPoseBySpeed.
func (s *Scheduler) AddTargetPoseByNormalizedSpeed(x, y, phi, speed, angular float64) error {
	seg, err := TargetPoseByNormalizedSpeed(x, y, phi, speed, angular)
	if err != nil {
		return err
	}
	return s.enqueue(seg)
}

// AddTargetVelocityForDuration enqueues a fixed velocity bounded by a
// duration.
func (s *Scheduler) AddTargetVelocityForDuration(forward, strafe, angular float64, duration time.Duration) error {
	seg, err := TargetVelocityForDuration(forward, strafe, angular, duration)
	if err != nil {
		return err
	}
	return s.enqueue(seg)
}

// AddTargetNormalizedVelocityForDuration enqueues the normalized polar
// counterpart of AddTargetVelocityForDuration.
func (s *Scheduler) AddTargetNormalizedVelocityForDuration(
	speed, heading, angular float64, duration time.Duration,
) error {
	seg, err := TargetNormalizedVelocityForDuration(speed, heading, angular, duration)
	if err != nil {
		return err
	}
	return s.enqueue(seg)
}

// enqueue appends a finite segment. A finite queue always takes priority
// over an indefinite motion, so the default segment reverts to Still.
func (s *Scheduler) enqueue(seg Segment) error {
	if len(s.queue) >= s.capacity {
		return errors.Wrapf(ErrQueueFull, "capacity %d", s.capacity)
	}
	s.defaultSegment = Still()
	s.queue = append(s.queue, seg)
	return nil
}

// Evaluate advances the schedule one tick and returns the body velocity to
// command, plus whether it is normalized. It computes the braking-space
// tolerance from the current measured speed, retires every leading queue
// segment whose axes are all finished, and asks the surviving head (or the
// default segment once the queue is empty) for its velocity.
func (s *Scheduler) Evaluate(
	pose kinematics.Pose, speed kinematics.Velocity, now time.Time,
) (kinematics.Velocity, bool) {
	braking := kinematics.Displacement{
		Forward: speed.Forward * speed.Forward * s.friction.Forward,
		Strafe:  speed.Strafe * speed.Strafe * s.friction.Strafe,
		Theta:   speed.Angular * speed.Angular * s.friction.Angular,
	}

	for len(s.queue) > 0 {
		if !s.queue[0].updateFinished(pose, braking, now) {
			break
		}
		s.logger.Debugw("movement segment finished", "pending", len(s.queue)-1)
		copy(s.queue, s.queue[1:])
		s.queue = s.queue[:len(s.queue)-1]
	}

	active := &s.defaultSegment
	if len(s.queue) > 0 {
		active = &s.queue[0]
	}
	return active.velocityAt(now), active.normalized
}
