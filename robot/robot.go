// Package robot orchestrates the motion-control core of a three-wheel
// omnidirectional robot: each control tick it closes the wheel speed loops,
// refreshes odometry, evaluates the movement schedule and re-commands the
// wheels through the inverse kinematics.
package robot

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/viam-labs/omni3/config"
	"github.com/viam-labs/omni3/kinematics"
	"github.com/viam-labs/omni3/movement"
	"github.com/viam-labs/omni3/wheel"
)

var (
	// ErrInfeasibleMotion means the inverse kinematics could not command all
	// three wheels. The coordinator treats it as fatal and emergency stops.
	ErrInfeasibleMotion = errors.New("inverse kinematics could not command all wheels")
	// ErrRobotMoving means Home was called while the robot still measured a
	// nonzero displacement this tick.
	ErrRobotMoving = errors.New("robot is moving")
)

// A Robot runs one control tick at a time and owns the cross-cutting fault
// response. All mutable state is owned by the tick call chain; producers
// feeding the scheduler must serialize with Tick.
type Robot struct {
	logger golog.Logger
	clock  clock.Clock

	right, back, left *wheel.Controller
	model             *kinematics.Model
	scheduler         *movement.Scheduler

	pose         kinematics.Pose
	displacement kinematics.Displacement
	lastTick     time.Time
	primed       bool
	stopped      bool
}

// An Option configures a Robot at construction.
type Option func(*Robot)

// WithClock substitutes the wall clock, letting tests drive time.
func WithClock(c clock.Clock) Option {
	return func(r *Robot) {
		r.clock = c
	}
}

// New assembles the coordinator from its calibration record and the three
// wheel controllers (canonical placement: right at 2 o'clock, back at 6,
// left at 10). Every wheel is configured with the record's speed limit and
// PID gains.
func New(
	cfg config.Config,
	right, back, left *wheel.Controller,
	logger golog.Logger,
	opts ...Option,
) (*Robot, error) {
	if err := cfg.Validate("robot"); err != nil {
		return nil, err
	}
	model, err := kinematics.NewModel(cfg.WheelRadius, cfg.RobotRadius)
	if err != nil {
		return nil, err
	}

	r := &Robot{
		logger:    logger,
		clock:     clock.New(),
		right:     right,
		back:      back,
		left:      left,
		model:     model,
		scheduler: movement.NewScheduler(cfg.Friction, cfg.QueueCapacity, logger),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, w := range []*wheel.Controller{right, back, left} {
		if err := w.Configure(cfg.MaxWheelSpeed, cfg.Kp, cfg.Ki, cfg.Kd); err != nil {
			return nil, errors.Wrap(err, "failed to configure wheel")
		}
	}
	return r, nil
}

// Scheduler exposes the movement scheduler for enqueueing motion requests.
// Callers must not invoke its operations concurrently with Tick.
func (r *Robot) Scheduler() *movement.Scheduler {
	return r.scheduler
}

// Pose returns the dead-reckoned global pose.
func (r *Robot) Pose() kinematics.Pose {
	return r.pose
}

// Displacement returns the body-frame displacement measured on the last tick.
func (r *Robot) Displacement() kinematics.Displacement {
	return r.displacement
}

// Stopped reports whether the robot has been emergency stopped.
func (r *Robot) Stopped() bool {
	return r.stopped
}

// Tick advances the whole control chain one step: wheel speed loops first,
// then direct kinematics and odometry, then the movement schedule, then the
// inverse kinematics commanding the wheels with the new target velocity.
//
// The first call after construction or after an emergency stop only primes
// the timestamps and encoder baselines and reports zero displacement, so a
// stale interval never extrapolates into garbage speeds. If the scheduled
// velocity cannot be commanded on all three wheels, the robot emergency
// stops and the tick timestamp is left unchanged as a stall marker.
func (r *Robot) Tick() error {
	now := r.clock.Now()
	if !r.primed {
		var err error
		for _, w := range []*wheel.Controller{r.right, r.back, r.left} {
			_, werr := w.Tick(0)
			err = multierr.Append(err, werr)
		}
		r.displacement = kinematics.Displacement{}
		r.lastTick = now
		r.primed = true
		return err
	}

	dt := now.Sub(r.lastTick)
	if dt <= 0 {
		return nil
	}

	dRight, errRight := r.right.Tick(dt)
	dBack, errBack := r.back.Tick(dt)
	dLeft, errLeft := r.left.Tick(dt)
	if err := multierr.Combine(errRight, errBack, errLeft); err != nil {
		return errors.Wrap(err, "wheel tick failed")
	}

	disp := r.model.Direct(kinematics.Wheels{Right: dRight, Back: dBack, Left: dLeft})
	r.pose = kinematics.Integrate(r.pose, disp)
	r.displacement = disp

	dtS := dt.Seconds()
	speed := kinematics.Velocity{
		Forward: disp.Forward / dtS,
		Strafe:  disp.Strafe / dtS,
		Angular: disp.Theta / dtS,
	}

	target, normalized := r.scheduler.Evaluate(r.pose, speed, now)
	if err := r.commandWheels(target, normalized); err != nil {
		r.logger.Errorw("emergency stop", "error", err)
		r.EmergencyStop()
		return err
	}

	r.lastTick = now
	return nil
}

// commandWheels runs the inverse kinematics and hands each wheel its new
// target. Feasibility is validated on all three wheels before any target is
// committed, so a rejection never leaves the wheels partially re-commanded.
func (r *Robot) commandWheels(v kinematics.Velocity, normalized bool) error {
	var speeds kinematics.Wheels
	if normalized {
		speeds = kinematics.NormalizedWheelSpeeds(v)
	} else {
		speeds = r.model.WheelSpeeds(v)
	}

	var rejected error
	wheels := []struct {
		name string
		ctrl *wheel.Controller
		want float64
	}{
		{"right", r.right, speeds.Right},
		{"back", r.back, speeds.Back},
		{"left", r.left, speeds.Left},
	}
	for _, w := range wheels {
		ok := w.ctrl.Accepts(w.want)
		if normalized {
			ok = w.ctrl.AcceptsNormalized(w.want)
		}
		if !ok {
			rejected = multierr.Append(rejected,
				errors.Errorf("%s wheel rejects speed %.4f", w.name, w.want))
		}
	}
	if rejected != nil {
		return multierr.Append(ErrInfeasibleMotion, rejected)
	}

	var err error
	for _, w := range wheels {
		if normalized {
			err = multierr.Append(err, w.ctrl.RequestNormalizedSpeed(w.want))
		} else {
			err = multierr.Append(err, w.ctrl.RequestSpeed(w.want))
		}
	}
	if err != nil {
		return multierr.Append(ErrInfeasibleMotion, err)
	}
	return nil
}

// Home resets the pose to the origin. It is rejected unless the robot was at
// rest this tick, i.e. the measured displacement is exactly zero on all axes.
func (r *Robot) Home() error {
	if r.displacement != (kinematics.Displacement{}) {
		return ErrRobotMoving
	}
	r.pose = kinematics.Pose{}
	return nil
}

// EmergencyStop forces every wheel's maximum speed to zero. The stop is
// terminal within the process: no API re-enables the wheels, recovery
// requires external reinitialization. The tick state is de-primed so the
// next tick after a stall starts from a clean baseline.
func (r *Robot) EmergencyStop() {
	for _, w := range []*wheel.Controller{r.right, r.back, r.left} {
		if err := w.Disable(); err != nil {
			r.logger.Errorw("failed to disable wheel during emergency stop", "error", err)
		}
	}
	r.stopped = true
	r.primed = false
}

// Run drives the cooperative super-loop: one Tick per period until the
// context is done. Tick errors are logged and the loop continues; the wheels
// are already stopped by the tick's own fault response.
func (r *Robot) Run(ctx context.Context, period time.Duration) error {
	ticker := r.clock.Ticker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Tick(); err != nil {
				r.logger.Errorw("tick failed", "error", err)
			}
		}
	}
}
