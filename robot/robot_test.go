package robot

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/viam-labs/omni3/config"
	fakeencoder "github.com/viam-labs/omni3/encoder/fake"
	"github.com/viam-labs/omni3/kinematics"
	fakemotor "github.com/viam-labs/omni3/motor/fake"
	"github.com/viam-labs/omni3/movement"
	"github.com/viam-labs/omni3/wheel"
)

type testRig struct {
	robot    *Robot
	clock    *clock.Mock
	motors   [3]*fakemotor.Motor
	encoders [3]*fakeencoder.Encoder
}

func testConfig() config.Config {
	return config.Config{
		MaxWheelSpeed: 20,
		WheelRadius:   0.03,
		RobotRadius:   0.15,
		Kp:            1,
		Friction:      movement.Friction{Forward: 0.02, Strafe: 0.02, Angular: 0.01},
	}
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	logger := golog.NewTestLogger(t)
	rig := &testRig{clock: clock.NewMock()}

	var wheels [3]*wheel.Controller
	for i := range wheels {
		rig.motors[i] = &fakemotor.Motor{}
		rig.encoders[i] = &fakeencoder.Encoder{}
		wheels[i] = wheel.New(rig.motors[i], rig.encoders[i], wheel.Config{}, logger)
	}

	r, err := New(testConfig(), wheels[0], wheels[1], wheels[2], logger, WithClock(rig.clock))
	test.That(t, err, test.ShouldBeNil)
	rig.robot = r
	return rig
}

func TestNewValidatesConfig(t *testing.T) {
	logger := golog.NewTestLogger(t)
	mk := func() *wheel.Controller {
		return wheel.New(&fakemotor.Motor{}, &fakeencoder.Encoder{}, wheel.Config{}, logger)
	}
	cfg := testConfig()
	cfg.WheelRadius = 0
	_, err := New(cfg, mk(), mk(), mk(), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFirstTickPrimes(t *testing.T) {
	rig := newTestRig(t)
	rig.encoders[0].SetPosition(1000)

	test.That(t, rig.robot.Tick(), test.ShouldBeNil)
	test.That(t, rig.robot.Displacement(), test.ShouldResemble, kinematics.Displacement{})
	test.That(t, rig.robot.Pose().X, test.ShouldEqual, 0)
}

func TestTickUpdatesOdometry(t *testing.T) {
	rig := newTestRig(t)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)

	// Right and left wheels in opposition: pure forward travel. 192 steps
	// is a tenth of a wheel revolution.
	rig.encoders[0].Advance(192)
	rig.encoders[2].Advance(-192)
	rig.clock.Add(100 * time.Millisecond)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)

	disp := rig.robot.Displacement()
	test.That(t, disp.Forward, test.ShouldBeGreaterThan, 0)
	test.That(t, disp.Strafe, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, disp.Theta, test.ShouldAlmostEqual, 0, 1e-9)

	pose := rig.robot.Pose()
	// forward = tan(30°)·R·(dRight − dLeft) with 2π/10 radians per wheel.
	wheelRadians := 2 * math.Pi / 10
	test.That(t, pose.X, test.ShouldAlmostEqual, math.Tan(math.Pi/6)*0.03*2*wheelRadians, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestHomeGating(t *testing.T) {
	rig := newTestRig(t)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)

	rig.encoders[0].Advance(192)
	rig.encoders[2].Advance(-192)
	rig.clock.Add(100 * time.Millisecond)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)

	// Moved this tick: home is rejected and the pose survives.
	err := rig.robot.Home()
	test.That(t, errors.Is(err, ErrRobotMoving), test.ShouldBeTrue)
	test.That(t, rig.robot.Pose().X, test.ShouldBeGreaterThan, 0)

	// At rest on the next tick: home resets the pose to the origin.
	rig.clock.Add(100 * time.Millisecond)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)
	test.That(t, rig.robot.Home(), test.ShouldBeNil)
	test.That(t, rig.robot.Pose().X, test.ShouldEqual, 0)
}

func TestTickCommandsWheels(t *testing.T) {
	rig := newTestRig(t)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)

	// 0.5 m/s forward: right wheel spins at +14.43 rad/s of a 20 rad/s
	// maximum, so its controller drives positive power; left mirrors it.
	rig.robot.Scheduler().AddConstantVelocity(0.5, 0, 0)
	rig.clock.Add(100 * time.Millisecond)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)
	rig.clock.Add(100 * time.Millisecond)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)

	test.That(t, rig.motors[0].Power(), test.ShouldBeGreaterThan, 0)
	test.That(t, rig.motors[1].Power(), test.ShouldEqual, 0)
	test.That(t, rig.motors[2].Power(), test.ShouldBeLessThan, 0)
}

func TestInfeasibleMotionEmergencyStops(t *testing.T) {
	rig := newTestRig(t)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)

	// 100 m/s forward needs far more than the 20 rad/s wheel maximum.
	rig.robot.Scheduler().AddConstantVelocity(100, 0, 0)
	rig.clock.Add(100 * time.Millisecond)
	err := rig.robot.Tick()
	test.That(t, errors.Is(err, ErrInfeasibleMotion), test.ShouldBeTrue)
	test.That(t, rig.robot.Stopped(), test.ShouldBeTrue)

	// The stop is terminal: every wheel is disabled and later motion
	// requests are accepted but have no physical effect.
	rig.robot.Scheduler().AddStop()
	test.That(t, rig.robot.Tick(), test.ShouldBeNil) // re-prime after the stall
	rig.clock.Add(100 * time.Millisecond)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)
	for _, m := range rig.motors {
		test.That(t, m.Power(), test.ShouldEqual, 0)
	}
}

func TestValidateThenCommit(t *testing.T) {
	rig := newTestRig(t)
	test.That(t, rig.robot.Tick(), test.ShouldBeNil)

	// An infeasible command must not half-apply: no wheel may receive a
	// new nonzero target before the rejection is detected.
	rig.robot.Scheduler().AddConstantVelocity(100, 0, 0)
	rig.clock.Add(100 * time.Millisecond)
	err := rig.robot.Tick()
	test.That(t, err, test.ShouldNotBeNil)
	for _, m := range rig.motors {
		test.That(t, m.Power(), test.ShouldEqual, 0)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	logger := golog.NewTestLogger(t)
	var wheels [3]*wheel.Controller
	for i := range wheels {
		wheels[i] = wheel.New(&fakemotor.Motor{}, &fakeencoder.Encoder{}, wheel.Config{}, logger)
	}
	r, err := New(testConfig(), wheels[0], wheels[1], wheels[2], logger)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = r.Run(ctx, time.Millisecond)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
}
