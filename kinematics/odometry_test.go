package kinematics

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestNormalizeAngle(t *testing.T) {
	test.That(t, NormalizeAngle(0), test.ShouldEqual, 0)
	test.That(t, NormalizeAngle(2*math.Pi), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, NormalizeAngle(-math.Pi/2), test.ShouldAlmostEqual, 3*math.Pi/2, 1e-9)
	test.That(t, NormalizeAngle(5*math.Pi), test.ShouldAlmostEqual, math.Pi, 1e-9)
}

func TestIntegrateStraight(t *testing.T) {
	pose := Integrate(Pose{}, Displacement{Forward: 1})
	test.That(t, pose.X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, pose.Phi, test.ShouldAlmostEqual, 0, 1e-9)

	pose = Integrate(Pose{}, Displacement{Strafe: 1})
	test.That(t, pose.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 1, 1e-9)
}

func TestIntegrateRotatedFrame(t *testing.T) {
	// Heading 90°: body-forward travel accumulates on global Y.
	pose := Integrate(Pose{Phi: math.Pi / 2}, Displacement{Forward: 1})
	test.That(t, pose.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 1, 1e-9)
}

func TestIntegrateMidpointHeading(t *testing.T) {
	// Rotating 90° while driving forward projects the displacement at the
	// halfway heading of 45°.
	pose := Integrate(Pose{}, Displacement{Forward: 1, Theta: math.Pi / 2})
	test.That(t, pose.X, test.ShouldAlmostEqual, math.Cos(math.Pi/4), 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, math.Sin(math.Pi/4), 1e-9)
	test.That(t, pose.Phi, test.ShouldAlmostEqual, math.Pi/2, 1e-9)
}

func TestIntegrateAccumulatesAndNormalizes(t *testing.T) {
	pose := Pose{X: 2, Y: -1, Phi: 3 * math.Pi / 2}
	pose = Integrate(pose, Displacement{Theta: math.Pi})
	test.That(t, pose.X, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, -1, 1e-9)
	test.That(t, pose.Phi, test.ShouldAlmostEqual, math.Pi/2, 1e-9)
}
