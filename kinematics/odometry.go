package kinematics

import "math"

// A Pose is a global-frame position and heading: X and Y in meters, Phi in
// radians kept normalized to [0, 2π).
type Pose struct {
	X   float64
	Y   float64
	Phi float64
}

// NormalizeAngle maps an angle in radians onto [0, 2π).
func NormalizeAngle(angle float64) float64 {
	angle = math.Mod(angle, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return angle
}

// Integrate accumulates one tick's body-frame displacement into a pose. The
// body axes are rotated into the global frame using the midpoint heading
// (the heading halfway through the tick's rotation), which keeps the
// integration error second order in the displacement.
func Integrate(pose Pose, disp Displacement) Pose {
	alpha := pose.Phi + disp.Theta/2
	sin, cos := math.Sincos(alpha)
	return Pose{
		X:   pose.X + cos*disp.Forward - sin*disp.Strafe,
		Y:   pose.Y + sin*disp.Forward + cos*disp.Strafe,
		Phi: NormalizeAngle(pose.Phi + disp.Theta),
	}
}
