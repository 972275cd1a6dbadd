// Package quat provides the unit-quaternion value type shared by the whole
// pipeline, together with the small amount of rotation math the decoder,
// filter and interpolator need.
package quat

import "math"

// NormTolerance is the maximum allowed deviation of |q| from 1.0 before a
// decoded quaternion is rejected as invalid.
const NormTolerance = 0.1

// Quaternion is a rotation in (w, x, y, z) convention. It is a plain value
// type; every operation returns a new value and never mutates the receiver.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Euler holds roll/pitch/yaw angles. The unit (radians or degrees) is
// determined by how the value was produced.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Identity returns the no-rotation quaternion.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// Norm returns the Euclidean magnitude of q.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalized returns q scaled to unit magnitude. A zero or non-finite norm
// falls back to the identity quaternion instead of producing NaN components.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity()
	}
	return Quaternion{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// IsValid reports whether q has finite components and a magnitude within
// NormTolerance of 1.0.
func (q Quaternion) IsValid() bool {
	for _, v := range [4]float64{q.W, q.X, q.Y, q.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(q.Norm()-1.0) <= NormTolerance
}

// Mul returns the Hamilton product q*r.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Conjugate returns the quaternion conjugate of q.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Dot returns the four-component dot product of q and r.
func (q Quaternion) Dot(r Quaternion) float64 {
	return q.W*r.W + q.X*r.X + q.Y*r.Y + q.Z*r.Z
}

// Neg returns -q, which represents the same rotation.
func (q Quaternion) Neg() Quaternion {
	return Quaternion{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// AngleTo returns the rotation angle in radians between q and r,
// ignoring the double-cover sign ambiguity.
func (q Quaternion) AngleTo(r Quaternion) float64 {
	dot := math.Abs(q.Dot(r))
	if dot > 1.0 {
		dot = 1.0
	}
	return 2.0 * math.Acos(dot)
}

// Slerp spherically interpolates from a to b at parameter t in [0, 1],
// always taking the shortest path. Near-parallel inputs degrade to a
// normalized linear interpolation to avoid division by a vanishing sine.
func Slerp(a, b Quaternion, t float64) Quaternion {
	dot := a.Dot(b)
	if dot < 0 {
		b = b.Neg()
		dot = -dot
	}

	if dot > 0.9995 {
		return Quaternion{
			W: a.W + t*(b.W-a.W),
			X: a.X + t*(b.X-a.X),
			Y: a.Y + t*(b.Y-a.Y),
			Z: a.Z + t*(b.Z-a.Z),
		}.Normalized()
	}

	theta0 := math.Acos(dot)
	sinTheta0 := math.Sin(theta0)
	theta := theta0 * t
	sinTheta := math.Sin(theta)

	s0 := math.Cos(theta) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return Quaternion{
		W: s0*a.W + s1*b.W,
		X: s0*a.X + s1*b.X,
		Y: s0*a.Y + s1*b.Y,
		Z: s0*a.Z + s1*b.Z,
	}.Normalized()
}

// ToEuler converts q to roll/pitch/yaw in radians. Pitch is clamped to
// ±π/2 at the gimbal singularity.
func (q Quaternion) ToEuler() Euler {
	n := q.Normalized()

	sinrCosp := 2 * (n.W*n.X + n.Y*n.Z)
	cosrCosp := 1 - 2*(n.X*n.X+n.Y*n.Y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (n.W*n.Y - n.Z*n.X)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (n.W*n.Z + n.X*n.Y)
	cosyCosp := 1 - 2*(n.Y*n.Y+n.Z*n.Z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return Euler{Roll: roll, Pitch: pitch, Yaw: yaw}
}

// FromEuler builds a quaternion from roll/pitch/yaw in radians.
func FromEuler(e Euler) Quaternion {
	cr := math.Cos(e.Roll * 0.5)
	sr := math.Sin(e.Roll * 0.5)
	cp := math.Cos(e.Pitch * 0.5)
	sp := math.Sin(e.Pitch * 0.5)
	cy := math.Cos(e.Yaw * 0.5)
	sy := math.Sin(e.Yaw * 0.5)

	return Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// FromAccel estimates orientation from an accelerometer reading using the
// usual tilt formulas. Yaw is unobservable from gravity and is left at zero.
// A zero-magnitude input yields the identity.
func FromAccel(ax, ay, az float64) Quaternion {
	n := math.Sqrt(ax*ax + ay*ay + az*az)
	if n == 0 {
		return Identity()
	}
	ax, ay, az = ax/n, ay/n, az/n

	roll := math.Atan2(ay, az)
	pitch := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return FromEuler(Euler{Roll: roll, Pitch: pitch})
}

// Degrees returns e converted from radians to degrees.
func (e Euler) Degrees() Euler {
	return Euler{
		Roll:  e.Roll * 180.0 / math.Pi,
		Pitch: e.Pitch * 180.0 / math.Pi,
		Yaw:   e.Yaw * 180.0 / math.Pi,
	}
}

// WrapAngle wraps a radian angle difference into (-π, π].
func WrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
