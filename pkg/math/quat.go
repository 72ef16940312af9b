package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

func fromMGL(q mgl32.Quat) Quat {
	return Quat{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}
}

func (q Quat) mgl() mgl32.Quat {
	return mgl32.Quat{W: q.W, V: mgl32.Vec3{q.X, q.Y, q.Z}}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	halfAngle := angle / 2
	s := math32.Sin(halfAngle)
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math32.Cos(halfAngle),
	}
}

// QuatFromMat4 extracts the rotation of m. m must not carry scale.
func QuatFromMat4(m Mat4) Quat {
	return fromMGL(mgl32.Mat4ToQuat(mgl32.Mat4(m))).Normalize()
}

// AlignZ returns the rotation that maps local +Z onto axis. Rotation tables
// are always keyed around local Z after this alignment.
func AlignZ(axis Vec3) Quat {
	a := axis.Normalize()
	if a == (Vec3{}) {
		return QuatIdentity()
	}
	return fromMGL(mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{a.X, a.Y, a.Z}))
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if length < 0.0001 {
		return QuatIdentity()
	}
	invLen := 1.0 / length
	return Quat{
		X: q.X * invLen,
		Y: q.Y * invLen,
		Z: q.Z * invLen,
		W: q.W * invLen,
	}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Mul returns q * other.
func (q Quat) Mul(other Quat) Quat {
	return fromMGL(q.mgl().Mul(other.mgl()))
}

// Rotate rotates v by q.
func (q Quat) Rotate(v Vec3) Vec3 {
	r := q.Normalize().mgl().Rotate(mgl32.Vec3{v.X, v.Y, v.Z})
	return Vec3{r[0], r[1], r[2]}
}

// ToMat4 converts the quaternion to a rotation matrix.
func (q Quat) ToMat4() Mat4 {
	return Mat4(q.Normalize().mgl().Mat4())
}

// AxisAngle returns the rotation axis and angle in radians. The identity
// rotation reports +Z with angle 0.
func (q Quat) AxisAngle() (Vec3, float32) {
	q = q.Normalize()
	if q.W < 0 {
		q = Quat{-q.X, -q.Y, -q.Z, -q.W}
	}
	angle := 2 * math32.Acos(math32.Min(1, q.W))
	s := math32.Sqrt(1 - q.W*q.W)
	if s < 1e-6 {
		return Vec3{0, 0, 1}, 0
	}
	return Vec3{q.X / s, q.Y / s, q.Z / s}, angle
}

// ApproxEqual compares rotations, treating q and -q as the same rotation.
func (q Quat) ApproxEqual(other Quat, tol float32) bool {
	return math32.Abs(math32.Abs(q.Normalize().Dot(other.Normalize()))-1) <= tol
}

// Deg converts radians to degrees.
func Deg(rad float32) float32 {
	return rad * 180 / math32.Pi
}

// Rad converts degrees to radians.
func Rad(deg float32) float32 {
	return deg * math32.Pi / 180
}
