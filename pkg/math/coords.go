package math

// xplaneSign is the diagonal applied after swapping Y and Z. X-Plane files
// are right-handed Y-up, the scene is Z-up.
var xplaneSign = Vec3{1, -1, 1}

// FromXPlane converts a file-space position or direction (x, y up, z) into
// scene space (x, -z, y).
func FromXPlane(v Vec3) Vec3 {
	return Vec3{v.X, v.Z, v.Y}.Mul(xplaneSign)
}

// ToXPlane is the inverse of FromXPlane.
func ToXPlane(v Vec3) Vec3 {
	s := v.Mul(xplaneSign)
	return Vec3{s.X, s.Z, s.Y}
}
