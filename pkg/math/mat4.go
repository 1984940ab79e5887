package math

import "math"

// Mat4 is a 4x4 matrix in column-major order (OpenGL/glTF compatible).
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
//
// Points are column vectors: p' = M * p. Compose(B, A) applies A first.
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	}
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Mat4 {
	return Mat4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

func rotateX(c, s float32) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, c, s, 0,
		0, -s, c, 0,
		0, 0, 0, 1,
	}
}

func rotateY(c, s float32) Mat4 {
	return Mat4{
		c, 0, -s, 0,
		0, 1, 0, 0,
		s, 0, c, 0,
		0, 0, 0, 1,
	}
}

func rotateZ(c, s float32) Mat4 {
	return Mat4{
		c, s, 0, 0,
		-s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// sincosDeg returns cos and sin of an angle in degrees.
// Multiples of 90 degrees return exact values.
func sincosDeg(deg float32) (c, s float32) {
	d := math.Mod(float64(deg), 360)
	if d < 0 {
		d += 360
	}
	switch d {
	case 0:
		return 1, 0
	case 90:
		return 0, 1
	case 180:
		return -1, 0
	case 270:
		return 0, -1
	}
	rad := d * math.Pi / 180
	return float32(math.Cos(rad)), float32(math.Sin(rad))
}

// RotateXDeg returns a rotation matrix around the X axis, angle in degrees.
func RotateXDeg(deg float32) Mat4 {
	return rotateX(sincosDeg(deg))
}

// RotateYDeg returns a rotation matrix around the Y axis, angle in degrees.
func RotateYDeg(deg float32) Mat4 {
	return rotateY(sincosDeg(deg))
}

// RotateZDeg returns a rotation matrix around the Z axis, angle in degrees.
func RotateZDeg(deg float32) Mat4 {
	return rotateZ(sincosDeg(deg))
}

// RotateEulerXYZ returns Rx * Ry * Rz for angles in degrees (intrinsic XYZ order).
// Zero angles are skipped so an all-zero rotation is exactly the identity.
func RotateEulerXYZ(deg Vec3) Mat4 {
	r := Identity()
	if deg.X != 0 {
		r = r.Mul(RotateXDeg(deg.X))
	}
	if deg.Y != 0 {
		r = r.Mul(RotateYDeg(deg.Y))
	}
	if deg.Z != 0 {
		r = r.Mul(RotateZDeg(deg.Z))
	}
	return r
}

// BuildTransform returns the TRS matrix Translate * Rotate * Scale.
// rotation is Euler XYZ in degrees.
func BuildTransform(position, rotation, scale Vec3) Mat4 {
	m := Translate(position.X, position.Y, position.Z)
	if rotation != (Vec3{}) {
		m = m.Mul(RotateEulerXYZ(rotation))
	}
	if scale != (Vec3{1, 1, 1}) {
		m = m.Mul(Scale(scale.X, scale.Y, scale.Z))
	}
	return m
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			result[col*4+row] =
				m[0*4+row]*other[col*4+0] +
					m[1*4+row]*other[col*4+1] +
					m[2*4+row]*other[col*4+2] +
					m[3*4+row]*other[col*4+3]
		}
	}
	return result
}

// Compose returns outer * inner: the transform that applies inner first.
func Compose(outer, inner Mat4) Mat4 {
	return outer.Mul(inner)
}

// IsIdentity reports whether m is exactly the identity matrix.
func (m Mat4) IsIdentity() bool {
	return m == Identity()
}

// ApproxEqual reports whether every element of m and other differs by at most eps.
func (m Mat4) ApproxEqual(other Mat4, eps float32) bool {
	for i := range m {
		d := m[i] - other[i]
		if d > eps || d < -eps {
			return false
		}
	}
	return true
}

// TransformPoint transforms a 3D point by this matrix (assumes w=1).
func (m Mat4) TransformPoint(p [3]float32) [3]float32 {
	x := m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12]
	y := m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13]
	z := m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14]
	w := m[3]*p[0] + m[7]*p[1] + m[11]*p[2] + m[15]
	if w != 0 && w != 1 {
		return [3]float32{x / w, y / w, z / w}
	}
	return [3]float32{x, y, z}
}

// TransformPoints returns a new slice with every point transformed by m.
// The input is not modified.
func TransformPoints(points [][3]float32, m Mat4) [][3]float32 {
	if points == nil {
		return nil
	}
	out := make([][3]float32, len(points))
	if m.IsIdentity() {
		copy(out, points)
		return out
	}
	for i, p := range points {
		out[i] = m.TransformPoint(p)
	}
	return out
}

// NormalMatrix returns the inverse-transpose of the upper-left 3x3 of m,
// column-major. For pure rotations it equals the rotation itself.
// A singular 3x3 falls back to the plain upper-left block.
func (m Mat4) NormalMatrix() [9]float32 {
	r00, r01, r02 := m[0], m[4], m[8]
	r10, r11, r12 := m[1], m[5], m[9]
	r20, r21, r22 := m[2], m[6], m[10]

	c00 := r11*r22 - r12*r21
	c01 := -(r10*r22 - r12*r20)
	c02 := r10*r21 - r11*r20
	c10 := -(r01*r22 - r02*r21)
	c11 := r00*r22 - r02*r20
	c12 := -(r00*r21 - r01*r20)
	c20 := r01*r12 - r02*r11
	c21 := -(r00*r12 - r02*r10)
	c22 := r00*r11 - r01*r10

	det := r00*c00 + r01*c01 + r02*c02
	if det == 0 {
		return m.Mat3x3()
	}
	inv := 1 / det
	return [9]float32{
		c00 * inv, c10 * inv, c20 * inv,
		c01 * inv, c11 * inv, c21 * inv,
		c02 * inv, c12 * inv, c22 * inv,
	}
}

// TransformNormals transforms normals by the normal matrix of m and
// renormalizes them. Degenerate (zero-length) results become the zero vector.
func TransformNormals(normals [][3]float32, m Mat4) [][3]float32 {
	if normals == nil {
		return nil
	}
	nm := m.NormalMatrix()
	out := make([][3]float32, len(normals))
	for i, n := range normals {
		v := Vec3{
			X: nm[0]*n[0] + nm[3]*n[1] + nm[6]*n[2],
			Y: nm[1]*n[0] + nm[4]*n[1] + nm[7]*n[2],
			Z: nm[2]*n[0] + nm[5]*n[1] + nm[8]*n[2],
		}
		out[i] = v.Normalize().Array()
	}
	return out
}

// Mat3x3 returns the upper-left 3x3 portion of the matrix.
func (m Mat4) Mat3x3() [9]float32 {
	return [9]float32{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	}
}
