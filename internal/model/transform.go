package model

import "math"

// Vec3 is a point or offset in millimetres.
type Vec3 [3]float64

// Transform is a 4x4 affine matrix stored column-major.
type Transform [16]float64

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a pure translation.
func Translation(x, y, z float64) Transform {
	t := Identity()
	t[12], t[13], t[14] = x, y, z
	return t
}

// Scale returns a pure scale. Negative factors mirror.
func Scale(x, y, z float64) Transform {
	t := Identity()
	t[0], t[5], t[10] = x, y, z
	return t
}

// RotationX returns a rotation around X by angle radians.
func RotationX(angle float64) Transform {
	s, c := math.Sincos(angle)
	t := Identity()
	t[5], t[6] = c, s
	t[9], t[10] = -s, c
	return t
}

// RotationY returns a rotation around Y by angle radians.
func RotationY(angle float64) Transform {
	s, c := math.Sincos(angle)
	t := Identity()
	t[0], t[2] = c, -s
	t[8], t[10] = s, c
	return t
}

// RotationZ returns a rotation around Z by angle radians.
func RotationZ(angle float64) Transform {
	s, c := math.Sincos(angle)
	t := Identity()
	t[0], t[1] = c, s
	t[4], t[5] = -s, c
	return t
}

// At returns the coefficient at row, col.
func (t Transform) At(row, col int) float64 {
	return t[col*4+row]
}

// Mul returns t * o.
func (t Transform) Mul(o Transform) Transform {
	var out Transform
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += t.At(row, k) * o.At(k, col)
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// Offset returns the translation component.
func (t Transform) Offset() Vec3 {
	return Vec3{t[12], t[13], t[14]}
}

// WithOffset returns t with its translation replaced.
func (t Transform) WithOffset(v Vec3) Transform {
	t[12], t[13], t[14] = v[0], v[1], v[2]
	return t
}

// Less orders transforms lexicographically over their coefficients.
func (t Transform) Less(o Transform) bool {
	for i := range t {
		if t[i] != o[i] {
			return t[i] < o[i]
		}
	}
	return false
}

// ApproxEqual compares coefficients within eps.
func (t Transform) ApproxEqual(o Transform, eps float64) bool {
	for i := range t {
		if math.Abs(t[i]-o[i]) > eps {
			return false
		}
	}
	return true
}

// IsIdentity reports whether t is exactly the identity.
func (t Transform) IsIdentity() bool {
	return t == Identity()
}
