package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ParallelTolerance is the distance between unit vectors below which they
// are treated as already aligned, so alignment short-circuits to identity.
const ParallelTolerance = 1e-4

// AlignTolerance bounds the residual |R*from - to| of a computed alignment.
const AlignTolerance = 1e-8

// ErrDegenerateRotation reports a rotation too close to identity for a
// stable axis-angle decomposition.
var ErrDegenerateRotation = errors.New("rotation angle too small for a stable axis")

// Rotation is a proper rotation of laboratory space. The zero value is not
// usable; rotations come from Identity, FromAngleAxis or Align.
type Rotation struct {
	m *mat.Dense // 3x3
}

// Identity returns the rotation that leaves every vector unchanged.
func Identity() Rotation {
	return Rotation{m: mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})}
}

// FromAngleAxis builds the rotation of angle degrees about axis using the
// Rodrigues formula. The axis is normalized first.
func FromAngleAxis(degrees float64, axis Vec) (Rotation, error) {
	u, err := axis.Unit()
	if err != nil {
		return Rotation{}, fmt.Errorf("rotation axis: %w", err)
	}
	th := degrees * math.Pi / 180
	c, s := math.Cos(th), math.Sin(th)
	k := 1 - c
	x, y, z := u[0], u[1], u[2]
	return Rotation{m: mat.NewDense(3, 3, []float64{
		c + x*x*k, x*y*k - z*s, x*z*k + y*s,
		y*x*k + z*s, c + y*y*k, y*z*k - x*s,
		z*x*k - y*s, z*y*k + x*s, c + z*z*k,
	})}, nil
}

// Align returns the minimal rotation taking the direction of from to the
// direction of to. Unit vectors already within ParallelTolerance of each
// other yield the identity without any computation. Anti-parallel inputs
// rotate 180 degrees about an axis perpendicular to from, recovered from
// the SVD null space so the choice is deterministic. The result is checked
// to map from onto to within AlignTolerance.
func Align(from, to Vec) (Rotation, error) {
	f, err := from.Unit()
	if err != nil {
		return Rotation{}, fmt.Errorf("align source: %w", err)
	}
	t, err := to.Unit()
	if err != nil {
		return Rotation{}, fmt.Errorf("align target: %w", err)
	}
	if f.Sub(t).Norm() < ParallelTolerance {
		return Identity(), nil
	}

	cross := f.Cross(t)
	sin := cross.Norm()
	cos := f.Dot(t)

	var r Rotation
	if sin < NormEpsilon {
		// Anti-parallel: any axis perpendicular to f works. The second
		// right-singular vector of the 1x3 matrix [f] spans the null
		// space and is reproducible across runs.
		axis, err := perpendicular(f)
		if err != nil {
			return Rotation{}, err
		}
		r, err = FromAngleAxis(180, axis)
		if err != nil {
			return Rotation{}, err
		}
	} else {
		deg := math.Atan2(sin, cos) * 180 / math.Pi
		r, err = FromAngleAxis(deg, cross.Scale(1/sin))
		if err != nil {
			return Rotation{}, err
		}
	}

	if got := r.Apply(f); got.Sub(t).Norm() > AlignTolerance {
		return Rotation{}, fmt.Errorf("alignment of %v onto %v missed by %g", from, to, got.Sub(t).Norm())
	}
	return r, nil
}

func perpendicular(f Vec) (Vec, error) {
	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(1, 3, []float64{f[0], f[1], f[2]}), mat.SVDFullV); !ok {
		return Vec{}, fmt.Errorf("no perpendicular to %v: svd failed", f)
	}
	var v mat.Dense
	svd.VTo(&v)
	return Vec{v.At(0, 1), v.At(1, 1), v.At(2, 1)}, nil
}

// Apply rotates v.
func (r Rotation) Apply(v Vec) Vec {
	var out mat.VecDense
	out.MulVec(r.m, mat.NewVecDense(3, []float64{v[0], v[1], v[2]}))
	return Vec{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// Compose returns the rotation that applies s first and then r.
func (r Rotation) Compose(s Rotation) Rotation {
	var out mat.Dense
	out.Mul(r.m, s.m)
	return Rotation{m: &out}
}

// At returns the matrix entry at row i, column j.
func (r Rotation) At(i, j int) float64 {
	return r.m.At(i, j)
}

// AngleAxis decomposes r into a rotation angle in degrees and a unit axis.
// Rotations within ~1e-7 degrees of identity have no meaningful axis and
// return ErrDegenerateRotation. Angles near 180 degrees use the symmetric
// part of the matrix, where the usual skew formula loses precision.
func (r Rotation) AngleAxis() (float64, Vec, error) {
	tr := r.At(0, 0) + r.At(1, 1) + r.At(2, 2)
	cos := math.Max(-1, math.Min(1, (tr-1)/2))
	th := math.Acos(cos)
	if th < 1e-9 {
		return 0, Vec{}, ErrDegenerateRotation
	}

	skew := Vec{
		r.At(2, 1) - r.At(1, 2),
		r.At(0, 2) - r.At(2, 0),
		r.At(1, 0) - r.At(0, 1),
	}

	var axis Vec
	if th > math.Pi-1e-3 {
		// Near 180 degrees: axis from the dominant diagonal of
		// (R + R^T)/2, sign fixed by the remaining skew part.
		k := 1 - cos
		axis = Vec{
			math.Sqrt(math.Max(0, (r.At(0, 0)-cos)/k)),
			math.Sqrt(math.Max(0, (r.At(1, 1)-cos)/k)),
			math.Sqrt(math.Max(0, (r.At(2, 2)-cos)/k)),
		}
		// Resolve relative signs from the off-diagonal sums.
		if axis[0] >= axis[1] && axis[0] >= axis[2] {
			if r.At(0, 1)+r.At(1, 0) < 0 {
				axis[1] = -axis[1]
			}
			if r.At(0, 2)+r.At(2, 0) < 0 {
				axis[2] = -axis[2]
			}
		} else if axis[1] >= axis[2] {
			if r.At(0, 1)+r.At(1, 0) < 0 {
				axis[0] = -axis[0]
			}
			if r.At(1, 2)+r.At(2, 1) < 0 {
				axis[2] = -axis[2]
			}
		} else {
			if r.At(0, 2)+r.At(2, 0) < 0 {
				axis[0] = -axis[0]
			}
			if r.At(1, 2)+r.At(2, 1) < 0 {
				axis[1] = -axis[1]
			}
		}
		if axis.Dot(skew) < 0 {
			axis = axis.Scale(-1)
		}
	} else {
		axis = skew.Scale(1 / (2 * math.Sin(th)))
	}

	u, err := axis.Unit()
	if err != nil {
		return 0, Vec{}, ErrDegenerateRotation
	}
	return th * 180 / math.Pi, u, nil
}
