// Package geom provides the small amount of 3D vector and rotation algebra
// needed to express diffractometer geometry in a common laboratory frame.
package geom

import (
	"errors"
	"fmt"
	"math"
)

// NormEpsilon is the smallest vector norm that Unit will normalize.
const NormEpsilon = 1e-8

// ErrDegenerateVector reports a vector too short to carry a direction.
var ErrDegenerateVector = errors.New("vector norm below epsilon")

// Vec is a 3D vector with components in laboratory coordinates.
type Vec [3]float64

// Add returns v + w.
func (v Vec) Add(w Vec) Vec {
	return Vec{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vec) Sub(w Vec) Vec {
	return Vec{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Scale returns v scaled by s.
func (v Vec) Scale(s float64) Vec {
	return Vec{v[0] * s, v[1] * s, v[2] * s}
}

// Dot returns the scalar product of v and w.
func (v Vec) Dot(w Vec) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Cross returns the vector product v x w.
func (v Vec) Cross(w Vec) Vec {
	return Vec{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Norm returns the Euclidean length of v.
func (v Vec) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Unit returns v normalized to length 1. Vectors shorter than NormEpsilon
// cannot be normalized and return ErrDegenerateVector.
func (v Vec) Unit() (Vec, error) {
	n := v.Norm()
	if n < NormEpsilon {
		return Vec{}, fmt.Errorf("normalize %v: %w", v, ErrDegenerateVector)
	}
	return v.Scale(1 / n), nil
}

// Round returns v with each component rounded to the given number of
// decimal places. Components that round to zero lose their sign so that
// formatted output never shows "-0".
func (v Vec) Round(decimals int) Vec {
	factor := math.Pow(10, float64(decimals))
	var out Vec
	for i, c := range v {
		r := math.Round(c*factor) / factor
		if r == 0 {
			r = 0
		}
		out[i] = r
	}
	return out
}
