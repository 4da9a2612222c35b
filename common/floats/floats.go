// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package floats

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

// Scalar is the element type of matrices: real or complex, single or double precision.
type Scalar interface {
	constraints.Float | constraints.Complex
}

// Conj returns the complex conjugate of v. Real values are returned unchanged.
func Conj[T Scalar](v T) T {
	switch a := any(v).(type) {
	case complex128:
		return any(cmplx.Conj(a)).(T)
	case complex64:
		return any(complex(real(a), -imag(a))).(T)
	default:
		return v
	}
}

// IsComplex reports whether T is a complex type.
func IsComplex[T Scalar]() bool {
	var zero T
	switch any(zero).(type) {
	case complex64, complex128:
		return true
	default:
		return false
	}
}

// Precision returns the one-letter BLAS prefix of T: s, d, c or z.
func Precision[T Scalar]() string {
	var zero T
	switch any(zero).(type) {
	case float32:
		return "s"
	case float64:
		return "d"
	case complex64:
		return "c"
	case complex128:
		return "z"
	default:
		return "?"
	}
}

// Complex128 widens v to complex128.
func Complex128[T Scalar](v T) complex128 {
	switch a := any(v).(type) {
	case float32:
		return complex(float64(a), 0)
	case float64:
		return complex(a, 0)
	case complex64:
		return complex128(a)
	case complex128:
		return a
	default:
		panic(fmt.Sprintf("floats: unsupported scalar type %T", v))
	}
}

// FromComplex128 narrows v to T, dropping the imaginary part for real types.
func FromComplex128[T Scalar](v complex128) T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(float32(real(v))).(T)
	case float64:
		return any(real(v)).(T)
	case complex64:
		return any(complex64(v)).(T)
	case complex128:
		return any(v).(T)
	default:
		panic(fmt.Sprintf("floats: unsupported scalar type %T", zero))
	}
}

// IsNaN reports whether any component of v is NaN.
func IsNaN[T Scalar](v T) bool {
	switch a := any(v).(type) {
	case float32:
		return math32.IsNaN(a)
	case float64:
		return math.IsNaN(a)
	case complex64:
		return math32.IsNaN(real(a)) || math32.IsNaN(imag(a))
	case complex128:
		return cmplx.IsNaN(a)
	default:
		return false
	}
}

// Epsilon returns the machine epsilon of the precision of T.
func Epsilon[T Scalar]() float64 {
	var zero T
	switch any(zero).(type) {
	case float32, complex64:
		return float64(math32.Nextafter(1, 2) - 1)
	default:
		return math.Nextafter(1, 2) - 1
	}
}

// Close reports whether |a-b| <= tol * max(1, |a|, |b|).
func Close[T Scalar](a, b T, tol float64) bool {
	x, y := Complex128(a), Complex128(b)
	scale := math.Max(1, math.Max(cmplx.Abs(x), cmplx.Abs(y)))
	return cmplx.Abs(x-y) <= tol*scale
}

// MaxRelDiff returns the largest |a[i]-b[i]| / max(1, |a[i]|, |b[i]|).
func MaxRelDiff[T Scalar](a, b []T) float64 {
	if len(a) != len(b) {
		panic("floats: slice lengths do not match")
	}
	var ret float64
	for i := range a {
		x, y := Complex128(a[i]), Complex128(b[i])
		scale := math.Max(1, math.Max(cmplx.Abs(x), cmplx.Abs(y)))
		ret = math.Max(ret, cmplx.Abs(x-y)/scale)
	}
	return ret
}
