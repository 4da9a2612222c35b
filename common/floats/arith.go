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
	"math"
	"unsafe"

	"github.com/chewxy/math32"
)

// Arith is the element arithmetic of one scalar type. Kernels take it as a
// type parameter, so the element type is resolved when they are instantiated.
type Arith[T Scalar] interface {
	// FMA returns x*y + z. Real types round once. Complex types fuse each
	// partial product into the running real and imaginary sums.
	FMA(x, y, z T) T
	Conj(v T) T
	// AtomicAdd adds v to *addr atomically. Complex values are updated as two
	// independent atomic adds on the real and imaginary parts.
	AtomicAdd(addr *T, v T)
}

type Float32Ops struct{}

func (Float32Ops) FMA(x, y, z float32) float32 { return fma32(x, y, z) }

func (Float32Ops) Conj(v float32) float32 { return v }

func (Float32Ops) AtomicAdd(addr *float32, v float32) { addFloat32(addr, v) }

type Float64Ops struct{}

func (Float64Ops) FMA(x, y, z float64) float64 { return math.FMA(x, y, z) }

func (Float64Ops) Conj(v float64) float64 { return v }

func (Float64Ops) AtomicAdd(addr *float64, v float64) { addFloat64(addr, v) }

type Complex64Ops struct{}

func (Complex64Ops) FMA(x, y, z complex64) complex64 {
	xr, xi := real(x), imag(x)
	yr, yi := real(y), imag(y)
	re := fma32(xr, yr, fma32(-xi, yi, real(z)))
	im := fma32(xr, yi, fma32(xi, yr, imag(z)))
	return complex(re, im)
}

func (Complex64Ops) Conj(v complex64) complex64 { return complex(real(v), -imag(v)) }

func (Complex64Ops) AtomicAdd(addr *complex64, v complex64) {
	parts := (*[2]float32)(unsafe.Pointer(addr))
	addFloat32(&parts[0], real(v))
	addFloat32(&parts[1], imag(v))
}

type Complex128Ops struct{}

func (Complex128Ops) FMA(x, y, z complex128) complex128 {
	xr, xi := real(x), imag(x)
	yr, yi := real(y), imag(y)
	re := math.FMA(xr, yr, math.FMA(-xi, yi, real(z)))
	im := math.FMA(xr, yi, math.FMA(xi, yr, imag(z)))
	return complex(re, im)
}

func (Complex128Ops) Conj(v complex128) complex128 { return complex(real(v), -imag(v)) }

func (Complex128Ops) AtomicAdd(addr *complex128, v complex128) {
	parts := (*[2]float64)(unsafe.Pointer(addr))
	addFloat64(&parts[0], real(v))
	addFloat64(&parts[1], imag(v))
}

// fma32 returns x*y + z rounded once to float32. The product is exact in
// float64 and the float64 sum carries its rounding error exactly, which
// settles the ties that rounding twice would get wrong.
func fma32(x, y, z float32) float32 {
	xy := float64(x) * float64(y)
	zz := float64(z)
	r := xy + zz
	f := float32(r)
	if float64(f) == r || math.IsNaN(r) || math.IsInf(r, 0) {
		return f
	}
	// r + e == xy + zz exactly
	bv := r - xy
	e := (xy - (r - bv)) + (zz - bv)
	if e == 0 {
		return f
	}
	// g is the other float32 neighbour of r
	g := math32.Nextafter(f, float32(math.Copysign(math.Inf(1), r-float64(f))))
	if float64(f)+float64(g) != 2*r {
		return f
	}
	if (e > 0) == (g > f) {
		return g
	}
	return f
}
