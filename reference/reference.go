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

// Package reference computes sparse-dense products with dense BLAS routines
// from gonum. It is slow and only used to check results.
package reference

import (
	"github.com/gorse-io/spmm/common/blas"
	"github.com/gorse-io/spmm/common/floats"
	"github.com/gorse-io/spmm/dense"
	"github.com/gorse-io/spmm/sparse"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/blas/cblas128"
)

// Csrmm returns alpha*op(A)*op(B) + beta*C as a new matrix with the shape and
// layout of C. C is not modified, and it is not read when beta is zero.
func Csrmm[I, J sparse.Index, T floats.Scalar](transA, transB blas.Transpose, alpha T,
	a *sparse.CSR[I, J, T], b *dense.Matrix[T], beta T, c *dense.Matrix[T]) *dense.Matrix[T] {
	ret := c.Clone()
	m, n := c.Rows, c.Cols
	if m == 0 || n == 0 {
		return ret
	}
	k := a.Cols
	if transA.Transposed() {
		k = a.Rows
	}
	var zero T
	if k == 0 || alpha == zero {
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				if beta == zero {
					ret.Set(i, j, zero)
				} else {
					ret.Set(i, j, beta*c.At(i, j))
				}
			}
		}
		return ret
	}
	if floats.IsComplex[T]() {
		out := cblas128.General{Rows: m, Cols: n, Stride: n, Data: make([]complex128, m*n)}
		if beta != zero {
			for i := 0; i < m; i++ {
				for j := 0; j < n; j++ {
					out.Data[i*n+j] = floats.Complex128(c.At(i, j))
				}
			}
		}
		cblas128.Gemm(transA.Gonum(), transB.Gonum(), floats.Complex128(alpha),
			sparse128(a), dense128(b), floats.Complex128(beta), out)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				ret.Set(i, j, floats.FromComplex128[T](out.Data[i*n+j]))
			}
		}
		return ret
	}
	out := blas64.General{Rows: m, Cols: n, Stride: n, Data: make([]float64, m*n)}
	if beta != zero {
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				out.Data[i*n+j] = re(c.At(i, j))
			}
		}
	}
	blas64.Gemm(transA.Gonum(), transB.Gonum(), re(alpha), sparse64(a), dense64(b), re(beta), out)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			ret.Set(i, j, floats.FromComplex128[T](complex(out.Data[i*n+j], 0)))
		}
	}
	return ret
}

func re[T floats.Scalar](v T) float64 {
	return real(floats.Complex128(v))
}

func sparse64[I, J sparse.Index, T floats.Scalar](a *sparse.CSR[I, J, T]) blas64.General {
	g := blas64.General{Rows: a.Rows, Cols: a.Cols, Stride: max(1, a.Cols), Data: make([]float64, max(1, a.Rows*a.Cols))}
	for i := 0; i < a.Rows; i++ {
		begin, end := a.RowRange(i)
		for p := begin; p < end; p++ {
			g.Data[i*g.Stride+int(a.ColInd[p])-int(a.Base)] += re(a.Val[p])
		}
	}
	return g
}

func sparse128[I, J sparse.Index, T floats.Scalar](a *sparse.CSR[I, J, T]) cblas128.General {
	g := cblas128.General{Rows: a.Rows, Cols: a.Cols, Stride: max(1, a.Cols), Data: make([]complex128, max(1, a.Rows*a.Cols))}
	for i := 0; i < a.Rows; i++ {
		begin, end := a.RowRange(i)
		for p := begin; p < end; p++ {
			g.Data[i*g.Stride+int(a.ColInd[p])-int(a.Base)] += floats.Complex128(a.Val[p])
		}
	}
	return g
}

func dense64[T floats.Scalar](b *dense.Matrix[T]) blas64.General {
	g := blas64.General{Rows: b.Rows, Cols: b.Cols, Stride: max(1, b.Cols), Data: make([]float64, max(1, b.Rows*b.Cols))}
	for i := 0; i < b.Rows; i++ {
		for j := 0; j < b.Cols; j++ {
			g.Data[i*g.Stride+j] = re(b.At(i, j))
		}
	}
	return g
}

func dense128[T floats.Scalar](b *dense.Matrix[T]) cblas128.General {
	g := cblas128.General{Rows: b.Rows, Cols: b.Cols, Stride: max(1, b.Cols), Data: make([]complex128, max(1, b.Rows*b.Cols))}
	for i := 0; i < b.Rows; i++ {
		for j := 0; j < b.Cols; j++ {
			g.Data[i*g.Stride+j] = floats.Complex128(b.At(i, j))
		}
	}
	return g
}
