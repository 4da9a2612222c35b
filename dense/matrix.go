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

package dense

import (
	"math/rand"
	"slices"

	"github.com/gorse-io/spmm/common/blas"
	"github.com/gorse-io/spmm/common/floats"
	"github.com/juju/errors"
)

// Matrix is a dense matrix stored in a single array. Element (i, j) lives at
// i*Ld+j in row-major order and at i+j*Ld in column-major order.
type Matrix[T floats.Scalar] struct {
	Rows  int
	Cols  int
	Ld    int
	Order blas.Order
	Data  []T
}

// New allocates a zero matrix with the tightest leading dimension.
func New[T floats.Scalar](rows, cols int, order blas.Order) *Matrix[T] {
	m := &Matrix[T]{Rows: rows, Cols: cols, Order: order}
	m.Ld = m.MinLd()
	m.Data = make([]T, m.Size())
	return m
}

// FromRows builds a matrix from a slice of rows.
func FromRows[T floats.Scalar](order blas.Order, rows [][]T) *Matrix[T] {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	m := New[T](len(rows), cols, order)
	for i, row := range rows {
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m
}

// Random fills a new matrix with values drawn uniformly from [-1, 1).
func Random[T floats.Scalar](rows, cols int, order blas.Order, rng *rand.Rand) *Matrix[T] {
	m := New[T](rows, cols, order)
	for i := range m.Data {
		re := rng.Float64()*2 - 1
		if floats.IsComplex[T]() {
			m.Data[i] = floats.FromComplex128[T](complex(re, rng.Float64()*2-1))
		} else {
			m.Data[i] = floats.FromComplex128[T](complex(re, 0))
		}
	}
	return m
}

// MinLd is the smallest valid leading dimension.
func (m *Matrix[T]) MinLd() int {
	if m.Order == blas.RowMajor {
		return max(1, m.Cols)
	}
	return max(1, m.Rows)
}

// Size is the number of array elements the matrix spans.
func (m *Matrix[T]) Size() int {
	if m.Rows == 0 || m.Cols == 0 {
		return 0
	}
	if m.Order == blas.RowMajor {
		return (m.Rows-1)*m.Ld + m.Cols
	}
	return (m.Cols-1)*m.Ld + m.Rows
}

// Index returns the array position of element (i, j).
func (m *Matrix[T]) Index(i, j int) int {
	if m.Order == blas.RowMajor {
		return i*m.Ld + j
	}
	return i + j*m.Ld
}

func (m *Matrix[T]) At(i, j int) T {
	return m.Data[m.Index(i, j)]
}

func (m *Matrix[T]) Set(i, j int, v T) {
	m.Data[m.Index(i, j)] = v
}

// Validate checks the shape, the leading dimension and the array length.
func (m *Matrix[T]) Validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return errors.NotValidf("dense shape %dx%d", m.Rows, m.Cols)
	}
	if !m.Order.Valid() {
		return errors.NotValidf("order %d", int(m.Order))
	}
	if m.Ld < m.MinLd() {
		return errors.NotValidf("leading dimension %d for %s-major %dx%d matrix", m.Ld, m.Order, m.Rows, m.Cols)
	}
	if len(m.Data) < m.Size() {
		return errors.NotValidf("array of length %d for %d elements", len(m.Data), m.Size())
	}
	return nil
}

// Clone returns a deep copy.
func (m *Matrix[T]) Clone() *Matrix[T] {
	c := *m
	c.Data = slices.Clone(m.Data)
	return &c
}

// ToOrder returns a copy stored in the given order with the tightest leading dimension.
func (m *Matrix[T]) ToOrder(order blas.Order) *Matrix[T] {
	c := New[T](m.Rows, m.Cols, order)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			c.Set(i, j, m.At(i, j))
		}
	}
	return c
}

// Transpose returns the explicit (conjugate) transpose in the same order.
func (m *Matrix[T]) Transpose(conj bool) *Matrix[T] {
	t := New[T](m.Cols, m.Rows, m.Order)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			v := m.At(i, j)
			if conj {
				v = floats.Conj(v)
			}
			t.Set(j, i, v)
		}
	}
	return t
}

// Rows2D returns the elements as a slice of rows.
func (m *Matrix[T]) Rows2D() [][]T {
	ret := make([][]T, m.Rows)
	for i := range ret {
		ret[i] = make([]T, m.Cols)
		for j := range ret[i] {
			ret[i][j] = m.At(i, j)
		}
	}
	return ret
}
