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

package sparse

import (
	"math/rand"
	"slices"

	"github.com/gorse-io/spmm/common/blas"
	"github.com/gorse-io/spmm/common/floats"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Index is the integer type of row offsets and column indices.
type Index interface {
	~int32 | ~int64
}

// CSR is a sparse matrix in compressed sparse row format. Row i stores its
// column indices in ColInd[RowPtr[i]-Base : RowPtr[i+1]-Base] and the values
// at the same positions of Val. Offsets and indices include Base.
type CSR[I, J Index, T floats.Scalar] struct {
	Rows   int
	Cols   int
	NNZ    int
	RowPtr []I
	ColInd []J
	Val    []T
	Base   blas.IndexBase
}

// RowRange returns the half-open range of nonzero positions of row i, base removed.
func (m *CSR[I, J, T]) RowRange(i int) (int, int) {
	base := int(m.Base)
	return int(m.RowPtr[i]) - base, int(m.RowPtr[i+1]) - base
}

// Validate checks shapes and array lengths.
func (m *CSR[I, J, T]) Validate() error {
	if m.Rows < 0 || m.Cols < 0 || m.NNZ < 0 {
		return errors.NotValidf("sparse shape %dx%d with %d nonzeros", m.Rows, m.Cols, m.NNZ)
	}
	if !m.Base.Valid() {
		return errors.NotValidf("index base %d", int(m.Base))
	}
	if len(m.RowPtr) < m.Rows+1 {
		return errors.NotValidf("row pointer of length %d for %d rows", len(m.RowPtr), m.Rows)
	}
	if len(m.ColInd) < m.NNZ {
		return errors.NotValidf("column indices of length %d for %d nonzeros", len(m.ColInd), m.NNZ)
	}
	if len(m.Val) < m.NNZ {
		return errors.NotValidf("values of length %d for %d nonzeros", len(m.Val), m.NNZ)
	}
	return nil
}

// ValidateStructure checks that row offsets are monotone, end at NNZ and that
// every column index is in range.
func (m *CSR[I, J, T]) ValidateStructure() error {
	if err := m.Validate(); err != nil {
		return errors.Trace(err)
	}
	base := int(m.Base)
	if int(m.RowPtr[0]) != base {
		return errors.NotValidf("row pointer starts at %d with base %d", m.RowPtr[0], base)
	}
	for i := 0; i < m.Rows; i++ {
		begin, end := m.RowRange(i)
		if begin > end {
			return errors.NotValidf("row pointer decreases at row %d", i)
		}
		for j := begin; j < end; j++ {
			if col := int(m.ColInd[j]) - base; col < 0 || col >= m.Cols {
				return errors.NotValidf("column index %d in row %d", col, i)
			}
		}
	}
	if int(m.RowPtr[m.Rows])-base != m.NNZ {
		return errors.NotValidf("row pointer ends at %d for %d nonzeros", int(m.RowPtr[m.Rows])-base, m.NNZ)
	}
	return nil
}

// At returns the element at (i, j). Duplicated entries are summed.
func (m *CSR[I, J, T]) At(i, j int) T {
	var sum T
	begin, end := m.RowRange(i)
	for k := begin; k < end; k++ {
		if int(m.ColInd[k])-int(m.Base) == j {
			sum += m.Val[k]
		}
	}
	return sum
}

// WithBase returns a copy of the matrix using another index base.
func (m *CSR[I, J, T]) WithBase(base blas.IndexBase) *CSR[I, J, T] {
	delta := int(base) - int(m.Base)
	return &CSR[I, J, T]{
		Rows:   m.Rows,
		Cols:   m.Cols,
		NNZ:    m.NNZ,
		RowPtr: lo.Map(m.RowPtr, func(p I, _ int) I { return p + I(delta) }),
		ColInd: lo.Map(m.ColInd, func(c J, _ int) J { return c + J(delta) }),
		Val:    slices.Clone(m.Val),
		Base:   base,
	}
}

// Transpose returns the explicit transpose, conjugated if conj is set.
func (m *CSR[I, J, T]) Transpose(conj bool) *CSR[I, J, T] {
	base := int(m.Base)
	counts := make([]int, m.Cols+1)
	for k := 0; k < m.NNZ; k++ {
		counts[int(m.ColInd[k])-base+1]++
	}
	for c := 0; c < m.Cols; c++ {
		counts[c+1] += counts[c]
	}
	t := &CSR[I, J, T]{
		Rows:   m.Cols,
		Cols:   m.Rows,
		NNZ:    m.NNZ,
		RowPtr: make([]I, m.Cols+1),
		ColInd: make([]J, m.NNZ),
		Val:    make([]T, m.NNZ),
		Base:   m.Base,
	}
	for c := range t.RowPtr {
		t.RowPtr[c] = I(counts[c] + base)
	}
	next := counts[:m.Cols]
	for i := 0; i < m.Rows; i++ {
		begin, end := m.RowRange(i)
		for k := begin; k < end; k++ {
			c := int(m.ColInd[k]) - base
			p := next[c]
			next[c]++
			t.ColInd[p] = J(i + base)
			if conj {
				t.Val[p] = floats.Conj(m.Val[k])
			} else {
				t.Val[p] = m.Val[k]
			}
		}
	}
	return t
}

// Triplet is a nonzero in coordinate form.
type Triplet[T floats.Scalar] struct {
	Row, Col int
	Val      T
}

// FromTriplets builds a zero-based CSR matrix. Entries are ordered by row,
// then column; duplicates are kept.
func FromTriplets[I, J Index, T floats.Scalar](rows, cols int, entries []Triplet[T]) (*CSR[I, J, T], error) {
	for _, e := range entries {
		if e.Row < 0 || e.Row >= rows || e.Col < 0 || e.Col >= cols {
			return nil, errors.NotValidf("entry (%d, %d) in %dx%d matrix", e.Row, e.Col, rows, cols)
		}
	}
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Triplet[T]) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	m := &CSR[I, J, T]{
		Rows:   rows,
		Cols:   cols,
		NNZ:    len(sorted),
		RowPtr: make([]I, rows+1),
		ColInd: make([]J, len(sorted)),
		Val:    make([]T, len(sorted)),
		Base:   blas.IndexBaseZero,
	}
	for k, e := range sorted {
		m.RowPtr[e.Row+1]++
		m.ColInd[k] = J(e.Col)
		m.Val[k] = e.Val
	}
	for i := 0; i < rows; i++ {
		m.RowPtr[i+1] += m.RowPtr[i]
	}
	return m, nil
}

// FromDense builds a zero-based CSR matrix from the nonzeros of a row-major
// rows x cols array.
func FromDense[I, J Index, T floats.Scalar](rows, cols int, data []T) (*CSR[I, J, T], error) {
	if len(data) < rows*cols {
		return nil, errors.NotValidf("dense array of length %d for %dx%d matrix", len(data), rows, cols)
	}
	var entries []Triplet[T]
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			var zero T
			if v := data[i*cols+j]; v != zero {
				entries = append(entries, Triplet[T]{Row: i, Col: j, Val: v})
			}
		}
	}
	return FromTriplets[I, J](rows, cols, entries)
}

// Random generates a zero-based matrix with about density*cols nonzeros per
// row at distinct, sorted columns. Values are drawn uniformly from [-1, 1).
func Random[I, J Index, T floats.Scalar](rows, cols int, density float64, rng *rand.Rand) *CSR[I, J, T] {
	m := &CSR[I, J, T]{
		Rows:   rows,
		Cols:   cols,
		RowPtr: make([]I, rows+1),
		Base:   blas.IndexBaseZero,
	}
	perRow := min(cols, int(density*float64(cols)+0.5))
	for i := 0; i < rows; i++ {
		n := perRow
		if n > 0 && n < cols && rng.Intn(2) == 0 {
			n += rng.Intn(2)*2 - 1
		}
		columns := rng.Perm(cols)[:n]
		slices.Sort(columns)
		m.ColInd = append(m.ColInd, lo.Map(columns, func(c int, _ int) J { return J(c) })...)
		for range columns {
			m.Val = append(m.Val, RandomScalar[T](rng))
		}
		m.RowPtr[i+1] = I(len(m.ColInd))
	}
	m.NNZ = len(m.ColInd)
	return m
}

// RandomScalar draws real and imaginary parts uniformly from [-1, 1).
func RandomScalar[T floats.Scalar](rng *rand.Rand) T {
	re := rng.Float64()*2 - 1
	if floats.IsComplex[T]() {
		return floats.FromComplex128[T](complex(re, rng.Float64()*2-1))
	}
	return floats.FromComplex128[T](complex(re, 0))
}
