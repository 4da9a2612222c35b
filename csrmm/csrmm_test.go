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

package csrmm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/gorse-io/spmm/common/blas"
	"github.com/gorse-io/spmm/common/floats"
	"github.com/gorse-io/spmm/dense"
	"github.com/gorse-io/spmm/reference"
	"github.com/gorse-io/spmm/sparse"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var (
	transposes = []blas.Transpose{blas.NoTrans, blas.Trans, blas.ConjTrans}
	orders     = []blas.Order{blas.RowMajor, blas.ColMajor}
)

func newTestHandle(t *testing.T, opts ...Option) *Handle {
	opts = append([]Option{
		WithWorkers(4),
		WithBlockSize(64),
		WithWaveSize(16),
		WithLayer(LayerNone),
	}, opts...)
	h, err := NewHandle(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, h.Close())
	})
	return h
}

// padded copies m into a matrix whose leading dimension has extra elements.
func padded[T floats.Scalar](m *dense.Matrix[T], extra int) *dense.Matrix[T] {
	p := &dense.Matrix[T]{Rows: m.Rows, Cols: m.Cols, Order: m.Order}
	p.Ld = m.MinLd() + extra
	p.Data = make([]T, p.Size())
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			p.Set(i, j, m.At(i, j))
		}
	}
	return p
}

type operands[I, J sparse.Index, T floats.Scalar] struct {
	a *sparse.CSR[I, J, T]
	b *dense.Matrix[T]
	c *dense.Matrix[T]
}

func randomOperands[I, J sparse.Index, T floats.Scalar](rng *rand.Rand, transA, transB blas.Transpose,
	orderB, orderC blas.Order, m, n, k int, density float64) operands[I, J, T] {
	aRows, aCols := m, k
	if transA.Transposed() {
		aRows, aCols = k, m
	}
	bRows, bCols := k, n
	if transB.Transposed() {
		bRows, bCols = n, k
	}
	return operands[I, J, T]{
		a: sparse.Random[I, J, T](aRows, aCols, density, rng),
		b: padded(dense.Random[T](bRows, bCols, orderB, rng), 3),
		c: padded(dense.Random[T](m, n, orderC, rng), 2),
	}
}

func assertClose[T floats.Scalar](t assert.TestingT, expected, actual *dense.Matrix[T], msgAndArgs ...any) bool {
	return assert.LessOrEqual(t, floats.MaxRelDiff(expected.Data, actual.Data), 1e3*floats.Epsilon[T](), msgAndArgs...)
}

type CsrmmTestSuite struct {
	suite.Suite
	handle *Handle
	rng    *rand.Rand
}

func (suite *CsrmmTestSuite) SetupSuite() {
	var err error
	// three blocks along X make the kernels loop over rows
	suite.handle, err = NewHandle(WithWorkers(4), WithBlockSize(64), WithWaveSize(16),
		WithMaxGridX(3), WithStructureCheck(true), WithLayer(LayerNone))
	suite.Require().NoError(err)
}

func (suite *CsrmmTestSuite) TearDownSuite() {
	suite.NoError(suite.handle.Close())
}

func (suite *CsrmmTestSuite) SetupTest() {
	suite.rng = rand.New(rand.NewSource(0))
}

func testReference[I, J sparse.Index, T floats.Scalar](suite *CsrmmTestSuite, alpha, beta T) {
	for _, transA := range transposes {
		for _, transB := range transposes {
			for _, orderB := range orders {
				for _, orderC := range orders {
					name := fmt.Sprintf("%scsrmm_%s%s_%v_%v", floats.Precision[T](), transA.Letter(), transB.Letter(), orderB, orderC)
					x := randomOperands[I, J, T](suite.rng, transA, transB, orderB, orderC, 41, 37, 29, 0.2)
					expected := reference.Csrmm(transA, transB, alpha, x.a, x.b, beta, x.c)
					err := Csrmm(context.Background(), suite.handle, transA, transB, alpha, x.a, x.b, beta, x.c)
					suite.Require().NoError(err, name)
					assertClose(suite.T(), expected, x.c, name)
				}
			}
		}
	}
}

func (suite *CsrmmTestSuite) TestFloat32() {
	testReference[int32, int32, float32](suite, 1.5, -0.5)
}

func (suite *CsrmmTestSuite) TestFloat64() {
	testReference[int64, int32, float64](suite, -2, 0.75)
}

func (suite *CsrmmTestSuite) TestComplex64() {
	testReference[int32, int64, complex64](suite, 1+0.5i, 0.25-1i)
}

func (suite *CsrmmTestSuite) TestComplex128() {
	testReference[int64, int64, complex128](suite, 0.5-2i, 1)
}

func testAlphaZero[T floats.Scalar](suite *CsrmmTestSuite, beta T) {
	for _, transA := range transposes {
		for _, orderC := range orders {
			x := randomOperands[int32, int32, T](suite.rng, transA, blas.NoTrans, blas.ColMajor, orderC, 20, 18, 11, 0.3)
			expected := x.c.Clone()
			for i := range expected.Data {
				expected.Data[i] = expected.Data[i] * beta
			}
			err := Csrmm(context.Background(), suite.handle, transA, blas.NoTrans, 0, x.a, x.b, beta, x.c)
			suite.Require().NoError(err)
			// padding is scaled as well in the expectation, so compare elements
			for i := 0; i < x.c.Rows; i++ {
				for j := 0; j < x.c.Cols; j++ {
					suite.Equal(expected.At(i, j), x.c.At(i, j))
				}
			}
		}
	}
}

func (suite *CsrmmTestSuite) TestAlphaZero() {
	testAlphaZero[float64](suite, 0.3)
	testAlphaZero[complex64](suite, 2-1i)
}

func (suite *CsrmmTestSuite) TestAlphaZeroBetaOne() {
	x := randomOperands[int32, int32, float64](suite.rng, blas.NoTrans, blas.NoTrans, blas.ColMajor, blas.ColMajor, 5, 4, 3, 0.5)
	x.c.Data[0] = math.NaN()
	expected := x.c.Clone()
	suite.NoError(Csrmm(context.Background(), suite.handle, blas.NoTrans, blas.NoTrans, 0, x.a, x.b, 1, x.c))
	suite.True(math.IsNaN(x.c.Data[0]))
	suite.Equal(expected.Data[1:], x.c.Data[1:])
}

func testBetaZero[T floats.Scalar](suite *CsrmmTestSuite, nan T) {
	for _, transA := range transposes {
		for _, transB := range []blas.Transpose{blas.NoTrans, blas.Trans} {
			for _, orderB := range orders {
				x := randomOperands[int32, int32, T](suite.rng, transA, transB, orderB, blas.ColMajor, 19, 23, 17, 0.3)
				clean := x.c.Clone()
				for i := range clean.Data {
					clean.Data[i] = 0
				}
				for i := range x.c.Data {
					x.c.Data[i] = nan
				}
				expected := reference.Csrmm(transA, transB, 1, x.a, x.b, 0, clean)
				suite.Require().NoError(Csrmm(context.Background(), suite.handle, transA, transB, 1, x.a, x.b, 0, x.c))
				for i := 0; i < x.c.Rows; i++ {
					for j := 0; j < x.c.Cols; j++ {
						suite.False(floats.IsNaN(x.c.At(i, j)))
						suite.True(floats.Close(expected.At(i, j), x.c.At(i, j), 1e3*floats.Epsilon[T]()))
					}
				}
			}
		}
	}
}

func (suite *CsrmmTestSuite) TestBetaZero() {
	testBetaZero[float32](suite, float32(math.NaN()))
	testBetaZero[complex128](suite, complex(math.NaN(), 0))
}

func (suite *CsrmmTestSuite) TestExplicitTranspose() {
	for _, transA := range []blas.Transpose{blas.Trans, blas.ConjTrans} {
		for _, transB := range transposes {
			x := randomOperands[int32, int32, complex128](suite.rng, transA, transB, blas.RowMajor, blas.ColMajor, 33, 21, 40, 0.1)
			explicit := x.a.Transpose(transA == blas.ConjTrans)
			c := x.c.Clone()
			suite.Require().NoError(Csrmm(context.Background(), suite.handle, transA, transB, 2, x.a, x.b, 0.5, x.c))
			suite.Require().NoError(Csrmm(context.Background(), suite.handle, blas.NoTrans, transB, 2, explicit, x.b, 0.5, c))
			assertClose(suite.T(), c, x.c)
		}
	}
}

func (suite *CsrmmTestSuite) TestConjugateRealValued() {
	for _, transA := range []blas.Transpose{blas.NoTrans, blas.Trans} {
		conjA := transA
		if transA == blas.Trans {
			conjA = blas.ConjTrans
		}
		for _, orderB := range orders {
			x := randomOperands[int32, int32, complex64](suite.rng, transA, blas.Trans, orderB, blas.RowMajor, 25, 30, 12, 0.3)
			for i := range x.a.Val {
				x.a.Val[i] = complex(real(x.a.Val[i]), 0)
			}
			for i := range x.b.Data {
				x.b.Data[i] = complex(real(x.b.Data[i]), 0)
			}
			conj := x.c.Clone()
			suite.Require().NoError(Csrmm(context.Background(), suite.handle, transA, blas.Trans, 1.5, x.a, x.b, 1, x.c))
			suite.Require().NoError(Csrmm(context.Background(), suite.handle, conjA, blas.ConjTrans, 1.5, x.a, x.b, 1, conj))
			assertClose(suite.T(), x.c, conj)
		}
	}
}

func (suite *CsrmmTestSuite) TestScaleTwice() {
	x := randomOperands[int32, int32, float64](suite.rng, blas.NoTrans, blas.NoTrans, blas.ColMajor, blas.RowMajor, 50, 45, 10, 0.2)
	once := x.c.Clone()
	const beta = 1.7
	for i := 0; i < 2; i++ {
		suite.Require().NoError(Csrmm(context.Background(), suite.handle, blas.NoTrans, blas.NoTrans, 0, x.a, x.b, beta, x.c))
	}
	suite.Require().NoError(Csrmm(context.Background(), suite.handle, blas.NoTrans, blas.NoTrans, 0, x.a, x.b, beta*beta, once))
	assertClose(suite.T(), once, x.c)
}

func (suite *CsrmmTestSuite) TestIndexBaseOne() {
	for _, transA := range transposes {
		x := randomOperands[int64, int32, float64](suite.rng, transA, blas.NoTrans, blas.ColMajor, blas.ColMajor, 30, 20, 25, 0.2)
		c := x.c.Clone()
		suite.Require().NoError(Csrmm(context.Background(), suite.handle, transA, blas.NoTrans, 1, x.a, x.b, 2, x.c))
		suite.Require().NoError(Csrmm(context.Background(), suite.handle, transA, blas.NoTrans, 1, x.a.WithBase(blas.IndexBaseOne), x.b, 2, c))
		assertClose(suite.T(), x.c, c)
	}
}

func (suite *CsrmmTestSuite) TestEmptyRows() {
	// rows without nonzeros still receive beta*C
	a := &sparse.CSR[int32, int32, float64]{Rows: 3, Cols: 2, NNZ: 1, RowPtr: []int32{0, 0, 1, 1}, ColInd: []int32{1}, Val: []float64{4}}
	b := dense.FromRows(blas.ColMajor, [][]float64{{1, 2}, {3, 4}})
	c := dense.FromRows(blas.ColMajor, [][]float64{{1, 1}, {1, 1}, {1, 1}})
	suite.Require().NoError(Csrmm(context.Background(), suite.handle, blas.NoTrans, blas.NoTrans, 1, a, b, 2, c))
	suite.Equal([][]float64{{2, 2}, {14, 18}, {2, 2}}, c.Rows2D())
}

func (suite *CsrmmTestSuite) TestEmptyInnerDimension() {
	a := &sparse.CSR[int32, int32, float64]{Rows: 0, Cols: 3, RowPtr: []int32{0}}
	b := dense.New[float64](0, 2, blas.RowMajor)
	c := dense.FromRows(blas.RowMajor, [][]float64{{1, 2}, {3, 4}, {5, 6}})
	suite.Require().NoError(Csrmm(context.Background(), suite.handle, blas.Trans, blas.NoTrans, 1, a, b, 3, c))
	suite.Equal([][]float64{{3, 6}, {9, 12}, {15, 18}}, c.Rows2D())
}

func TestCsrmm(t *testing.T) {
	suite.Run(t, new(CsrmmTestSuite))
}

func TestIdentity(t *testing.T) {
	h := newTestHandle(t)
	identity := func(n int) *sparse.CSR[int32, int32, float64] {
		entries := make([]sparse.Triplet[float64], n)
		for i := range entries {
			entries[i] = sparse.Triplet[float64]{Row: i, Col: i, Val: 1}
		}
		a, err := sparse.FromTriplets[int32, int32](n, n, entries)
		require.NoError(t, err)
		return a
	}
	rng := rand.New(rand.NewSource(1))
	for _, order := range orders {
		for _, b := range []*dense.Matrix[float64]{
			dense.FromRows(order, [][]float64{{1, 2}, {3, 4}, {5, 6}}),
			dense.Random[float64](40, 35, order, rng),
		} {
			a := identity(b.Rows)
			c := dense.New[float64](b.Rows, b.Cols, order)
			require.NoError(t, Csrmm(context.Background(), h, blas.NoTrans, blas.NoTrans, 1, a, b, 0, c))
			assert.Equal(t, b.Data, c.Data, "order=%v", order)

			c = b.Clone()
			require.NoError(t, Csrmm(context.Background(), h, blas.NoTrans, blas.NoTrans, 2, a, b, 1, c))
			expected := lo.Map(b.Data, func(v float64, _ int) float64 { return 3 * v })
			assert.Equal(t, expected, c.Data, "order=%v", order)
		}
	}
}

func TestSingleNonzero(t *testing.T) {
	h := newTestHandle(t)
	a, err := sparse.FromTriplets[int32, int32](1, 3, []sparse.Triplet[float32]{{Row: 0, Col: 2, Val: 5}})
	require.NoError(t, err)
	b := dense.FromRows(blas.ColMajor, [][]float32{{1}, {2}, {3}})
	c := dense.New[float32](1, 1, blas.ColMajor)
	require.NoError(t, Csrmm(context.Background(), h, blas.NoTrans, blas.NoTrans, 1, a, b, 0, c))
	assert.Equal(t, []float32{15}, c.Data)
}

func TestTransposedSingleContribution(t *testing.T) {
	h := newTestHandle(t)
	// op(A) = A^T is 3x2 with a single nonzero 4 at (2, 1)
	a, err := sparse.FromTriplets[int32, int32](2, 3, []sparse.Triplet[float64]{{Row: 1, Col: 2, Val: 4}})
	require.NoError(t, err)
	for _, b := range []*dense.Matrix[float64]{
		dense.FromRows(blas.ColMajor, [][]float64{{1, 2}, {3, 4}}),
		dense.FromRows(blas.RowMajor, [][]float64{{1, 2}, {3, 4}}),
	} {
		c := dense.FromRows(blas.RowMajor, [][]float64{{7, 7}, {7, 7}, {7, 7}})
		require.NoError(t, Csrmm(context.Background(), h, blas.Trans, blas.NoTrans, 0.5, a, b, 0, c))
		assert.Equal(t, [][]float64{{0, 0}, {0, 0}, {6, 8}}, c.Rows2D())
	}
}

func TestLaunchShapeIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, transA := range []blas.Transpose{blas.NoTrans, blas.Trans} {
		for _, orderB := range orders {
			x := randomOperands[int32, int32, float64](rng, transA, blas.NoTrans, orderB, blas.ColMajor, 70, 50, 45, 0.1)
			var results []*dense.Matrix[float64]
			for _, opts := range [][]Option{
				{WithBlockSize(64), WithWaveSize(16)},
				{WithBlockSize(64), WithWaveSize(16), WithMaxGridX(1)},
				{WithBlockSize(128), WithWaveSize(64), WithMaxGridX(2)},
				{WithBlockSize(32), WithWaveSize(4), WithWorkers(1)},
			} {
				h := newTestHandle(t, opts...)
				c := x.c.Clone()
				require.NoError(t, Csrmm(context.Background(), h, transA, blas.NoTrans, 1.25, x.a, x.b, -1, c))
				results = append(results, c)
			}
			for _, c := range results[1:] {
				assertClose(t, results[0], c)
			}
		}
	}
}

func TestColumnWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	x := randomOperands[int32, int32, float64](rng, blas.NoTrans, blas.NoTrans, blas.RowMajor, blas.RowMajor, 12, 40, 9, 0.4)
	expected := reference.Csrmm(blas.NoTrans, blas.NoTrans, 1, x.a, x.b, 0, x.c)
	before := x.c.Clone()
	p := &params[int32, int32, float64]{
		rows:   x.a.Rows,
		n:      x.c.Cols,
		rowPtr: x.a.RowPtr,
		colInd: x.a.ColInd,
		val:    x.a.Val,
		alpha:  1,
		b:      x.b.Data,
		ldb:    x.b.Ld,
		c:      x.c.Data,
		ldc:    x.c.Ld,
		orderC: x.c.Order,
	}
	h := newTestHandle(t)
	cfg := h.multiplyConfig("csrmm_nt", p.rows, 1)
	require.NoError(t, h.Device().Launch(context.Background(), cfg, ntKernel[int32, int32, float64, floats.Float64Ops, noop[float64], noop[float64]](p, 16, 40)))
	for i := 0; i < x.c.Rows; i++ {
		for j := 0; j < x.c.Cols; j++ {
			if j < 16 {
				assert.Equal(t, before.At(i, j), x.c.At(i, j))
			} else {
				assert.InDelta(t, expected.At(i, j), x.c.At(i, j), 1e-12)
			}
		}
	}
}
