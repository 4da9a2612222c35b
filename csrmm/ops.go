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
	"github.com/gorse-io/spmm/common/blas"
	"github.com/gorse-io/spmm/common/floats"
	"github.com/gorse-io/spmm/common/simt"
	"github.com/gorse-io/spmm/sparse"
)

// op is an element operator fixed at instantiation.
type op[T floats.Scalar] interface {
	apply(v T) T
}

type noop[T floats.Scalar] struct{}

func (noop[T]) apply(v T) T { return v }

type conj[T floats.Scalar, A floats.Arith[T]] struct{}

func (conj[T, A]) apply(v T) T {
	var arith A
	return arith.Conj(v)
}

// layout addresses element (k, col) of op(B).
type layout interface {
	index(k, col, ld int) int
}

// colLayout reads B[k + col*ld].
type colLayout struct{}

func (colLayout) index(k, col, ld int) int { return k + col*ld }

// rowLayout reads B[col + k*ld].
type rowLayout struct{}

func (rowLayout) index(k, col, ld int) int { return col + k*ld }

// params are the arguments shared by the multiply kernels.
type params[I, J sparse.Index, T floats.Scalar] struct {
	// rows of the stored sparse matrix
	rows   int
	n      int
	rowPtr []I
	colInd []J
	val    []T
	base   int
	alpha  T
	beta   T
	b      []T
	ldb    int
	c      []T
	ldc    int
	orderC blas.Order
}

func (p *params[I, J, T]) indexC(row, col int) int {
	if p.orderC == blas.ColMajor {
		return row + col*p.ldc
	}
	return row*p.ldc + col
}

// lane position shared by the multiply kernels
type position struct {
	lid int // lane in group
	wid int // group in block
	gid int // lane in grid
	// number of groups in the grid along X
	numGroups int
}

func locate(l *simt.Lane, waveSize int) position {
	tid := l.ThreadID()
	blockSize := l.BlockDim.Size()
	return position{
		lid:       tid % waveSize,
		wid:       tid / waveSize,
		gid:       l.BlockIdx.X*blockSize + tid,
		numGroups: l.GridDim.X * blockSize / waveSize,
	}
}
