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
	"github.com/gorse-io/spmm/common/floats"
	"github.com/gorse-io/spmm/common/simt"
	"github.com/gorse-io/spmm/sparse"
)

// nnKernel computes C = alpha*op(A)*B + beta*C for a non-transposed A and B
// addressed as B[k + col*ldb]. Each group owns one row of C at a time and each
// lane one column; blockIdx.Y selects the tile of columns.
func nnKernel[I, J sparse.Index, T floats.Scalar, A floats.Arith[T], OA op[T], OB op[T]](p *params[I, J, T]) simt.Kernel {
	return func(b *simt.Block) simt.LaneFunc {
		wf := b.WaveSize
		sharedCol := make([][]int, b.NumWaves())
		sharedVal := make([][]T, b.NumWaves())
		for i := range sharedCol {
			sharedCol[i] = make([]int, wf)
			sharedVal[i] = make([]T, wf)
		}
		return func(l *simt.Lane) {
			var (
				arith A
				opA   OA
				opB   OB
				zero  T
			)
			pos := locate(l, wf)
			col := pos.lid + l.BlockIdx.Y*wf
			colB := col * p.ldb
			staged, values := sharedCol[pos.wid], sharedVal[pos.wid]
			for row := pos.gid / wf; row < p.rows; row += pos.numGroups {
				begin := int(p.rowPtr[row]) - p.base
				end := int(p.rowPtr[row+1]) - p.base
				var sum T
				for j := begin; j < end; j += wf {
					l.Sync()
					if k := j + pos.lid; k < end {
						staged[pos.lid] = int(p.colInd[k]) - p.base
						values[pos.lid] = opA.apply(p.val[k])
					}
					l.Sync()
					if col < p.n {
						for i := 0; i < min(wf, end-j); i++ {
							sum = arith.FMA(values[i], opB.apply(p.b[staged[i]+colB]), sum)
						}
					}
				}
				if col < p.n {
					idx := p.indexC(row, col)
					if p.beta == zero {
						p.c[idx] = p.alpha * sum
					} else {
						p.c[idx] = arith.FMA(p.beta, p.c[idx], p.alpha*sum)
					}
				}
			}
		}
	}
}

// ntKernel computes C = alpha*op(A)*B + beta*C for a non-transposed A and B
// addressed as B[col + k*ldb]. Each group owns one row of C at a time and
// walks the columns [offset, ncol) in tiles of the wave size.
func ntKernel[I, J sparse.Index, T floats.Scalar, A floats.Arith[T], OA op[T], OB op[T]](p *params[I, J, T], offset, ncol int) simt.Kernel {
	return func(b *simt.Block) simt.LaneFunc {
		wf := b.WaveSize
		sharedCol := make([][]int, b.NumWaves())
		sharedVal := make([][]T, b.NumWaves())
		for i := range sharedCol {
			sharedCol[i] = make([]int, wf)
			sharedVal[i] = make([]T, wf)
		}
		return func(l *simt.Lane) {
			var (
				arith A
				opA   OA
				opB   OB
				zero  T
			)
			pos := locate(l, wf)
			staged, values := sharedCol[pos.wid], sharedVal[pos.wid]
			for row := pos.gid / wf; row < p.rows; row += pos.numGroups {
				begin := int(p.rowPtr[row]) - p.base
				end := int(p.rowPtr[row+1]) - p.base
				for tile := offset; tile < ncol; tile += wf {
					col := tile + pos.lid
					var sum T
					for j := begin; j < end; j += wf {
						l.Sync()
						if k := j + pos.lid; k < end {
							staged[pos.lid] = p.ldb * (int(p.colInd[k]) - p.base)
							values[pos.lid] = opA.apply(p.val[k])
						}
						l.Sync()
						if col < ncol {
							for i := 0; i < min(wf, end-j); i++ {
								sum = arith.FMA(values[i], opB.apply(p.b[col+staged[i]]), sum)
							}
						}
					}
					if col < ncol {
						idx := p.indexC(row, col)
						if p.beta == zero {
							p.c[idx] = p.alpha * sum
						} else {
							p.c[idx] = arith.FMA(p.beta, p.c[idx], p.alpha*sum)
						}
					}
				}
			}
		}
	}
}
