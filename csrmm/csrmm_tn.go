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

// transKernel accumulates alpha*op(A)*B into C for a transposed A. Each group
// owns one stored row k of A at a time: it stages row k of op(B) for the tile
// of columns selected by blockIdx.Y, then scatters every nonzero A[k, m] times
// the staged row into row m of C with atomic adds. C is never read, so beta is
// applied by a scale launch before this one.
func transKernel[I, J sparse.Index, T floats.Scalar, A floats.Arith[T], OA op[T], OB op[T], L layout](p *params[I, J, T]) simt.Kernel {
	return func(b *simt.Block) simt.LaneFunc {
		wf := b.WaveSize
		sharedB := make([][]T, b.NumWaves())
		for i := range sharedB {
			sharedB[i] = make([]T, wf)
		}
		return func(l *simt.Lane) {
			var (
				arith A
				opA   OA
				opB   OB
				lay   L
			)
			pos := locate(l, wf)
			tile := l.BlockIdx.Y * wf
			cid := pos.lid + tile
			staged := sharedB[pos.wid]
			width := min(wf, p.n-tile)
			for row := pos.gid / wf; row < p.rows; row += pos.numGroups {
				l.Sync()
				if cid < p.n {
					staged[pos.lid] = opB.apply(p.b[lay.index(row, cid, p.ldb)])
				} else {
					staged[pos.lid] = 0
				}
				l.Sync()
				begin := int(p.rowPtr[row]) - p.base
				end := int(p.rowPtr[row+1]) - p.base
				for j := begin + pos.lid; j < end; j += wf {
					col := int(p.colInd[j]) - p.base
					v := p.alpha * opA.apply(p.val[j])
					for i := 0; i < width; i++ {
						arith.AtomicAdd(&p.c[p.indexC(col, tile+i)], v*staged[i])
					}
				}
			}
		}
	}
}
