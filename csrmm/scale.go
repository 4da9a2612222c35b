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
)

// scaleKernel multiplies every element of the m x n matrix c by beta. A zero
// beta stores zeros so that NaN in c does not survive.
func scaleKernel[T floats.Scalar](m, n int, beta T, c []T, ldc int, order blas.Order) simt.Kernel {
	return func(b *simt.Block) simt.LaneFunc {
		return func(l *simt.Lane) {
			row := l.BlockIdx.X*l.BlockDim.X + l.ThreadIdx.X
			col := l.BlockIdx.Y*l.BlockDim.Y + l.ThreadIdx.Y
			if row >= m || col >= n {
				return
			}
			idx := row*ldc + col
			if order == blas.ColMajor {
				idx = row + col*ldc
			}
			var zero T
			if beta == zero {
				c[idx] = zero
			} else {
				c[idx] *= beta
			}
		}
	}
}
