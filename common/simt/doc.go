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

// Package simt executes data-parallel kernels written in the SIMT style on goroutines.
//
// A launch is a grid of blocks. Every block is a set of lanes, split into groups
// of WaveSize consecutive lanes. Each lane runs on its own goroutine, so lanes of
// one group can rendezvous at Lane.Sync. Blocks are scheduled onto a fixed number
// of workers and may run in any order; a kernel must not rely on ordering between
// blocks. Memory shared by the lanes of a block is allocated by the kernel itself
// when the block starts:
//
//	err := device.Launch(ctx, simt.LaunchConfig{
//		Name:     "scale",
//		Grid:     simt.D1((n + 255) / 256),
//		Block:    simt.D1(256),
//		WaveSize: 64,
//	}, func(b *simt.Block) simt.LaneFunc {
//		return func(l *simt.Lane) {
//			if i := l.BlockIdx.X*l.BlockDim.X + l.ThreadIdx.X; i < n {
//				x[i] *= alpha
//			}
//		}
//	})
package simt
