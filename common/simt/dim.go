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

package simt

import (
	"fmt"
	"math/bits"

	"github.com/juju/errors"
)

// MaxLanesPerBlock is the largest block a launch accepts.
const MaxLanesPerBlock = 1024

// Dim3 is the shape of a grid or a block, or a position inside one.
type Dim3 struct {
	X, Y, Z int
}

// D1 returns the one-dimensional shape (x, 1, 1).
func D1(x int) Dim3 {
	return Dim3{X: x, Y: 1, Z: 1}
}

// D2 returns the two-dimensional shape (x, y, 1).
func D2(x, y int) Dim3 {
	return Dim3{X: x, Y: y, Z: 1}
}

// Size is the number of positions in the shape.
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// Index returns the position of the linear index i, X varying fastest.
func (d Dim3) Index(i int) Dim3 {
	return Dim3{
		X: i % d.X,
		Y: (i / d.X) % d.Y,
		Z: i / (d.X * d.Y),
	}
}

func (d Dim3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", d.X, d.Y, d.Z)
}

func (d Dim3) valid() bool {
	return d.X > 0 && d.Y > 0 && d.Z > 0
}

// LaunchConfig is the execution shape of a launch.
type LaunchConfig struct {
	// Name labels metrics and errors.
	Name  string
	Grid  Dim3
	Block Dim3
	// WaveSize is the number of lanes per group. It must be a power of two
	// dividing the block size. Zero makes the whole block one group.
	WaveSize int
}

func (c LaunchConfig) waveSize() int {
	if c.WaveSize == 0 {
		return c.Block.Size()
	}
	return c.WaveSize
}

// Validate checks the launch shape.
func (c LaunchConfig) Validate() error {
	if !c.Grid.valid() {
		return errors.NotValidf("grid %v", c.Grid)
	}
	if !c.Block.valid() {
		return errors.NotValidf("block %v", c.Block)
	}
	if c.Block.Size() > MaxLanesPerBlock {
		return errors.NotValidf("block %v larger than %d lanes", c.Block, MaxLanesPerBlock)
	}
	if c.WaveSize != 0 {
		if !IsPowerOfTwo(c.WaveSize) {
			return errors.NotValidf("wave size %d", c.WaveSize)
		}
		if c.Block.Size()%c.WaveSize != 0 {
			return errors.NotValidf("wave size %d for block %v", c.WaveSize, c.Block)
		}
	}
	return nil
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && bits.OnesCount(uint(n)) == 1
}

// CeilDiv returns ceil(a / b) for non-negative a and positive b.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
