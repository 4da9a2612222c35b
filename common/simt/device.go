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
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gorse-io/spmm/common/log"
	"github.com/gorse-io/spmm/common/parallel"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LaneFunc is the body of a kernel, executed once by every lane.
type LaneFunc func(l *Lane)

// Kernel is called once per block before its lanes start. Memory allocated by
// the kernel here is shared by the lanes of the block.
type Kernel func(b *Block) LaneFunc

// Block is a running block.
type Block struct {
	Idx      Dim3
	Dim      Dim3
	GridDim  Dim3
	WaveSize int
	barriers []*Barrier

	mu  sync.Mutex
	err error
}

// NumWaves is the number of lane groups in the block.
func (b *Block) NumWaves() int {
	return len(b.barriers)
}

// Lane is an execution lane of a block.
type Lane struct {
	BlockIdx  Dim3
	ThreadIdx Dim3
	BlockDim  Dim3
	GridDim   Dim3
	tid       int
	barrier   *Barrier
}

// ThreadID is the linear index of the lane in its block.
func (l *Lane) ThreadID() int {
	return l.tid
}

// Sync waits until every lane of the group reaches the same point.
func (l *Lane) Sync() {
	l.barrier.Wait()
}

// Stats counts the work done by a device.
type Stats struct {
	Launches int64
	Blocks   int64
	Lanes    int64
	Panics   int64
}

// Device runs launches on a fixed number of block workers.
type Device struct {
	workers  int
	launches atomic.Int64
	blocks   atomic.Int64
	lanes    atomic.Int64
	panics   atomic.Int64
}

// NewDevice creates a device with the given number of block workers.
// Non-positive values use GOMAXPROCS.
func NewDevice(workers int) *Device {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Device{workers: workers}
}

// Workers is the number of blocks the device runs at the same time.
func (d *Device) Workers() int {
	return d.workers
}

func (d *Device) Stats() Stats {
	return Stats{
		Launches: d.launches.Load(),
		Blocks:   d.blocks.Load(),
		Lanes:    d.lanes.Load(),
		Panics:   d.panics.Load(),
	}
}

// Launch runs kernel over the grid and returns when every block has finished.
// A panic in a lane fails the launch; ctx stops blocks that have not started.
func (d *Device) Launch(ctx context.Context, cfg LaunchConfig, kernel Kernel) error {
	if err := cfg.Validate(); err != nil {
		return errors.Annotatef(err, "launch %s", cfg.Name)
	}
	start := time.Now()
	numBlocks := cfg.Grid.Size()
	err := parallel.Parallel(ctx, numBlocks, d.workers, func(_, blockId int) error {
		return d.runBlock(cfg, cfg.Grid.Index(blockId), kernel)
	})
	d.launches.Inc()
	LaunchesTotal.WithLabelValues(cfg.Name).Inc()
	LaunchSeconds.WithLabelValues(cfg.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return errors.Annotatef(err, "launch %s", cfg.Name)
	}
	log.Logger().Debug("kernel finished",
		zap.String("kernel", cfg.Name),
		zap.Stringer("grid", cfg.Grid),
		zap.Stringer("block", cfg.Block),
		zap.Int("wave_size", cfg.waveSize()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (d *Device) runBlock(cfg LaunchConfig, idx Dim3, kernel Kernel) error {
	numLanes := cfg.Block.Size()
	waveSize := cfg.waveSize()
	b := &Block{
		Idx:      idx,
		Dim:      cfg.Block,
		GridDim:  cfg.Grid,
		WaveSize: waveSize,
		barriers: make([]*Barrier, numLanes/waveSize),
	}
	for i := range b.barriers {
		b.barriers[i] = NewBarrier(waveSize)
	}
	fn, err := d.setupBlock(cfg.Name, b, kernel)
	if err != nil {
		return err
	}
	var g errgroup.Group
	for tid := 0; tid < numLanes; tid++ {
		l := &Lane{
			BlockIdx:  idx,
			ThreadIdx: cfg.Block.Index(tid),
			BlockDim:  cfg.Block,
			GridDim:   cfg.Grid,
			tid:       tid,
			barrier:   b.barriers[tid/waveSize],
		}
		g.Go(func() error {
			d.runLane(cfg.Name, b, l, fn)
			return nil
		})
	}
	_ = g.Wait()
	d.blocks.Inc()
	d.lanes.Add(int64(numLanes))
	BlocksTotal.WithLabelValues(cfg.Name).Inc()
	return b.err
}

// setupBlock runs the per-block part of kernel. A panic fails the block
// before any lane starts.
func (d *Device) setupBlock(name string, b *Block, kernel Kernel) (fn LaneFunc, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Inc()
			LanePanicsTotal.WithLabelValues(name).Inc()
			err = errors.Errorf("setup of block %v panicked: %s", b.Idx, fmt.Sprint(r))
		}
	}()
	return kernel(b), nil
}

func (d *Device) runLane(name string, b *Block, l *Lane, fn LaneFunc) {
	defer func() {
		r := recover()
		if r == nil {
			l.barrier.Leave()
			return
		}
		l.barrier.Break()
		if r == ErrBarrierBroken {
			return
		}
		d.panics.Inc()
		LanePanicsTotal.WithLabelValues(name).Inc()
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.err == nil {
			b.err = errors.Errorf("lane %v of block %v panicked: %s", l.ThreadIdx, l.BlockIdx, fmt.Sprint(r))
		}
	}()
	fn(l)
}
