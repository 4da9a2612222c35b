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
	"sync"

	"github.com/juju/errors"
)

// ErrQueueClosed is returned when launching on a closed queue.
const ErrQueueClosed = errors.ConstError("queue closed")

type launch struct {
	ctx    context.Context
	cfg    LaunchConfig
	kernel Kernel
}

// Queue runs launches one at a time in submission order. A launch starts only
// after the previous one has completed, so a kernel observes every write of the
// kernels submitted before it. After a launch fails, later launches are skipped
// until Synchronize reports the error.
type Queue struct {
	device  *Device
	launchC chan launch
	pending sync.WaitGroup

	sendMu sync.Mutex
	closed bool

	mu  sync.Mutex
	err error
}

// NewQueue creates a queue on the device. Close releases its goroutine.
func (d *Device) NewQueue() *Queue {
	q := &Queue{
		device:  d,
		launchC: make(chan launch, 16),
	}
	go q.serve()
	return q
}

func (q *Queue) serve() {
	for l := range q.launchC {
		if q.failed() {
			q.pending.Done()
			continue
		}
		if err := q.device.Launch(l.ctx, l.cfg, l.kernel); err != nil {
			q.mu.Lock()
			if q.err == nil {
				q.err = err
			}
			q.mu.Unlock()
		}
		q.pending.Done()
	}
}

func (q *Queue) failed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err != nil
}

// Launch submits a kernel without waiting for it.
func (q *Queue) Launch(ctx context.Context, cfg LaunchConfig, kernel Kernel) error {
	q.sendMu.Lock()
	defer q.sendMu.Unlock()
	if q.closed {
		return errors.Trace(ErrQueueClosed)
	}
	q.pending.Add(1)
	q.launchC <- launch{ctx: ctx, cfg: cfg, kernel: kernel}
	return nil
}

// Synchronize waits for every submitted launch and returns the first error
// since the previous call.
func (q *Queue) Synchronize() error {
	q.pending.Wait()
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.err
	q.err = nil
	return err
}

// Close waits for submitted launches and stops the queue.
func (q *Queue) Close() {
	q.sendMu.Lock()
	if q.closed {
		q.sendMu.Unlock()
		return
	}
	q.closed = true
	q.sendMu.Unlock()
	q.pending.Wait()
	close(q.launchC)
}
