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
	"sync"

	"github.com/juju/errors"
)

// ErrBarrierBroken is raised in lanes waiting at a barrier whose group lost a
// lane to a panic.
const ErrBarrierBroken = errors.ConstError("barrier broken")

// Barrier is a reusable rendezvous for the lanes of a group. A lane that
// returns from the kernel leaves the barrier, so the remaining lanes do not
// wait for it.
type Barrier struct {
	mu         sync.Mutex
	cond       sync.Cond
	parties    int
	arrived    int
	generation uint64
	broken     bool
}

func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond.L = &b.mu
	return b
}

// Wait blocks until every active lane of the group has called Wait. It panics
// with ErrBarrierBroken if the barrier is broken before that happens.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken {
		panic(ErrBarrierBroken)
	}
	generation := b.generation
	b.arrived++
	if b.arrived >= b.parties {
		b.release()
		return
	}
	for generation == b.generation && !b.broken {
		b.cond.Wait()
	}
	if generation == b.generation {
		panic(ErrBarrierBroken)
	}
}

// Leave removes a finished lane from the group.
func (b *Barrier) Leave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parties--
	if b.arrived > 0 && b.arrived >= b.parties {
		b.release()
	}
}

// Break wakes every waiting lane with ErrBarrierBroken.
func (b *Barrier) Break() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = true
	b.cond.Broadcast()
}

func (b *Barrier) release() {
	b.arrived = 0
	b.generation++
	b.cond.Broadcast()
}
