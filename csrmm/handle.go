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
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/gorse-io/spmm/common/log"
	"github.com/gorse-io/spmm/common/simt"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	DefaultBlockSize = 256
	DefaultWaveSize  = 64
	DefaultMaxGridX  = 65535
)

// Environment variables read by NewHandle.
const (
	EnvLayer     = "SPMM_LAYER"
	EnvTracePath = "SPMM_LOG_TRACE_PATH"
	EnvBenchPath = "SPMM_LOG_BENCH_PATH"
)

// Layer selects the API call logs written by a handle.
type Layer int

const (
	LayerNone  Layer = 0
	LayerTrace Layer = 1 << 0
	LayerBench Layer = 1 << 1
)

// LayerFromEnv parses SPMM_LAYER. Missing or malformed values disable logging.
func LayerFromEnv() Layer {
	value, ok := os.LookupEnv(EnvLayer)
	if !ok {
		return LayerNone
	}
	layer, err := strconv.Atoi(value)
	if err != nil || layer < 0 {
		log.Logger().Warn("invalid log layer", zap.String(EnvLayer, value))
		return LayerNone
	}
	return Layer(layer) & (LayerTrace | LayerBench)
}

// Handle owns a device and its launch queue. Calls on the same handle are
// serialized.
type Handle struct {
	mu     sync.Mutex
	device *simt.Device
	queue  *simt.Queue
	logger *zap.Logger

	workers        int
	blockSize      int
	waveSize       int
	maxGridX       int
	checkStructure bool

	layer       Layer
	layerSet    bool
	traceWriter io.Writer
	benchWriter io.Writer
	tracePath   string
	benchPath   string
	trace       *log.Stream
	bench       *log.Stream
}

type Option func(h *Handle)

// WithWorkers sets the number of blocks run at the same time.
func WithWorkers(n int) Option {
	return func(h *Handle) {
		h.workers = n
	}
}

func WithBlockSize(n int) Option {
	return func(h *Handle) {
		h.blockSize = n
	}
}

// WithWaveSize sets the number of lanes sharing a barrier.
func WithWaveSize(n int) Option {
	return func(h *Handle) {
		h.waveSize = n
	}
}

// WithMaxGridX caps the number of blocks along X. Kernels loop over the
// remaining rows.
func WithMaxGridX(n int) Option {
	return func(h *Handle) {
		h.maxGridX = n
	}
}

// WithStructureCheck enables the row pointer and column index checks.
func WithStructureCheck(enable bool) Option {
	return func(h *Handle) {
		h.checkStructure = enable
	}
}

// WithLayer overrides SPMM_LAYER.
func WithLayer(layer Layer) Option {
	return func(h *Handle) {
		h.layer = layer
		h.layerSet = true
	}
}

// WithTraceWriter sends the trace log to w instead of SPMM_LOG_TRACE_PATH.
func WithTraceWriter(w io.Writer) Option {
	return func(h *Handle) {
		h.traceWriter = w
	}
}

// WithBenchWriter sends the bench log to w instead of SPMM_LOG_BENCH_PATH.
func WithBenchWriter(w io.Writer) Option {
	return func(h *Handle) {
		h.benchWriter = w
	}
}

// WithTracePath writes the trace log to a file instead of SPMM_LOG_TRACE_PATH.
func WithTracePath(path string) Option {
	return func(h *Handle) {
		h.tracePath = path
	}
}

// WithBenchPath writes the bench log to a file instead of SPMM_LOG_BENCH_PATH.
func WithBenchPath(path string) Option {
	return func(h *Handle) {
		h.benchPath = path
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(h *Handle) {
		h.logger = logger
	}
}

// NewHandle creates a handle. Close it to stop the queue and the log streams.
func NewHandle(opts ...Option) (*Handle, error) {
	h := &Handle{
		blockSize: DefaultBlockSize,
		waveSize:  DefaultWaveSize,
		maxGridX:  DefaultMaxGridX,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.blockSize <= 0 || h.blockSize > simt.MaxLanesPerBlock {
		return nil, errors.NotValidf("block size %d", h.blockSize)
	}
	if !simt.IsPowerOfTwo(h.waveSize) || h.blockSize%h.waveSize != 0 {
		return nil, errors.NotValidf("wave size %d for block size %d", h.waveSize, h.blockSize)
	}
	if h.maxGridX <= 0 {
		return nil, errors.NotValidf("max grid x %d", h.maxGridX)
	}
	if h.logger == nil {
		h.logger = log.Logger()
	}
	if !h.layerSet {
		h.layer = LayerFromEnv()
	}
	if h.layer&LayerTrace != 0 {
		h.trace = openStream(h.traceWriter, h.tracePath, EnvTracePath)
	}
	if h.layer&LayerBench != 0 {
		h.bench = openStream(h.benchWriter, h.benchPath, EnvBenchPath)
	}
	h.device = simt.NewDevice(h.workers)
	h.queue = h.device.NewQueue()
	return h, nil
}

func openStream(w io.Writer, path, envName string) *log.Stream {
	switch {
	case w != nil:
		return log.NewStream(w)
	case path != "":
		return log.OpenFileStream(path)
	default:
		return log.OpenStream(envName)
	}
}

// Close waits for pending launches and releases the handle.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue.Close()
	if err := h.trace.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(h.bench.Close())
}

func (h *Handle) Device() *simt.Device {
	return h.device
}

func (h *Handle) BlockSize() int {
	return h.blockSize
}

func (h *Handle) WaveSize() int {
	return h.waveSize
}

func (h *Handle) Layer() Layer {
	return h.layer
}
