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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const LabelKernel = "kernel"

var (
	LaunchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spmm",
		Subsystem: "simt",
		Name:      "launches_total",
	}, []string{LabelKernel})
	LaunchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spmm",
		Subsystem: "simt",
		Name:      "launch_seconds",
		Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
	}, []string{LabelKernel})
	BlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spmm",
		Subsystem: "simt",
		Name:      "blocks_total",
	}, []string{LabelKernel})
	LanePanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spmm",
		Subsystem: "simt",
		Name:      "lane_panics_total",
	}, []string{LabelKernel})
)
