// Copyright 2020 gorse Project Authors
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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/spmm/csrmm"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(`
[device]
workers = 2
block_size = 128
wave_size = 32
max_grid_x = 8
check_structure = true

[log]
layer = 1
trace_path = "trace.csv"
`), 0644)
	require.NoError(t, err)
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DeviceConfig{
		Workers:        2,
		BlockSize:      128,
		WaveSize:       32,
		MaxGridX:       8,
		CheckStructure: true,
	}, config.Device)
	assert.Equal(t, LogConfig{Layer: 1, TracePath: "trace.csv"}, config.Log)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte("device:\n  block_size: 128\n  lanes: 4\n"), 0644)
	require.NoError(t, err)
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "lanes")
}

func TestEnvironment(t *testing.T) {
	t.Setenv("SPMM_DEVICE_BLOCK_SIZE", "512")
	t.Setenv("SPMM_DEVICE_WAVE_SIZE", "16")
	t.Setenv(csrmm.EnvLayer, "2")
	t.Setenv(csrmm.EnvBenchPath, "bench.txt")
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 512, config.Device.BlockSize)
	assert.Equal(t, 16, config.Device.WaveSize)
	assert.Equal(t, 2, config.Log.Layer)
	assert.Equal(t, "bench.txt", config.Log.BenchPath)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(c *Config){
		"negative workers":  func(c *Config) { c.Device.Workers = -1 },
		"block not pow2":    func(c *Config) { c.Device.BlockSize = 96 },
		"block too large":   func(c *Config) { c.Device.BlockSize = 2048 },
		"wave not pow2":     func(c *Config) { c.Device.WaveSize = 12 },
		"wave over block":   func(c *Config) { c.Device.BlockSize, c.Device.WaveSize = 32, 64 },
		"zero max grid":     func(c *Config) { c.Device.MaxGridX = 0 },
		"unknown log layer": func(c *Config) { c.Log.Layer = 4 },
	} {
		t.Run(name, func(t *testing.T) {
			config := GetDefaultConfig()
			mutate(config)
			err := config.Validate()
			assert.True(t, errors.Is(err, errors.NotValid))
			var validationErrors validator.ValidationErrors
			assert.ErrorAs(t, err, &validationErrors)
		})
	}
	assert.NoError(t, GetDefaultConfig().Validate())
}

func TestNewHandleOptions(t *testing.T) {
	config := GetDefaultConfig()
	config.Device.Workers = 3
	config.Device.BlockSize = 32
	config.Device.WaveSize = 8
	config.Log.Layer = int(csrmm.LayerTrace)
	config.Log.TracePath = filepath.Join(t.TempDir(), "trace.csv")
	h, err := csrmm.NewHandle(config.NewHandleOptions()...)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Device().Workers())
	assert.Equal(t, 32, h.BlockSize())
	assert.Equal(t, 8, h.WaveSize())
	assert.Equal(t, csrmm.LayerTrace, h.Layer())
	assert.NoError(t, h.Close())
	assert.FileExists(t, config.Log.TracePath)
}
