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
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/spmm/csrmm"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of a handle.
type Config struct {
	Device DeviceConfig `mapstructure:"device"`
	Log    LogConfig    `mapstructure:"log"`
}

// DeviceConfig is the shape of the emulated device and its launches.
type DeviceConfig struct {
	Workers        int  `mapstructure:"workers" validate:"gte=0"`
	BlockSize      int  `mapstructure:"block_size" validate:"gt=0,lte=1024,pow2"`
	WaveSize       int  `mapstructure:"wave_size" validate:"gt=0,pow2"`
	MaxGridX       int  `mapstructure:"max_grid_x" validate:"gt=0"`
	CheckStructure bool `mapstructure:"check_structure"`
}

// LogConfig selects the API call logs.
type LogConfig struct {
	Layer     int    `mapstructure:"layer" validate:"gte=0,lte=3"`
	TracePath string `mapstructure:"trace_path"`
	BenchPath string `mapstructure:"bench_path"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			BlockSize: csrmm.DefaultBlockSize,
			WaveSize:  csrmm.DefaultWaveSize,
			MaxGridX:  csrmm.DefaultMaxGridX,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [device]
	v.SetDefault("device.workers", defaultConfig.Device.Workers)
	v.SetDefault("device.block_size", defaultConfig.Device.BlockSize)
	v.SetDefault("device.wave_size", defaultConfig.Device.WaveSize)
	v.SetDefault("device.max_grid_x", defaultConfig.Device.MaxGridX)
	v.SetDefault("device.check_structure", defaultConfig.Device.CheckStructure)
	// [log]
	v.SetDefault("log.layer", defaultConfig.Log.Layer)
	v.SetDefault("log.trace_path", defaultConfig.Log.TracePath)
	v.SetDefault("log.bench_path", defaultConfig.Log.BenchPath)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from a TOML, YAML or JSON file. An empty path
// loads defaults. Unknown keys are rejected. Environment variables prefixed with SPMM_ override the file,
// e.g. SPMM_DEVICE_BLOCK_SIZE overrides device.block_size.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("SPMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// log variables keep the names read by handles
	for _, binding := range []configBinding{
		{"log.layer", csrmm.EnvLayer},
		{"log.trace_path", csrmm.EnvTracePath},
		{"log.bench_path", csrmm.EnvBenchPath},
	} {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
	}); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// NewHandleOptions converts the configuration to handle options.
func (config *Config) NewHandleOptions() []csrmm.Option {
	opts := []csrmm.Option{
		csrmm.WithWorkers(config.Device.Workers),
		csrmm.WithBlockSize(config.Device.BlockSize),
		csrmm.WithWaveSize(config.Device.WaveSize),
		csrmm.WithMaxGridX(config.Device.MaxGridX),
		csrmm.WithStructureCheck(config.Device.CheckStructure),
		csrmm.WithLayer(csrmm.Layer(config.Log.Layer)),
	}
	if config.Log.TracePath != "" {
		opts = append(opts, csrmm.WithTracePath(config.Log.TracePath))
	}
	if config.Log.BenchPath != "" {
		opts = append(opts, csrmm.WithBenchPath(config.Log.BenchPath))
	}
	return opts
}
