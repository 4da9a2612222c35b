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

package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/spmm/common/simt"
	"github.com/juju/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("pow2", func(fl validator.FieldLevel) bool {
		return simt.IsPowerOfTwo(int(fl.Field().Int()))
	}); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		device := sl.Current().Interface().(DeviceConfig)
		if device.WaveSize > 0 && device.BlockSize%device.WaveSize != 0 {
			sl.ReportError(device.WaveSize, "WaveSize", "wave_size", "divides_block_size", "")
		}
	}, DeviceConfig{})
	return v
}

// Validate checks value ranges and that the wave size divides the block size.
func (config *Config) Validate() error {
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}
