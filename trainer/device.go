// Copyright 2026 gorse Project Authors
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

package trainer

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/klauspost/cpuid/v2"
)

// Device describes where training runs. Only the CPU is supported.
type Device struct {
	Name     string
	Cores    int
	Features []string
}

// SelectDevice returns the CPU for a negative gpu id.
func SelectDevice(gpu int) (Device, error) {
	if gpu >= 0 {
		return Device{}, errors.NotSupportedf("GPU device %d", gpu)
	}
	var features []string
	for _, feature := range []cpuid.FeatureID{cpuid.SSE2, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F, cpuid.ASIMD} {
		if cpuid.CPU.Supports(feature) {
			features = append(features, feature.String())
		}
	}
	name := cpuid.CPU.BrandName
	if name == "" {
		name = "cpu"
	}
	return Device{
		Name:     name,
		Cores:    cpuid.CPU.LogicalCores,
		Features: features,
	}, nil
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%d cores, %s)", d.Name, d.Cores, strings.Join(d.Features, " "))
}
