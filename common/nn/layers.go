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

package nn

import (
	"math"
	"math/rand"
)

type Layer interface {
	Parameters() []*Tensor
	Forward(x *Tensor) *Tensor
}

// LinearLayer computes x·W without bias.
type LinearLayer struct {
	W *Tensor
}

// NewLinear creates a linear layer with LeCun normal initialization.
func NewLinear(in, out int, rng *rand.Rand) *LinearLayer {
	return &LinearLayer{
		W: Normal(0, 1/math.Sqrt(float64(in)), rng, in, out).RequireGrad(),
	}
}

func (l *LinearLayer) Forward(x *Tensor) *Tensor {
	return MatMul(x, l.W)
}

func (l *LinearLayer) Parameters() []*Tensor {
	return []*Tensor{l.W}
}
