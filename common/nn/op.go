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
)

type op interface {
	String() string
	forward(inputs ...*Tensor) *Tensor
	// backward returns one gradient per input, nil for inputs that do not need one.
	backward(dy *Tensor) []*Tensor
	inputsAndOutput() ([]*Tensor, *Tensor)
	setInputs(inputs ...*Tensor)
	setOutput(y *Tensor)
}

type base struct {
	inputs []*Tensor
	output *Tensor
}

func (b *base) inputsAndOutput() ([]*Tensor, *Tensor) {
	return b.inputs, b.output
}

func (b *base) setInputs(inputs ...*Tensor) {
	b.inputs = inputs
}

func (b *base) setOutput(y *Tensor) {
	b.output = y
}

func apply[T op](f T, inputs ...*Tensor) *Tensor {
	y := f.forward(inputs...)
	f.setInputs(inputs...)
	f.setOutput(y)
	y.op = f
	return y
}

// reduceTo sums dy over the leading axes so that it matches a suffix shape.
func reduceTo(dy *Tensor, shape []int, sign float64) *Tensor {
	gx := Zeros(shape...)
	wSize := size(shape)
	for i := range dy.data {
		gx.data[i%wSize] += sign * dy.data[i]
	}
	return gx
}

type sub struct {
	base
}

func (s *sub) String() string {
	return "Sub"
}

func (s *sub) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.sub(inputs[1])
	return y
}

func (s *sub) backward(dy *Tensor) []*Tensor {
	grads := make([]*Tensor, 2)
	if s.inputs[0].needsGrad() {
		grads[0] = dy.clone()
	}
	if s.inputs[1].needsGrad() {
		grads[1] = reduceTo(dy, s.inputs[1].shape, -1)
	}
	return grads
}

type neg struct {
	base
}

func (n *neg) String() string {
	return "Neg"
}

func (n *neg) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.neg()
	return y
}

func (n *neg) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	dx.neg()
	return []*Tensor{dx}
}

type mean struct {
	base
}

func (m *mean) String() string {
	return "Mean"
}

func (m *mean) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	y := NewScalar(0)
	for i := range x.data {
		y.data[0] += x.data[i]
	}
	y.data[0] /= float64(len(x.data))
	return y
}

func (m *mean) backward(dy *Tensor) []*Tensor {
	dx := Zeros(m.inputs[0].shape...)
	for i := range dx.data {
		dx.data[i] = dy.data[0] / float64(len(dx.data))
	}
	return []*Tensor{dx}
}

type matMul struct {
	base
}

func (m *matMul) String() string {
	return "MatMul"
}

func (m *matMul) forward(inputs ...*Tensor) *Tensor {
	return inputs[0].matMul(inputs[1], false, false)
}

func (m *matMul) backward(dy *Tensor) []*Tensor {
	grads := make([]*Tensor, 2)
	if m.inputs[0].needsGrad() {
		grads[0] = dy.matMul(m.inputs[1], false, true)
	}
	if m.inputs[1].needsGrad() {
		grads[1] = m.inputs[0].matMul(dy, true, false)
	}
	return grads
}

type softplus struct {
	base
}

func (s *softplus) String() string {
	return "Softplus"
}

func (s *softplus) forward(inputs ...*Tensor) *Tensor {
	// y = max(x, 0) + log(1 + exp(-|x|)), which never overflows
	y := inputs[0].clone()
	for i, x := range y.data {
		y.data[i] = math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
	}
	return y
}

func (s *softplus) backward(dy *Tensor) []*Tensor {
	// dx = dy * sigmoid(x)
	dx := dy.clone()
	for i, x := range s.inputs[0].data {
		dx.data[i] *= stableSigmoid(x)
	}
	return []*Tensor{dx}
}

func stableSigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func checkSuffix(x0, x1 *Tensor) {
	if len(x0.shape) < len(x1.shape) {
		panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
	}
	for i := 0; i < len(x1.shape); i++ {
		if x0.shape[len(x0.shape)-len(x1.shape)+i] != x1.shape[i] {
			panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
		}
	}
}

// Sub returns the element-wise difference of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Sub(x0, x1 *Tensor) *Tensor {
	checkSuffix(x0, x1)
	return apply(&sub{}, x0, x1)
}

// Neg returns the element-wise negation of a tensor.
func Neg(x *Tensor) *Tensor {
	return apply(&neg{}, x)
}

// Mean returns the mean of all elements in a tensor.
func Mean(x *Tensor) *Tensor {
	return apply(&mean{}, x)
}

// MatMul returns the product of an (m, k) matrix and a (k, n) matrix.
func MatMul(x, y *Tensor) *Tensor {
	return apply(&matMul{}, x, y)
}

// Softplus returns log(1 + exp(x)) element-wise.
func Softplus(x *Tensor) *Tensor {
	return apply(&softplus{}, x)
}
