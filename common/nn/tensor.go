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
	"fmt"
	"math/rand"
	"strings"
)

// Tensor is a dense row-major array of float64 values. Tensors produced by operators remember the
// operator, so gradients can be propagated back to the leaves that require them.
type Tensor struct {
	data        []float64
	shape       []int
	grad        *Tensor
	op          op
	requireGrad bool
}

func NewTensor(data []float64, shape ...int) *Tensor {
	if size(shape) != len(data) {
		panic(fmt.Sprintf("tensor of shape %v can not hold %d values", shape, len(data)))
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

func NewScalar(data float64) *Tensor {
	return &Tensor{
		data:  []float64{data},
		shape: []int{},
	}
}

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor {
	data := make([]float64, size(shape))
	for i := range data {
		data[i] = 1
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		data:  make([]float64, size(shape)),
		shape: shape,
	}
}

// Normal creates a tensor filled with samples from N(mean, std^2).
func Normal(mean, std float64, rng *rand.Rand, shape ...int) *Tensor {
	data := make([]float64, size(shape))
	for i := range data {
		data[i] = rng.NormFloat64()*std + mean
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// RequireGrad marks a leaf tensor as a parameter whose gradient is collected by Backward.
func (t *Tensor) RequireGrad() *Tensor {
	t.requireGrad = true
	return t
}

func (t *Tensor) Shape() []int {
	return t.shape
}

// Data returns the underlying values. Writes through the returned slice modify the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

func (t *Tensor) String() string {
	// Print scalar value
	if len(t.shape) == 0 {
		return fmt.Sprint(t.data[0])
	}

	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		for i := 0; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	} else {
		for i := 0; i < 5; i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			builder.WriteString(", ")
		}
		builder.WriteString("..., ")
		for i := len(t.data) - 5; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	}
	builder.WriteString("]")
	return builder.String()
}

// Backward computes gradients of t with respect to every tensor in its graph that requires them.
// Gradients are accumulated, so a tensor used twice in the graph receives the sum of both paths
// and repeated calls keep adding until the optimizer clears them.
func (t *Tensor) Backward() {
	if t.op == nil {
		return
	}
	// sort operators so that an output is handled before its inputs
	var order []*Tensor
	visited := make(map[*Tensor]struct{})
	var visit func(x *Tensor)
	visit = func(x *Tensor) {
		if x.op == nil {
			return
		}
		if _, ok := visited[x]; ok {
			return
		}
		visited[x] = struct{}{}
		inputs, _ := x.op.inputsAndOutput()
		for _, input := range inputs {
			visit(input)
		}
		order = append(order, x)
	}
	visit(t)

	t.grad = Ones(t.shape...)
	for i := len(order) - 1; i >= 0; i-- {
		y := order[i]
		if y.grad == nil {
			continue
		}
		inputs, _ := y.op.inputsAndOutput()
		grads := y.op.backward(y.grad)
		for j, input := range inputs {
			if grads[j] == nil {
				continue
			}
			if input.grad == nil {
				input.grad = grads[j]
			} else {
				input.grad.add(grads[j])
			}
		}
	}
}

func (t *Tensor) needsGrad() bool {
	return t.requireGrad || t.op != nil
}

func (t *Tensor) clone() *Tensor {
	newData := make([]float64, len(t.data))
	copy(newData, t.data)
	return &Tensor{
		data:  newData,
		shape: t.shape,
	}
}

func (t *Tensor) add(other *Tensor) *Tensor {
	wSize := size(other.shape)
	for i := range t.data {
		t.data[i] += other.data[i%wSize]
	}
	return t
}

func (t *Tensor) sub(other *Tensor) *Tensor {
	wSize := size(other.shape)
	for i := range t.data {
		t.data[i] -= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) neg() *Tensor {
	for i := range t.data {
		t.data[i] = -t.data[i]
	}
	return t
}

// matMul multiplies two matrices, optionally transposing either operand first.
func (t *Tensor) matMul(other *Tensor, transA, transB bool) *Tensor {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		panic("matMul requires 2-D tensors")
	}
	m, k := t.shape[0], t.shape[1]
	if transA {
		m, k = k, m
	}
	k2, n := other.shape[0], other.shape[1]
	if transB {
		k2, n = n, k2
	}
	if k != k2 {
		panic(fmt.Sprintf("matMul: shapes %v and %v are not aligned", t.shape, other.shape))
	}
	at := func(i, j int) float64 {
		if transA {
			return t.data[j*t.shape[1]+i]
		}
		return t.data[i*t.shape[1]+j]
	}
	bt := func(i, j int) float64 {
		if transB {
			return other.data[j*other.shape[1]+i]
		}
		return other.data[i*other.shape[1]+j]
	}
	y := Zeros(m, n)
	for i := 0; i < m; i++ {
		for l := 0; l < k; l++ {
			a := at(i, l)
			if a == 0 {
				continue
			}
			row := y.data[i*n : (i+1)*n]
			for j := range row {
				row[j] += a * bt(l, j)
			}
		}
	}
	return y
}

func size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
