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

package ranking

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"

	"github.com/gorse-io/pairwise/common/encoding"
	"github.com/gorse-io/pairwise/common/nn"
	"github.com/gorse-io/pairwise/dataset"
	"github.com/juju/errors"
)

const linearTag = "linear"

// ErrDimensionMismatch is returned when inputs do not match the width of the scorer.
var ErrDimensionMismatch = dataset.ErrDimensionMismatch

// Linear scores a feature vector by its dot product with a weight vector. There is no bias.
type Linear struct {
	layer *nn.LinearLayer
	dim   int
}

// NewLinear creates a scorer with LeCun normal initialized weights.
func NewLinear(dim int, seed int64) *Linear {
	rng := rand.New(rand.NewSource(seed))
	return &Linear{
		layer: nn.NewLinear(dim, 1, rng),
		dim:   dim,
	}
}

// NewLinearFromWeights creates a scorer holding a copy of w.
func NewLinearFromWeights(w []float64) *Linear {
	data := make([]float64, len(w))
	copy(data, w)
	return &Linear{
		layer: &nn.LinearLayer{W: nn.NewTensor(data, len(w), 1).RequireGrad()},
		dim:   len(w),
	}
}

func (l *Linear) Dim() int {
	return l.dim
}

// Forward scores a batch of shape [N, dim] into a tensor of shape [N, 1].
func (l *Linear) Forward(x *nn.Tensor) (*nn.Tensor, error) {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != l.dim {
		return nil, errors.Annotatef(ErrDimensionMismatch, "input of shape %v for scorer of %d", shape, l.dim)
	}
	return l.layer.Forward(x), nil
}

func (l *Linear) Score(x []float64) (float64, error) {
	if len(x) != l.dim {
		return 0, errors.Annotatef(ErrDimensionMismatch, "vector of %d for scorer of %d", len(x), l.dim)
	}
	var score float64
	for i, w := range l.layer.W.Data() {
		score += w * x[i]
	}
	return score, nil
}

func (l *Linear) ScoreBatch(x [][]float64) ([]float64, error) {
	scores := make([]float64, len(x))
	for i := range x {
		score, err := l.Score(x[i])
		if err != nil {
			return nil, errors.Annotatef(err, "row %d", i)
		}
		scores[i] = score
	}
	return scores, nil
}

// Weights returns a copy of the weight vector.
func (l *Linear) Weights() []float64 {
	w := make([]float64, l.dim)
	copy(w, l.layer.W.Data())
	return w
}

// Export formats the weights with 14 digits after the decimal point, separated by spaces.
func (l *Linear) Export() string {
	return encoding.FormatFloats(l.layer.W.Data(), 14)
}

func (l *Linear) Parameters() []*nn.Tensor {
	return l.layer.Parameters()
}

// Marshal writes the tag, the dimension and the weights in little endian.
func (l *Linear) Marshal(w io.Writer) error {
	if err := encoding.WriteString(w, linearTag); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(l.dim)); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteVector(w, l.layer.W.Data())
}

// UnmarshalLinear restores a scorer written by Marshal.
func UnmarshalLinear(r io.Reader) (*Linear, error) {
	tag, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if tag != linearTag {
		return nil, errors.NotValidf("model %q", tag)
	}
	var dim int32
	if err = binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, errors.Trace(err)
	}
	if dim <= 0 {
		return nil, errors.NotValidf("dimension %d", dim)
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(dim)*8))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(data) != int(dim)*8 {
		return nil, errors.NotValidf("%d bytes of weights for dimension %d", len(data), dim)
	}
	w := make([]float64, dim)
	if err = encoding.ReadVector(bytes.NewReader(data), w); err != nil {
		return nil, errors.Trace(err)
	}
	return NewLinearFromWeights(w), nil
}

// ParseLinear restores a scorer from the text produced by Export.
func ParseLinear(s string) (*Linear, error) {
	w, err := encoding.ParseFloats(s)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(w) == 0 {
		return nil, errors.NotValidf("empty weights")
	}
	return NewLinearFromWeights(w), nil
}
