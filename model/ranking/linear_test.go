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
	"math"
	"testing"

	"github.com/gorse-io/pairwise/common/encoding"
	"github.com/gorse-io/pairwise/common/nn"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	scorer := NewLinearFromWeights([]float64{0.1, -0.2})
	assert.Equal(t, "0.10000000000000 -0.20000000000000", scorer.Export())

	parsed, err := ParseLinear(scorer.Export())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, -0.2}, parsed.Weights())

	_, err = ParseLinear("  ")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = ParseLinear("0.1 abc")
	assert.Error(t, err)
}

func TestNewLinear(t *testing.T) {
	scorer := NewLinear(1024, 0)
	assert.Equal(t, 1024, scorer.Dim())
	w := scorer.Weights()
	require.Len(t, w, 1024)
	var mean, variance float64
	for _, v := range w {
		mean += v
	}
	mean /= float64(len(w))
	for _, v := range w {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(w))
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, 1.0/1024, variance, 0.2/1024)

	// same seed, same weights
	assert.Equal(t, w, NewLinear(1024, 0).Weights())
	assert.NotEqual(t, w, NewLinear(1024, 1).Weights())
	// one parameter, no bias
	assert.Len(t, scorer.Parameters(), 1)
}

func TestScore(t *testing.T) {
	scorer := NewLinearFromWeights([]float64{1, -2, 0.5})
	score, err := scorer.Score([]float64{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, -0.5, score)

	scores, err := scorer.ScoreBatch([][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2, 0.5}, scores)

	y, err := scorer.Forward(nn.NewTensor([]float64{1, 1, 1, 0, 0, 1}, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, y.Shape())
	assert.Equal(t, []float64{-0.5, 0.5}, y.Data())

	_, err = scorer.Score([]float64{1, 1})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	_, err = scorer.ScoreBatch([][]float64{{1, 0, 0}, {1}})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	_, err = scorer.Forward(nn.NewTensor([]float64{1, 1}, 1, 2))
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestWeightsAreCopied(t *testing.T) {
	w := []float64{1, 2}
	scorer := NewLinearFromWeights(w)
	w[0] = 100
	weights := scorer.Weights()
	assert.Equal(t, []float64{1, 2}, weights)
	weights[1] = 100
	assert.Equal(t, []float64{1, 2}, scorer.Weights())
}

func TestMarshalLinear(t *testing.T) {
	scorer := NewLinear(16, 42)
	buf := bytes.NewBuffer(nil)
	require.NoError(t, scorer.Marshal(buf))
	// tag, dimension and weights
	assert.Equal(t, 4+len(linearTag)+4+16*8, buf.Len())

	restored, err := UnmarshalLinear(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, scorer.Weights(), restored.Weights())
	assert.Equal(t, scorer.Export(), restored.Export())

	// truncated
	_, err = UnmarshalLinear(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
	assert.Error(t, err)

	// unknown tag
	buf.Reset()
	require.NoError(t, encoding.WriteString(buf, "mlp"))
	_, err = UnmarshalLinear(buf)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestUnmarshalCorruptLinear(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	require.NoError(t, NewLinear(4, 0).Marshal(buf))
	data := buf.Bytes()

	// a dimension far beyond the stored weights is rejected without allocating it
	corrupt := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(corrupt[4+len(linearTag):], math.MaxInt32)
	_, err := UnmarshalLinear(bytes.NewReader(corrupt))
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "dimension 2147483647")

	// zero dimension
	binary.LittleEndian.PutUint32(corrupt[4+len(linearTag):], 0)
	_, err = UnmarshalLinear(bytes.NewReader(corrupt))
	assert.True(t, errors.Is(err, errors.NotValid))

	// the first bytes of text decode as a tag length of about 1.6e9
	_, err = UnmarshalLinear(bytes.NewReader([]byte("garbage")))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestMarshalExactWeights(t *testing.T) {
	w := []float64{math.Pi, -math.SmallestNonzeroFloat64, 1e300, 0}
	buf := bytes.NewBuffer(nil)
	require.NoError(t, NewLinearFromWeights(w).Marshal(buf))
	restored, err := UnmarshalLinear(buf)
	require.NoError(t, err)
	assert.Equal(t, w, restored.Weights())
}
