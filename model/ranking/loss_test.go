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
	"math"
	"math/rand"
	"testing"

	"github.com/gorse-io/pairwise/common/nn"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairwiseLossZeroDiff(t *testing.T) {
	loss, accuracy, err := PairwiseLoss([]float64{1, -3, 0}, []float64{1, -3, 0})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), loss, 1e-12)
	assert.InDelta(t, 0.6931, loss, 1e-4)
	assert.Zero(t, accuracy)
}

func TestPairwiseLossMonotone(t *testing.T) {
	prev := math.Inf(1)
	for d := -50.0; d <= 50; d += 0.5 {
		loss, _, err := PairwiseLoss([]float64{d}, []float64{0})
		require.NoError(t, err)
		assert.Less(t, loss, prev, "diff %v", d)
		assert.False(t, math.IsNaN(loss) || math.IsInf(loss, 0))
		prev = loss
	}
	// stable for large magnitudes
	loss, _, err := PairwiseLoss([]float64{-1000}, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 1000, loss, 1e-9)
	loss, _, err = PairwiseLoss([]float64{1000}, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 0, loss, 1e-12)
}

func TestPairwiseLossAccuracy(t *testing.T) {
	_, accuracy, err := PairwiseLoss([]float64{2, 1, 0.5}, []float64{1, 0, 0.4})
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy)

	_, accuracy, err = PairwiseLoss([]float64{0, 1, 0.5}, []float64{1, 1, 0.6})
	require.NoError(t, err)
	assert.Equal(t, 0.0, accuracy)

	_, accuracy, err = PairwiseLoss([]float64{1, 0, 2, 2}, []float64{0, 1, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.5, accuracy)

	_, _, err = PairwiseLoss([]float64{1}, []float64{1, 2})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	_, _, err = PairwiseLoss(nil, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func randomBatch(rng *rand.Rand, n, dim int) *nn.Tensor {
	data := make([]float64, n*dim)
	for i := range data {
		data[i] = float64(rng.Intn(2))
	}
	return nn.NewTensor(data, n, dim)
}

func TestRankLossZeroWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	summary := NewSummary()
	objective := NewRankLoss(NewLinearFromWeights(make([]float64, 8)), summary)
	loss, err := objective.Forward(randomBatch(rng, 5, 8), randomBatch(rng, 5, 8))
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), loss.Data()[0], 1e-12)
	reportedLoss, ok := summary.Mean("loss")
	assert.True(t, ok)
	assert.InDelta(t, math.Log(2), reportedLoss, 1e-12)
	accuracy, ok := summary.Mean("accuracy")
	assert.True(t, ok)
	assert.Zero(t, accuracy)
}

func TestRankLossMatchesPairwiseLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	scorer := NewLinear(16, 1)
	xHigh, xLow := randomBatch(rng, 32, 16), randomBatch(rng, 32, 16)

	var reported []string
	objective := NewRankLoss(scorer, ReporterFunc(func(name string, value float64) {
		reported = append(reported, name)
	}))
	loss, err := objective.Forward(xHigh, xLow)
	require.NoError(t, err)
	assert.Equal(t, []string{"loss", "accuracy"}, reported)

	yHigh := make([]float64, 32)
	yLow := make([]float64, 32)
	for k := 0; k < 32; k++ {
		yHigh[k], err = scorer.Score(xHigh.Data()[k*16 : (k+1)*16])
		require.NoError(t, err)
		yLow[k], err = scorer.Score(xLow.Data()[k*16 : (k+1)*16])
		require.NoError(t, err)
	}
	expected, _, err := PairwiseLoss(yHigh, yLow)
	require.NoError(t, err)
	assert.InDelta(t, expected, loss.Data()[0], 1e-12)
}

func TestRankLossGradient(t *testing.T) {
	const n, dim = 16, 12
	rng := rand.New(rand.NewSource(2))
	scorer := NewLinear(dim, 2)
	xHigh, xLow := randomBatch(rng, n, dim), randomBatch(rng, n, dim)
	loss, err := NewRankLoss(scorer, nil).Forward(xHigh, xLow)
	require.NoError(t, err)
	loss.Backward()
	grad := scorer.Parameters()[0].Grad()
	require.NotNil(t, grad)

	// dL/dW = mean_k[-sigmoid(-d_k) * (xHigh_k - xLow_k)]
	w := scorer.Weights()
	expected := make([]float64, dim)
	for k := 0; k < n; k++ {
		high := xHigh.Data()[k*dim : (k+1)*dim]
		low := xLow.Data()[k*dim : (k+1)*dim]
		var d float64
		for j := range w {
			d += w[j] * (high[j] - low[j])
		}
		s := 1 / (1 + math.Exp(d))
		for j := range expected {
			expected[j] += -s * (high[j] - low[j]) / n
		}
	}
	for j := range expected {
		assert.InDelta(t, expected[j], grad.Data()[j], 1e-9)
	}
	// the inputs are not parameters
	assert.Nil(t, xHigh.Grad())
	assert.Nil(t, xLow.Grad())
}

func TestRankLossShape(t *testing.T) {
	objective := NewRankLoss(NewLinear(4, 0), nil)
	_, err := objective.Forward(nn.Zeros(2, 4), nn.Zeros(3, 4))
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	_, err = objective.Forward(nn.Zeros(2, 5), nn.Zeros(2, 5))
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	_, err = objective.Forward(nn.Zeros(0, 4), nn.Zeros(0, 4))
	assert.Error(t, err)
}

func TestRankLossTraining(t *testing.T) {
	// the first feature decides the order
	const n, dim = 64, 6
	rng := rand.New(rand.NewSource(3))
	xHigh, xLow := randomBatch(rng, n, dim), randomBatch(rng, n, dim)
	for k := 0; k < n; k++ {
		xHigh.Data()[k*dim] = 1
		xLow.Data()[k*dim] = 0
	}
	scorer := NewLinear(dim, 3)
	optimizer := nn.NewAdam(scorer.Parameters(), 0.05)
	summary := NewSummary()
	objective := NewRankLoss(scorer, summary)
	for epoch := 0; epoch < 200; epoch++ {
		summary.Reset()
		optimizer.ZeroGrad()
		loss, err := objective.Forward(xHigh, xLow)
		require.NoError(t, err)
		loss.Backward()
		optimizer.Step()
	}
	accuracy, _ := summary.Mean("accuracy")
	assert.Equal(t, 1.0, accuracy)
	loss, _ := summary.Mean("loss")
	assert.Less(t, loss, 0.1)
}
