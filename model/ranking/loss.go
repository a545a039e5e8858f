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

	"github.com/gorse-io/pairwise/common/nn"
	"github.com/juju/errors"
)

// PairwiseLoss returns the mean of log(1 + exp(-(yHigh - yLow))) and the fraction of pairs with
// yHigh > yLow. Ties count as incorrect.
func PairwiseLoss(yHigh, yLow []float64) (loss, accuracy float64, err error) {
	if len(yHigh) != len(yLow) {
		return 0, 0, errors.Annotatef(ErrDimensionMismatch, "%d high scores and %d low scores", len(yHigh), len(yLow))
	}
	if len(yHigh) == 0 {
		return 0, 0, errors.NotValidf("empty batch")
	}
	for k := range yHigh {
		diff := yHigh[k] - yLow[k]
		loss += softplus(-diff)
		if diff > 0 {
			accuracy++
		}
	}
	n := float64(len(yHigh))
	return loss / n, accuracy / n, nil
}

func softplus(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}

// RankLoss computes the pairwise logistic loss of a scorer on a batch of pairs.
type RankLoss struct {
	predictor *Linear
	reporter  Reporter
}

func NewRankLoss(predictor *Linear, reporter Reporter) *RankLoss {
	return &RankLoss{
		predictor: predictor,
		reporter:  reporter,
	}
}

func (r *RankLoss) Predictor() *Linear {
	return r.predictor
}

// Forward scores both sides of the batch and returns the differentiable mean loss. The loss and the
// accuracy are sent to the reporter, weighted by the batch size when it supports weights.
func (r *RankLoss) Forward(xHigh, xLow *nn.Tensor) (*nn.Tensor, error) {
	if len(xHigh.Shape()) != 2 || len(xLow.Shape()) != 2 || xHigh.Shape()[0] != xLow.Shape()[0] {
		return nil, errors.Annotatef(ErrDimensionMismatch, "high of shape %v and low of shape %v", xHigh.Shape(), xLow.Shape())
	}
	if xHigh.Shape()[0] == 0 {
		return nil, errors.NotValidf("empty batch")
	}
	yHigh, err := r.predictor.Forward(xHigh)
	if err != nil {
		return nil, errors.Trace(err)
	}
	yLow, err := r.predictor.Forward(xLow)
	if err != nil {
		return nil, errors.Trace(err)
	}
	diff := nn.Sub(yHigh, yLow)
	loss := nn.Mean(nn.Softplus(nn.Neg(diff)))

	if r.reporter != nil {
		var correct float64
		for _, d := range diff.Data() {
			if d > 0 {
				correct++
			}
		}
		n := float64(len(diff.Data()))
		ReportWeighted(r.reporter, "loss", loss.Data()[0], n)
		ReportWeighted(r.reporter, "accuracy", correct/n, n)
	}
	return loss, nil
}
