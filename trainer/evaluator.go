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
	"context"

	"github.com/gorse-io/pairwise/common/nn"
	"github.com/gorse-io/pairwise/dataset"
	"github.com/gorse-io/pairwise/model/ranking"
	"github.com/juju/errors"
)

// Evaluate computes the loss and the accuracy of a scorer over a whole dataset in order. Batch
// results are weighted by batch size, so the result is the mean over examples.
func Evaluate(ctx context.Context, model *ranking.Linear, data dataset.Dataset, batchSize, jobs int) (loss, accuracy float64, err error) {
	if data.Len() == 0 {
		return 0, 0, errors.NotValidf("empty validation set")
	}
	summary := ranking.NewSummary()
	objective := ranking.NewRankLoss(model, summary)
	loader := dataset.NewLoader(data, batchSize, jobs, false, 0)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	batches := loader.Epoch(ctx)
	for batch := range batches {
		if _, err = objective.Forward(
			nn.NewTensor(batch.High, batch.Len(), data.Dim()),
			nn.NewTensor(batch.Low, batch.Len(), data.Dim()),
		); err != nil {
			cancel()
			for range batches {
			}
			return 0, 0, errors.Trace(err)
		}
	}
	if err = loader.Err(); err != nil {
		return 0, 0, errors.Trace(err)
	}
	loss, _ = summary.Mean("loss")
	accuracy, _ = summary.Mean("accuracy")
	return loss, accuracy, nil
}
