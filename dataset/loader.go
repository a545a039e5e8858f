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

package dataset

import (
	"context"
	"math/rand"
	"sync"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Batch holds examples in row-major order: row k of High and Low belongs to Indices[k].
type Batch struct {
	Indices []int
	High    []float64
	Low     []float64
}

func (b *Batch) Len() int {
	return len(b.Indices)
}

type exampleWriter interface {
	GetExampleTo(i int, high, low []float64) error
}

// Loader splits a dataset into batches that are decoded by a pool of workers.
type Loader struct {
	dataset   Dataset
	batchSize int
	jobs      int
	shuffle   bool
	rng       *rand.Rand

	mu  sync.Mutex
	err error
}

func NewLoader(dataset Dataset, batchSize, jobs int, shuffle bool, seed int64) *Loader {
	if jobs < 1 {
		jobs = 1
	}
	return &Loader{
		dataset:   dataset,
		batchSize: batchSize,
		jobs:      jobs,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// NumBatches returns the number of batches in an epoch.
func (l *Loader) NumBatches() int {
	return (l.dataset.Len() + l.batchSize - 1) / l.batchSize
}

// Epoch starts a pass over the dataset. Every example is delivered exactly once, in no particular
// order across batches. The channel is closed at the end of the pass or after the first failure,
// which is then available from Err. Callers must drain the channel or cancel ctx.
func (l *Loader) Epoch(ctx context.Context) <-chan *Batch {
	indices := lo.Range(l.dataset.Len())
	if l.shuffle {
		l.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}
	chunks := lo.Chunk(indices, l.batchSize)
	out := make(chan *Batch, 2*l.jobs)
	l.setErr(nil)
	go func() {
		defer close(out)
		g, groupCtx := errgroup.WithContext(ctx)
		g.SetLimit(l.jobs)
		interrupted := false
		for _, chunk := range chunks {
			if groupCtx.Err() != nil {
				interrupted = true
				break
			}
			g.Go(func() error {
				batch, err := l.load(chunk)
				if err != nil {
					return err
				}
				select {
				case out <- batch:
					return nil
				case <-groupCtx.Done():
					return errors.Trace(groupCtx.Err())
				}
			})
		}
		err := g.Wait()
		if err == nil && interrupted {
			err = errors.Trace(ctx.Err())
		}
		l.setErr(err)
	}()
	return out
}

// Err returns the failure of the last epoch once its channel is closed.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loader) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *Loader) load(indices []int) (*Batch, error) {
	dim := l.dataset.Dim()
	batch := &Batch{
		Indices: indices,
		High:    make([]float64, len(indices)*dim),
		Low:     make([]float64, len(indices)*dim),
	}
	for k, i := range indices {
		high := batch.High[k*dim : (k+1)*dim]
		low := batch.Low[k*dim : (k+1)*dim]
		if w, ok := l.dataset.(exampleWriter); ok {
			if err := w.GetExampleTo(i, high, low); err != nil {
				return nil, errors.Trace(err)
			}
			continue
		}
		exampleHigh, exampleLow, err := l.dataset.GetExample(i)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if len(exampleHigh) != dim || len(exampleLow) != dim {
			return nil, errors.Annotatef(ErrDimensionMismatch, "example %d", i)
		}
		copy(high, exampleHigh)
		copy(low, exampleLow)
	}
	return batch, nil
}
