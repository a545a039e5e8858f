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
	"github.com/juju/errors"
)

// Dataset is a random access collection of (high, low) examples.
type Dataset interface {
	Len() int
	// Dim returns the length of each decoded vector.
	Dim() int
	GetExample(i int) (high, low []float64, err error)
}

// Pairs reads consecutive records as examples: record 2i is ranked above record 2i+1.
type Pairs struct {
	store *BitStore
}

func NewPairs(store *BitStore) *Pairs {
	return &Pairs{store: store}
}

func (p *Pairs) Len() int {
	return p.store.Len() / 2
}

func (p *Pairs) Dim() int {
	return p.store.Per()
}

func (p *Pairs) GetExample(i int) (high, low []float64, err error) {
	high = make([]float64, p.store.Per())
	low = make([]float64, p.store.Per())
	if err = p.GetExampleTo(i, high, low); err != nil {
		return nil, nil, err
	}
	return high, low, nil
}

// GetExampleTo decodes example i into caller owned buffers.
func (p *Pairs) GetExampleTo(i int, high, low []float64) error {
	if i < 0 || i >= p.Len() {
		return errors.Annotatef(ErrIndexOutOfRange, "example %d of %d", i, p.Len())
	}
	if err := p.store.DecodeTo(2*i, high); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.store.DecodeTo(2*i+1, low))
}
