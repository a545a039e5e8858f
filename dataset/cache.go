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
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
)

type example struct {
	high []float64
	low  []float64
}

// CachedPairs keeps up to capacity decoded examples in memory. Callers always receive copies.
type CachedPairs struct {
	*Pairs
	cache *ttlcache.Cache[int, example]
}

func NewCachedPairs(pairs *Pairs, capacity int) *CachedPairs {
	return &CachedPairs{
		Pairs: pairs,
		cache: ttlcache.New[int, example](
			ttlcache.WithCapacity[int, example](uint64(capacity)),
		),
	}
}

func (c *CachedPairs) GetExample(i int) (high, low []float64, err error) {
	high = make([]float64, c.Dim())
	low = make([]float64, c.Dim())
	if err = c.GetExampleTo(i, high, low); err != nil {
		return nil, nil, err
	}
	return high, low, nil
}

func (c *CachedPairs) GetExampleTo(i int, high, low []float64) error {
	if item := c.cache.Get(i); item != nil {
		if len(high) != c.Dim() || len(low) != c.Dim() {
			return errors.Annotatef(ErrDimensionMismatch, "buffers of %d and %d for records of %d", len(high), len(low), c.Dim())
		}
		copy(high, item.Value().high)
		copy(low, item.Value().low)
		return nil
	}
	if err := c.Pairs.GetExampleTo(i, high, low); err != nil {
		return err
	}
	c.cache.Set(i, example{
		high: append([]float64(nil), high...),
		low:  append([]float64(nil), low...),
	}, ttlcache.NoTTL)
	return nil
}
