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
	"encoding/binary"
	"io"
	"strings"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/pairwise/common/log"
	"github.com/gorse-io/pairwise/common/parallel"
	"github.com/gorse-io/pairwise/storage/blob"
	"github.com/juju/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

var (
	ErrMalformedInput    = errors.NotValidf("bit records")
	ErrIndexOutOfRange   = errors.NotFoundf("record")
	ErrDimensionMismatch = errors.NotValidf("dimension")
)

// Per returns the number of stored bits per record: dim rounded up to a whole number of bytes.
func Per(dim int) int {
	return ((dim + 7) / 8) * 8
}

// BitStore is an immutable sequence of fixed-width records packed least-significant-bit first.
// It is safe for concurrent use.
type BitStore struct {
	bits      *bitset.BitSet
	totalBits int
	per       int
}

// NewBitStore interprets data as packed records of dim bits each.
func NewBitStore(data []byte, dim int) (*BitStore, error) {
	if dim <= 0 {
		return nil, errors.Annotatef(ErrDimensionMismatch, "dim %d", dim)
	}
	per := Per(dim)
	totalBits := len(data) * 8
	if totalBits == 0 || totalBits%(2*per) != 0 {
		return nil, errors.Annotatef(ErrMalformedInput, "%d bits is not a positive multiple of %d", totalBits, 2*per)
	}
	words := make([]uint64, (len(data)+7)/8)
	for i := range words {
		var buf [8]byte
		copy(buf[:], data[i*8:])
		words[i] = binary.LittleEndian.Uint64(buf[:])
	}
	return &BitStore{
		bits:      bitset.From(words),
		totalBits: totalBits,
		per:       per,
	}, nil
}

// LoadBitStore reads the named blobs with up to jobs concurrent readers and concatenates them in
// order. Names ending with .gz or .zst are decompressed.
func LoadBitStore(ctx context.Context, store blob.Store, names []string, dim, jobs int) (*BitStore, error) {
	start := time.Now()
	contents := make([][]byte, len(names))
	err := parallel.Parallel(ctx, len(names), jobs, func(_, jobId int) error {
		data, err := readRecords(store, names[jobId])
		if err != nil {
			return errors.Annotatef(err, "failed to read %s", names[jobId])
		}
		contents[jobId] = data
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	size := 0
	for _, content := range contents {
		size += len(content)
	}
	data := make([]byte, 0, size)
	for _, content := range contents {
		data = append(data, content...)
	}
	bitStore, err := NewBitStore(data, dim)
	if err != nil {
		return nil, errors.Annotatef(err, "files %s", strings.Join(names, ", "))
	}
	log.Logger().Info("load bit records",
		zap.Strings("files", names),
		zap.Int("records", bitStore.Len()),
		zap.Int("per", bitStore.per),
		zap.Duration("used_time", time.Since(start)))
	return bitStore, nil
}

// OpenBitStore loads local files.
func OpenBitStore(names []string, dim int) (*BitStore, error) {
	return LoadBitStore(context.Background(), blob.NewPOSIX(""), names, dim, 1)
}

func readRecords(store blob.Store, name string) ([]byte, error) {
	r, err := store.Open(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	var reader io.Reader = r
	switch {
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Trace(err)
		}
		defer gz.Close()
		reader = gz
	case strings.HasSuffix(name, ".zst"):
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Trace(err)
		}
		defer decoder.Close()
		reader = decoder
	}
	data, err := io.ReadAll(reader)
	return data, errors.Trace(err)
}

// Len returns the number of records.
func (s *BitStore) Len() int {
	return s.totalBits / s.per
}

// Per returns the width of a decoded record.
func (s *BitStore) Per() int {
	return s.per
}

// Decode returns record i as a vector of 0 and 1.
func (s *BitStore) Decode(i int) ([]float64, error) {
	dst := make([]float64, s.per)
	if err := s.DecodeTo(i, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// DecodeTo writes record i into dst, which must have length Per().
func (s *BitStore) DecodeTo(i int, dst []float64) error {
	if i < 0 || i >= s.Len() {
		return errors.Annotatef(ErrIndexOutOfRange, "index %d of %d", i, s.Len())
	}
	if len(dst) != s.per {
		return errors.Annotatef(ErrDimensionMismatch, "buffer of %d for records of %d", len(dst), s.per)
	}
	offset := uint(i * s.per)
	for j := range dst {
		if s.bits.Test(offset + uint(j)) {
			dst[j] = 1
		} else {
			dst[j] = 0
		}
	}
	return nil
}
