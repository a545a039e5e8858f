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
	"bytes"
	"context"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/pairwise/storage/blob"
	"github.com/juju/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	file := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(file, data, 0644))
	return file
}

// packBits packs 0/1 values least-significant-bit first.
func packBits(bits []int) []byte {
	data := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b != 0 {
			data[i/8] |= 1 << (i % 8)
		}
	}
	return data
}

func TestPer(t *testing.T) {
	assert.Equal(t, 8184, Per(8184))
	assert.Equal(t, 16, Per(10))
	assert.Equal(t, 8, Per(1))
	assert.Equal(t, 8, Per(8))
	assert.Equal(t, 16, Per(9))
	for dim := 1; dim < 100; dim++ {
		per := Per(dim)
		assert.Zero(t, per%8)
		assert.GreaterOrEqual(t, per, dim)
		assert.Less(t, per-dim, 8)
	}
}

func TestBitStoreRoundTrip(t *testing.T) {
	const dim = 12
	per := Per(dim)
	rng := rand.New(rand.NewSource(0))
	bits := make([]int, 6*per)
	for i := range bits {
		bits[i] = rng.Intn(2)
	}
	file := writeFile(t, t.TempDir(), "records.bin", packBits(bits))

	store, err := OpenBitStore([]string{file}, dim)
	require.NoError(t, err)
	assert.Equal(t, 6, store.Len())
	assert.Equal(t, 16, store.Per())
	for i := 0; i < store.Len(); i++ {
		record, err := store.Decode(i)
		require.NoError(t, err)
		require.Len(t, record, per)
		for j := range record {
			assert.Equal(t, float64(bits[i*per+j]), record[j], "record %d bit %d", i, j)
		}
	}
}

func TestBitStoreBitOrder(t *testing.T) {
	store, err := NewBitStore([]byte{0x01, 0x80}, 8)
	require.NoError(t, err)
	record, err := store.Decode(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0, 0, 0, 0, 0}, record)
	record, err = store.Decode(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 1}, record)
}

func TestBitStoreWordBoundary(t *testing.T) {
	// records of 24 bits straddle the 64-bit words of the bit set
	data := make([]byte, 2*3*4)
	data[8] = 0x01
	data[23] = 0x80
	store, err := NewBitStore(data, 24)
	require.NoError(t, err)
	assert.Equal(t, 8, store.Len())
	record, err := store.Decode(2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, record[16])
	record, err = store.Decode(7)
	require.NoError(t, err)
	assert.Equal(t, 1.0, record[23])
}

func TestBitStoreMalformed(t *testing.T) {
	dir := t.TempDir()
	// 3 records of 8 bits cannot be paired
	file := writeFile(t, dir, "odd.bin", []byte{1, 2, 3})
	_, err := OpenBitStore([]string{file}, 8)
	assert.True(t, errors.Is(err, ErrMalformedInput))
	assert.True(t, errors.Is(err, errors.NotValid))

	// empty input
	file = writeFile(t, dir, "empty.bin", nil)
	_, err = OpenBitStore([]string{file}, 8)
	assert.True(t, errors.Is(err, ErrMalformedInput))
	_, err = OpenBitStore(nil, 8)
	assert.True(t, errors.Is(err, ErrMalformedInput))

	// 48 bits is not a multiple of 2*16 bits
	_, err = NewBitStore([]byte{1, 2, 3, 4, 5, 6}, 10)
	assert.True(t, errors.Is(err, ErrMalformedInput))

	_, err = NewBitStore([]byte{1, 2}, 0)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestBitStoreAggregateAlignment(t *testing.T) {
	// neither file holds a whole number of pairs, but the concatenation does
	dir := t.TempDir()
	a := writeFile(t, dir, "a.bin", []byte{0x01, 0x02, 0x04})
	b := writeFile(t, dir, "b.bin", []byte{0x08})
	store, err := OpenBitStore([]string{a, b}, 8)
	require.NoError(t, err)
	assert.Equal(t, 4, store.Len())
	record, err := store.Decode(3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1, 0, 0, 0, 0}, record)
}

func TestBitStoreMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.bin")
	_, err := OpenBitStore([]string{missing}, 8)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), missing)
}

func TestBitStoreIndex(t *testing.T) {
	store, err := NewBitStore([]byte{1, 2}, 8)
	require.NoError(t, err)
	_, err = store.Decode(-1)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	_, err = store.Decode(2)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	assert.True(t, errors.Is(err, errors.NotFound))
	err = store.DecodeTo(0, make([]float64, 7))
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestLoadCompressed(t *testing.T) {
	dir := t.TempDir()
	var gzBuf bytes.Buffer
	gz := gzip.NewWriter(&gzBuf)
	_, err := gz.Write([]byte{0x01, 0x02})
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	writeFile(t, dir, "a.bin.gz", gzBuf.Bytes())

	encoder, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	writeFile(t, dir, "b.bin.zst", encoder.EncodeAll([]byte{0x04, 0x08}, nil))
	require.NoError(t, encoder.Close())

	store, err := LoadBitStore(context.Background(), blob.NewPOSIX(dir), []string{"a.bin.gz", "b.bin.zst"}, 8, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, store.Len())
	for i := 0; i < 4; i++ {
		record, err := store.Decode(i)
		require.NoError(t, err)
		expected := make([]float64, 8)
		expected[i] = 1
		assert.Equal(t, expected, record)
	}
}
