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

package encoding

import (
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// WriteVector writes a vector to byte stream.
func WriteVector(w io.Writer, v []float64) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// ReadVector reads a vector from byte stream. The length of v decides how many values are read.
func ReadVector(r io.Reader, v []float64) error {
	return errors.Trace(binary.Read(r, binary.LittleEndian, v))
}

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	err := binary.Write(w, binary.LittleEndian, int32(len(s)))
	if err != nil {
		return errors.Trace(err)
	}
	n, err := w.Write(s)
	if err != nil {
		return errors.Trace(err)
	} else if n != len(s) {
		return errors.New("fail to write string")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	err := binary.Read(r, binary.LittleEndian, &length)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if length < 0 {
		return nil, errors.Errorf("negative length %d", length)
	}
	// the length is not trusted, so the buffer only grows with the bytes actually read
	data, err := io.ReadAll(io.LimitReader(r, int64(length)))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(data) != int(length) {
		return nil, errors.Annotatef(io.ErrUnexpectedEOF, "read %d of %d bytes", len(data), length)
	}
	return data, nil
}

// FormatFloats formats values with a fixed number of digits after the decimal point, joined by spaces.
func FormatFloats(values []float64, prec int) string {
	var builder strings.Builder
	for i, v := range values {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(strconv.FormatFloat(v, 'f', prec, 64))
	}
	return builder.String()
}

// ParseFloats parses whitespace-separated values.
func ParseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "value %d", i)
		}
		values[i] = v
	}
	return values, nil
}
