/*
Copyright © 2025 the eocube authors.
This file is part of eocube.

eocube is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

eocube is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with eocube.  If not, see <http://www.gnu.org/licenses/>.
*/

package zarr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/qri-io/dataset/compression"
)

const (
	// MTAttributes stores user metadata of an array or group.
	MTAttributes = ".zattrs"
	// MTArray is the key of the metadata of an array.
	MTArray = ".zarray"
	// MTGroup is the key of the metadata of a group.
	MTGroup = ".zgroup"
)

// ArrayMeta is the content of a ".zarray" key.
type ArrayMeta struct {
	ZarrFormat int `json:"zarr_format"`

	// Shape holds the length of each dimension of the array.
	Shape []int `json:"shape"`

	// Chunks holds the length of each dimension of a chunk. All chunks
	// have the same shape, including the ones at the array edges.
	Chunks []int `json:"chunks"`

	Dtype Dtype `json:"dtype"`

	// Compressor is nil for uncompressed chunks.
	Compressor *CompressionMeta `json:"compressor"`

	// FillValue is the value of uninitialized elements: a number, one of
	// "NaN", "Infinity", "-Infinity", or nil.
	FillValue interface{} `json:"fill_value"`

	// Order is "C" for row-major chunks.
	Order string `json:"order"`

	Filters []json.RawMessage `json:"filters"`

	// DimensionSeparator separates chunk indices in chunk keys. It
	// defaults to ".".
	DimensionSeparator string `json:"dimension_separator,omitempty"`
}

const (
	FillValueNaN              = "NaN"
	FillValueInfinity         = "Infinity"
	FillValueNegativeInfinity = "-Infinity"
)

// Fill returns the fill value and whether one is set.
func (m *ArrayMeta) Fill() (float64, bool) {
	return fillValue(m.FillValue)
}

func fillValue(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case string:
		switch f {
		case FillValueNaN:
			return math.NaN(), true
		case FillValueInfinity:
			return math.Inf(1), true
		case FillValueNegativeInfinity:
			return math.Inf(-1), true
		}
	}
	return 0, false
}

func (m *ArrayMeta) check() error {
	if m.ZarrFormat != 2 {
		return fmt.Errorf("zarr: unsupported zarr format %d", m.ZarrFormat)
	}
	if len(m.Shape) != len(m.Chunks) {
		return fmt.Errorf("zarr: shape %v and chunks %v differ in rank", m.Shape, m.Chunks)
	}
	for _, c := range m.Chunks {
		if c <= 0 {
			return fmt.Errorf("zarr: invalid chunks %v", m.Chunks)
		}
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("zarr: unsupported order %q", m.Order)
	}
	if len(m.Filters) > 0 {
		return fmt.Errorf("zarr: filters are not supported")
	}
	return nil
}

// CompressionMeta identifies the codec of the chunks.
type CompressionMeta struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// codecs maps codec identifiers to compression formats.
var codecs = map[string]string{
	"gzip": "gzip",
	"zstd": "zst",
}

func (m *CompressionMeta) Decompressor(r io.ReadCloser) (io.ReadCloser, error) {
	if m == nil {
		return r, nil
	}
	f, ok := codecs[m.ID]
	if !ok {
		return nil, fmt.Errorf("zarr: unsupported compressor %q", m.ID)
	}
	return compression.Decompressor(f, r)
}

// Attributes is the content of a ".zattrs" key.
type Attributes map[string]interface{}

// Float returns the numeric attribute k.
func (a Attributes) Float(k string) (float64, bool) {
	return fillValue(a[k])
}

// String returns the string attribute k.
func (a Attributes) String(k string) string {
	s, _ := a[k].(string)
	return s
}

func readJSON(ctx context.Context, s Store, key string, v interface{}) error {
	b, err := readAll(ctx, s, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("zarr: decoding %s: %w", key, err)
	}
	return nil
}

// readAttributes returns the attributes stored under prefix, which are
// empty if the key does not exist.
func readAttributes(ctx context.Context, s Store, prefix string) (Attributes, error) {
	a := Attributes{}
	err := readJSON(ctx, s, join(prefix, MTAttributes), &a)
	if isNotFound(err) {
		return Attributes{}, nil
	}
	return a, err
}
