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
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eocube"
)

// Array is a lazily read Zarr array. Values equal to the fill value are
// returned as NaN, and the scale_factor and add_offset attributes are
// applied.
type Array struct {
	store Store
	path  string
	Meta  *ArrayMeta
	Attrs Attributes

	fill          float64
	hasFill       bool
	scale, offset float64

	// chunks returns the decoded chunk stored at key. It is set by the
	// Opener to share a cache between arrays.
	chunks func(ctx context.Context, a *Array, key string) ([]float64, error)
}

var _ eocube.Array = (*Array)(nil)

// OpenArray reads the metadata of the array at path.
func OpenArray(ctx context.Context, s Store, path string) (*Array, error) {
	a := &Array{store: s, path: path, Meta: new(ArrayMeta), scale: 1}
	if err := readJSON(ctx, s, join(path, MTArray), a.Meta); err != nil {
		return nil, fmt.Errorf("zarr: opening array %s: %w", path, err)
	}
	if err := a.Meta.check(); err != nil {
		return nil, fmt.Errorf("zarr: array %s: %w", path, err)
	}
	var err error
	if a.Attrs, err = readAttributes(ctx, s, path); err != nil {
		return nil, err
	}
	a.fill, a.hasFill = a.Meta.Fill()
	if f, ok := a.Attrs.Float("_FillValue"); ok {
		a.fill, a.hasFill = f, true
	}
	if f, ok := a.Attrs.Float("scale_factor"); ok {
		a.scale = f
	}
	if f, ok := a.Attrs.Float("add_offset"); ok {
		a.offset = f
	}
	a.chunks = func(ctx context.Context, a *Array, key string) ([]float64, error) {
		return a.readChunk(ctx, key)
	}
	return a, nil
}

func (a *Array) Shape() []int  { return a.Meta.Shape }
func (a *Array) Chunks() []int { return a.Meta.Chunks }

// DType returns the NumPy name of the stored data type.
func (a *Array) DType() string { return a.Meta.Dtype.Name() }

// chunkKey returns the key of the chunk with index idx.
func (a *Array) chunkKey(idx []int) string {
	sep := a.Meta.DimensionSeparator
	if sep == "" {
		sep = "."
	}
	s := make([]string, len(idx))
	for i, v := range idx {
		s[i] = strconv.Itoa(v)
	}
	return join(a.path, strings.Join(s, sep))
}

// readChunk fetches and decodes one chunk. Missing chunks are all NaN.
func (a *Array) readChunk(ctx context.Context, key string) ([]float64, error) {
	n := 1
	for _, c := range a.Meta.Chunks {
		n *= c
	}
	r, err := a.store.Get(ctx, key)
	if isNotFound(err) {
		out := make([]float64, n)
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	} else if err != nil {
		return nil, err
	}
	defer r.Close()
	d, err := a.Meta.Compressor.Decompressor(r)
	if err != nil {
		return nil, fmt.Errorf("zarr: chunk %s: %w", key, err)
	}
	defer d.Close()
	b, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("zarr: chunk %s: %w", key, err)
	}
	vals, err := a.Meta.Dtype.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("zarr: chunk %s: %w", key, err)
	}
	if len(vals) != n {
		return nil, fmt.Errorf("zarr: chunk %s has %d elements, want %d", key, len(vals), n)
	}
	for i, v := range vals {
		if a.hasFill && (v == a.fill || math.IsNaN(a.fill) && math.IsNaN(v)) {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = v*a.scale + a.offset
	}
	return vals, nil
}

// Read reads the half-open window [start, end).
func (a *Array) Read(ctx context.Context, start, end []int) (*sparse.DenseArray, error) {
	shape := a.Meta.Shape
	if len(start) != len(shape) || len(end) != len(shape) {
		return nil, fmt.Errorf("zarr: window rank %d does not match array rank %d", len(start), len(shape))
	}
	wshape := make([]int, len(shape))
	for i := range shape {
		if start[i] < 0 || end[i] > shape[i] || start[i] > end[i] {
			return nil, fmt.Errorf("zarr: window %v-%v outside array shape %v", start, end, shape)
		}
		wshape[i] = end[i] - start[i]
	}
	out := sparse.ZerosDense(wshape...)
	if len(out.Elements) == 0 {
		return out, nil
	}
	cs := a.Meta.Chunks
	first := make([]int, len(cs))
	last := make([]int, len(cs))
	for i := range cs {
		first[i] = start[i] / cs[i]
		last[i] = (end[i] - 1) / cs[i]
	}
	idx := append([]int(nil), first...)
	for {
		data, err := a.chunks(ctx, a, a.chunkKey(idx))
		if err != nil {
			return nil, err
		}
		copyChunk(out, start, end, data, idx, cs)
		if !increment(idx, first, last) {
			break
		}
	}
	return out, nil
}

// copyChunk copies the part of chunk idx inside the window [start, end)
// into out.
func copyChunk(out *sparse.DenseArray, start, end []int, data []float64, idx, cs []int) {
	n := len(cs)
	lo := make([]int, n) // window-relative bounds of the overlap
	hi := make([]int, n)
	for i := range cs {
		c0 := idx[i] * cs[i]
		lo[i] = max(c0, start[i]) - start[i]
		hi[i] = min(c0+cs[i], end[i]) - start[i]
	}
	pos := append([]int(nil), lo...)
	for {
		o, c := 0, 0
		for i := 0; i < n; i++ {
			o = o*out.Shape[i] + pos[i]
			c = c*cs[i] + pos[i] + start[i] - idx[i]*cs[i]
		}
		run := hi[n-1] - lo[n-1]
		copy(out.Elements[o:o+run], data[c:c+run])
		if n == 1 || !increment(pos[:n-1], lo[:n-1], subOne(hi[:n-1])) {
			break
		}
	}
}

func subOne(v []int) []int {
	o := make([]int, len(v))
	for i, x := range v {
		o[i] = x - 1
	}
	return o
}

// increment advances idx through the inclusive box [first, last] in
// row-major order and reports whether it is still inside the box.
func increment(idx, first, last []int) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		if idx[i] < last[i] {
			idx[i]++
			return true
		}
		idx[i] = first[i]
	}
	return false
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
