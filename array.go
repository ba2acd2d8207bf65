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

package eocube

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/ctessum/sparse"
	"golang.org/x/sync/errgroup"
)

// Array is a lazily evaluated, chunked n-dimensional array. Nothing is
// computed until Read is called. The last two dimensions are always y and x.
type Array interface {
	// Shape returns the length of each dimension.
	Shape() []int

	// Chunks returns the preferred chunk length of each dimension.
	Chunks() []int

	// Read computes the half-open window [start, end). The returned array
	// belongs to the caller.
	Read(ctx context.Context, start, end []int) (*sparse.DenseArray, error)
}

// NewDense returns an Array backed by the in-memory data d.
func NewDense(d *sparse.DenseArray, chunks []int) Array {
	if chunks == nil {
		chunks = append([]int(nil), d.Shape...)
	}
	return &denseArray{data: d, chunks: chunks}
}

type denseArray struct {
	data   *sparse.DenseArray
	chunks []int
}

func (a *denseArray) Shape() []int  { return a.data.Shape }
func (a *denseArray) Chunks() []int { return a.chunks }

func (a *denseArray) Read(_ context.Context, start, end []int) (*sparse.DenseArray, error) {
	if err := checkWindow(a.data.Shape, start, end); err != nil {
		return nil, err
	}
	out := sparse.ZerosDense(windowShape(start, end)...)
	copyWindow(out, a.data, start)
	return out, nil
}

// NewFull returns an array of the given shape where every element is v.
func NewFull(v float64, shape, chunks []int) Array {
	return &fullArray{v: v, shape: shape, chunks: chunks}
}

type fullArray struct {
	v             float64
	shape, chunks []int
}

func (a *fullArray) Shape() []int  { return a.shape }
func (a *fullArray) Chunks() []int { return a.chunks }

func (a *fullArray) Read(_ context.Context, start, end []int) (*sparse.DenseArray, error) {
	if err := checkWindow(a.shape, start, end); err != nil {
		return nil, err
	}
	return filled(a.v, windowShape(start, end)), nil
}

// WithChunks returns a with a different chunk layout.
func WithChunks(a Array, chunks []int) Array {
	return &rechunked{Array: a, chunks: chunks}
}

type rechunked struct {
	Array
	chunks []int
}

func (a *rechunked) Chunks() []int { return a.chunks }

// Slice returns the part of a starting at offset with the given shape.
func Slice(a Array, offset, shape, chunks []int) Array {
	if chunks == nil {
		chunks = make([]int, len(shape))
		for i, c := range a.Chunks() {
			chunks[i] = min(c, shape[i])
		}
	}
	return &sliced{src: a, offset: offset, shape: shape, chunks: chunks}
}

type sliced struct {
	src                   Array
	offset, shape, chunks []int
}

func (a *sliced) Shape() []int  { return a.shape }
func (a *sliced) Chunks() []int { return a.chunks }

func (a *sliced) Read(ctx context.Context, start, end []int) (*sparse.DenseArray, error) {
	if err := checkWindow(a.shape, start, end); err != nil {
		return nil, err
	}
	s := make([]int, len(start))
	e := make([]int, len(end))
	for i := range start {
		s[i], e[i] = start[i]+a.offset[i], end[i]+a.offset[i]
	}
	return a.src.Read(ctx, s, e)
}

// Compute materializes a, reading its chunks in parallel using at most
// workers goroutines. If workers is less than 1, runtime.GOMAXPROCS is used.
func Compute(ctx context.Context, a Array, workers int) (*sparse.DenseArray, error) {
	shape := a.Shape()
	out := sparse.ZerosDense(shape...)
	if len(out.Elements) == 0 {
		return out, nil
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(-1)
	}
	chunks := a.Chunks()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	forEachChunk(shape, chunks, func(start, end []int) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := a.Read(ctx, start, end)
			if err != nil {
				return err
			}
			// Chunks are disjoint, so concurrent writes never overlap.
			pasteWindow(out, d, start)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// forEachChunk calls f with the window of every chunk of an array.
func forEachChunk(shape, chunks []int, f func(start, end []int)) {
	n := len(shape)
	c := make([]int, n)
	for i := range c {
		c[i] = 1
		if i < len(chunks) && chunks[i] > 0 {
			c[i] = chunks[i]
		}
	}
	idx := make([]int, n)
	for {
		start := make([]int, n)
		end := make([]int, n)
		for i := range idx {
			start[i] = idx[i] * c[i]
			end[i] = min(start[i]+c[i], shape[i])
		}
		f(start, end)
		d := n - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d]*c[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

func checkWindow(shape, start, end []int) error {
	if len(start) != len(shape) || len(end) != len(shape) {
		return fmt.Errorf("eocube: window rank %d/%d does not match array rank %d",
			len(start), len(end), len(shape))
	}
	for i := range shape {
		if start[i] < 0 || end[i] > shape[i] || start[i] > end[i] {
			return fmt.Errorf("eocube: window [%v, %v) out of range for shape %v", start, end, shape)
		}
	}
	return nil
}

func windowShape(start, end []int) []int {
	s := make([]int, len(start))
	for i := range s {
		s[i] = end[i] - start[i]
	}
	return s
}

func filled(v float64, shape []int) *sparse.DenseArray {
	d := sparse.ZerosDense(shape...)
	if v != 0 {
		for i := range d.Elements {
			d.Elements[i] = v
		}
	}
	return d
}

func nanArray(shape []int) *sparse.DenseArray { return filled(math.NaN(), shape) }

// copyWindow fills dst with the elements of src starting at offset.
func copyWindow(dst, src *sparse.DenseArray, offset []int) {
	if len(dst.Elements) == 0 {
		return
	}
	n := len(dst.Shape)
	rowLen := dst.Shape[n-1]
	idx := make([]int, n)
	sidx := make([]int, n)
	for {
		for i := range idx {
			sidx[i] = idx[i] + offset[i]
		}
		di := dst.Index1d(idx...)
		si := src.Index1d(sidx...)
		copy(dst.Elements[di:di+rowLen], src.Elements[si:si+rowLen])
		if !nextRow(idx, dst.Shape) {
			return
		}
	}
}

// pasteWindow writes src into dst starting at offset.
func pasteWindow(dst, src *sparse.DenseArray, offset []int) {
	if len(src.Elements) == 0 {
		return
	}
	n := len(src.Shape)
	rowLen := src.Shape[n-1]
	idx := make([]int, n)
	didx := make([]int, n)
	for {
		for i := range idx {
			didx[i] = idx[i] + offset[i]
		}
		si := src.Index1d(idx...)
		di := dst.Index1d(didx...)
		copy(dst.Elements[di:di+rowLen], src.Elements[si:si+rowLen])
		if !nextRow(idx, src.Shape) {
			return
		}
	}
}

// nextRow advances idx to the start of the next row, ignoring the last
// dimension. It returns false when there are no more rows.
func nextRow(idx, shape []int) bool {
	for d := len(shape) - 2; d >= 0; d-- {
		idx[d]++
		if idx[d] < shape[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}
