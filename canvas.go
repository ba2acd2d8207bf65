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
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// CanvasConfig holds the information needed to lay out a zone canvas.
type CanvasConfig struct {
	// Times is the time coordinate of the canvas.
	Times []time.Time

	// Union is the union of the native footprints of all tiles in the
	// zone, in the zone CRS.
	Union *geom.Bounds

	// BBox is the requested bounding box in the zone CRS.
	BBox *geom.Bounds

	// Resolution is the native resolution used for the zone.
	Resolution float64

	// ChunkSize is the spatial chunk length.
	ChunkSize int

	// MetadataKeys lists the variable attributes copied from the sample.
	MetadataKeys []string

	// LongNames overrides the long_name attribute of some variables.
	LongNames map[string]string
}

// Canvas is a NaN-filled zone dataset that tiles are inserted into.
// Insert must not be called concurrently with reads of the canvas data.
type Canvas struct {
	*Dataset
	arrays []*canvasArray
}

// BuildCanvas allocates a canvas with the variables of sample on the
// grid aligned to c.Union at c.Resolution and clipped to c.BBox.
func BuildCanvas(sample *Dataset, c CanvasConfig) (*Canvas, error) {
	if c.Resolution <= 0 {
		return nil, fmt.Errorf("eocube: canvas resolution must be positive, got %g", c.Resolution)
	}
	grid := AlignedGrid(sample.Grid.CRS, c.Union, c.Resolution).Clip(c.BBox)
	if grid.Empty() {
		return nil, fmt.Errorf("eocube: requested bbox %v does not overlap tile union %v", *c.BBox, *c.Union)
	}
	chunk := c.ChunkSize
	if chunk <= 0 {
		chunk = max(grid.Nx, grid.Ny)
	}
	shape := []int{len(c.Times), grid.Ny, grid.Nx}
	chunks := []int{1, min(chunk, grid.Ny), min(chunk, grid.Nx)}

	cv := &Canvas{Dataset: &Dataset{
		Grid:  grid,
		Times: c.Times,
		Attrs: map[string]interface{}{"crs": grid.CRS},
	}}
	y, x := grid.Dims()
	for _, sv := range sample.Vars {
		attrs := make(map[string]interface{})
		for _, k := range c.MetadataKeys {
			if a, ok := sv.Attrs[k]; ok {
				attrs[k] = a
			}
		}
		if ln, ok := c.LongNames[sv.Name]; ok {
			attrs["long_name"] = ln
		}
		arr := &canvasArray{shape: shape, chunks: chunks, grid: grid}
		cv.arrays = append(cv.arrays, arr)
		cv.Vars = append(cv.Vars, &Variable{
			Name:  sv.Name,
			Dims:  []string{"time", y, x},
			DType: sv.DType,
			Attrs: attrs,
			Data:  arr,
		})
	}
	return cv, nil
}

// Insert writes the two-dimensional tile into the canvas at time index t.
// Only the tile's valid (non-NaN) values are written. The tile grid must be
// aligned with and contained in the canvas grid; otherwise a
// *GridAlignmentError is returned.
func (c *Canvas) Insert(tile *Dataset, t int) error {
	if t < 0 || t >= len(c.Times) {
		return fmt.Errorf("eocube: time index %d out of range [0, %d)", t, len(c.Times))
	}
	i0, j0, err := c.Grid.Offset(tile.Grid)
	if err != nil {
		return err
	}
	for k, v := range c.Vars {
		tv := tile.Var(v.Name)
		if tv == nil {
			return fmt.Errorf("eocube: inserting tile: variable %q missing", v.Name)
		}
		c.arrays[k].inserts = append(c.arrays[k].inserts, insertion{
			t: t, i0: i0, j0: j0, nx: tile.Grid.Nx, ny: tile.Grid.Ny, src: tv.Data,
		})
	}
	return nil
}

type insertion struct {
	t, i0, j0, nx, ny int
	src               Array
}

// canvasArray is a NaN array with a list of tiles written over it. Later
// insertions take precedence where they are valid.
type canvasArray struct {
	shape, chunks []int
	grid          Grid
	inserts       []insertion
}

func (a *canvasArray) Shape() []int  { return a.shape }
func (a *canvasArray) Chunks() []int { return a.chunks }

func (a *canvasArray) Read(ctx context.Context, start, end []int) (*sparse.DenseArray, error) {
	if err := checkWindow(a.shape, start, end); err != nil {
		return nil, err
	}
	out := nanArray(windowShape(start, end))
	for _, in := range a.inserts {
		if in.t < start[0] || in.t >= end[0] {
			continue
		}
		// Overlap of the tile rectangle and the window, in canvas pixels.
		oi0, oi1 := max(in.i0, start[2]), min(in.i0+in.nx, end[2])
		oj0, oj1 := max(in.j0, start[1]), min(in.j0+in.ny, end[1])
		if oi0 >= oi1 || oj0 >= oj1 {
			continue
		}
		d, err := in.src.Read(ctx, []int{oj0 - in.j0, oi0 - in.i0}, []int{oj1 - in.j0, oi1 - in.i0})
		if err != nil {
			return nil, err
		}
		tt := in.t - start[0]
		for j := oj0; j < oj1; j++ {
			for i := oi0; i < oi1; i++ {
				v := d.Get(j-oj0, i-oi0)
				if math.IsNaN(v) {
					continue
				}
				out.Set(v, tt, j-start[1], i-start[2])
			}
		}
	}
	return out, nil
}
