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
	"time"

	"github.com/ctessum/sparse"
)

// Stack concatenates two-dimensional datasets on a shared grid along a new
// time dimension. A nil entry stands for a time step without data and
// is filled with NaN. At least one entry must be non-nil.
func Stack(dss []*Dataset, times []time.Time, chunk int) (*Dataset, error) {
	if len(dss) != len(times) {
		return nil, fmt.Errorf("eocube: stack: %d datasets but %d times", len(dss), len(times))
	}
	var first *Dataset
	for _, ds := range dss {
		if ds != nil {
			first = ds
			break
		}
	}
	if first == nil {
		return nil, ErrNoDatasets
	}
	g := first.Grid
	for _, ds := range dss {
		if ds != nil && !ds.Grid.Coincides(g) {
			return nil, fmt.Errorf("eocube: stack: grid %+v does not match %+v", ds.Grid, g)
		}
	}
	if chunk <= 0 {
		chunk = max(g.Nx, g.Ny)
	}
	out := &Dataset{Grid: g, Times: times, Attrs: copyAttrs(first.Attrs)}
	y, x := g.Dims()
	for _, v := range first.Vars {
		srcs := make([]Array, len(dss))
		for t, ds := range dss {
			if ds == nil {
				continue
			}
			if vv := ds.Var(v.Name); vv != nil {
				srcs[t] = vv.Data
			}
		}
		out.Vars = append(out.Vars, &Variable{
			Name:  v.Name,
			Dims:  []string{"time", y, x},
			DType: v.DType,
			Attrs: copyAttrs(v.Attrs),
			Data: &stackArray{
				srcs:   srcs,
				shape:  []int{len(times), g.Ny, g.Nx},
				chunks: []int{1, min(chunk, g.Ny), min(chunk, g.Nx)},
			},
		})
	}
	return out, nil
}

type stackArray struct {
	srcs          []Array // nil entries are all NaN
	shape, chunks []int
}

func (a *stackArray) Shape() []int  { return a.shape }
func (a *stackArray) Chunks() []int { return a.chunks }

func (a *stackArray) Read(ctx context.Context, start, end []int) (*sparse.DenseArray, error) {
	if err := checkWindow(a.shape, start, end); err != nil {
		return nil, err
	}
	out := nanArray(windowShape(start, end))
	for t := start[0]; t < end[0]; t++ {
		if a.srcs[t] == nil {
			continue
		}
		d, err := a.srcs[t].Read(ctx, start[1:], end[1:])
		if err != nil {
			return nil, err
		}
		n := len(d.Elements)
		copy(out.Elements[(t-start[0])*n:], d.Elements)
	}
	return out, nil
}
