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

	"github.com/ctessum/sparse"
)

// Mosaic combines datasets covering the same grid into one. For each
// variable present in all of them, each pixel takes the value of the first
// dataset, in input order, whose value there is not NaN. A single dataset
// is returned as is. The result takes its attributes from the first
// dataset.
func Mosaic(dss []*Dataset) (*Dataset, error) {
	switch len(dss) {
	case 0:
		return nil, ErrNoDatasets
	case 1:
		return dss[0], nil
	}
	first := dss[0]
	for _, ds := range dss[1:] {
		if !ds.Grid.Coincides(first.Grid) {
			return nil, fmt.Errorf("eocube: mosaic: grid %+v does not match %+v", ds.Grid, first.Grid)
		}
		if len(ds.Times) != len(first.Times) {
			return nil, fmt.Errorf("eocube: mosaic: %d time steps do not match %d", len(ds.Times), len(first.Times))
		}
	}
	out := &Dataset{
		Grid:  first.Grid,
		Times: first.Times,
		Attrs: copyAttrs(first.Attrs),
	}
	for _, v := range first.Vars {
		srcs := make([]Array, 0, len(dss))
		for _, ds := range dss {
			vv := ds.Var(v.Name)
			if vv == nil {
				break
			}
			srcs = append(srcs, vv.Data)
		}
		if len(srcs) != len(dss) {
			continue
		}
		nv := *v
		nv.Attrs = copyAttrs(v.Attrs)
		nv.Data = &mosaicArray{srcs: srcs}
		out.Vars = append(out.Vars, &nv)
	}
	return out, nil
}

type mosaicArray struct {
	srcs []Array
}

func (a *mosaicArray) Shape() []int  { return a.srcs[0].Shape() }
func (a *mosaicArray) Chunks() []int { return a.srcs[0].Chunks() }

func (a *mosaicArray) Read(ctx context.Context, start, end []int) (*sparse.DenseArray, error) {
	out, err := a.srcs[0].Read(ctx, start, end)
	if err != nil {
		return nil, err
	}
	for _, src := range a.srcs[1:] {
		if !hasNaN(out.Elements) {
			break
		}
		d, err := src.Read(ctx, start, end)
		if err != nil {
			return nil, err
		}
		for i, v := range out.Elements {
			if math.IsNaN(v) {
				out.Elements[i] = d.Elements[i]
			}
		}
	}
	return out, nil
}

func hasNaN(v []float64) bool {
	for _, e := range v {
		if math.IsNaN(e) {
			return true
		}
	}
	return false
}
