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

import "fmt"

// Regrid applies the window and resampling requested by o to the
// two-dimensional native dataset src, as an Opener does.
func Regrid(src *Dataset, o OpenOptions) (*Dataset, error) {
	g := RequestedGrid(src.Grid, o)
	out := &Dataset{Grid: g, Attrs: copyAttrs(src.Attrs)}
	if g.Empty() {
		return out, nil
	}
	for _, vs := range o.Variables {
		v := src.Var(vs.Name)
		if v == nil {
			return nil, fmt.Errorf("eocube: variable %q not found", vs.Name)
		}
		rv, err := RegridVariable(v, src.Grid, g, o)
		if err != nil {
			return nil, err
		}
		out.Vars = append(out.Vars, rv)
	}
	return out, nil
}

// RequestedGrid returns the output grid of a product whose pixels lie on
// native. It is a window of native when the request matches the native
// CRS and resolution, and a fresh target grid otherwise.
func RequestedGrid(native Grid, o OpenOptions) Grid {
	if o.Grid != nil {
		return *o.Grid
	}
	if SameCRS(native.CRS, o.CRS) && near(native.Dx, o.Resolution, native.Dx*gridTol) &&
		near(native.Dy, o.Resolution, native.Dy*gridTol) {
		if o.BBox == nil {
			return native
		}
		return native.Clip(o.BBox)
	}
	return NewTargetGrid(o.CRS, o.BBox, o.Resolution)
}

// RegridVariable returns the two-dimensional variable v, which lies on
// grid from, on grid to. The native pixels are sliced without resampling
// when to is a window of from.
func RegridVariable(v *Variable, from, to Grid, o OpenOptions) (*Variable, error) {
	var chunks []int
	if o.ChunkSize > 0 {
		chunks = []int{min(o.ChunkSize, to.Ny), min(o.ChunkSize, to.Nx)}
	}
	var a Array
	if i0, j0, err := from.Offset(to); err == nil {
		a = Slice(v.Data, []int{j0, i0}, []int{to.Ny, to.Nx}, chunks)
	} else {
		p := ResolvePolicy(v.Name, v.DType, contains(o.Categorical, v.Name),
			o.SplineOrders, o.AggMethods, o.Warnings)
		if a, err = Resample(v.Data, from, to, p, chunks); err != nil {
			return nil, fmt.Errorf("eocube: resampling %s: %w", v.Name, err)
		}
	}
	y, x := to.Dims()
	return &Variable{
		Name:  v.Name,
		Dims:  []string{y, x},
		DType: v.DType,
		Attrs: copyAttrs(v.Attrs),
		Data:  a,
	}, nil
}
