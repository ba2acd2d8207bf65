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
	"fmt"

	"github.com/ctessum/geom"
)

// Target describes the grid and resampling policy of a Final Cube.
type Target struct {
	CRS        string
	Resolution float64

	// BBox is the requested bounding box in CRS.
	BBox *geom.Bounds

	// TileSize is the spatial chunk length of the output. If zero, chunks
	// follow the source where possible.
	TileSize int

	SplineOrders *SplineOrders
	AggMethods   *AggMethods

	// Categorical lists the class-valued variables.
	Categorical []string
}

func (t Target) isCategorical(name string) bool {
	for _, c := range t.Categorical {
		if c == name {
			return true
		}
	}
	return false
}

// Grid returns the output grid for a set of zone datasets: the grid of
// the first zone already in the target CRS at the target resolution, or
// else a fresh grid computed from the target.
func (t Target) Grid(zones []*Dataset) Grid {
	for _, z := range zones {
		if SameCRS(z.Grid.CRS, t.CRS) {
			if near(z.Grid.Dx, t.Resolution, t.Resolution*gridTol) &&
				near(z.Grid.Dy, t.Resolution, t.Resolution*gridTol) {
				return z.Grid
			}
			break
		}
	}
	return NewTargetGrid(t.CRS, t.BBox, t.Resolution)
}

const reprojectOverrideWarning = "User-defined spline-orders is not supported yet, when reprojecting to a different CRS. " +
	"Default interpolation will be used: bilinear for continuous data, and nearest-neighbor for %s."

// MergeZones resamples each zone canvas onto the target grid and mosaics
// the results in zone order. Zones whose grid coincides with the target are
// passed through; zones in the target CRS are adjusted with an affine
// resampling; other zones are reprojected.
func MergeZones(zones []*Dataset, t Target, w *Warnings) (*Dataset, error) {
	if len(zones) == 0 {
		return nil, ErrNoDatasets
	}
	CheckPolicies(zones[0].Vars, t.Categorical, t.SplineOrders, t.AggMethods, w)
	grid := t.Grid(zones)
	resampled := make([]*Dataset, 0, len(zones))
	for _, z := range zones {
		var (
			out *Dataset
			err error
		)
		switch {
		case z.Grid.Coincides(grid):
			out = z
		case SameCRS(z.Grid.CRS, grid.CRS):
			out, err = affineZone(z, grid, t, w)
		default:
			out, err = reprojectZone(z, grid, t, w)
		}
		if err != nil {
			return nil, err
		}
		if t.TileSize > 0 {
			out = rechunk(out, t.TileSize)
		}
		resampled = append(resampled, out)
	}
	return Mosaic(resampled)
}

func affineZone(z *Dataset, grid Grid, t Target, w *Warnings) (*Dataset, error) {
	out := zoneLike(z, grid)
	for _, v := range z.Vars {
		p := ResolvePolicy(v.Name, v.DType, t.isCategorical(v.Name), t.SplineOrders, t.AggMethods, w)
		a, err := Resample(v.Data, z.Grid, grid, p, nil)
		if err != nil {
			return nil, fmt.Errorf("eocube: resampling %s: %w", v.Name, err)
		}
		out.Vars = append(out.Vars, withData(v, a, grid))
	}
	return out, nil
}

// reprojectZone reprojects continuous variables and categorical variables
// in separate passes and recombines them in the original order.
func reprojectZone(z *Dataset, grid Grid, t Target, w *Warnings) (*Dataset, error) {
	if t.SplineOrders.IsSet() {
		names := "categorical data"
		if len(t.Categorical) > 0 {
			names = "'" + joinNames(t.Categorical) + "'"
		}
		w.Warn(WarnReprojectOverride, fmt.Sprintf(reprojectOverrideWarning, names))
	}
	chunks := []int{1, grid.Ny, grid.Nx}
	byName := make(map[string]*Variable)
	for _, categorical := range []bool{false, true} {
		for _, v := range z.Vars {
			if t.isCategorical(v.Name) != categorical {
				continue
			}
			a, err := Resample(v.Data, z.Grid, grid, Policy{Categorical: categorical}, chunks)
			if err != nil {
				return nil, fmt.Errorf("eocube: reprojecting %s: %w", v.Name, err)
			}
			byName[v.Name] = withData(v, a, grid)
		}
	}
	out := zoneLike(z, grid)
	for _, v := range z.Vars {
		out.Vars = append(out.Vars, byName[v.Name])
	}
	return out, nil
}

func zoneLike(z *Dataset, grid Grid) *Dataset {
	attrs := copyAttrs(z.Attrs)
	attrs["crs"] = grid.CRS
	return &Dataset{Grid: grid, Times: z.Times, Attrs: attrs}
}

func withData(v *Variable, a Array, grid Grid) *Variable {
	y, x := grid.Dims()
	dims := append([]string(nil), v.Dims...)
	dims[len(dims)-2], dims[len(dims)-1] = y, x
	return &Variable{Name: v.Name, Dims: dims, DType: v.DType, Attrs: copyAttrs(v.Attrs), Data: a}
}

func rechunk(ds *Dataset, size int) *Dataset {
	out := *ds
	out.Vars = make([]*Variable, len(ds.Vars))
	for i, v := range ds.Vars {
		nv := *v
		c := append([]int(nil), v.Data.Chunks()...)
		n := len(c)
		c[n-2], c[n-1] = min(size, ds.Grid.Ny), min(size, ds.Grid.Nx)
		nv.Data = WithChunks(v.Data, c)
		out.Vars[i] = &nv
	}
	return &out
}

func joinNames(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += "', '"
		}
		s += n
	}
	return s
}
