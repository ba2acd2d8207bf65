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


package eocubeutil

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eocube"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Preview draws variable v of ds at time step t as a PNG heat map. The
// first variable is drawn when v is empty.
func Preview(ctx context.Context, ds *eocube.Dataset, v string, t, workers int, w io.Writer) error {
	if len(ds.Vars) == 0 {
		return fmt.Errorf("eocube: preview: dataset has no variables")
	}
	if v == "" {
		v = ds.Vars[0].Name
	}
	vv := ds.Var(v)
	if vv == nil {
		return fmt.Errorf("eocube: preview: no variable %q in %v", v, ds.VarNames())
	}
	if t < 0 || t >= len(ds.Times) {
		return fmt.Errorf("eocube: preview: time index %d outside [0, %d)", t, len(ds.Times))
	}
	g := ds.Grid
	d, err := eocube.Compute(ctx, eocube.Slice(vv.Data, []int{t, 0, 0}, []int{1, g.Ny, g.Nx}, nil), workers)
	if err != nil {
		return err
	}

	xyz := &gridXYZ{g: g, d: d}
	min, max := xyz.limits()
	if math.IsNaN(min) {
		return fmt.Errorf("eocube: preview: %s has no valid values at time index %d", v, t)
	}
	cm := moreland.ExtendedBlackBody()
	cm.SetMin(min)
	cm.SetMax(math.Max(max, min+1e-12))
	hm := plotter.NewHeatMap(xyz, cm.Palette(255))
	hm.NaN = color.Transparent

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s", v, ds.Times[t].Format("2006-01-02 15:04"))
	yName, xName := g.Dims()
	p.X.Label.Text, p.Y.Label.Text = xName, yName
	p.Add(hm)

	width := vg.Length(600)
	height := width * vg.Length(g.Ny) / vg.Length(g.Nx)
	img := vgimg.New(width, height+vg.Length(60))
	p.Draw(draw.New(img))
	png := vgimg.PngCanvas{Canvas: img}
	_, err = png.WriteTo(w)
	return err
}

// gridXYZ exposes one time step of a cube as a plotter.GridXYZ. Rows of
// the plot increase northward while rows of the cube increase southward.
type gridXYZ struct {
	g eocube.Grid
	d *sparse.DenseArray
}

func (x *gridXYZ) Dims() (c, r int) { return x.g.Nx, x.g.Ny }

func (x *gridXYZ) Z(c, r int) float64 { return x.d.Get(0, x.g.Ny-1-r, c) }

func (x *gridXYZ) X(c int) float64 { return x.g.X(c) }

func (x *gridXYZ) Y(r int) float64 { return x.g.Y(x.g.Ny - 1 - r) }

// limits returns the range of the valid values, or NaN if there are none.
func (x *gridXYZ) limits() (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range x.d.Elements {
		if math.IsNaN(v) {
			continue
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if math.IsInf(min, 1) {
		return math.NaN(), math.NaN()
	}
	return min, max
}
