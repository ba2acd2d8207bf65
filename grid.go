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
	"math"

	"github.com/ctessum/geom"
)

// Grid is a regular, north-up pixel grid. X0 and Y0 are the coordinates of
// the outer upper-left corner; pixel (i, j) has its center at
// (X0+(i+0.5)*Dx, Y0-(j+0.5)*Dy).
type Grid struct {
	CRS    string
	X0, Y0 float64
	Dx, Dy float64
	Nx, Ny int
}

// gridTol is the tolerance, as a fraction of the pixel size, used when
// comparing grid positions.
const gridTol = 1e-6

// NewTargetGrid returns a grid in crs with resolution res whose first pixel
// center lies on the lower-left x and upper y of bbox, with enough pixels to
// include the opposite edges.
func NewTargetGrid(crs string, bbox *geom.Bounds, res float64) Grid {
	nx := int(math.Ceil((bbox.Max.X-bbox.Min.X)/res-gridTol)) + 1
	ny := int(math.Ceil((bbox.Max.Y-bbox.Min.Y)/res-gridTol)) + 1
	return Grid{
		CRS: NormalizeCRS(crs),
		X0:  bbox.Min.X - res/2,
		Y0:  bbox.Max.Y + res/2,
		Dx:  res,
		Dy:  res,
		Nx:  nx,
		Ny:  ny,
	}
}

// AlignedGrid returns the grid covering bounds b exactly, with its origin at
// the upper-left corner of b.
func AlignedGrid(crs string, b *geom.Bounds, res float64) Grid {
	return Grid{
		CRS: NormalizeCRS(crs),
		X0:  b.Min.X,
		Y0:  b.Max.Y,
		Dx:  res,
		Dy:  res,
		Nx:  int(math.Round((b.Max.X - b.Min.X) / res)),
		Ny:  int(math.Round((b.Max.Y - b.Min.Y) / res)),
	}
}

// SnapBounds grows b outward to the nearest multiples of res.
func SnapBounds(b *geom.Bounds, res float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: math.Floor(b.Min.X/res+gridTol) * res, Y: math.Floor(b.Min.Y/res+gridTol) * res},
		Max: geom.Point{X: math.Ceil(b.Max.X/res-gridTol) * res, Y: math.Ceil(b.Max.Y/res-gridTol) * res},
	}
}

// X returns the x coordinate of the center of column i.
func (g Grid) X(i int) float64 { return g.X0 + (float64(i)+0.5)*g.Dx }

// Y returns the y coordinate of the center of row j.
func (g Grid) Y(j int) float64 { return g.Y0 - (float64(j)+0.5)*g.Dy }

// Xs returns the pixel center x coordinates.
func (g Grid) Xs() []float64 {
	o := make([]float64, g.Nx)
	for i := range o {
		o[i] = g.X(i)
	}
	return o
}

// Ys returns the pixel center y coordinates, from north to south.
func (g Grid) Ys() []float64 {
	o := make([]float64, g.Ny)
	for j := range o {
		o[j] = g.Y(j)
	}
	return o
}

// Bounds returns the outer edges of the grid.
func (g Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.X0, Y: g.Y0 - float64(g.Ny)*g.Dy},
		Max: geom.Point{X: g.X0 + float64(g.Nx)*g.Dx, Y: g.Y0},
	}
}

// Dims returns the names of the y and x dimensions for the grid's CRS.
func (g Grid) Dims() (y, x string) {
	if IsGeographic(g.CRS) {
		return "lat", "lon"
	}
	return "y", "x"
}

// Window returns the half-open pixel index range [i0, i1) × [j0, j1)
// of the pixels intersecting b, clamped to the grid. The range is empty
// when b does not intersect the grid.
func (g Grid) Window(b *geom.Bounds) (i0, j0, i1, j1 int) {
	i0 = clamp(int(math.Floor((b.Min.X-g.X0)/g.Dx+gridTol)), 0, g.Nx)
	i1 = clamp(int(math.Ceil((b.Max.X-g.X0)/g.Dx-gridTol)), 0, g.Nx)
	j0 = clamp(int(math.Floor((g.Y0-b.Max.Y)/g.Dy+gridTol)), 0, g.Ny)
	j1 = clamp(int(math.Ceil((g.Y0-b.Min.Y)/g.Dy-gridTol)), 0, g.Ny)
	if i1 < i0 {
		i1 = i0
	}
	if j1 < j0 {
		j1 = j0
	}
	return
}

// Sub returns the grid of the pixel range [i0, i1) × [j0, j1).
func (g Grid) Sub(i0, j0, i1, j1 int) Grid {
	o := g
	o.X0 = g.X0 + float64(i0)*g.Dx
	o.Y0 = g.Y0 - float64(j0)*g.Dy
	o.Nx = i1 - i0
	o.Ny = j1 - j0
	return o
}

// Clip returns the part of g intersecting b, snapped outward to whole
// pixels of g.
func (g Grid) Clip(b *geom.Bounds) Grid {
	i0, j0, i1, j1 := g.Window(b)
	return g.Sub(i0, j0, i1, j1)
}

// Empty reports whether the grid has no pixels.
func (g Grid) Empty() bool { return g.Nx <= 0 || g.Ny <= 0 }

// SameResolution reports whether g and g2 have the same pixel size.
func (g Grid) SameResolution(g2 Grid) bool {
	return near(g.Dx, g2.Dx, g.Dx*gridTol) && near(g.Dy, g2.Dy, g.Dy*gridTol)
}

// Coincides reports whether g and g2 describe the same pixels.
func (g Grid) Coincides(g2 Grid) bool {
	return SameCRS(g.CRS, g2.CRS) && g.SameResolution(g2) &&
		near(g.X0, g2.X0, g.Dx*gridTol) && near(g.Y0, g2.Y0, g.Dy*gridTol) &&
		g.Nx == g2.Nx && g.Ny == g2.Ny
}

// Offset returns the column and row of g at which the first pixel of sub
// lies. It returns a *GridAlignmentError when sub is not aligned to
// g's pixels or not contained in g.
func (g Grid) Offset(sub Grid) (i, j int, err error) {
	if !SameCRS(g.CRS, sub.CRS) || !g.SameResolution(sub) {
		return 0, 0, &GridAlignmentError{Reason: fmt.Sprintf("grid %s@%g does not match canvas %s@%g",
			sub.CRS, sub.Dx, g.CRS, g.Dx)}
	}
	fi := (sub.X0 - g.X0) / g.Dx
	fj := (g.Y0 - sub.Y0) / g.Dy
	i, j = int(math.Round(fi)), int(math.Round(fj))
	if !near(fi, float64(i), 1e-3) {
		return 0, 0, &GridAlignmentError{Dim: "x", Coord: sub.X(0)}
	}
	if !near(fj, float64(j), 1e-3) {
		return 0, 0, &GridAlignmentError{Dim: "y", Coord: sub.Y(0)}
	}
	if i < 0 || i+sub.Nx > g.Nx {
		return 0, 0, &GridAlignmentError{Dim: "x", Coord: sub.X(0)}
	}
	if j < 0 || j+sub.Ny > g.Ny {
		return 0, 0, &GridAlignmentError{Dim: "y", Coord: sub.Y(0)}
	}
	return i, j, nil
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
