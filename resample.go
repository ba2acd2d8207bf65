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
	"math"
	"sort"

	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Resample returns a lazy array holding src, which lies on grid from,
// resampled onto grid to. Any leading (e.g. time) dimensions are kept.
// Within one CRS the resampling is an affine adjustment: downsampling
// aggregates source pixels with p.Agg and upsampling interpolates with
// p.Spline, falling back to lower orders next to NaN values. Across
// CRSs, every target pixel center is transformed into the source CRS
// and sampled with nearest-neighbor interpolation for categorical
// variables and bilinear interpolation otherwise.
func Resample(src Array, from, to Grid, p Policy, chunks []int) (Array, error) {
	shape := append([]int(nil), src.Shape()...)
	n := len(shape)
	shape[n-2], shape[n-1] = to.Ny, to.Nx
	if chunks == nil {
		chunks = append([]int(nil), src.Chunks()...)
		chunks[n-2], chunks[n-1] = min(chunks[n-2], to.Ny), min(chunks[n-1], to.Nx)
	}
	a := &resampledArray{src: src, from: from, to: to, p: p, shape: shape, chunks: chunks}
	if !SameCRS(from.CRS, to.CRS) {
		t, err := Transformer(to.CRS, from.CRS)
		if err != nil {
			return nil, err
		}
		a.tr = t
		if p.Categorical {
			a.p.Spline = Nearest
		} else {
			a.p.Spline = Bilinear
		}
	}
	return a, nil
}

type resampledArray struct {
	src           Array
	from, to      Grid
	p             Policy
	tr            proj.Transformer // target to source; nil within one CRS
	shape, chunks []int
}

func (a *resampledArray) Shape() []int  { return a.shape }
func (a *resampledArray) Chunks() []int { return a.chunks }

// aggregating reports whether target pixels cover several source pixels.
func (a *resampledArray) aggregating() bool {
	return a.tr == nil && a.to.Dx > a.from.Dx*(1+gridTol) && a.to.Dy > a.from.Dy*(1+gridTol)
}

func (a *resampledArray) Read(ctx context.Context, start, end []int) (*sparse.DenseArray, error) {
	if err := checkWindow(a.shape, start, end); err != nil {
		return nil, err
	}
	n := len(a.shape)
	ny, nx := end[n-2]-start[n-2], end[n-1]-start[n-1]
	out := nanArray(windowShape(start, end))
	if ny == 0 || nx == 0 {
		return out, nil
	}

	// Fractional source pixel position of every target pixel center.
	fx := make([]float64, ny*nx)
	fy := make([]float64, ny*nx)
	for j := 0; j < ny; j++ {
		y := a.to.Y(start[n-2] + j)
		for i := 0; i < nx; i++ {
			x := a.to.X(start[n-1] + i)
			if a.tr != nil {
				sx, sy, err := a.tr(x, y)
				if err != nil {
					sx, sy = math.NaN(), math.NaN()
				}
				x, y = sx, sy
			}
			fx[j*nx+i] = (x-a.from.X0)/a.from.Dx - 0.5
			fy[j*nx+i] = (a.from.Y0-y)/a.from.Dy - 0.5
		}
	}

	// Source window needed for this target window.
	margin := 2.
	if a.aggregating() {
		margin = math.Ceil(a.to.Dx/a.from.Dx) + 1
	}
	xmin, xmax := finiteRange(fx)
	ymin, ymax := finiteRange(fy)
	si0 := clamp(int(math.Floor(xmin-margin)), 0, a.from.Nx)
	si1 := clamp(int(math.Ceil(xmax+margin))+1, 0, a.from.Nx)
	sj0 := clamp(int(math.Floor(ymin-margin)), 0, a.from.Ny)
	sj1 := clamp(int(math.Ceil(ymax+margin))+1, 0, a.from.Ny)
	if si0 >= si1 || sj0 >= sj1 {
		return out, nil
	}
	sstart := append([]int(nil), start...)
	send := append([]int(nil), end...)
	sstart[n-2], sstart[n-1] = sj0, si0
	send[n-2], send[n-1] = sj1, si1
	sd, err := a.src.Read(ctx, sstart, send)
	if err != nil {
		return nil, err
	}

	w := &window{data: sd.Elements, nx: si1 - si0, ny: sj1 - sj0, i0: si0, j0: sj0,
		fullNx: a.from.Nx, fullNy: a.from.Ny}
	slice := ny * nx
	nSlices := len(out.Elements) / slice
	buf := make([]float64, 0, 64)
	for s := 0; s < nSlices; s++ {
		w.data = sd.Elements[s*w.nx*w.ny : (s+1)*w.nx*w.ny]
		o := out.Elements[s*slice : (s+1)*slice]
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				k := j*nx + i
				if a.aggregating() {
					buf = a.aggregate(w, start[n-1]+i, start[n-2]+j, buf[:0])
					o[k] = aggregate(a.p.Agg, buf, w.nearest(fx[k], fy[k]))
					continue
				}
				o[k] = w.interpolate(a.p.Spline, fx[k], fy[k])
			}
		}
	}
	return out, nil
}

// aggregate collects the finite source values whose centers fall inside
// target pixel (i, j).
func (a *resampledArray) aggregate(w *window, i, j int, buf []float64) []float64 {
	xl := a.to.X0 + float64(i)*a.to.Dx
	yt := a.to.Y0 - float64(j)*a.to.Dy
	k0 := int(math.Ceil((xl-a.from.X0)/a.from.Dx - 0.5 - gridTol))
	k1 := int(math.Ceil((xl+a.to.Dx-a.from.X0)/a.from.Dx - 0.5 - gridTol))
	l0 := int(math.Ceil((a.from.Y0-yt)/a.from.Dy - 0.5 - gridTol))
	l1 := int(math.Ceil((a.from.Y0-yt+a.to.Dy)/a.from.Dy - 0.5 - gridTol))
	for l := l0; l < l1; l++ {
		for k := k0; k < k1; k++ {
			if v := w.at(k, l); !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
	}
	return buf
}

func aggregate(m AggMethod, vals []float64, center float64) float64 {
	if m == AggCenter {
		return center
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	switch m {
	case AggMean:
		return stat.Mean(vals, nil)
	case AggMedian:
		sort.Float64s(vals)
		return stat.Quantile(0.5, stat.Empirical, vals, nil)
	case AggMax:
		return floats.Max(vals)
	case AggMin:
		return floats.Min(vals)
	case AggMode:
		v, _ := stat.Mode(vals, nil)
		return v
	case AggFirst:
		return vals[0]
	case AggLast:
		return vals[len(vals)-1]
	}
	return stat.Mean(vals, nil)
}

// window is a two-dimensional block of source pixels read from a larger
// source grid of fullNx × fullNy pixels.
type window struct {
	data           []float64
	nx, ny, i0, j0 int
	fullNx, fullNy int
}

// at returns the source value at full-grid index (i, j), or NaN outside
// the window.
func (w *window) at(i, j int) float64 {
	i -= w.i0
	j -= w.j0
	if i < 0 || j < 0 || i >= w.nx || j >= w.ny {
		return math.NaN()
	}
	return w.data[j*w.nx+i]
}

// clamped returns the value at (i, j) with the indices clamped to the
// source grid.
func (w *window) clamped(i, j int) float64 {
	return w.at(clamp(i, 0, w.fullNx-1), clamp(j, 0, w.fullNy-1))
}

func (w *window) outside(fx, fy float64) bool {
	return math.IsNaN(fx) || math.IsNaN(fy) ||
		fx < -0.5 || fy < -0.5 || fx > float64(w.fullNx)-0.5 || fy > float64(w.fullNy)-0.5
}

func (w *window) nearest(fx, fy float64) float64 {
	if w.outside(fx, fy) {
		return math.NaN()
	}
	return w.clamped(int(math.Floor(fx+0.5)), int(math.Floor(fy+0.5)))
}

func (w *window) bilinear(fx, fy float64) float64 {
	if w.outside(fx, fy) {
		return math.NaN()
	}
	x0, y0 := math.Floor(fx), math.Floor(fy)
	tx, ty := fx-x0, fy-y0
	i, j := int(x0), int(y0)
	v00, v10 := w.clamped(i, j), w.clamped(i+1, j)
	v01, v11 := w.clamped(i, j+1), w.clamped(i+1, j+1)
	if math.IsNaN(v00) || math.IsNaN(v10) || math.IsNaN(v01) || math.IsNaN(v11) {
		return w.nearest(fx, fy)
	}
	return (v00*(1-tx)+v10*tx)*(1-ty) + (v01*(1-tx)+v11*tx)*ty
}

func (w *window) cubic(fx, fy float64) float64 {
	if w.outside(fx, fy) {
		return math.NaN()
	}
	x0, y0 := math.Floor(fx), math.Floor(fy)
	tx, ty := fx-x0, fy-y0
	i, j := int(x0), int(y0)
	var sum float64
	for m := -1; m <= 2; m++ {
		wy := keys(float64(m) - ty)
		for k := -1; k <= 2; k++ {
			v := w.clamped(i+k, j+m)
			if math.IsNaN(v) {
				return w.bilinear(fx, fy)
			}
			sum += v * keys(float64(k)-tx) * wy
		}
	}
	return sum
}

func (w *window) interpolate(s SplineOrder, fx, fy float64) float64 {
	switch s {
	case Nearest:
		return w.nearest(fx, fy)
	case Cubic:
		return w.cubic(fx, fy)
	case Linear, Bilinear:
		// A first-order spline in two dimensions is bilinear.
		return w.bilinear(fx, fy)
	}
	return w.bilinear(fx, fy)
}

// keys is the cubic convolution kernel with a = -0.5.
func keys(x float64) float64 {
	const a = -0.5
	x = math.Abs(x)
	switch {
	case x <= 1:
		return (a+2)*x*x*x - (a+3)*x*x + 1
	case x < 2:
		return a*x*x*x - 5*a*x*x + 8*a*x - 4*a
	}
	return 0
}

func finiteRange(v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, e := range v {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			continue
		}
		lo = math.Min(lo, e)
		hi = math.Max(hi, e)
	}
	if lo > hi {
		return 0, -1
	}
	return lo, hi
}
