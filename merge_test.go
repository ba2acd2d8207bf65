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
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/sparse"
)

// zoneCube returns a one-time-step canvas-like dataset on g whose b02
// values are f(x, y) and whose scl values are all 4.
func zoneCube(g Grid, chunk int, f func(x, y float64) float64) *Dataset {
	b := sparse.ZerosDense(1, g.Ny, g.Nx)
	s := sparse.ZerosDense(1, g.Ny, g.Nx)
	for j := 0; j < g.Ny; j++ {
		for i := 0; i < g.Nx; i++ {
			b.Set(f(g.X(i), g.Y(j)), 0, j, i)
			s.Set(4, 0, j, i)
		}
	}
	chunks := []int{1, min(chunk, g.Ny), min(chunk, g.Nx)}
	return &Dataset{
		Grid:  g,
		Times: []time.Time{time.Unix(0, 0)},
		Attrs: map[string]interface{}{},
		Vars: []*Variable{
			{Name: "b02", Dims: []string{"time", "y", "x"}, DType: "float32", Data: NewDense(b, chunks)},
			{Name: "scl", Dims: []string{"time", "y", "x"}, DType: "uint8", Data: NewDense(s, chunks)},
		},
	}
}

func TestResampleAffine(t *testing.T) {
	src := Grid{CRS: "EPSG:32632", X0: 0, Y0: 40, Dx: 10, Dy: 10, Nx: 4, Ny: 4}
	d := sparse.ZerosDense(4, 4)
	for i := range d.Elements {
		d.Elements[i] = float64(i)
	}
	a := NewDense(d, nil)

	down := Grid{CRS: "EPSG:32632", X0: 0, Y0: 40, Dx: 20, Dy: 20, Nx: 2, Ny: 2}
	for _, test := range []struct {
		agg  AggMethod
		want []float64
	}{
		{agg: AggMean, want: []float64{2.5, 4.5, 10.5, 12.5}},
		{agg: AggMax, want: []float64{5, 7, 13, 15}},
		{agg: AggMin, want: []float64{0, 2, 8, 10}},
		{agg: AggFirst, want: []float64{0, 2, 8, 10}},
		{agg: AggLast, want: []float64{5, 7, 13, 15}},
	} {
		r, err := Resample(a, src, down, Policy{Agg: test.agg}, nil)
		if err != nil {
			t.Fatal(err)
		}
		checkElements(t, load(t, r), test.want)
	}

	up := Grid{CRS: "EPSG:32632", X0: 0, Y0: 40, Dx: 5, Dy: 5, Nx: 8, Ny: 8}
	r, err := Resample(a, src, up, Policy{Spline: Nearest}, nil)
	if err != nil {
		t.Fatal(err)
	}
	u := load(t, r)
	if u.Get(0, 0) != 0 || u.Get(0, 1) != 0 || u.Get(0, 2) != 1 || u.Get(7, 7) != 15 {
		t.Errorf("nearest upsampling: %v", u.Elements[:8])
	}
	r, err = Resample(a, src, up, Policy{Spline: Bilinear}, nil)
	if err != nil {
		t.Fatal(err)
	}
	u = load(t, r)
	// Halfway between columns 0 and 1 of row 0.
	if v := u.Get(0, 2); math.Abs(v-0.75) > 1e-9 {
		t.Errorf("bilinear: have %g, want 0.75", v)
	}
	r, err = Resample(a, src, up, Policy{Spline: Linear}, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkElements(t, load(t, r), u.Elements)
}

func TestResampleNaNFallback(t *testing.T) {
	src := Grid{CRS: "EPSG:32632", X0: 0, Y0: 40, Dx: 10, Dy: 10, Nx: 4, Ny: 4}
	d := sparse.ZerosDense(4, 4)
	for i := range d.Elements {
		d.Elements[i] = 1
	}
	d.Set(nan, 1, 1)
	dst := Grid{CRS: "EPSG:32632", X0: 2, Y0: 38, Dx: 10, Dy: 10, Nx: 3, Ny: 3}
	r, err := Resample(NewDense(d, nil), src, dst, Policy{Spline: Cubic}, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Only the pixel nearest to the NaN source pixel stays NaN.
	for i, v := range load(t, r).Elements {
		if math.IsNaN(v) != (i == 4) {
			t.Errorf("element %d = %g", i, v)
		}
	}
}

func TestMergeZonesReusesGrid(t *testing.T) {
	g := AlignedGrid("EPSG:32632", box(500000, 5000000, 500200, 5000200), 10)
	z := zoneCube(g, 8, func(x, y float64) float64 { return x - y })
	w, hook := testWarnings()
	out, err := MergeZones([]*Dataset{z}, Target{
		CRS: "EPSG:32632", Resolution: 10, BBox: box(500000, 5000000, 500200, 5000200),
		Categorical: []string{"scl"},
	}, w)
	if err != nil {
		t.Fatal(err)
	}
	if out.Grid != g {
		t.Errorf("grid not reused: %+v", out.Grid)
	}
	if out.Var("b02").Data != z.Var("b02").Data {
		t.Error("zone data should pass through unchanged")
	}
	if len(hook.AllEntries()) != 0 {
		t.Error("unexpected warnings")
	}
}

func TestMergeZonesAffine(t *testing.T) {
	b := box(500000, 5000000, 500200, 5000200)
	g := AlignedGrid("EPSG:32632", b, 10)
	z := zoneCube(g, 8, func(x, y float64) float64 { return 1 })
	w, hook := testWarnings()
	for _, test := range []struct {
		res          float64
		size, chunks int
	}{
		{res: 5, size: 41, chunks: 8},
		{res: 100, size: 3, chunks: 3},
	} {
		out, err := MergeZones([]*Dataset{z}, Target{
			CRS: "EPSG:32632", Resolution: test.res, BBox: b,
			AggMethods:  &AggMethods{All: AggMean},
			Categorical: []string{"scl"},
		}, w)
		if err != nil {
			t.Fatal(err)
		}
		v := out.Var("b02").Data
		if have, want := v.Shape(), []int{1, test.size, test.size}; !reflect.DeepEqual(have, want) {
			t.Errorf("res %g: shape have %v, want %v", test.res, have, want)
		}
		if have, want := v.Chunks(), []int{1, test.chunks, test.chunks}; !reflect.DeepEqual(have, want) {
			t.Errorf("res %g: chunks have %v, want %v", test.res, have, want)
		}
		d := load(t, out.Var("scl").Data)
		if d.Get(0, 1, 1) != 4 {
			t.Errorf("res %g: scl have %g, want 4", test.res, d.Get(0, 1, 1))
		}
	}
	if n := countWarnings(hook, WarnCategoricalAgg); n != 1 {
		t.Errorf("have %d categorical warnings, want 1", n)
	}
}

func TestMergeZonesReproject(t *testing.T) {
	b32 := box(499000, 4999000, 501000, 5001000)
	z32 := zoneCube(AlignedGrid("EPSG:32632", b32, 100), 1830, func(x, y float64) float64 { return 1 })
	geo := box(8.99, 45.14, 9.01, 45.16)
	w, hook := testWarnings()
	out, err := MergeZones([]*Dataset{z32}, Target{
		CRS: "EPSG:4326", Resolution: 0.001, BBox: geo,
		SplineOrders: &SplineOrders{ByKey: map[string]SplineOrder{"b02": Cubic}},
		Categorical:  []string{"scl"},
	}, w)
	if err != nil {
		t.Fatal(err)
	}
	if out.Grid.Nx != 21 || out.Grid.Ny != 21 {
		t.Errorf("size %dx%d", out.Grid.Nx, out.Grid.Ny)
	}
	if have := out.Var("b02").Dims; !reflect.DeepEqual(have, []string{"time", "lat", "lon"}) {
		t.Errorf("dims %v", have)
	}
	if have, want := out.Var("b02").Data.Chunks(), []int{1, 21, 21}; !reflect.DeepEqual(have, want) {
		t.Errorf("chunks have %v, want %v", have, want)
	}
	d := load(t, out.Var("b02").Data)
	if v := d.Get(0, 10, 10); math.Abs(v-1) > 1e-9 {
		t.Errorf("center value %g, want 1", v)
	}
	s := load(t, out.Var("scl").Data)
	if v := s.Get(0, 10, 10); v != 4 {
		t.Errorf("center class %g, want 4", v)
	}
	if n := countWarnings(hook, WarnReprojectOverride); n != 1 {
		t.Errorf("have %d reprojection warnings, want 1", n)
	}
}

func TestMergeZonesMosaicsInOrder(t *testing.T) {
	b := box(0, 0, 40, 40)
	g := AlignedGrid("EPSG:32632", b, 10)
	first := zoneCube(g, 4, func(x, y float64) float64 {
		if x < 20 {
			return 1
		}
		return nan
	})
	second := zoneCube(g, 4, func(x, y float64) float64 { return 2 })
	out, err := MergeZones([]*Dataset{first, second}, Target{CRS: "EPSG:32632", Resolution: 10, BBox: b, TileSize: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkElements(t, load(t, out.Var("b02").Data), []float64{
		1, 1, 2, 2,
		1, 1, 2, 2,
		1, 1, 2, 2,
		1, 1, 2, 2,
	})
	if have := out.Var("b02").Data.Chunks(); !reflect.DeepEqual(have, []int{1, 2, 2}) {
		t.Errorf("chunks %v", have)
	}
}

func TestMergeZonesCategoricalOverride(t *testing.T) {
	b32 := box(499000, 4999000, 501000, 5001000)
	z := zoneCube(AlignedGrid("EPSG:32632", b32, 100), 1830, func(x, y float64) float64 { return 1 })
	for name, target := range map[string]Target{
		"coincident": {CRS: "EPSG:32632", Resolution: 100, BBox: b32},
		"reprojected": {CRS: "EPSG:4326", Resolution: 0.001, BBox: box(8.99, 45.14, 9.01, 45.16)},
	} {
		w, hook := testWarnings()
		target.AggMethods = &AggMethods{ByKey: map[string]AggMethod{"scl": AggMedian}}
		target.Categorical = []string{"scl"}
		out, err := MergeZones([]*Dataset{z}, target, w)
		if err != nil {
			t.Fatal(err)
		}
		if n := countWarnings(hook, WarnCategoricalAgg); n != 1 {
			t.Errorf("%s: have %d categorical warnings, want 1", name, n)
		}
		if n := countWarnings(hook, WarnReprojectOverride); n != 0 {
			t.Errorf("%s: have %d reprojection warnings, want 0", name, n)
		}
		if s := load(t, out.Var("scl").Data); s.Get(0, 10, 10) != 4 {
			t.Errorf("%s: class %g, want 4", name, s.Get(0, 10, 10))
		}
	}
}
