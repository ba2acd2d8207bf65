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
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Save writes a three-dimensional dataset to w in netCDF classic format.
// Time is stored in seconds since 1970-01-01. Data variables are
// computed one time step at a time.
func Save(ctx context.Context, ds *Dataset, w cdf.ReaderWriterAt, workers int) error {
	if ds.Times == nil {
		return fmt.Errorf("eocube: saving: dataset has no time dimension")
	}
	yName, xName := ds.Grid.Dims()
	h := cdf.NewHeader(
		[]string{"time", yName, xName},
		[]int{len(ds.Times), ds.Grid.Ny, ds.Grid.Nx})
	h.AddAttribute("", "Conventions", "CF-1.8")
	h.AddAttribute("", "crs", ds.Grid.CRS)
	h.AddAttribute("", "geotransform", []float64{ds.Grid.X0, ds.Grid.Dx, 0, ds.Grid.Y0, 0, -ds.Grid.Dy})
	addAttributes(h, "", ds.Attrs)

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "seconds since 1970-01-01T00:00:00Z")
	h.AddAttribute("time", "standard_name", "time")
	h.AddVariable(yName, []string{yName}, []float64{0})
	h.AddVariable(xName, []string{xName}, []float64{0})
	if IsGeographic(ds.Grid.CRS) {
		h.AddAttribute(yName, "units", "degrees_north")
		h.AddAttribute(xName, "units", "degrees_east")
	} else {
		h.AddAttribute(yName, "standard_name", "projection_y_coordinate")
		h.AddAttribute(xName, "standard_name", "projection_x_coordinate")
		h.AddAttribute(yName, "units", "m")
		h.AddAttribute(xName, "units", "m")
	}
	for _, v := range ds.Vars {
		h.AddVariable(v.Name, []string{"time", yName, xName}, []float32{0})
		h.AddAttribute(v.Name, "_FillValue", []float32{float32(math.NaN())})
		addAttributes(h, v.Name, v.Attrs)
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("eocube: creating netcdf file: %w", err)
	}
	times := make([]float64, len(ds.Times))
	for i, t := range ds.Times {
		times[i] = float64(t.Unix())
	}
	for name, vals := range map[string][]float64{"time": times, yName: ds.Grid.Ys(), xName: ds.Grid.Xs()} {
		if _, err := f.Writer(name, nil, nil).Write(vals); err != nil {
			return fmt.Errorf("eocube: writing %s to netcdf file: %w", name, err)
		}
	}
	for _, v := range ds.Vars {
		for t := range ds.Times {
			d, err := Compute(ctx, &timeSlice{a: v.Data, t: t}, workers)
			if err != nil {
				return fmt.Errorf("eocube: computing %s: %w", v.Name, err)
			}
			if err := writeNCF(f, v.Name, t, d); err != nil {
				return fmt.Errorf("eocube: writing variable %s to netcdf file: %w", v.Name, err)
			}
		}
	}
	return nil
}

func writeNCF(f *cdf.File, name string, t int, data *sparse.DenseArray) error {
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	// The end corner is inclusive.
	l := f.Header.Lengths(name)
	end := []int{t, l[1] - 1, l[2] - 1}
	start := []int{t, 0, 0}
	_, err := f.Writer(name, start, end).Write(data32)
	return err
}

// addAttributes adds attrs to variable v, or to the file if v is empty.
// Values netCDF cannot hold directly are stored as JSON text.
func addAttributes(h *cdf.Header, v string, attrs map[string]interface{}) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if v == "" && k == "crs" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch a := attrs[k].(type) {
		case string:
			h.AddAttribute(v, k, a)
		case float64:
			h.AddAttribute(v, k, []float64{a})
		case []float64:
			h.AddAttribute(v, k, a)
		case int:
			h.AddAttribute(v, k, []int32{int32(a)})
		case []int32:
			h.AddAttribute(v, k, a)
		default:
			b, err := json.Marshal(a)
			if err != nil {
				continue
			}
			h.AddAttribute(v, k, string(b))
		}
	}
}

// timeSlice is the two-dimensional array of one time step of a.
type timeSlice struct {
	a Array
	t int
}

func (s *timeSlice) Shape() []int  { return s.a.Shape()[1:] }
func (s *timeSlice) Chunks() []int { return s.a.Chunks()[1:] }

func (s *timeSlice) Read(ctx context.Context, start, end []int) (*sparse.DenseArray, error) {
	d, err := s.a.Read(ctx, append([]int{s.t}, start...), append([]int{s.t + 1}, end...))
	if err != nil {
		return nil, err
	}
	o := sparse.ZerosDense(windowShape(start, end)...)
	copy(o.Elements, d.Elements)
	return o, nil
}
