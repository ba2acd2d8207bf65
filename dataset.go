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

// Variable is one data layer of a Dataset.
type Variable struct {
	Name string

	// Dims holds the dimension names, e.g. ["time", "y", "x"].
	Dims []string

	// DType is the storage data type name, e.g. "float32" or "uint8".
	DType string

	Attrs map[string]interface{}

	Data Array
}

// Dataset is a set of variables sharing one spatial grid and, for
// three-dimensional datasets, one time axis.
type Dataset struct {
	Grid Grid

	// Times holds the time coordinate. It is nil for datasets with only
	// spatial dimensions.
	Times []time.Time

	Vars []*Variable

	Attrs map[string]interface{}
}

// Var returns the named variable, or nil.
func (ds *Dataset) Var(name string) *Variable {
	for _, v := range ds.Vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// VarNames returns the variable names in order.
func (ds *Dataset) VarNames() []string {
	o := make([]string, len(ds.Vars))
	for i, v := range ds.Vars {
		o[i] = v.Name
	}
	return o
}

// Degenerate reports whether one of the spatial dimensions has at most one
// pixel, too few for a scene that barely touches the requested window to
// be resampled.
func (ds *Dataset) Degenerate() bool {
	return ds.Grid.Nx <= 1 || ds.Grid.Ny <= 1
}

// Dims returns the dimension names of the dataset's variables.
func (ds *Dataset) Dims() []string {
	y, x := ds.Grid.Dims()
	if ds.Times != nil {
		return []string{"time", y, x}
	}
	return []string{y, x}
}

// Load computes the variable v.
func (ds *Dataset) Load(ctx context.Context, v string, workers int) (*sparse.DenseArray, error) {
	vv := ds.Var(v)
	if vv == nil {
		return nil, fmt.Errorf("eocube: variable %q not in dataset", v)
	}
	return Compute(ctx, vv.Data, workers)
}

// copyAttrs returns a shallow copy of a.
func copyAttrs(a map[string]interface{}) map[string]interface{} {
	o := make(map[string]interface{}, len(a))
	for k, v := range a {
		o[k] = v
	}
	return o
}
