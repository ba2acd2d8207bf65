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
	"testing"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var nan = math.NaN()

// grid2D returns a dataset with one variable per entry of vars, each
// holding the given rows.
func grid2D(g Grid, vars map[string][][]float64) *Dataset {
	ds := &Dataset{Grid: g, Attrs: map[string]interface{}{}}
	for _, name := range sortedNames(vars) {
		rows := vars[name]
		d := sparse.ZerosDense(len(rows), len(rows[0]))
		for j, r := range rows {
			for i, v := range r {
				d.Set(v, j, i)
			}
		}
		ds.Vars = append(ds.Vars, &Variable{
			Name:  name,
			Dims:  []string{"y", "x"},
			DType: "float32",
			Attrs: map[string]interface{}{"long_name": name, "units": "1", "ignored": "x"},
			Data:  NewDense(d, nil),
		})
	}
	return ds
}

func sortedNames(m map[string][][]float64) []string {
	s := make(map[string]bool)
	for k := range m {
		s[k] = true
	}
	return sortedKeys(s)
}

func load(t *testing.T, a Array) *sparse.DenseArray {
	t.Helper()
	d, err := Compute(context.Background(), a, 2)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func equalNaN(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

func checkElements(t *testing.T, have *sparse.DenseArray, want []float64) {
	t.Helper()
	if len(have.Elements) != len(want) {
		t.Fatalf("have %d elements, want %d", len(have.Elements), len(want))
	}
	for i, w := range want {
		if !equalNaN(have.Elements[i], w) {
			t.Errorf("element %d: have %g, want %g", i, have.Elements[i], w)
		}
	}
}

// testWarnings returns a reporter whose output is captured by the hook.
func testWarnings(codes ...WarningCode) (*Warnings, *test.Hook) {
	log, hook := test.NewNullLogger()
	return NewWarnings(log, codes...), hook
}

func countWarnings(hook *test.Hook, code WarningCode) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["code"] == code {
			n++
		}
	}
	return n
}
