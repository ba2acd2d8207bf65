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
	"encoding/json"
	"strings"
	"testing"
)

func TestSplineOrdersJSON(t *testing.T) {
	for _, test := range []struct {
		in          string
		name, dtype string
		want        SplineOrder
	}{
		{in: `1`, name: "b02", dtype: "float32", want: Linear},
		{in: `"cubic"`, name: "scl", dtype: "uint8", want: Cubic},
		{in: `{"0": ["float32"], "2": ["b02"]}`, name: "b02", dtype: "float32", want: Bilinear},
		{in: `{"0": ["float32"], "2": ["b02"]}`, name: "b03", dtype: "float32", want: Nearest},
		{in: `{"nearest": "b04"}`, name: "b03", dtype: "float32", want: Cubic},
	} {
		var o SplineOrders
		if err := json.Unmarshal([]byte(test.in), &o); err != nil {
			t.Fatalf("%s: %v", test.in, err)
		}
		if have := o.Resolve(test.name, test.dtype, Cubic); have != test.want {
			t.Errorf("%s (%s): have %v, want %v", test.in, test.name, have, test.want)
		}
	}
	var o SplineOrders
	if err := json.Unmarshal([]byte(`7`), &o); err == nil {
		t.Error("expected error for invalid order")
	}
}

func TestAggMethodsJSON(t *testing.T) {
	var o AggMethods
	if err := json.Unmarshal([]byte(`{"max": ["float32"], "mode": ["scl"]}`), &o); err != nil {
		t.Fatal(err)
	}
	if have := o.Resolve("scl", "float32", AggCenter); have != AggMode {
		t.Errorf("name before dtype: have %s", have)
	}
	if have := o.Resolve("b02", "float32", AggMean); have != AggMax {
		t.Errorf("dtype: have %s", have)
	}
	if have := o.Resolve("b02", "uint16", AggMean); have != AggMean {
		t.Errorf("default: have %s", have)
	}
	b, err := json.Marshal(o)
	if err != nil {
		t.Fatal(err)
	}
	var o2 AggMethods
	if err := json.Unmarshal(b, &o2); err != nil {
		t.Fatal(err)
	}
	if o2.Resolve("scl", "", "") != AggMode {
		t.Errorf("marshal round trip: %s", b)
	}
	if err := json.Unmarshal([]byte(`"average"`), &o); err == nil {
		t.Error("expected error for invalid method")
	}
}

func TestResolvePolicyDefaults(t *testing.T) {
	w, hook := testWarnings()
	if p := ResolvePolicy("scl", "uint8", true, nil, nil, w); p.Spline != Nearest || p.Agg != AggCenter {
		t.Errorf("categorical default: %+v", p)
	}
	if p := ResolvePolicy("b02", "float32", false, nil, nil, w); p.Spline != Cubic || p.Agg != AggMean {
		t.Errorf("continuous default: %+v", p)
	}
	if len(hook.AllEntries()) != 0 {
		t.Error("defaults should not warn")
	}
}

func TestResolvePolicyCategoricalWarnings(t *testing.T) {
	w, hook := testWarnings()
	am := &AggMethods{All: AggMean}
	so := &SplineOrders{ByKey: map[string]SplineOrder{"scl": Cubic}}
	for i := 0; i < 3; i++ {
		p := ResolvePolicy("scl", "uint8", true, so, am, w)
		if p.Agg != AggMean || p.Spline != Cubic {
			t.Errorf("override not honored: %+v", p)
		}
	}
	if n := countWarnings(hook, WarnCategoricalAgg); n != 1 {
		t.Errorf("have %d aggregation warnings, want 1", n)
	}
	if n := countWarnings(hook, WarnCategoricalSpline); n != 1 {
		t.Errorf("have %d spline warnings, want 1", n)
	}
	for _, e := range hook.AllEntries() {
		if !strings.Contains(e.Message, "'scl'") || !strings.Contains(e.Message, "may produce corrupted results") {
			t.Errorf("unexpected message %q", e.Message)
		}
	}
	if !strings.Contains(w.Emitted()[1], "Aggregation method 'mean'") {
		t.Errorf("unexpected message %q", w.Emitted()[1])
	}

	// Order-preserving aggregation does not warn.
	w, hook = testWarnings()
	ResolvePolicy("scl", "uint8", true, nil, &AggMethods{All: AggMode}, w)
	if len(hook.AllEntries()) != 0 {
		t.Error("mode should not warn")
	}
}

func TestWarningsSuppressed(t *testing.T) {
	w, hook := testWarnings(WarnCategoricalAgg)
	ResolvePolicy("scl", "uint8", true, nil, &AggMethods{All: AggMean}, w)
	if len(hook.AllEntries()) != 0 {
		t.Error("suppressed warning was logged")
	}
	var nilW *Warnings
	nilW.Warn(WarnMalformedID, "ignored")
}
