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
	"fmt"
	"strconv"
	"strings"
)

// SplineOrder is the interpolation order used when upsampling.
type SplineOrder int

// Supported spline orders.
const (
	Nearest  SplineOrder = 0
	Linear   SplineOrder = 1
	Bilinear SplineOrder = 2
	Cubic    SplineOrder = 3
)

var splineNames = map[string]SplineOrder{
	"nearest":  Nearest,
	"linear":   Linear,
	"bilinear": Bilinear,
	"cubic":    Cubic,
}

func (s SplineOrder) String() string {
	for k, v := range splineNames {
		if v == s {
			return k
		}
	}
	return strconv.Itoa(int(s))
}

// ParseSplineOrder parses a spline order given as a number or a name.
func ParseSplineOrder(s string) (SplineOrder, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if o, ok := splineNames[s]; ok {
		return o, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i > 3 {
		return 0, fmt.Errorf("eocube: invalid spline order %q", s)
	}
	return SplineOrder(i), nil
}

// AggMethod is the aggregation used when downsampling.
type AggMethod string

// Supported aggregation methods.
const (
	AggCenter AggMethod = "center"
	AggMean   AggMethod = "mean"
	AggMedian AggMethod = "median"
	AggMax    AggMethod = "max"
	AggMin    AggMethod = "min"
	AggMode   AggMethod = "mode"
	AggFirst  AggMethod = "first"
	AggLast   AggMethod = "last"
)

// ParseAggMethod validates an aggregation method name.
func ParseAggMethod(s string) (AggMethod, error) {
	m := AggMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case AggCenter, AggMean, AggMedian, AggMax, AggMin, AggMode, AggFirst, AggLast:
		return m, nil
	}
	return "", fmt.Errorf("eocube: invalid aggregation method %q", s)
}

// SplineOrders is a user override of spline orders: either a single
// order for all variables or a mapping from order to the variable names
// or data types it applies to.
type SplineOrders struct {
	All   *SplineOrder
	ByKey map[string]SplineOrder
}

// IsSet reports whether any override was given.
func (o *SplineOrders) IsSet() bool {
	return o != nil && (o.All != nil || len(o.ByKey) > 0)
}

// UnmarshalJSON accepts `3`, `"cubic"` or `{"0": ["scl", "uint8"], "cubic": ["float32"]}`.
func (o *SplineOrders) UnmarshalJSON(b []byte) error {
	scalar, m, err := scalarOrMap(b)
	if err != nil {
		return fmt.Errorf("eocube: spline orders: %w", err)
	}
	*o = SplineOrders{}
	if scalar != "" {
		s, err := ParseSplineOrder(scalar)
		if err != nil {
			return err
		}
		o.All = &s
		return nil
	}
	o.ByKey = make(map[string]SplineOrder)
	for k, names := range m {
		s, err := ParseSplineOrder(k)
		if err != nil {
			return err
		}
		for _, n := range names {
			o.ByKey[n] = s
		}
	}
	return nil
}

// MarshalJSON writes o in the mapping form accepted by UnmarshalJSON.
func (o SplineOrders) MarshalJSON() ([]byte, error) {
	if o.All != nil {
		return json.Marshal(int(*o.All))
	}
	m := make(map[string][]string)
	for k, s := range o.ByKey {
		key := strconv.Itoa(int(s))
		m[key] = append(m[key], k)
	}
	return json.Marshal(m)
}

// Resolve returns the spline order for a variable: an override for its
// name, then for its data type, then the scalar override, then def.
func (o *SplineOrders) Resolve(name, dtype string, def SplineOrder) SplineOrder {
	if o == nil {
		return def
	}
	if s, ok := o.ByKey[name]; ok {
		return s
	}
	if s, ok := o.ByKey[dtype]; ok {
		return s
	}
	if o.All != nil {
		return *o.All
	}
	return def
}

// AggMethods is a user override of aggregation methods, with the same
// forms as SplineOrders.
type AggMethods struct {
	All   AggMethod
	ByKey map[string]AggMethod
}

// IsSet reports whether any override was given.
func (o *AggMethods) IsSet() bool {
	return o != nil && (o.All != "" || len(o.ByKey) > 0)
}

// UnmarshalJSON accepts `"mean"` or `{"mode": ["scl"], "mean": ["float32"]}`.
func (o *AggMethods) UnmarshalJSON(b []byte) error {
	scalar, m, err := scalarOrMap(b)
	if err != nil {
		return fmt.Errorf("eocube: aggregation methods: %w", err)
	}
	*o = AggMethods{}
	if scalar != "" {
		a, err := ParseAggMethod(scalar)
		if err != nil {
			return err
		}
		o.All = a
		return nil
	}
	o.ByKey = make(map[string]AggMethod)
	for k, names := range m {
		a, err := ParseAggMethod(k)
		if err != nil {
			return err
		}
		for _, n := range names {
			o.ByKey[n] = a
		}
	}
	return nil
}

// MarshalJSON writes o in the form accepted by UnmarshalJSON.
func (o AggMethods) MarshalJSON() ([]byte, error) {
	if o.All != "" {
		return json.Marshal(o.All)
	}
	m := make(map[string][]string)
	for k, a := range o.ByKey {
		m[string(a)] = append(m[string(a)], k)
	}
	return json.Marshal(m)
}

// Resolve returns the aggregation method for a variable, with the same
// precedence as SplineOrders.Resolve.
func (o *AggMethods) Resolve(name, dtype string, def AggMethod) AggMethod {
	if o == nil {
		return def
	}
	if a, ok := o.ByKey[name]; ok {
		return a
	}
	if a, ok := o.ByKey[dtype]; ok {
		return a
	}
	if o.All != "" {
		return o.All
	}
	return def
}

// scalarOrMap decodes either a JSON scalar (number or string) or an object
// mapping keys to a name or list of names.
func scalarOrMap(b []byte) (string, map[string][]string, error) {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return "", nil, err
	}
	switch v := raw.(type) {
	case float64:
		return strconv.Itoa(int(v)), nil, nil
	case string:
		return v, nil, nil
	case map[string]interface{}:
		m := make(map[string][]string, len(v))
		for k, names := range v {
			switch n := names.(type) {
			case string:
				m[k] = []string{n}
			case []interface{}:
				for _, e := range n {
					s, ok := e.(string)
					if !ok {
						return "", nil, fmt.Errorf("entry %v of %q is not a string", e, k)
					}
					m[k] = append(m[k], s)
				}
			default:
				return "", nil, fmt.Errorf("value of %q must be a name or a list of names", k)
			}
		}
		return "", m, nil
	}
	return "", nil, fmt.Errorf("unsupported value %s", b)
}

// Policy is the resampling method resolved for one variable.
type Policy struct {
	Spline SplineOrder
	Agg    AggMethod

	// Categorical marks class-valued variables, which are always
	// reprojected with nearest-neighbor interpolation.
	Categorical bool
}

// ResolvePolicy returns the resampling policy for a variable, applying the
// overrides to the defaults (nearest/center for categorical variables,
// cubic/mean otherwise). Overrides that would blend class values of a
// categorical variable are honored but reported through w.
func ResolvePolicy(name, dtype string, categorical bool, so *SplineOrders, am *AggMethods, w *Warnings) Policy {
	p := Policy{Spline: Cubic, Agg: AggMean, Categorical: categorical}
	if categorical {
		p.Spline, p.Agg = Nearest, AggCenter
	}
	p.Spline = so.Resolve(name, dtype, p.Spline)
	p.Agg = am.Resolve(name, dtype, p.Agg)
	if categorical {
		if p.Spline != Nearest {
			w.Warn(WarnCategoricalSpline, fmt.Sprintf("Spline order %d selected for '%s' (categorical data). "+
				"This may produce corrupted results.", int(p.Spline), name))
		}
		if p.Agg == AggMean || p.Agg == AggMedian {
			w.Warn(WarnCategoricalAgg, fmt.Sprintf("Aggregation method '%s' selected for '%s' (categorical data). "+
				"This may produce corrupted results.", p.Agg, name))
		}
	}
	return p
}

// CheckPolicies resolves the policy of every variable in vars and reports
// overrides unsuitable for categorical data, including for variables that
// are only sliced or reprojected with default interpolation.
func CheckPolicies(vars []*Variable, categorical []string, so *SplineOrders, am *AggMethods, w *Warnings) {
	for _, v := range vars {
		ResolvePolicy(v.Name, v.DType, contains(categorical, v.Name), so, am, w)
	}
}
