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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// OpenParams holds the parameters of a cube request.
type OpenParams struct {
	// Variables lists the variables to load. All product variables are
	// loaded if it is empty.
	Variables []string `json:"variables,omitempty"`

	// SpatialRes is the output resolution in units of CRS.
	SpatialRes float64 `json:"spatial_res" validate:"gt=0"`

	// TimeRange holds the first and last date (YYYY-MM-DD or RFC 3339).
	TimeRange []string `json:"time_range" validate:"len=2,dive,required"`

	// BBox is [minx, miny, maxx, maxy] in CRS.
	BBox []float64 `json:"bbox" validate:"len=4"`

	// CRS is the output coordinate reference system.
	CRS string `json:"crs,omitempty"`

	// TileSize is the spatial chunk length of the output.
	TileSize int `json:"tile_size,omitempty" validate:"gte=0"`

	// Query holds additional catalog query filters.
	Query map[string]interface{} `json:"query,omitempty"`

	SplineOrders  *SplineOrders `json:"spline_orders,omitempty"`
	InterpMethods *SplineOrders `json:"interp_methods,omitempty"`
	AggMethods    *AggMethods   `json:"agg_methods,omitempty"`

	// SuppressWarnings lists warning codes that should not be logged.
	SuppressWarnings []WarningCode `json:"suppress_warnings,omitempty"`
}

// Splines returns the spline order override, preferring spline_orders
// over interp_methods.
func (p *OpenParams) Splines() *SplineOrders {
	if p.SplineOrders.IsSet() {
		return p.SplineOrders
	}
	return p.InterpMethods
}

// Bounds returns the requested bounding box.
func (p *OpenParams) Bounds() (*geom.Bounds, error) {
	return BBoxFromSlice(p.BBox)
}

// Interval returns the start and end of the time range. Date-only end
// values are extended to the end of the day.
func (p *OpenParams) Interval() (start, end time.Time, err error) {
	if len(p.TimeRange) != 2 {
		return start, end, fmt.Errorf("eocube: time_range must have 2 values, got %d", len(p.TimeRange))
	}
	start, err = parseTime(p.TimeRange[0], false)
	if err != nil {
		return
	}
	end, err = parseTime(p.TimeRange[1], true)
	if err != nil {
		return
	}
	if end.Before(start) {
		err = fmt.Errorf("eocube: time_range end %s is before start %s", p.TimeRange[1], p.TimeRange[0])
	}
	return
}

func parseTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return t, fmt.Errorf("eocube: invalid time %q: must be YYYY-MM-DD or RFC 3339", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

// Map returns the parameters as a JSON-compatible map, for recording in
// cube attributes.
func (p *OpenParams) Map() map[string]interface{} {
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// Schema describes the open parameters accepted for a product.
type Schema struct {
	Properties []string `json:"properties"`
	Required   []string `json:"required"`
	Variables  []string `json:"variables"`
	DefaultCRS string   `json:"default_crs,omitempty"`
}

var allProperties = []string{"variables", "spatial_res", "time_range", "bbox", "crs", "tile_size",
	"query", "spline_orders", "interp_methods", "agg_methods", "suppress_warnings"}

var validate = validator.New()

// ParseOpenParams decodes JSON-encoded parameters, rejecting keys not in
// the schema, and validates them.
func ParseOpenParams(b []byte, s Schema) (*OpenParams, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("eocube: decoding open parameters: %w", err)
	}
	var unknown []string
	for k := range raw {
		if !contains(s.Properties, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("eocube: unsupported open parameters: %s", strings.Join(unknown, ", "))
	}
	for _, r := range s.Required {
		if _, ok := raw[r]; !ok {
			return nil, fmt.Errorf("eocube: missing required open parameter %q", r)
		}
	}
	p := new(OpenParams)
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	if err := d.Decode(p); err != nil {
		return nil, fmt.Errorf("eocube: decoding open parameters: %w", err)
	}
	if err := p.Validate(s); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks p against s. It applies the schema's default CRS when
// none is given.
func (p *OpenParams) Validate(s Schema) error {
	if p.CRS == "" {
		p.CRS = s.DefaultCRS
	}
	for _, r := range s.Required {
		var missing bool
		switch r {
		case "crs":
			missing = p.CRS == ""
		case "bbox":
			missing = p.BBox == nil
		case "time_range":
			missing = p.TimeRange == nil
		case "spatial_res":
			missing = p.SpatialRes == 0
		case "variables":
			missing = len(p.Variables) == 0
		}
		if missing {
			return fmt.Errorf("eocube: missing required open parameter %q", r)
		}
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("eocube: invalid open parameters: %w", err)
	}
	if _, err := p.Bounds(); err != nil {
		return err
	}
	if _, _, err := p.Interval(); err != nil {
		return err
	}
	if _, err := ParseCRS(p.CRS); err != nil {
		return err
	}
	for _, v := range p.Variables {
		if !contains(s.Variables, v) {
			return fmt.Errorf("eocube: variable %q is not available; choose from %s",
				v, strings.Join(s.Variables, ", "))
		}
	}
	return nil
}

// SearchParams is a catalog query.
type SearchParams struct {
	Collections []string               `json:"collections"`
	Datetime    string                 `json:"datetime"`
	BBox        []float64              `json:"bbox,omitempty"`
	Intersects  *geojson.Geometry      `json:"intersects,omitempty"`
	Query       map[string]interface{} `json:"query,omitempty"`
}

// datetimeInterval formats the time range of p as a catalog interval.
func datetimeInterval(p *OpenParams) (string, error) {
	start, end, err := p.Interval()
	if err != nil {
		return "", err
	}
	return start.Format(time.RFC3339) + "/" + end.Format(time.RFC3339), nil
}

// BBoxPolygon returns b as a closed GeoJSON polygon.
func BBoxPolygon(b *geom.Bounds) *geojson.Geometry {
	ring := orb.Ring{
		{b.Min.X, b.Min.Y}, {b.Max.X, b.Min.Y}, {b.Max.X, b.Max.Y},
		{b.Min.X, b.Max.Y}, {b.Min.X, b.Min.Y},
	}
	return geojson.NewGeometry(orb.Polygon{ring})
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
