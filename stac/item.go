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


package stac

import (
	"fmt"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb/geojson"
	"github.com/spatialmodel/eocube"
	"github.com/spf13/cast"
)

type asset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type"`
	Roles []string `json:"roles"`
}

// feature is a STAC item as returned by the API.
type feature struct {
	ID         string                 `json:"id"`
	Collection string                 `json:"collection"`
	BBox       []float64              `json:"bbox"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
	Assets     map[string]asset       `json:"assets"`
}

// item converts f into an eocube item.
func (f *feature) item() (*eocube.Item, error) {
	if f.ID == "" {
		return nil, fmt.Errorf("stac: item without id")
	}
	it := &eocube.Item{
		ID:         f.ID,
		Collection: f.Collection,
		Properties: f.Properties,
		Assets:     make(map[string]string, len(f.Assets)),
	}
	if it.Properties == nil {
		it.Properties = make(map[string]interface{})
	}
	for k, a := range f.Assets {
		it.Assets[k] = a.Href
	}

	dt := cast.ToString(it.Properties["datetime"])
	if dt == "" {
		dt = cast.ToString(it.Properties["start_datetime"])
	}
	t, err := time.Parse(time.RFC3339Nano, dt)
	if err != nil {
		return nil, fmt.Errorf("stac: item %s: invalid datetime %q", f.ID, dt)
	}
	it.Datetime = t.UTC()

	switch {
	case len(f.BBox) == 4 || len(f.BBox) == 6:
		n := len(f.BBox) / 2
		it.BBox = bounds(f.BBox[0], f.BBox[1], f.BBox[n], f.BBox[n+1])
	case f.Geometry != nil && f.Geometry.Geometry() != nil:
		b := f.Geometry.Geometry().Bound()
		it.BBox = bounds(b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())
	default:
		return nil, fmt.Errorf("stac: item %s has neither bbox nor geometry", f.ID)
	}

	if c := cast.ToString(it.Properties["proj:code"]); c != "" {
		it.CRS = eocube.NormalizeCRS(c)
	} else if e := cast.ToInt(it.Properties["proj:epsg"]); e > 0 {
		it.CRS = fmt.Sprintf("EPSG:%d", e)
	}
	if pb, err := cast.ToSliceE(it.Properties["proj:bbox"]); err == nil && len(pb) == 4 {
		it.NativeBBox = bounds(cast.ToFloat64(pb[0]), cast.ToFloat64(pb[1]),
			cast.ToFloat64(pb[2]), cast.ToFloat64(pb[3]))
	}
	if g := cast.ToString(it.Properties["grid:code"]); g != "" {
		it.Tile = g
	} else if m := cast.ToString(it.Properties["s2:mgrs_tile"]); m != "" {
		it.Tile = "MGRS-" + strings.TrimPrefix(m, "MGRS-")
	}
	return it, nil
}

func bounds(x0, y0, x1, y1 float64) *geom.Bounds {
	return &geom.Bounds{Min: geom.Point{X: x0, Y: y0}, Max: geom.Point{X: x1, Y: y1}}
}
