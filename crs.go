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
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Geographic is the identifier of the WGS84 longitude/latitude CRS.
const Geographic = "EPSG:4326"

// degreesToMeters approximates the length of one degree at the equator.
const degreesToMeters = 111320.

// NormalizeCRS returns a canonical form of a CRS identifier so that
// identifiers can be compared as strings. EPSG codes in their various
// spellings become "EPSG:<code>"; anything else is returned trimmed.
func NormalizeCRS(crs string) string {
	c := strings.TrimSpace(crs)
	u := strings.ToUpper(c)
	switch {
	case u == "CRS84" || u == "OGC:CRS84" || u == "WGS84":
		return Geographic
	case strings.HasPrefix(u, "EPSG:"):
		return "EPSG:" + strings.TrimSpace(c[5:])
	case strings.HasPrefix(u, "URN:OGC:DEF:CRS:EPSG:"):
		parts := strings.Split(c, ":")
		return "EPSG:" + parts[len(parts)-1]
	}
	if _, err := strconv.Atoi(c); err == nil {
		return "EPSG:" + c
	}
	return c
}

// epsgCode returns the numeric EPSG code of crs, if it has one.
func epsgCode(crs string) (int, bool) {
	c := NormalizeCRS(crs)
	if !strings.HasPrefix(c, "EPSG:") {
		return 0, false
	}
	code, err := strconv.Atoi(c[5:])
	return code, err == nil
}

// Proj4 returns a proj4 definition for crs. EPSG codes for WGS84
// longitude/latitude, web mercator and the WGS84 UTM zones are supported;
// proj4 strings and WKT are returned unchanged.
func Proj4(crs string) (string, error) {
	c := strings.TrimSpace(crs)
	if strings.HasPrefix(c, "+") || strings.Contains(c, "[") {
		return c, nil
	}
	code, ok := epsgCode(c)
	if !ok {
		return "", fmt.Errorf("eocube: unsupported CRS %q", crs)
	}
	switch {
	case code == 4326:
		return "+proj=longlat +datum=WGS84 +no_defs", nil
	case code == 3857:
		return "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs", nil
	case code > 32600 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), nil
	case code > 32700 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), nil
	}
	return "", fmt.Errorf("eocube: unsupported EPSG code %d", code)
}

// ParseCRS returns the spatial reference of crs.
func ParseCRS(crs string) (*proj.SR, error) {
	def, err := Proj4(crs)
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("eocube: parsing CRS %q: %w", crs, err)
	}
	return sr, nil
}

// IsGeographic reports whether crs uses longitude/latitude axes.
func IsGeographic(crs string) bool {
	if code, ok := epsgCode(crs); ok {
		return code == 4326
	}
	c := strings.ToLower(crs)
	return strings.Contains(c, "+proj=longlat") || strings.Contains(c, "+proj=latlong") ||
		strings.HasPrefix(strings.TrimSpace(c), "geogcs[")
}

// SameCRS reports whether a and b name the same CRS.
func SameCRS(a, b string) bool {
	return NormalizeCRS(a) == NormalizeCRS(b)
}

// Transformer returns a function converting coordinates from src to dst.
func Transformer(src, dst string) (proj.Transformer, error) {
	if SameCRS(src, dst) {
		return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
	}
	s, err := ParseCRS(src)
	if err != nil {
		return nil, err
	}
	d, err := ParseCRS(dst)
	if err != nil {
		return nil, err
	}
	t, err := s.NewTransform(d)
	if err != nil {
		return nil, fmt.Errorf("eocube: transform %s -> %s: %w", src, dst, err)
	}
	return t, nil
}

// densifyPoints is the number of points sampled along each bbox edge
// when reprojecting it.
const densifyPoints = 21

// ReprojectBBox transforms b from CRS src to CRS dst by sampling points
// along its edges. The result is grown on each side by buffer times its
// width or height.
func ReprojectBBox(b *geom.Bounds, src, dst string, buffer float64) (*geom.Bounds, error) {
	out := b.Copy()
	if !SameCRS(src, dst) {
		t, err := Transformer(src, dst)
		if err != nil {
			return nil, err
		}
		out = geom.NewBounds()
		dx := (b.Max.X - b.Min.X) / (densifyPoints - 1)
		dy := (b.Max.Y - b.Min.Y) / (densifyPoints - 1)
		for i := 0; i < densifyPoints; i++ {
			for _, p := range []geom.Point{
				{X: b.Min.X + float64(i)*dx, Y: b.Min.Y},
				{X: b.Min.X + float64(i)*dx, Y: b.Max.Y},
				{X: b.Min.X, Y: b.Min.Y + float64(i)*dy},
				{X: b.Max.X, Y: b.Min.Y + float64(i)*dy},
			} {
				x, y, err := t(p.X, p.Y)
				if err != nil {
					return nil, fmt.Errorf("eocube: reprojecting bbox: %w", err)
				}
				if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
					continue
				}
				out.Extend(geom.NewBoundsPoint(geom.Point{X: x, Y: y}))
			}
		}
		if out.Empty() {
			return nil, fmt.Errorf("eocube: bbox %v cannot be transformed from %s to %s", *b, src, dst)
		}
	}
	if buffer > 0 {
		bx := (out.Max.X - out.Min.X) * buffer
		by := (out.Max.Y - out.Min.Y) * buffer
		out.Min.X -= bx
		out.Max.X += bx
		out.Min.Y -= by
		out.Max.Y += by
	}
	if IsGeographic(dst) {
		out.Min.X = math.Max(out.Min.X, -180)
		out.Max.X = math.Min(out.Max.X, 180)
		out.Min.Y = math.Max(out.Min.Y, -90)
		out.Max.Y = math.Min(out.Max.Y, 90)
	}
	return out, nil
}

// ResolutionIn converts a resolution expressed in the units of crs to
// the units of target, using a fixed meters-per-degree factor when one of
// them is geographic.
func ResolutionIn(res float64, crs, target string) float64 {
	switch {
	case IsGeographic(crs) && !IsGeographic(target):
		return res * degreesToMeters
	case !IsGeographic(crs) && IsGeographic(target):
		return res / degreesToMeters
	}
	return res
}

// BBoxFromSlice converts [minx, miny, maxx, maxy] to a bounds.
func BBoxFromSlice(b []float64) (*geom.Bounds, error) {
	if len(b) != 4 {
		return nil, fmt.Errorf("eocube: bbox must have 4 values, got %d", len(b))
	}
	if b[0] > b[2] || b[1] > b[3] {
		return nil, fmt.Errorf("eocube: bbox %v has min greater than max", b)
	}
	return &geom.Bounds{Min: geom.Point{X: b[0], Y: b[1]}, Max: geom.Point{X: b[2], Y: b[3]}}, nil
}

// intersect returns the intersection of a and b, which is empty if they
// do not overlap.
func intersect(a, b *geom.Bounds) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: math.Max(a.Min.X, b.Min.X), Y: math.Max(a.Min.Y, b.Min.Y)},
		Max: geom.Point{X: math.Min(a.Max.X, b.Max.X), Y: math.Min(a.Max.Y, b.Max.Y)},
	}
}
