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
	"time"

	"github.com/ctessum/geom"
)

// Item describes one retrievable imagery tile or scene as returned by
// a catalog search.
type Item struct {
	// ID is the stable identifier of the item.
	ID string

	// Collection is the catalog collection the item belongs to.
	Collection string

	// Datetime is the UTC acquisition time.
	Datetime time.Time

	// BBox is the footprint of the item in geographic (EPSG:4326)
	// coordinates.
	BBox *geom.Bounds

	// NativeBBox is the footprint of the item in its native CRS. It may be
	// nil for items that do not report one.
	NativeBBox *geom.Bounds

	// CRS is the native coordinate reference system of the item, e.g.
	// "EPSG:32632".
	CRS string

	// Tile is the spatial grid identifier (e.g. an MGRS tile code). It is
	// empty for sensors that are not tiled.
	Tile string

	// Assets maps asset role names to URIs.
	Assets map[string]string

	// Properties holds the remaining free-form properties.
	Properties map[string]interface{}

	nominal    time.Time
	normalized bool
}

// SolarOffset returns the coarse local solar time offset for a longitude in
// degrees: one hour for every 15° band, rounded toward negative infinity.
func SolarOffset(lon float64) time.Duration {
	return time.Duration(math.Floor(lon/15)) * time.Hour
}

// NominalTime converts the UTC acquisition time t of a footprint
// to an approximate local solar time, based on the longitude of the
// footprint center.
func NominalTime(t time.Time, footprint *geom.Bounds) time.Time {
	if footprint == nil {
		return t.UTC()
	}
	lon := (footprint.Min.X + footprint.Max.X) / 2
	return t.UTC().Add(SolarOffset(lon))
}

// Normalize computes the nominal timestamp of the item. It is idempotent.
func (it *Item) Normalize() {
	if it.normalized {
		return
	}
	it.nominal = NominalTime(it.Datetime, it.BBox)
	it.normalized = true
}

// Nominal returns the nominal (solar) timestamp of the item, normalizing it
// first if necessary.
func (it *Item) Nominal() time.Time {
	it.Normalize()
	return it.nominal
}

// NominalDate returns the calendar date of the nominal timestamp,
// formatted as YYYY-MM-DD.
func (it *Item) NominalDate() string {
	return it.Nominal().Format(dateLayout)
}

// Asset returns the URI registered for the given role, falling back to the
// first asset in lexical order when the role is empty.
func (it *Item) Asset(role string) (string, bool) {
	if role != "" {
		href, ok := it.Assets[role]
		return href, ok
	}
	first := ""
	for k := range it.Assets {
		if first == "" || k < first {
			first = k
		}
	}
	if first == "" {
		return "", false
	}
	return it.Assets[first], true
}

const dateLayout = "2006-01-02"
