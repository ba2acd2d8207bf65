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
	"sort"
	"time"
)

// GroupIndex holds catalog items indexed by nominal date and, for tiled
// sensors, by tile identifier. Dates and tiles are sorted.
type GroupIndex struct {
	// Dates holds the distinct nominal dates (YYYY-MM-DD).
	Dates []string

	// Times holds the representative nominal timestamp of each date.
	Times []time.Time

	// Tiles holds the distinct tile identifiers. It is nil for a
	// single-key index.
	Tiles []string

	cells [][][]*Item // [date][tile][item]
}

// GroupByDate groups items by nominal date only.
func GroupByDate(items []*Item) *GroupIndex {
	return group(items, false, 0, nil)
}

// GroupByDateTile groups items by nominal date and tile identifier.
// At most maxPerCell items are kept per cell (0 means no limit); extra
// items are discarded with a warning.
func GroupByDateTile(items []*Item, maxPerCell int, w *Warnings) *GroupIndex {
	return group(items, true, maxPerCell, w)
}

func group(items []*Item, tiled bool, maxPerCell int, w *Warnings) *GroupIndex {
	dateSet := make(map[string]bool)
	tileSet := make(map[string]bool)
	for _, it := range items {
		it.Normalize()
		dateSet[it.NominalDate()] = true
		if tiled {
			tileSet[it.Tile] = true
		}
	}
	g := new(GroupIndex)
	g.Dates = sortedKeys(dateSet)
	nTiles := 1
	if tiled {
		g.Tiles = sortedKeys(tileSet)
		nTiles = len(g.Tiles)
	}
	dateIdx := indexOf(g.Dates)
	tileIdx := indexOf(g.Tiles)

	g.cells = make([][][]*Item, len(g.Dates))
	for i := range g.cells {
		g.cells[i] = make([][]*Item, nTiles)
	}
	for _, it := range items {
		t := dateIdx[it.NominalDate()]
		k := 0
		if tiled {
			k = tileIdx[it.Tile]
		}
		cell := g.cells[t][k]
		if maxPerCell > 0 && len(cell) >= maxPerCell {
			w.Warn(WarnCellTruncated, fmt.Sprintf("More than %d items found for date %s and tile %s; "+
				"only the first %d are used.", maxPerCell, g.Dates[t], it.Tile, maxPerCell))
			continue
		}
		g.cells[t][k] = append(cell, it)
	}

	g.Times = make([]time.Time, len(g.Dates))
	for t := range g.Dates {
		for _, cell := range g.cells[t] {
			if len(cell) > 0 {
				g.Times[t] = cell[0].Nominal()
				break
			}
		}
	}
	return g
}

// Cell returns the items at date index t and tile index k. For a
// single-key index k must be 0.
func (g *GroupIndex) Cell(t, k int) []*Item {
	return g.cells[t][k]
}

// Items returns all items of date index t, in tile order.
func (g *GroupIndex) Items(t int) []*Item {
	var out []*Item
	for _, cell := range g.cells[t] {
		out = append(out, cell...)
	}
	return out
}

// Flatten returns every item in the index in (date, tile, cell) order.
func (g *GroupIndex) Flatten() []*Item {
	var out []*Item
	for t := range g.cells {
		out = append(out, g.Items(t)...)
	}
	return out
}

// ItemIDs maps the ISO-8601 representative time of each date to the
// identifiers of the items contributing to it.
func (g *GroupIndex) ItemIDs() map[string][]string {
	out := make(map[string][]string, len(g.Dates))
	for t := range g.Dates {
		key := g.Times[t].Format(time.RFC3339)
		ids := []string{}
		for _, it := range g.Items(t) {
			ids = append(ids, it.ID)
		}
		out[key] = ids
	}
	return out
}

// Zone is a set of tiles sharing one native CRS.
type Zone struct {
	CRS   string
	Tiles []int // indices into GroupIndex.Tiles
}

// PartitionZones buckets the tiles of a two-key index by the CRS
// reported by the first item assigned to each tile. Zones are returned in
// order of first appearance when scanning the sorted tiles.
func PartitionZones(g *GroupIndex) []Zone {
	var zones []Zone
	pos := make(map[string]int)
	for k := range g.Tiles {
		var first *Item
		for t := range g.Dates {
			if cell := g.cells[t][k]; len(cell) > 0 {
				first = cell[0]
				break
			}
		}
		if first == nil {
			continue
		}
		crs := NormalizeCRS(first.CRS)
		i, ok := pos[crs]
		if !ok {
			i = len(zones)
			pos[crs] = i
			zones = append(zones, Zone{CRS: crs})
		}
		zones[i].Tiles = append(zones[i].Tiles, k)
	}
	return zones
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func indexOf(s []string) map[string]int {
	m := make(map[string]int, len(s))
	for i, v := range s {
		m[v] = i
	}
	return m
}
