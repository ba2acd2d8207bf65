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
	"reflect"
	"sort"
	"testing"
	"time"
)

func tileItem(id, tile, crs string, day, hour int) *Item {
	return &Item{
		ID:       id,
		Tile:     tile,
		CRS:      crs,
		Datetime: time.Date(2025, 5, day, hour, 0, 0, 0, time.UTC),
		BBox:     lonBox(10),
	}
}

func ids(items []*Item) []string {
	o := make([]string, len(items))
	for i, it := range items {
		o[i] = it.ID
	}
	return o
}

func TestGroupByDateTile(t *testing.T) {
	items := []*Item{
		tileItem("a", "T32TMT", "EPSG:32632", 2, 10),
		tileItem("b", "T31TFN", "EPSG:32631", 2, 11),
		tileItem("c", "T32TMT", "EPSG:32632", 1, 10),
		tileItem("d", "T32TMT", "EPSG:32632", 2, 12),
	}
	g := GroupByDateTile(items, 2, nil)
	if want := []string{"2025-05-01", "2025-05-02"}; !reflect.DeepEqual(g.Dates, want) {
		t.Errorf("dates: have %v, want %v", g.Dates, want)
	}
	if want := []string{"T31TFN", "T32TMT"}; !reflect.DeepEqual(g.Tiles, want) {
		t.Errorf("tiles: have %v, want %v", g.Tiles, want)
	}
	if have, want := ids(g.Cell(1, 1)), []string{"a", "d"}; !reflect.DeepEqual(have, want) {
		t.Errorf("cell: have %v, want %v", have, want)
	}
	if have := g.Cell(0, 0); len(have) != 0 {
		t.Errorf("empty cell: have %v", ids(have))
	}
	// The representative time comes from the first tile in order.
	if have, want := g.Times[1], items[1].Nominal(); !have.Equal(want) {
		t.Errorf("representative time: have %v, want %v", have, want)
	}

	flat := ids(g.Flatten())
	in := ids(items)
	sort.Strings(flat)
	sort.Strings(in)
	if !reflect.DeepEqual(flat, in) {
		t.Errorf("flatten: have %v, want %v", flat, in)
	}

	itemIDs := g.ItemIDs()
	if have := itemIDs[g.Times[1].Format(time.RFC3339)]; !reflect.DeepEqual(have, []string{"b", "a", "d"}) {
		t.Errorf("item ids: have %v", have)
	}
}

func TestGroupByDateTileTruncates(t *testing.T) {
	items := []*Item{
		tileItem("a", "T32TMT", "EPSG:32632", 2, 10),
		tileItem("b", "T32TMT", "EPSG:32632", 2, 11),
		tileItem("c", "T32TMT", "EPSG:32632", 2, 12),
		tileItem("d", "T32TMT", "EPSG:32632", 2, 13),
	}
	w, hook := testWarnings()
	g := GroupByDateTile(items, 2, w)
	if have, want := ids(g.Cell(0, 0)), []string{"a", "b"}; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	if n := countWarnings(hook, WarnCellTruncated); n != 1 {
		t.Errorf("have %d truncation warnings, want 1", n)
	}

	g = GroupByDateTile(items, 0, nil)
	if n := len(g.Cell(0, 0)); n != 4 {
		t.Errorf("unlimited: have %d items, want 4", n)
	}
}

func TestGroupByDate(t *testing.T) {
	items := []*Item{
		tileItem("a", "", "EPSG:4326", 3, 10),
		tileItem("b", "", "EPSG:4326", 1, 10),
		tileItem("c", "", "EPSG:4326", 3, 9),
	}
	g := GroupByDate(items)
	if g.Tiles != nil {
		t.Errorf("single-key index has tiles %v", g.Tiles)
	}
	if have, want := ids(g.Items(1)), []string{"a", "c"}; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	if have, want := g.Times[1], items[0].Nominal(); !have.Equal(want) {
		t.Errorf("representative time: have %v, want %v", have, want)
	}
}

func TestPartitionZones(t *testing.T) {
	items := []*Item{
		tileItem("a", "T32TMT", "EPSG:32632", 1, 10),
		tileItem("b", "T31TFN", "epsg:32631", 1, 10),
		tileItem("c", "T32TNT", "EPSG:32632", 2, 10),
		// Disagrees with the first item of its tile and is ignored.
		tileItem("d", "T32TMT", "EPSG:32631", 2, 10),
	}
	g := GroupByDateTile(items, 2, nil)
	zones := PartitionZones(g)
	want := []Zone{
		{CRS: "EPSG:32631", Tiles: []int{0}},
		{CRS: "EPSG:32632", Tiles: []int{1, 2}},
	}
	if !reflect.DeepEqual(zones, want) {
		t.Errorf("have %+v, want %+v", zones, want)
	}
}
