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
	"strings"
	"testing"
	"time"

	"github.com/ctessum/geom"
)

func lonBox(lon float64) *geom.Bounds {
	return &geom.Bounds{Min: geom.Point{X: lon - 0.5, Y: 40}, Max: geom.Point{X: lon + 0.5, Y: 41}}
}

func TestSolarOffset(t *testing.T) {
	for _, test := range []struct {
		lon  float64
		want time.Duration
	}{
		{lon: 0, want: 0},
		{lon: 14.9, want: 0},
		{lon: 150.5, want: 10 * time.Hour},
		{lon: -7.5, want: -1 * time.Hour},
		{lon: -179, want: -12 * time.Hour},
	} {
		if have := SolarOffset(test.lon); have != test.want {
			t.Errorf("lon %g: have %v, want %v", test.lon, have, test.want)
		}
	}
}

func TestNominalTime(t *testing.T) {
	utc := time.Date(2025, 5, 1, 20, 30, 0, 0, time.UTC)
	it := &Item{ID: "a", Datetime: utc, BBox: lonBox(150.5)}
	if have, want := it.NominalDate(), "2025-05-02"; have != want {
		t.Errorf("have %s, want %s", have, want)
	}
	if have, want := it.Nominal(), utc.Add(10*time.Hour); !have.Equal(want) {
		t.Errorf("have %v, want %v", have, want)
	}
	if have := NominalTime(utc, nil); !have.Equal(utc) {
		t.Errorf("nil footprint: have %v, want %v", have, utc)
	}
}

func TestDeduplicate(t *testing.T) {
	const base = "S3B_OL_1_EFR____20250501T100000_20250501T100300_"
	items := []*Item{
		{ID: base + "20250501T120000_0179_064_122_2160_ESA_O_NR_004"},
		{ID: base + "20250503T120000_0179_064_122_2160_ESA_O_NT_004"},
		{ID: base + "20250502T120000_0179_064_122_2160_ESA_O_NT_004"},
		{ID: "S3A_OL_1_EFR____20250601T100000_20250601T100300_20250601T120000_NR_004"},
		{ID: "S3A_OL_1_EFR____20250601T100000_20250601T100300_20250602T120000_NR_004"},
	}
	w, hook := testWarnings()
	out := Deduplicate(items, w)
	if len(out) != 2 {
		t.Fatalf("have %d items, want 2", len(out))
	}
	if out[0] != items[1] {
		t.Errorf("reprocessed: have %s, want %s", out[0].ID, items[1].ID)
	}
	if out[1] != items[4] {
		t.Errorf("near real time: have %s, want %s", out[1].ID, items[4].ID)
	}
	if len(hook.AllEntries()) != 0 {
		t.Errorf("unexpected warnings: %v", hook.AllEntries())
	}
}

func TestDeduplicateDropsUntagged(t *testing.T) {
	items := []*Item{
		{ID: "S3A_X_20250601T100000_20250601T100300_20250601T120000_XX_004"},
	}
	if out := Deduplicate(items, nil); len(out) != 0 {
		t.Errorf("have %d items, want 0", len(out))
	}
}

func TestBaseAcquisitionIDMalformed(t *testing.T) {
	w, hook := testWarnings()
	const id = "S3A_OL_1_EFR____20250501T100000_NT_004"
	if have := BaseAcquisitionID(id, w); have != id {
		t.Errorf("have %s, want %s", have, id)
	}
	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("have %d warnings, want 1", len(entries))
	}
	if !strings.Contains(entries[0].Message, "does not contain 3 timestamp") {
		t.Errorf("unexpected message %q", entries[0].Message)
	}

	out := Deduplicate([]*Item{{ID: id}}, w)
	if len(out) != 1 || out[0].ID != id {
		t.Errorf("malformed identifier should pass through, have %v", out)
	}
}

func TestBaseAcquisitionID(t *testing.T) {
	const id = "S3B_OL_1_EFR____20250501T100000_20250501T100300_20250502T120000"
	want := "S3B_OL_1_EFR____20250501T100000_20250501T100300"
	if have := BaseAcquisitionID(id, nil); have != want {
		t.Errorf("have %s, want %s", have, want)
	}
}
