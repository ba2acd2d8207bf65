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

package hash

import (
	"math"
	"testing"
)

func TestChunk(t *testing.T) {
	a := Chunk("s3://b/p.zarr", "b02/0.0")
	if a != Chunk("s3://b/p.zarr", "b02/0.0") {
		t.Error("equal requests should have equal keys")
	}
	for _, b := range []string{
		Chunk("s3://b/p.zarr", "b02/0.1"),
		Chunk("s3://b/p.zarr/b02", "0.0"),
		Chunk("s3://b/q.zarr", "b02/0.0"),
	} {
		if a == b {
			t.Errorf("key %s should differ", b)
		}
	}
	if len(a) != 32 {
		t.Errorf("key %q should have 32 hex digits", a)
	}
}

func TestKeyNaN(t *testing.T) {
	type window struct {
		Fill  float64
		Attrs map[string]float64
	}
	w := window{Fill: math.NaN(), Attrs: map[string]float64{"scale": 0.0001, "offset": -0.1}}
	if Key(w) != Key(w) {
		t.Error("NaN fields should key deterministically")
	}
	if Key(w) == Key(window{Fill: 0, Attrs: w.Attrs}) {
		t.Error("fill values should be part of the key")
	}
}
