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

// Package hash derives cache keys for chunk requests.
package hash

import (
	"encoding/hex"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// printer writes a deterministic dump of a value: map keys are sorted and
// pointers are followed instead of printed.
var printer = spew.ConfigState{
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Key returns a 128-bit hex key identifying parts taken together. Parts
// are separated in the hashed dump, so ("ab", "c") and ("a", "bc")
// differ.
func Key(parts ...interface{}) string {
	h := fnv.New128a()
	for _, p := range parts {
		printer.Fprintf(h, "%#v\x00", p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Chunk returns the key of chunk key of the product at href.
func Chunk(href, key string) string {
	return Key(href, key)
}
