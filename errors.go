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
	"errors"
	"fmt"
)

var (
	// ErrNoDataFound is matched by errors returned when a catalog search
	// finds no items.
	ErrNoDataFound = errors.New("no data found")

	// ErrGridAlignment is matched by errors returned when a tile does not
	// line up with the canvas it is inserted into.
	ErrGridAlignment = errors.New("grid alignment fault")

	// ErrNoDatasets is returned when mosaicking an empty list.
	ErrNoDatasets = errors.New("eocube: no datasets to mosaic")
)

// NoDataFoundError is returned when a catalog search returns no items.
type NoDataFoundError struct {
	SearchParams SearchParams
}

func (e *NoDataFoundError) Error() string {
	b, err := json.Marshal(e.SearchParams)
	if err != nil {
		return fmt.Sprintf("No items found for search_params %+v.", e.SearchParams)
	}
	return fmt.Sprintf("No items found for search_params %s.", b)
}

// Is makes errors.Is(err, ErrNoDataFound) true.
func (e *NoDataFoundError) Is(target error) bool { return target == ErrNoDataFound }

// GridAlignmentError indicates that a tile's coordinates do not exist in the
// canvas index. It is a programming error upstream.
type GridAlignmentError struct {
	Dim    string
	Coord  float64
	Reason string
}

func (e *GridAlignmentError) Error() string {
	if e.Reason != "" {
		return "eocube: grid alignment fault: " + e.Reason
	}
	return fmt.Sprintf("eocube: grid alignment fault: %s coordinate %g not found in canvas", e.Dim, e.Coord)
}

// Is makes errors.Is(err, ErrGridAlignment) true.
func (e *GridAlignmentError) Is(target error) bool { return target == ErrGridAlignment }

// StoreError reports misuse of the data store interface.
type StoreError struct {
	Msg string
}

func (e *StoreError) Error() string { return e.Msg }
