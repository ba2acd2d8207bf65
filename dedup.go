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
	"regexp"
	"strings"
)

var timestampRegexp = regexp.MustCompile(`\d{8}T\d{6}`)

const (
	reprocessedTag  = "_NT_"
	nearRealTimeTag = "_NR_"
)

// BaseAcquisitionID strips the final embedded processing timestamp from a
// Sentinel-3 style identifier so that items from different processing runs
// of the same acquisition share a key. Identifiers that do not carry
// exactly three timestamps are reported through w and returned unchanged.
func BaseAcquisitionID(id string, w *Warnings) string {
	ts := timestampRegexp.FindAllString(id, -1)
	if len(ts) != 3 {
		w.Warn(WarnMalformedID, fmt.Sprintf("Item ID '%s' does not contain 3 timestamp. "+
			"No filtering applied for this item.", id))
		return id
	}
	i := strings.LastIndex(id, "_"+ts[2])
	if i < 0 {
		return id
	}
	return id[:i]
}

// processingTime returns the last embedded timestamp of id, which sorts
// lexically in time order.
func processingTime(id string) string {
	ts := timestampRegexp.FindAllString(id, -1)
	if len(ts) == 0 {
		return ""
	}
	return ts[len(ts)-1]
}

// Deduplicate collapses competing processing variants of the same
// acquisition to a single item. Within each acquisition the reprocessed
// (NT) variant with the latest processing time wins; if there is none the
// latest near-real-time (NR) variant is used; otherwise the acquisition is
// dropped. Items whose identifier cannot be parsed are kept as they are.
// Acquisitions are returned in order of first appearance.
func Deduplicate(items []*Item, w *Warnings) []*Item {
	var order []string
	groups := make(map[string][]*Item)
	for _, it := range items {
		key := BaseAcquisitionID(it.ID, w)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], it)
	}
	out := make([]*Item, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 && key == group[0].ID {
			// Unparseable identifier.
			out = append(out, group[0])
			continue
		}
		if it := latest(group, reprocessedTag); it != nil {
			out = append(out, it)
		} else if it := latest(group, nearRealTimeTag); it != nil {
			out = append(out, it)
		}
	}
	return out
}

func latest(group []*Item, tag string) *Item {
	var best *Item
	for _, it := range group {
		if !strings.Contains(it.ID, tag) {
			continue
		}
		if best == nil || processingTime(it.ID) > processingTime(best.ID) {
			best = it
		}
	}
	return best
}
