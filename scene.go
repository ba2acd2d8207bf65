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
	"context"
	"errors"
	"fmt"
)

// sceneProduct assembles untiled scene products, such as Sentinel-3
// acquisitions, by opening every scene directly onto the target grid.
type sceneProduct struct {
	spec *ProductSpec
}

func (p *sceneProduct) Spec() *ProductSpec { return p.spec }

func (p *sceneProduct) Schema() Schema {
	return schemaFor(p.spec, "time_range", "bbox", "spatial_res")
}

// SearchParams queries the catalog with the geographic footprint of the
// request.
func (p *sceneProduct) SearchParams(op *OpenParams) (SearchParams, error) {
	b, err := op.Bounds()
	if err != nil {
		return SearchParams{}, err
	}
	g, err := ReprojectBBox(b, op.CRS, Geographic, 0)
	if err != nil {
		return SearchParams{}, err
	}
	dt, err := datetimeInterval(op)
	if err != nil {
		return SearchParams{}, err
	}
	return SearchParams{
		Collections: []string{p.spec.Collection},
		Datetime:    dt,
		Intersects:  BBoxPolygon(g),
		Query:       op.Query,
	}, nil
}

func (p *sceneProduct) Open(ctx context.Context, env *Env, items []*Item, op *OpenParams) (*Dataset, error) {
	vars, err := p.spec.Select(op.Variables)
	if err != nil {
		return nil, err
	}
	bbox, err := op.Bounds()
	if err != nil {
		return nil, err
	}
	if p.spec.Deduplicate {
		items = Deduplicate(items, env.Warnings)
	}
	g := GroupByDate(items)
	grid := NewTargetGrid(op.CRS, bbox, op.SpatialRes)
	chunk := p.spec.ChunkSize
	if op.TileSize > 0 {
		chunk = op.TileSize
	}
	opts := OpenOptions{
		Resolution:   op.SpatialRes,
		CRS:          op.CRS,
		BBox:         bbox,
		Grid:         &grid,
		Variables:    vars,
		Categorical:  p.spec.Categorical,
		SplineOrders: op.Splines(),
		AggMethods:   op.AggMethods,
		ChunkSize:    chunk,
		Warnings:     env.Warnings,
	}
	slices := make([]*Dataset, len(g.Dates))
	for t := range g.Dates {
		var scenes []*Dataset
		for _, it := range g.Items(t) {
			ds, ok, err := openItem(ctx, env, p.spec, it, opts)
			if err != nil {
				return nil, err
			}
			if ok {
				scenes = append(scenes, ds)
			}
		}
		if len(scenes) == 0 {
			env.Log.WithField("date", g.Dates[t]).Debug("no scene intersects the requested bbox")
			continue
		}
		if slices[t], err = Mosaic(scenes); err != nil {
			return nil, err
		}
	}
	ds, err := Stack(slices, g.Times, chunk)
	if errors.Is(err, ErrNoDatasets) {
		return nil, fmt.Errorf("eocube: none of the %d items intersect bbox %v", len(items), op.BBox)
	} else if err != nil {
		return nil, err
	}
	CheckPolicies(ds.Vars, p.spec.Categorical, op.Splines(), op.AggMethods, env.Warnings)
	ds.Attrs["crs"] = grid.CRS
	ds.Attrs["stac_items"] = g.ItemIDs()
	return ds, nil
}
