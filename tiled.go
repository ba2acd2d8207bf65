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
	"fmt"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// tiledProduct assembles products delivered as fixed-grid tiles in
// several native CRSs, such as Sentinel-2 MGRS tiles.
type tiledProduct struct {
	spec *ProductSpec
}

func (p *tiledProduct) Spec() *ProductSpec { return p.spec }

func (p *tiledProduct) Schema() Schema {
	return schemaFor(p.spec, "time_range", "bbox", "crs", "spatial_res")
}

// SearchParams queries the catalog with the request bbox in geographic
// coordinates.
func (p *tiledProduct) SearchParams(op *OpenParams) (SearchParams, error) {
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
		BBox:        []float64{g.Min.X, g.Min.Y, g.Max.X, g.Max.Y},
		Query:       op.Query,
	}, nil
}

// zoneBuffer grows the requested bbox, as a fraction of its size, when it
// is transformed to a different zone CRS, so that reprojection has data
// up to the edges.
const zoneBuffer = 0.02

func (p *tiledProduct) Open(ctx context.Context, env *Env, items []*Item, op *OpenParams) (*Dataset, error) {
	vars, err := p.spec.Select(op.Variables)
	if err != nil {
		return nil, err
	}
	bbox, err := op.Bounds()
	if err != nil {
		return nil, err
	}
	g := GroupByDateTile(items, p.spec.MaxItemsPerCell, env.Warnings)
	zones := PartitionZones(g)

	var canvases []*Dataset
	for _, z := range zones {
		c, err := p.openZone(ctx, env, g, z, vars, bbox, op)
		if err != nil {
			return nil, err
		}
		if c != nil {
			canvases = append(canvases, c)
		}
	}
	if len(canvases) == 0 {
		return nil, fmt.Errorf("eocube: none of the %d items intersect bbox %v", len(items), op.BBox)
	}

	ds, err := MergeZones(canvases, Target{
		CRS:          op.CRS,
		Resolution:   op.SpatialRes,
		BBox:         bbox,
		TileSize:     op.TileSize,
		SplineOrders: op.Splines(),
		AggMethods:   op.AggMethods,
		Categorical:  p.spec.Categorical,
	}, env.Warnings)
	if err != nil {
		return nil, err
	}
	ds.Attrs["stac_items"] = g.ItemIDs()
	return ds, nil
}

// openZone builds the canvas of one CRS zone and inserts every
// intersecting tile into it. It returns nil if no tile has pixels inside
// the requested bbox.
func (p *tiledProduct) openZone(ctx context.Context, env *Env, g *GroupIndex, z Zone,
	vars []VariableSpec, bbox *geom.Bounds, op *OpenParams) (*Dataset, error) {
	buffer := 0.
	if !SameCRS(op.CRS, z.CRS) {
		buffer = zoneBuffer
	}
	zoneBBox, err := ReprojectBBox(bbox, op.CRS, z.CRS, buffer)
	if err != nil {
		return nil, err
	}
	res := p.spec.NativeResolution(ResolutionIn(op.SpatialRes, op.CRS, z.CRS))

	union := geom.NewBounds()
	for _, k := range z.Tiles {
		for t := range g.Dates {
			for _, it := range g.Cell(t, k) {
				nb := it.NativeBBox
				if nb == nil {
					// Native tiles lie on multiples of the pixel size.
					if nb, err = ReprojectBBox(it.BBox, Geographic, z.CRS, 0); err != nil {
						return nil, err
					}
					nb = SnapBounds(nb, res)
				}
				union.Extend(nb)
			}
		}
	}
	log := env.Log.WithFields(logrus.Fields{"crs": z.CRS, "tiles": len(z.Tiles), "resolution": res})
	log.Debug("assembling zone")

	opts := OpenOptions{
		Resolution:   res,
		CRS:          z.CRS,
		BBox:         zoneBBox,
		Variables:    vars,
		Categorical:  p.spec.Categorical,
		SplineOrders: op.Splines(),
		AggMethods:   op.AggMethods,
		ChunkSize:    p.spec.ChunkSize,
		Warnings:     env.Warnings,
	}
	var canvas *Canvas
	for t := range g.Dates {
		for _, k := range z.Tiles {
			var tiles []*Dataset
			for _, it := range g.Cell(t, k) {
				ds, ok, err := openItem(ctx, env, p.spec, it, opts)
				if err != nil {
					return nil, err
				}
				if ok {
					tiles = append(tiles, ds)
				}
			}
			if len(tiles) == 0 {
				continue
			}
			m, err := Mosaic(tiles)
			if err != nil {
				return nil, err
			}
			if canvas == nil {
				canvas, err = BuildCanvas(m, CanvasConfig{
					Times:        g.Times,
					Union:        union,
					BBox:         zoneBBox,
					Resolution:   res,
					ChunkSize:    p.spec.ChunkSize,
					MetadataKeys: p.spec.MetadataKeys,
					LongNames:    p.spec.longNames(),
				})
				if err != nil {
					return nil, err
				}
			}
			if err := canvas.Insert(m, t); err != nil {
				return nil, fmt.Errorf("eocube: inserting tile %s on %s: %w", g.Tiles[k], g.Dates[t], err)
			}
		}
	}
	if canvas == nil {
		log.Debug("no tile of the zone intersects the requested bbox")
		return nil, nil
	}
	return canvas.Dataset, nil
}
