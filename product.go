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
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// VariableSpec describes where a product variable is stored.
type VariableSpec struct {
	Name string `toml:"name"`

	// Path is the location of the variable within the product. "{res}"
	// is replaced by the resolution in meters.
	Path string `toml:"path"`

	// Resolutions lists the resolutions at which the variable is stored.
	// It is empty when Path has no "{res}".
	Resolutions []float64 `toml:"resolutions"`

	LongName string `toml:"long_name"`
}

// PathAt returns the storage path of the variable at resolution res.
func (v VariableSpec) PathAt(res float64) string {
	return strings.ReplaceAll(v.Path, "{res}", strconv.FormatFloat(res, 'f', -1, 64))
}

// ProductSpec is the static description of a product.
type ProductSpec struct {
	ID                string         `toml:"id"`
	Title             string         `toml:"title"`
	Family            string         `toml:"family"`
	Collection        string         `toml:"collection"`
	Asset             string         `toml:"asset"`
	NativeResolutions []float64      `toml:"native_resolutions"`
	ChunkSize         int            `toml:"chunk_size"`
	MaxItemsPerCell   int            `toml:"max_items_per_cell"`
	Deduplicate       bool           `toml:"deduplicate"`
	DefaultCRS        string         `toml:"default_crs"`
	Categorical       []string       `toml:"categorical"`
	MetadataKeys      []string       `toml:"metadata_keys"`
	Variables         []VariableSpec `toml:"variable"`
}

// VariableNames returns the names of all product variables.
func (s *ProductSpec) VariableNames() []string {
	o := make([]string, len(s.Variables))
	for i, v := range s.Variables {
		o[i] = v.Name
	}
	return o
}

// Select returns the specs of the named variables, or of all variables if
// names is empty.
func (s *ProductSpec) Select(names []string) ([]VariableSpec, error) {
	if len(names) == 0 {
		return s.Variables, nil
	}
	o := make([]VariableSpec, 0, len(names))
	for _, n := range names {
		found := false
		for _, v := range s.Variables {
			if v.Name == n {
				o = append(o, v)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("eocube: product %s has no variable %q", s.ID, n)
		}
	}
	return o, nil
}

// NativeResolution returns the coarsest native resolution that is not
// coarser than res, or the finest native resolution.
func (s *ProductSpec) NativeResolution(res float64) float64 {
	r := append([]float64(nil), s.NativeResolutions...)
	sort.Float64s(r)
	if len(r) == 0 {
		return res
	}
	best := r[0]
	for _, v := range r {
		if v <= res*(1+gridTol) {
			best = v
		}
	}
	return best
}

// longNames returns the long name overrides of the product variables.
func (s *ProductSpec) longNames() map[string]string {
	m := make(map[string]string)
	for _, v := range s.Variables {
		if v.LongName != "" {
			m[v.Name] = v.LongName
		}
	}
	return m
}

// OpenOptions controls how a product is opened by an Opener.
type OpenOptions struct {
	// Resolution, CRS and BBox describe the requested window. Without
	// Grid, an opener reading a product whose native CRS is CRS and which
	// is stored at Resolution returns the native pixels intersecting BBox;
	// otherwise it resamples to NewTargetGrid(CRS, BBox, Resolution).
	Resolution float64
	CRS        string
	BBox       *geom.Bounds

	// Grid, if set, is the exact output grid.
	Grid *Grid

	Variables    []VariableSpec
	Categorical  []string
	SplineOrders *SplineOrders
	AggMethods   *AggMethods
	ChunkSize    int

	Warnings *Warnings
}

// Opener opens the product stored at href as a two-dimensional lazy
// dataset. It returns a dataset with no pixels when the product does not
// intersect the requested window.
type Opener interface {
	Open(ctx context.Context, href string, o OpenOptions) (*Dataset, error)
}

// Catalog searches for items.
type Catalog interface {
	Search(ctx context.Context, p SearchParams) ([]*Item, error)
}

// Env holds the collaborators and per-call state of an open request.
type Env struct {
	Opener   Opener
	Log      logrus.FieldLogger
	Warnings *Warnings
}

// Product is implemented by every family of products served by a Store.
type Product interface {
	Spec() *ProductSpec
	Schema() Schema
	SearchParams(p *OpenParams) (SearchParams, error)
	Open(ctx context.Context, env *Env, items []*Item, p *OpenParams) (*Dataset, error)
}

// Products maps product identifiers to products.
type Products map[string]Product

// IDs returns the sorted product identifiers.
func (p Products) IDs() []string {
	o := make([]string, 0, len(p))
	for k := range p {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

//go:embed products.toml
var productsTOML []byte

// DefaultProducts returns the built-in products.
func DefaultProducts() Products {
	p, err := LoadProducts(bytes.NewReader(productsTOML))
	if err != nil {
		panic(err)
	}
	return p
}

// LoadProducts reads product definitions in TOML format.
func LoadProducts(r io.Reader) (Products, error) {
	var f struct {
		Product []*ProductSpec `toml:"product"`
	}
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("eocube: reading product definitions: %w", err)
	}
	out := make(Products, len(f.Product))
	for _, s := range f.Product {
		if _, ok := out[s.ID]; ok {
			return nil, fmt.Errorf("eocube: duplicate product %q", s.ID)
		}
		switch s.Family {
		case "tiled":
			out[s.ID] = &tiledProduct{spec: s}
		case "scene":
			out[s.ID] = &sceneProduct{spec: s}
		default:
			return nil, fmt.Errorf("eocube: product %q has unknown family %q", s.ID, s.Family)
		}
	}
	return out, nil
}

func schemaFor(s *ProductSpec, required ...string) Schema {
	return Schema{
		Properties: allProperties,
		Required:   required,
		Variables:  s.VariableNames(),
		DefaultCRS: s.DefaultCRS,
	}
}

// openItem opens the asset of it and reports whether the result has data.
func openItem(ctx context.Context, env *Env, s *ProductSpec, it *Item, o OpenOptions) (*Dataset, bool, error) {
	href, ok := it.Asset(s.Asset)
	if !ok {
		return nil, false, fmt.Errorf("eocube: item %s has no %q asset", it.ID, s.Asset)
	}
	ds, err := env.Opener.Open(ctx, href, o)
	if err != nil {
		return nil, false, fmt.Errorf("eocube: opening %s: %w", it.ID, err)
	}
	skip := ds.Grid.Empty()
	if s.Family == "scene" {
		skip = ds.Degenerate()
	}
	if skip {
		env.Log.WithFields(logrus.Fields{"item": it.ID, "nx": ds.Grid.Nx, "ny": ds.Grid.Ny}).
			Debug("skipping item with no pixels in the requested window")
		return nil, false, nil
	}
	return ds, true, nil
}
