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

// Package eocube assembles analysis-ready spatiotemporal data cubes from
// satellite imagery tiles found through a catalog search.
package eocube

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.3.0"

const (
	// DataType is the only data type served by a Store.
	DataType = "dataset"

	// OpenerID identifies the opener used by a Store.
	OpenerID = "dataset:zarr:eopf-zarr"
)

// Store serves data cubes for a set of products.
type Store struct {
	Catalog  Catalog
	Opener   Opener
	Products Products

	// CatalogURL is recorded in the attributes of every cube.
	CatalogURL string

	Log logrus.FieldLogger
}

// NewStore returns a store serving the built-in products.
func NewStore(catalog Catalog, opener Opener, catalogURL string) *Store {
	return &Store{
		Catalog:    catalog,
		Opener:     opener,
		Products:   DefaultProducts(),
		CatalogURL: catalogURL,
		Log:        logrus.StandardLogger(),
	}
}

// DataTypes returns the data types the store can serve.
func (s *Store) DataTypes() []string { return []string{DataType} }

// DataIDs returns the sorted product identifiers.
func (s *Store) DataIDs() []string { return s.Products.IDs() }

func checkDataType(dataType string) error {
	if dataType != "" && dataType != DataType {
		return &StoreError{Msg: fmt.Sprintf("Data type must be '%s' or None, but got '%s'.", DataType, dataType)}
	}
	return nil
}

// HasData reports whether the store serves dataID as dataType, which may
// be empty.
func (s *Store) HasData(dataID, dataType string) (bool, error) {
	if err := checkDataType(dataType); err != nil {
		return false, err
	}
	_, ok := s.Products[dataID]
	return ok, nil
}

func (s *Store) product(dataID string) (Product, error) {
	p, ok := s.Products[dataID]
	if !ok {
		return nil, &StoreError{Msg: fmt.Sprintf("Data resource '%s' is not available.", dataID)}
	}
	return p, nil
}

// DataOpenerIDs returns the identifiers of the openers for dataID.
func (s *Store) DataOpenerIDs(dataID string) ([]string, error) {
	if _, err := s.product(dataID); err != nil {
		return nil, err
	}
	return []string{OpenerID}, nil
}

// OpenParamsSchema returns the parameters accepted when opening dataID.
// openerID may be empty.
func (s *Store) OpenParamsSchema(dataID, openerID string) (Schema, error) {
	if openerID != "" && openerID != OpenerID {
		return Schema{}, &StoreError{Msg: fmt.Sprintf(
			"Data opener identifier must be '%s', but got '%s'.", OpenerID, openerID)}
	}
	p, err := s.product(dataID)
	if err != nil {
		return Schema{}, err
	}
	return p.Schema(), nil
}

// OpenData searches the catalog and assembles the cube of dataID. The
// parameters are validated before any catalog or storage access.
func (s *Store) OpenData(ctx context.Context, dataID string, params *OpenParams) (*Dataset, error) {
	p, err := s.product(dataID)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(p.Schema()); err != nil {
		return nil, err
	}
	sp, err := p.SearchParams(params)
	if err != nil {
		return nil, err
	}

	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"request": uuid.NewString(), "data_id": dataID})
	env := &Env{
		Opener:   s.Opener,
		Log:      log,
		Warnings: NewWarnings(log, params.SuppressWarnings...),
	}

	start := time.Now()
	items, err := s.Catalog.Search(ctx, sp)
	if err != nil {
		return nil, fmt.Errorf("eocube: catalog search: %w", err)
	}
	if len(items) == 0 {
		return nil, &NoDataFoundError{SearchParams: sp}
	}
	log.WithField("items", len(items)).Info("catalog search complete")

	ds, err := p.Open(ctx, env, items, params)
	if err != nil {
		return nil, err
	}
	ds.Attrs["stac_url"] = s.CatalogURL
	ds.Attrs["open_params"] = params.Map()
	ds.Attrs["eocube_version"] = Version
	log.WithFields(logrus.Fields{
		"duration":  time.Since(start),
		"times":     len(ds.Times),
		"nx":        ds.Grid.Nx,
		"ny":        ds.Grid.Ny,
		"variables": len(ds.Vars),
	}).Info("cube assembled")
	return ds, nil
}
