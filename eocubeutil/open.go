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


package eocubeutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spatialmodel/eocube"
	"github.com/spatialmodel/eocube/cloud"
	"github.com/spf13/cast"
)

// openCube assembles the cube of product id described by the
// configuration.
func openCube(ctx context.Context, id string) (*eocube.Dataset, error) {
	if id == "" {
		return nil, fmt.Errorf("eocube: a data-id must be given")
	}
	s, err := newStore()
	if err != nil {
		return nil, err
	}
	schema, err := s.OpenParamsSchema(id, "")
	if err != nil {
		return nil, err
	}
	p, err := openParams(schema)
	if err != nil {
		return nil, err
	}
	return s.OpenData(ctx, id, p)
}

// openParams converts the configuration into validated open parameters.
func openParams(schema eocube.Schema) (*eocube.OpenParams, error) {
	m := make(map[string]interface{})
	if bbox := Cfg.GetStringSlice("bbox"); len(bbox) > 0 {
		b := make([]float64, len(bbox))
		for i, v := range bbox {
			f, err := cast.ToFloat64E(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("eocube: invalid bbox value %q", v)
			}
			b[i] = f
		}
		m["bbox"] = b
	}
	if tr := Cfg.GetStringSlice("time-range"); len(tr) > 0 {
		m["time_range"] = tr
	}
	if crs := Cfg.GetString("crs"); crs != "" {
		m["crs"] = crs
	}
	if res := Cfg.GetFloat64("spatial-res"); res != 0 {
		m["spatial_res"] = res
	}
	if v := Cfg.GetStringSlice("variables"); len(v) > 0 {
		m["variables"] = v
	}
	if ts := Cfg.GetInt("tile-size"); ts != 0 {
		m["tile_size"] = ts
	}
	if w := Cfg.GetStringSlice("suppress-warnings"); len(w) > 0 {
		m["suppress_warnings"] = w
	}
	if q := Cfg.GetString("query"); q != "" {
		var query map[string]interface{}
		if err := json.Unmarshal([]byte(q), &query); err != nil {
			return nil, fmt.Errorf("eocube: query must be a JSON object: %v", err)
		}
		m["query"] = query
	}
	for key, name := range map[string]string{"spline_orders": "spline-orders", "agg_methods": "agg-methods"} {
		if v := strings.TrimSpace(Cfg.GetString(name)); v != "" {
			if json.Valid([]byte(v)) {
				m[key] = json.RawMessage(v)
			} else {
				m[key] = v
			}
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return eocube.ParseOpenParams(b, schema)
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f, ext string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("eocube: you need to specify an output file (for example: --output=cube%s)", ext)
	}
	f = os.ExpandEnv(f)
	if cloud.IsBucketURL(f) {
		return f, nil
	}
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("eocube: the output directory doesn't exist: %v", err)
	}
	return f, nil
}

// writeOutput calls write with a file that ends up at path. Output to
// blob storage is written to a temporary file first and then uploaded.
func writeOutput(ctx context.Context, path string, write func(*os.File) error) error {
	if !cloud.IsBucketURL(path) {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("eocube: creating output file: %v", err)
		}
		if err := write(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	f, err := os.CreateTemp("", "eocube*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("eocube: creating temporary file for upload: %v", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()
	if err := write(f); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := cloud.WriteBlob(ctx, path, f); err != nil {
		return fmt.Errorf("eocube: uploading %s: %v", path, err)
	}
	return nil
}
