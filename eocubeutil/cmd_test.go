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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eocube"
	"github.com/spatialmodel/eocube/stac"
)

// constOpener returns products on one 10 m tile filled with a constant.
type constOpener struct {
	g eocube.Grid
	v float64
}

func (o constOpener) Open(_ context.Context, _ string, opts eocube.OpenOptions) (*eocube.Dataset, error) {
	ds := &eocube.Dataset{Grid: o.g, Attrs: map[string]interface{}{}}
	for _, vs := range opts.Variables {
		d := sparse.ZerosDense(o.g.Ny, o.g.Nx)
		for i := range d.Elements {
			d.Elements[i] = o.v
		}
		ds.Vars = append(ds.Vars, &eocube.Variable{
			Name:  vs.Name,
			Dims:  []string{"y", "x"},
			DType: "uint16",
			Attrs: map[string]interface{}{"long_name": vs.Name},
			Data:  eocube.NewDense(d, nil),
		})
	}
	return eocube.Regrid(ds, opts)
}

const testItem = `{"type": "FeatureCollection", "features": [{
	"type": "Feature", "id": "S2A_MSIL2A_20250501T101601_T32TNR", "collection": "sentinel-2-l2a",
	"bbox": [8.99, 45.14, 9.01, 45.16],
	"properties": {"datetime": "2025-05-01T10:16:01Z", "proj:code": "EPSG:32632",
		"proj:bbox": [500000, 5000000, 500100, 5000100], "grid:code": "MGRS-32TNR"},
	"assets": {"product": {"href": "https://example.com/p.zarr"}}}]}`

// testConfig starts a catalog serving one item, replaces the store with
// one reading a constant tile and returns a configuration file
// describing a 4 × 4 cube.
func testConfig(t *testing.T) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testItem)
	}))
	t.Cleanup(srv.Close)
	tile := eocube.AlignedGrid("EPSG:32632",
		&geom.Bounds{Min: geom.Point{X: 500000, Y: 5000000}, Max: geom.Point{X: 500100, Y: 5000100}}, 10)
	newStore = func() (*eocube.Store, error) {
		c := stac.NewClient(srv.URL)
		c.Limiter = nil
		return eocube.NewStore(c, constOpener{g: tile, v: 7}, srv.URL), nil
	}

	cfg := filepath.Join(t.TempDir(), "eocube.toml")
	err := os.WriteFile(cfg, []byte(`
data-id = "sentinel-2-l2a"
bbox = [500020, 5000020, 500060, 5000060]
time-range = ["2025-05-01", "2025-05-01"]
crs = "EPSG:32632"
spatial-res = 10.0
variables = ["b02", "scl"]
tile-size = 2
log-level = "warning"
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs(args)
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	return out.String()
}

func TestVersion(t *testing.T) {
	if out := execute(t, "version"); !strings.Contains(out, eocube.Version) {
		t.Errorf("version output %q", out)
	}
}

func TestList(t *testing.T) {
	testConfig(t)
	out := execute(t, "list")
	for _, id := range []string{"sentinel-2-l1c", "sentinel-2-l2a", "sentinel-3-olci-l1-efr"} {
		if !strings.Contains(out, id+"\n") {
			t.Errorf("list output is missing %s:\n%s", id, out)
		}
	}
}

func TestSchema(t *testing.T) {
	testConfig(t)
	var s eocube.Schema
	if err := json.Unmarshal([]byte(execute(t, "schema", "sentinel-2-l2a")), &s); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(s.Required) != "[time_range bbox crs spatial_res]" {
		t.Errorf("required %v", s.Required)
	}
	found := false
	for _, v := range s.Variables {
		found = found || v == "scl"
	}
	if !found {
		t.Errorf("variables %v", s.Variables)
	}
}

func TestOpen(t *testing.T) {
	cfg := testConfig(t)
	output := filepath.Join(t.TempDir(), "cube.nc")
	out := execute(t, "open", "--config", cfg, "--output", output)
	if !strings.Contains(out, "wrote 1 time steps") {
		t.Errorf("open output %q", out)
	}
	f, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	if l := nc.Header.Lengths("b02"); fmt.Sprint(l) != "[1 4 4]" {
		t.Errorf("b02 lengths %v", l)
	}
	if u := nc.Header.GetAttribute("", "stac_url"); u == nil {
		t.Error("missing stac_url attribute")
	}
	r := nc.Reader("b02", nil, nil)
	buf := r.Zero(16)
	if _, err := r.Read(buf); err != nil {
		t.Fatal(err)
	}
	for i, v := range buf.([]float32) {
		if v != 7 {
			t.Errorf("b02 element %d = %g, want 7", i, v)
		}
	}
}

func TestPreview(t *testing.T) {
	cfg := testConfig(t)
	output := filepath.Join(t.TempDir(), "b02.png")
	execute(t, "preview", "--config", cfg, "--output", output, "--variable", "b02")
	b, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("output is not a PNG image")
	}
}

func TestOpenParams(t *testing.T) {
	cfg := testConfig(t)
	Cfg.Set("config", cfg)
	defer Cfg.Set("config", "")
	if err := setConfig(); err != nil {
		t.Fatal(err)
	}
	Cfg.Set("spline-orders", "1")
	Cfg.Set("agg-methods", `{"mode": ["scl"], "max": "b02"}`)
	Cfg.Set("query", `{"eo:cloud_cover": {"lt": 20}}`)
	defer func() {
		Cfg.Set("spline-orders", "")
		Cfg.Set("agg-methods", "")
		Cfg.Set("query", "")
	}()
	s, err := newStore()
	if err != nil {
		t.Fatal(err)
	}
	schema, err := s.OpenParamsSchema("sentinel-2-l2a", "")
	if err != nil {
		t.Fatal(err)
	}
	p, err := openParams(schema)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(p.BBox) != "[500020 5000020 500060 5000060]" || p.SpatialRes != 10 || p.TileSize != 2 {
		t.Errorf("params %+v", p)
	}
	if so := p.Splines(); so == nil || so.All == nil || *so.All != eocube.Linear {
		t.Errorf("spline orders %+v", so)
	}
	if p.AggMethods == nil || p.AggMethods.ByKey["scl"] != eocube.AggMode || p.AggMethods.ByKey["b02"] != eocube.AggMax {
		t.Errorf("aggregation methods %+v", p.AggMethods)
	}
	if _, ok := p.Query["eo:cloud_cover"]; !ok {
		t.Errorf("query %v", p.Query)
	}

	Cfg.Set("query", "not json")
	if _, err := openParams(schema); err == nil {
		t.Error("expected error for invalid query")
	}
}

func TestCheckOutputFile(t *testing.T) {
	if _, err := checkOutputFile("", ".nc"); err == nil {
		t.Error("expected error for missing output")
	}
	if _, err := checkOutputFile(filepath.Join(t.TempDir(), "missing", "cube.nc"), ".nc"); err == nil {
		t.Error("expected error for missing directory")
	}
	if f, err := checkOutputFile("gs://bucket/cube.nc", ".nc"); err != nil || f != "gs://bucket/cube.nc" {
		t.Errorf("have %q, %v", f, err)
	}
}
