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


package stac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/eocube"
)

func testClient(url string) *Client {
	c := NewClient(url)
	c.Limiter = nil
	c.RetryInterval = time.Millisecond
	c.Log, _ = test.NewNullLogger()
	return c
}

const s2Item = `{
	"type": "Feature",
	"stac_version": "1.0.0",
	"id": "%s",
	"collection": "sentinel-2-l2a",
	"bbox": [8.9, 45.9, 10.3, 46.9],
	"geometry": {"type": "Polygon", "coordinates": [[[8.9, 45.9], [10.3, 45.9], [10.3, 46.9], [8.9, 46.9], [8.9, 45.9]]]},
	"properties": {
		"datetime": "2025-05-01T10:15:59.024000Z",
		"proj:code": "EPSG:32632",
		"proj:bbox": [499980, 5090220, 609780, 5200020],
		"grid:code": "MGRS-32TNS"
	},
	"assets": {"product": {"href": "https://objects.eodc.eu/%s.zarr", "roles": ["data"]}}
}`

func TestSearchPaging(t *testing.T) {
	var bodies []map[string]interface{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		switch {
		case r.Method == http.MethodPost:
			var b map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			bodies = append(bodies, b)
			if b["token"] == nil {
				fmt.Fprintf(w, `{"type": "FeatureCollection", "features": [%s, %s],
					"links": [{"rel": "next", "href": "%s/search", "method": "POST", "body": {"token": "p2"}, "merge": true}]}`,
					fmt.Sprintf(s2Item, "a", "a"), fmt.Sprintf(s2Item, "b", "b"), srv.URL)
				return
			}
			fmt.Fprintf(w, `{"type": "FeatureCollection", "features": [%s, %s],
				"links": [{"rel": "next", "href": "%s/search?token=p3"}]}`,
				fmt.Sprintf(s2Item, "b", "b"), fmt.Sprintf(s2Item, "c", "c"), srv.URL)
		case r.URL.Query().Get("token") == "p3":
			fmt.Fprintf(w, `{"type": "FeatureCollection", "features": [%s], "links": [{"rel": "self", "href": "x"}]}`,
				fmt.Sprintf(s2Item, "d", "d"))
		default:
			http.Error(w, "bad page", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.PageSize = 2
	items, err := c.Search(context.Background(), eocube.SearchParams{
		Collections: []string{"sentinel-2-l2a"},
		Datetime:    "2025-05-01T00:00:00Z/2025-05-02T23:59:59Z",
		BBox:        []float64{9, 46, 10, 46.5},
	})
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if fmt.Sprint(ids) != "[a b c d]" {
		t.Errorf("ids %v", ids)
	}
	if len(bodies) != 2 {
		t.Fatalf("have %d POST requests, want 2", len(bodies))
	}
	if bodies[0]["limit"] != 2.0 || bodies[0]["datetime"] != "2025-05-01T00:00:00Z/2025-05-02T23:59:59Z" {
		t.Errorf("first body %v", bodies[0])
	}
	// Merged next bodies keep the query.
	if bodies[1]["token"] != "p2" || bodies[1]["collections"] == nil {
		t.Errorf("second body %v", bodies[1])
	}
}

func TestItemDecoding(t *testing.T) {
	var f feature
	if err := json.Unmarshal([]byte(fmt.Sprintf(s2Item, "S2B_MSIL2A_20250501", "p")), &f); err != nil {
		t.Fatal(err)
	}
	it, err := f.item()
	if err != nil {
		t.Fatal(err)
	}
	if !it.Datetime.Equal(time.Date(2025, 5, 1, 10, 15, 59, 24e6, time.UTC)) {
		t.Errorf("datetime %v", it.Datetime)
	}
	if it.CRS != "EPSG:32632" || it.Tile != "MGRS-32TNS" {
		t.Errorf("crs %s, tile %s", it.CRS, it.Tile)
	}
	if it.NativeBBox == nil || it.NativeBBox.Min.X != 499980 || it.NativeBBox.Max.Y != 5200020 {
		t.Errorf("native bbox %v", it.NativeBBox)
	}
	if it.BBox.Min.X != 8.9 || it.BBox.Max.Y != 46.9 {
		t.Errorf("bbox %v", it.BBox)
	}
	if href, _ := it.Asset("product"); href != "https://objects.eodc.eu/p.zarr" {
		t.Errorf("asset %s", href)
	}

	// Geometry only, EPSG number and a start datetime.
	s3 := `{"id": "S3A_OL_1_EFR", "collection": "sentinel-3-olci-l1-efr",
		"geometry": {"type": "Polygon", "coordinates": [[[1, 40], [5, 40], [5, 44], [1, 44], [1, 40]]]},
		"properties": {"datetime": null, "start_datetime": "2025-05-01T09:58:00Z", "proj:epsg": 4326}}`
	f = feature{}
	if err := json.Unmarshal([]byte(s3), &f); err != nil {
		t.Fatal(err)
	}
	if it, err = f.item(); err != nil {
		t.Fatal(err)
	}
	if it.CRS != "EPSG:4326" || it.Tile != "" || it.NativeBBox != nil {
		t.Errorf("have crs %q, tile %q, native bbox %v", it.CRS, it.Tile, it.NativeBBox)
	}
	if it.BBox.Min.X != 1 || it.BBox.Min.Y != 40 || it.BBox.Max.X != 5 || it.BBox.Max.Y != 44 {
		t.Errorf("bbox from geometry %v", it.BBox)
	}

	for _, bad := range []string{
		`{"properties": {"datetime": "2025-05-01T00:00:00Z"}, "bbox": [0, 0, 1, 1]}`,
		`{"id": "x", "properties": {"datetime": "yesterday"}, "bbox": [0, 0, 1, 1]}`,
		`{"id": "x", "properties": {"datetime": "2025-05-01T00:00:00Z"}}`,
	} {
		f = feature{}
		if err := json.Unmarshal([]byte(bad), &f); err != nil {
			t.Fatal(err)
		}
		if _, err := f.item(); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func TestSearchRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			http.Error(w, "slow down", http.StatusTooManyRequests)
		case 2:
			http.Error(w, "oops", http.StatusBadGateway)
		default:
			fmt.Fprint(w, `{"type": "FeatureCollection", "features": []}`)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	log, hook := test.NewNullLogger()
	c.Log = log
	items, err := c.Search(context.Background(), eocube.SearchParams{Collections: []string{"x"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("have %d items after %d calls", len(items), calls)
	}
	if n := len(hook.AllEntries()); n < 2 {
		t.Errorf("have %d log entries, want a warning per failed attempt", n)
	}
}

func TestSearchPermanentError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"code": "BadRequest"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Search(context.Background(), eocube.SearchParams{Collections: []string{"x"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("client error retried: %d calls", calls)
	}
	var se *statusError
	if !errors.As(err, &se) || se.status != http.StatusBadRequest {
		t.Errorf("have %#v, want a status error", err)
	}
}

func TestSearchGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.MaxRetries = 2
	if _, err := c.Search(context.Background(), eocube.SearchParams{}); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("have %d calls, want 3", calls)
	}
}
