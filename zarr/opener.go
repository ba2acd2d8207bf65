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

package zarr

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/eocube"
	"github.com/spatialmodel/eocube/cloud"
	"github.com/spatialmodel/eocube/internal/hash"
	"gocloud.dev/blob"
)

// Opener opens regular-grid Zarr products. The root attributes of a
// product hold its CRS under "proj:code" (or "proj:epsg"); each group of
// variables holds one-dimensional "x" and "y" arrays with the pixel
// center coordinates.
type Opener struct {
	// OpenStore returns the store rooted at href. If nil, http(s) hrefs
	// are read with an HTTPStore and file, gs and s3 hrefs with a
	// BucketStore.
	OpenStore func(ctx context.Context, href string) (Store, error)

	// CacheSize is the number of decoded chunks kept in memory. The cache
	// is shared by every dataset the opener returns.
	CacheSize int

	Log logrus.FieldLogger

	once  sync.Once
	cache *requestcache.Cache

	mu      sync.Mutex
	buckets map[string]*blob.Bucket
}

var _ eocube.Opener = (*Opener)(nil)

// NewOpener returns an opener with a cache of cacheSize chunks.
func NewOpener(cacheSize int) *Opener {
	return &Opener{CacheSize: cacheSize, Log: logrus.StandardLogger()}
}

type chunkFetch struct {
	a   *Array
	key string
}

// chunk returns a decoded chunk, reading each chunk at most once while
// it stays in the cache. The result must not be modified.
func (o *Opener) chunk(ctx context.Context, href string, a *Array, key string) ([]float64, error) {
	o.once.Do(func() {
		size := o.CacheSize
		if size <= 0 {
			size = 256
		}
		o.cache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			r := req.(chunkFetch)
			return r.a.readChunk(ctx, r.key)
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(size))
	})
	req := o.cache.NewRequest(ctx, chunkFetch{a: a, key: key}, hash.Chunk(href, key))
	r, err := req.Result()
	if err != nil {
		return nil, err
	}
	return r.([]float64), nil
}

func (o *Opener) store(ctx context.Context, href string) (Store, error) {
	if o.OpenStore != nil {
		return o.OpenStore(ctx, href)
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("zarr: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return &HTTPStore{Base: href}, nil
	case "file", "gs", "s3":
		b, err := o.bucket(ctx, u)
		if err != nil {
			return nil, err
		}
		return &BucketStore{Bucket: b, Prefix: strings.Trim(u.Path, "/")}, nil
	}
	return nil, fmt.Errorf("zarr: unsupported href %s", href)
}

// bucket returns the bucket of u, opening it on first use.
func (o *Opener) bucket(ctx context.Context, u *url.URL) (*blob.Bucket, error) {
	name := u.Scheme + "://" + u.Host
	o.mu.Lock()
	defer o.mu.Unlock()
	if b, ok := o.buckets[name]; ok {
		return b, nil
	}
	b, err := cloud.OpenBucket(ctx, name)
	if err != nil {
		return nil, err
	}
	if o.buckets == nil {
		o.buckets = make(map[string]*blob.Bucket)
	}
	o.buckets[name] = b
	return b, nil
}

// Close closes the buckets opened by o.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for name, b := range o.buckets {
		if err := b.Close(); err != nil {
			return err
		}
		delete(o.buckets, name)
	}
	return nil
}

type zarrVar struct {
	spec  eocube.VariableSpec
	res   float64
	group string
	arr   *Array
}

// Open implements eocube.Opener.
func (o *Opener) Open(ctx context.Context, href string, opts eocube.OpenOptions) (*eocube.Dataset, error) {
	s, err := o.store(ctx, href)
	if err != nil {
		return nil, err
	}
	root, err := readAttributes(ctx, s, "")
	if err != nil {
		return nil, err
	}
	crs := productCRS(root)
	if crs == "" {
		return nil, fmt.Errorf("zarr: %s has no proj:code attribute", href)
	}

	grids := make(map[string]eocube.Grid)
	vars := make([]zarrVar, 0, len(opts.Variables))
	for _, vs := range opts.Variables {
		res := pickResolution(vs.Resolutions, opts.Resolution)
		p := vs.PathAt(res)
		a, err := OpenArray(ctx, s, p)
		if err != nil {
			return nil, err
		}
		a.chunks = func(ctx context.Context, a *Array, key string) ([]float64, error) {
			return o.chunk(ctx, href, a, key)
		}
		group := path.Dir(p)
		if group == "." {
			group = ""
		}
		g, ok := grids[group]
		if !ok {
			if g, err = readGrid(ctx, s, group, crs); err != nil {
				return nil, err
			}
			grids[group] = g
		}
		if sh := a.Shape(); len(sh) != 2 || sh[0] != g.Ny || sh[1] != g.Nx {
			return nil, fmt.Errorf("zarr: %s has shape %v, want [%d %d]", p, sh, g.Ny, g.Nx)
		}
		vars = append(vars, zarrVar{spec: vs, res: res, group: group, arr: a})
	}
	if len(vars) == 0 {
		return nil, fmt.Errorf("zarr: no variables requested from %s", href)
	}

	ref := grids[vars[0].group]
	for _, v := range vars {
		if g := grids[v.group]; math.Abs(g.Dx-opts.Resolution) <= opts.Resolution*1e-6 {
			ref = g
			break
		}
	}
	grid := eocube.RequestedGrid(ref, opts)
	ds := &eocube.Dataset{Grid: grid, Attrs: scalarAttrs(root, nil)}
	o.log().WithFields(logrus.Fields{"href": href, "nx": grid.Nx, "ny": grid.Ny, "crs": grid.CRS}).
		Debug("opening zarr product")
	if grid.Empty() {
		return ds, nil
	}
	for _, v := range vars {
		ev := &eocube.Variable{
			Name:  v.spec.Name,
			Dims:  []string{"y", "x"},
			DType: v.arr.DType(),
			Attrs: scalarAttrs(v.arr.Attrs, internalAttrs),
			Data:  v.arr,
		}
		rv, err := eocube.RegridVariable(ev, grids[v.group], grid, opts)
		if err != nil {
			return nil, err
		}
		ds.Vars = append(ds.Vars, rv)
	}
	return ds, nil
}

func (o *Opener) log() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

func productCRS(a Attributes) string {
	if c := a.String("proj:code"); c != "" {
		return eocube.NormalizeCRS(c)
	}
	if f, ok := a.Float("proj:epsg"); ok {
		return fmt.Sprintf("EPSG:%d", int(f))
	}
	return ""
}

// pickResolution returns res if it is available, otherwise the coarsest
// available resolution finer than res, otherwise the finest one. It
// returns res when the variable is stored at a single resolution.
func pickResolution(available []float64, res float64) float64 {
	if len(available) == 0 {
		return res
	}
	r := append([]float64(nil), available...)
	sort.Float64s(r)
	best := r[0]
	for _, v := range r {
		if v <= res*(1+1e-6) {
			best = v
		}
	}
	return best
}

// readGrid builds the grid of a group from its pixel center coordinates.
func readGrid(ctx context.Context, s Store, group, crs string) (eocube.Grid, error) {
	var c [2][]float64
	for i, name := range []string{"x", "y"} {
		a, err := OpenArray(ctx, s, join(group, name))
		if err != nil {
			return eocube.Grid{}, err
		}
		if len(a.Shape()) != 1 || a.Shape()[0] < 2 {
			return eocube.Grid{}, fmt.Errorf("zarr: coordinate %s must be 1-D with at least 2 values", join(group, name))
		}
		d, err := a.Read(ctx, []int{0}, a.Shape())
		if err != nil {
			return eocube.Grid{}, err
		}
		c[i] = d.Elements
	}
	x, y := c[0], c[1]
	dx, dy := x[1]-x[0], y[0]-y[1]
	if dx <= 0 || dy <= 0 {
		return eocube.Grid{}, fmt.Errorf("zarr: group %q must have increasing x and decreasing y", group)
	}
	return eocube.Grid{
		CRS: crs,
		X0:  x[0] - dx/2,
		Y0:  y[0] + dy/2,
		Dx:  dx,
		Dy:  dy,
		Nx:  len(x),
		Ny:  len(y),
	}, nil
}

// internalAttrs are storage attributes that are consumed when decoding.
var internalAttrs = []string{"_ARRAY_DIMENSIONS", "_FillValue", "scale_factor", "add_offset"}

// scalarAttrs returns the string and numeric attributes of a, except the
// ones in skip.
func scalarAttrs(a Attributes, skip []string) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range a {
		if contains(skip, k) {
			continue
		}
		switch v.(type) {
		case string, float64:
			out[k] = v
		}
	}
	return out
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
