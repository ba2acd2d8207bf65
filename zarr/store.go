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

// Package zarr reads regular-grid satellite products stored in the Zarr
// version 2 format.
package zarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ErrNotFound is matched by errors returned when a key does not exist.
var ErrNotFound = errors.New("not found")

// Store is a read-only key-value view of a Zarr hierarchy.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// MemoryStore holds a hierarchy in memory.
type MemoryStore struct {
	lk   sync.Mutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	d, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

func (s *MemoryStore) Put(key string, val io.Reader) error {
	d, err := io.ReadAll(val)
	if err != nil {
		return err
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[key] = d
	return nil
}

// BucketStore reads keys under Prefix in a blob storage bucket.
type BucketStore struct {
	Bucket *blob.Bucket
	Prefix string
}

var _ Store = (*BucketStore)(nil)

func (s *BucketStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	k := key
	if s.Prefix != "" {
		k = strings.TrimSuffix(s.Prefix, "/") + "/" + key
	}
	r, err := s.Bucket.NewReader(ctx, k, nil)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
	} else if err != nil {
		return nil, fmt.Errorf("zarr: reading blob %s: %w", k, err)
	}
	return r, nil
}

// HTTPStore reads keys relative to Base over HTTP.
type HTTPStore struct {
	Base   string
	Client *http.Client
}

var _ Store = (*HTTPStore)(nil)

func (s *HTTPStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	u := strings.TrimSuffix(s.Base, "/") + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c := s.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zarr: fetching %s: %w", u, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("zarr: fetching %s: %s", u, resp.Status)
	}
	return resp.Body, nil
}

// readAll returns the value of key.
func readAll(ctx context.Context, s Store, key string) ([]byte, error) {
	r, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
