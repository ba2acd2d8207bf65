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

package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"gocloud.dev/blob"
)

// IsBucketURL reports whether name refers to a blob storage bucket rather
// than a local path.
func IsBucketURL(name string) bool {
	u, err := url.Parse(name)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "gs", "s3", "mem":
		return true
	}
	return false
}

// ReadBlob reads the blob at the URL name, e.g. "s3://bucket/dir/key".
func ReadBlob(ctx context.Context, name string) ([]byte, error) {
	bucket, key, err := openKey(ctx, name)
	if err != nil {
		return nil, err
	}
	defer bucket.Close()
	return readBlob(ctx, bucket, key)
}

// WriteBlob copies r to the blob at the URL name.
func WriteBlob(ctx context.Context, name string, r io.Reader) error {
	bucket, key, err := openKey(ctx, name)
	if err != nil {
		return err
	}
	defer bucket.Close()
	return writeBlob(ctx, bucket, key, r)
}

func openKey(ctx context.Context, name string) (*blob.Bucket, string, error) {
	u, err := url.Parse(name)
	if err != nil {
		return nil, "", fmt.Errorf("cloud: parsing blob url: %v", err)
	}
	key := strings.TrimLeft(u.Path, "/")
	if key == "" {
		return nil, "", fmt.Errorf("cloud: blob url %s has no key", name)
	}
	bucket, err := OpenBucket(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return bucket, key, nil
}

// readBlob reads the given blob from the given bucket.
func readBlob(ctx context.Context, bucket *blob.Bucket, key string) ([]byte, error) {
	var b bytes.Buffer
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("cloud: reading blob key %s: %v", key, err)
	}
	defer r.Close()
	if _, err = io.Copy(&b, r); err != nil {
		return nil, fmt.Errorf("cloud: reading blob key %s: %v", key, err)
	}
	return b.Bytes(), nil
}

// writeBlob writes the given data to the given bucket.
func writeBlob(ctx context.Context, bucket *blob.Bucket, key string, r io.Reader) error {
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: creating writer for blob %s: %v", key, err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: copying blob %s: %v", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %v", key, err)
	}
	return nil
}
