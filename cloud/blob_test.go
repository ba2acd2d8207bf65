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
	"testing"

	"gocloud.dev/blob/memblob"
)

func TestBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := memblob.OpenBucket(nil)
	defer b.Close()
	if err := writeBlob(ctx, b, "cubes/a.nc", bytes.NewReader([]byte("cube"))); err != nil {
		t.Fatal(err)
	}
	have, err := readBlob(ctx, b, "cubes/a.nc")
	if err != nil {
		t.Fatal(err)
	}
	if string(have) != "cube" {
		t.Errorf("have %q, want %q", have, "cube")
	}
	if _, err := readBlob(ctx, b, "cubes/missing.nc"); err == nil {
		t.Error("expected error for missing blob")
	}
}

func TestOpenBucket(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"mem://scratch", "file:///tmp"} {
		b, err := OpenBucket(ctx, name)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		b.Close()
	}
	if _, err := OpenBucket(ctx, "ftp://host/dir"); err == nil {
		t.Error("expected error for unsupported provider")
	}
	for name, want := range map[string]bool{"s3://b/k": true, "gs://b/k": true, "out.nc": false, "/tmp/out.nc": false} {
		if have := IsBucketURL(name); have != want {
			t.Errorf("%s: have %v, want %v", name, have, want)
		}
	}
	if _, _, err := openKey(ctx, "mem://bucket"); err == nil {
		t.Error("expected error for url without key")
	}
}
