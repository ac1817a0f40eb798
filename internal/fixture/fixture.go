// Copyright 2025 AUTHORS
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fixture builds small tar.gz archives for use as test payloads
// standing in for submitted source/thirdparty Files, without depending on
// stdlib compress/gzip directly.
package fixture

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Entry is one file to place inside a built archive.
type Entry struct {
	Name string
	Body []byte
}

// WriteTarGz writes a tar.gz archive containing entries to dir/name and
// returns the full path.
func WriteTarGz(dir, name string, entries []Entry) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0644, Size: int64(len(e.Body))}
		if err := tw.WriteHeader(hdr); err != nil {
			return "", err
		}
		if _, err := tw.Write(e.Body); err != nil {
			return "", err
		}
	}
	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}
