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

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceDedup(t *testing.T) {
	db := newTestDB(t)

	pathA := writeBytes(t, "a.bin", []byte("same bytes"))
	pathB := writeBytes(t, "b.bin", []byte("same bytes"))

	bi, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)

	fA, err := db.SubmitFile(File{Name: "fA", BuildID: bi.ID, Kind: FileKindBinary, ResourceID: "R", DownloadedAs: pathA})
	require.NoError(t, err)
	fB, err := db.SubmitFile(File{Name: "fB", BuildID: bi.ID, Kind: FileKindBinary, ResourceID: "R", DownloadedAs: pathB})
	require.NoError(t, err)

	assert.Equal(t, fA.ResourceID, fB.ResourceID)
	assert.Equal(t, fA.Resource.Path, fB.Resource.Path)

	var count int
	row := db.q().QueryRow(`SELECT COUNT(*) FROM resources WHERE resource_id = 'R'`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)

	dest := filepath.Join(t.TempDir(), "out.bin")
	abs, err := db.DownloadResource("R", dest)
	require.NoError(t, err)
	body, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "same bytes", string(body))
}

func TestEnsureResourceRewritesStalePath(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	lost := filepath.Join(dir, "lost.bin")
	require.NoError(t, os.WriteFile(lost, []byte("x"), 0644))

	r, err := db.ensureResource(db.q(), "R2", lost, 1)
	require.NoError(t, err)
	assert.Equal(t, lost, r.Path)

	require.NoError(t, os.Remove(lost))
	moved := filepath.Join(dir, "moved.bin")
	require.NoError(t, os.WriteFile(moved, []byte("x"), 0644))

	r2, err := db.ensureResource(db.q(), "R2", moved, 1)
	require.NoError(t, err)
	assert.Equal(t, moved, r2.Path)
	assert.Equal(t, r.Size, r2.Size)
}

func TestDownloadResourceNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.DownloadResource("missing", filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
