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
	"testing"

	"github.com/AdaCore/e3-core-sub000/internal/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitFileRequiresDownloadedAsAndResourceID(t *testing.T) {
	db := newTestDB(t)
	bi, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)

	_, err = db.SubmitFile(File{Name: "f", BuildID: bi.ID, Kind: FileKindBinary, ResourceID: "R"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidInput))

	path := writeBytes(t, "f.bin", []byte("x"))
	_, err = db.SubmitFile(File{Name: "f", BuildID: bi.ID, Kind: FileKindBinary, DownloadedAs: path})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestSubmitFileMissingLocalBytesIsResourceIO(t *testing.T) {
	db := newTestDB(t)
	bi, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)

	_, err = db.SubmitFile(File{Name: "f", BuildID: bi.ID, Kind: FileKindBinary, ResourceID: "R", DownloadedAs: "/no/such/path"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindResourceIO))
}

func TestCreateThirdpartyPinsKindAndRevision(t *testing.T) {
	db := newTestDB(t)
	bi, err := db.CreateBuildID("thirdparties", "20241028", "1.0")
	require.NoError(t, err)
	path := writeBytes(t, "tp.tar.gz", []byte("tp bytes"))

	f, err := db.CreateThirdparty(File{Name: "libfoo", BuildID: bi.ID, ResourceID: "TP1", Revision: "ignored", DownloadedAs: path})
	require.NoError(t, err)
	assert.Equal(t, FileKindThirdparty, f.Kind)
	assert.Equal(t, "", f.Revision)
}

func TestCreateThirdpartyFromTarGzArchive(t *testing.T) {
	db := newTestDB(t)
	bi, err := db.CreateBuildID("thirdparties", "20241028", "1.0")
	require.NoError(t, err)

	path, err := fixture.WriteTarGz(t.TempDir(), "libfoo.tar.gz", []fixture.Entry{
		{Name: "libfoo/VERSION", Body: []byte("3.2.1\n")},
		{Name: "libfoo/include/foo.h", Body: []byte("#pragma once\n")},
	})
	require.NoError(t, err)

	f, err := db.CreateThirdparty(File{Name: "libfoo", BuildID: bi.ID, ResourceID: "TPARCHIVE", DownloadedAs: path})
	require.NoError(t, err)
	assert.Equal(t, FileKindThirdparty, f.Kind)
	assert.Equal(t, path, f.DownloadedAs)
}

func TestUpdateFileMetadataRejectsMismatchedBuildInfo(t *testing.T) {
	db := newTestDB(t)
	bi, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)
	other, err := db.CreateBuildID("test", "20241029", "1.1")
	require.NoError(t, err)
	path := writeBytes(t, "f.bin", []byte("x"))

	f, err := db.SubmitFile(File{Name: "f", BuildID: bi.ID, Kind: FileKindBinary, ResourceID: "R", DownloadedAs: path})
	require.NoError(t, err)

	f.BuildInfo = other
	_, err = db.UpdateFileMetadata(*f)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestUpdateFileMetadataReplacesMetadata(t *testing.T) {
	db := newTestDB(t)
	bi, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)
	path := writeBytes(t, "f.bin", []byte("x"))

	f, err := db.SubmitFile(File{Name: "f", BuildID: bi.ID, Kind: FileKindBinary, ResourceID: "R", DownloadedAs: path})
	require.NoError(t, err)

	f.Metadata = Metadata{"k": "v"}
	f.BuildInfo = nil
	updated, err := db.UpdateFileMetadata(*f)
	require.NoError(t, err)
	assert.Equal(t, "v", updated.Metadata["k"])
}

func TestGetSourceInfoLookback(t *testing.T) {
	db := newTestDB(t)

	b1, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)
	path := writeBytes(t, "s.tar.gz", []byte("source bytes"))
	s, err := db.SubmitFile(File{Name: "s", BuildID: b1.ID, Kind: FileKindSource, ResourceID: "S1", DownloadedAs: path})
	require.NoError(t, err)

	b2, err := db.CreateBuildID("test", "20241029", "1.1")
	require.NoError(t, err)

	got, err := db.GetSourceInfo("s", b2.ID, "source")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, b1.ID, got.BuildID)
}

func TestGetSourceInfoNotFound(t *testing.T) {
	db := newTestDB(t)
	bi, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)
	_, err = db.GetSourceInfo("nope", bi.ID, "source")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLatestThirdpartyReturnsNilNotError(t *testing.T) {
	db := newTestDB(t)
	f, err := db.LatestThirdparty("all", "all", "all")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestLatestThirdpartyPicksMostRecent(t *testing.T) {
	db := newTestDB(t)
	bi, err := db.CreateBuildID("thirdparties", "20241028", "1.0")
	require.NoError(t, err)

	path1 := writeBytes(t, "old.tar.gz", []byte("old"))
	_, err = db.CreateThirdparty(File{Name: "libfoo", BuildID: bi.ID, ResourceID: "TPOLD", DownloadedAs: path1})
	require.NoError(t, err)

	path2 := writeBytes(t, "new.tar.gz", []byte("new"))
	latest, err := db.CreateThirdparty(File{Name: "libfoo", BuildID: bi.ID, ResourceID: "TPNEW", DownloadedAs: path2})
	require.NoError(t, err)

	got, err := db.LatestThirdparty("libfoo", "all", "all")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latest.ID, got.ID)
}
