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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitComponentHappyPath(t *testing.T) {
	db := newTestDB(t)

	bid1, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)
	_, err = db.MarkBuildReady(bid1.ID)
	require.NoError(t, err)

	// f2 (a source) is assumed already uploaded, per ComponentSubmission's
	// contract; f1 (a binary) is submitted as part of the component call.
	f2, err := db.SubmitFile(File{Name: "f2", BuildID: bid1.ID, Kind: FileKindSource, ResourceID: "RF2", DownloadedAs: writeBytes(t, "b", []byte("B"))})
	require.NoError(t, err)

	c, err := db.SubmitComponent(ComponentSubmission{
		Name: "gdb", Platform: "x86_64-linux", Version: "1",
		BuildID: bid1.ID,
		Files:   []File{{Name: "f1", BuildID: bid1.ID, Kind: FileKindBinary, ResourceID: "RF1", DownloadedAs: writeBytes(t, "a", []byte("A"))}},
		Sources: []File{*f2},
	})
	require.NoError(t, err)
	assert.True(t, c.IsValid)
	assert.False(t, c.IsPublished)

	comps, err := db.LatestComponents("test", "all", "all", "all", "all", "all")
	require.NoError(t, err)
	require.Len(t, comps, 1)
	require.Len(t, comps[0].Sources, 1)
	require.Len(t, comps[0].Files, 1)
	assert.Equal(t, f2.ID, comps[0].Sources[0].ID)
	assert.Equal(t, "f1", comps[0].Files[0].Name)
}

func TestSubmitComponentRequiresBuildID(t *testing.T) {
	db := newTestDB(t)
	_, err := db.SubmitComponent(ComponentSubmission{Name: "gdb", Platform: "x86_64-linux", Version: "1"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestSubmitComponentRollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	bid, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)

	// A binary file with no DownloadedAs fails validation mid-submission; the
	// component row itself must never become visible.
	_, err = db.SubmitComponent(ComponentSubmission{
		Name: "gdb", Platform: "x86_64-linux", Version: "1", BuildID: bid.ID,
		Files: []File{{Name: "bad", Kind: FileKindBinary, ResourceID: "R"}},
	})
	require.Error(t, err)

	comps, err := db.ListComponents(bid.ID, "all", "all")
	require.NoError(t, err)
	assert.Empty(t, comps)
}

func TestSubmitComponentRejectsDuplicateAttachmentKeys(t *testing.T) {
	db := newTestDB(t)
	bid, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)

	att := Attachment{Name: "dup", File: File{Name: "att", Kind: FileKindAttachment, ResourceID: "RA", DownloadedAs: writeBytes(t, "att", []byte("x"))}}
	_, err = db.SubmitComponent(ComponentSubmission{
		Name: "gdb", Platform: "x86_64-linux", Version: "1", BuildID: bid.ID,
		Attachments: []Attachment{att, att},
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestLatestComponentsKeepsOnlyMaxPerNamePlatform(t *testing.T) {
	db := newTestDB(t)
	bidOld, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)
	bidNew, err := db.CreateBuildID("test", "20241029", "1.1")
	require.NoError(t, err)

	oldC, err := db.SubmitComponent(ComponentSubmission{Name: "gdb", Platform: "x86_64-linux", Version: "1", BuildID: bidOld.ID})
	require.NoError(t, err)
	newC, err := db.SubmitComponent(ComponentSubmission{Name: "gdb", Platform: "x86_64-linux", Version: "2", BuildID: bidNew.ID})
	require.NoError(t, err)

	comps, err := db.LatestComponents("test", "all", "all", "all", "all", "all")
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Equal(t, newC.ID, comps[0].ID)
	assert.NotEqual(t, oldC.ID, comps[0].ID)
}

func TestLatestComponentsStableAcrossRepeatedCalls(t *testing.T) {
	db := newTestDB(t)
	bid, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)
	_, err = db.SubmitComponent(ComponentSubmission{Name: "gdb", Platform: "x86_64-linux", Version: "1", BuildID: bid.ID})
	require.NoError(t, err)
	_, err = db.SubmitComponent(ComponentSubmission{Name: "gcc", Platform: "x86_64-linux", Version: "1", BuildID: bid.ID})
	require.NoError(t, err)

	first, err := db.LatestComponents("test", "all", "all", "all", "all", "all")
	require.NoError(t, err)
	second, err := db.LatestComponents("test", "all", "all", "all", "all", "all")
	require.NoError(t, err)

	require.Len(t, first, len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestListReleaseComponentsFiltersClientSide(t *testing.T) {
	db := newTestDB(t)
	bid, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)

	c1, err := db.SubmitComponent(ComponentSubmission{
		Name: "gdb", Platform: "x86_64-linux", Version: "1", BuildID: bid.ID, Releases: []string{"2024.1"},
	})
	require.NoError(t, err)
	_, err = db.SubmitComponent(ComponentSubmission{
		Name: "gcc", Platform: "arm-linux", Version: "1", BuildID: bid.ID, Releases: []string{"2024.1"},
	})
	require.NoError(t, err)

	comps, err := db.ListReleaseComponents("2024.1", "gdb", "all", "all")
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Equal(t, c1.ID, comps[0].ID)
}

func TestGetBuildData(t *testing.T) {
	db := newTestDB(t)
	bid, err := db.CreateBuildID("test", "20241028", "1.0")
	require.NoError(t, err)
	src, err := db.SubmitFile(File{Name: "s", BuildID: bid.ID, Kind: FileKindSource, ResourceID: "RS", DownloadedAs: writeBytes(t, "s", []byte("s"))})
	require.NoError(t, err)
	comp, err := db.SubmitComponent(ComponentSubmission{Name: "gdb", Platform: "x86_64-linux", Version: "1", BuildID: bid.ID})
	require.NoError(t, err)

	data, err := db.GetBuildData(bid.ID)
	require.NoError(t, err)
	require.Len(t, data.Sources, 1)
	assert.Equal(t, src.ID, data.Sources[0].ID)
	require.Len(t, data.Components, 1)
	assert.Equal(t, comp.ID, data.Components[0].ID)
}
