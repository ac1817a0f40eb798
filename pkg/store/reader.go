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

// Reader is the read-only query surface (§4.5.1, §6). It is a capability,
// not a class: Writer and LocalMirror are supersets, not subclasses.
type Reader interface {
	GetBuildInfo(id string) (*BuildInfo, error)
	GetLatestBuildInfo(setup, date, version string, readyOnly bool) (*BuildInfo, error)
	ListBuildInfos(date, setup, version string, nbDays int) ([]BuildInfo, error)

	ListComponents(buildID, component, platform string) ([]Component, error)
	LatestComponents(setup, date, platform, component, specname, buildID string) ([]Component, error)
	ListReleaseComponents(releaseName, component, version, platform string) ([]Component, error)
	GetBuildData(bid string) (*BuildData, error)

	GetSourceInfo(name, bid, kind string) (*File, error)
	LatestThirdparty(name, tpID, rid string) (*File, error)

	DownloadResource(resourceID, destPath string) (string, error)
	BulkQuery(queries []Query) []QueryResult
}

// Writer extends Reader with the mutation surface (§4.5.2).
type Writer interface {
	Reader

	CreateBuildID(setup, date, version string) (*BuildInfo, error)
	MarkBuildReady(id string) (bool, error)
	CopyBuildID(id, destSetup string) (*BuildInfo, error)

	SubmitFile(f File) (*File, error)
	CreateThirdparty(f File) (*File, error)
	UpdateFileMetadata(f File) (*File, error)

	SubmitComponent(c ComponentSubmission) (*Component, error)
	AddComponentAttachment(componentID, fileID, name string) error
}

// LocalMirror extends Writer with the raw-add and cross-store pull
// operations of §4.5.4.
type LocalMirror interface {
	Writer

	RawAddBuildInfo(bi BuildInfo) (bool, error)
	RawAddFile(f File) (bool, error)
	RawAddComponent(c Component) (bool, error)

	AddBuildInfoFromStore(upstream Reader, bid string) error
	AddSourceFromStore(upstream Reader, name, bid, setup, date, kind string) error
	AddComponentFromStore(upstream Reader, setup, name, platform, date, specname string) error
	BulkUpdateFromStore(upstream Reader, queries []Query) ([]QueryResult, error)

	Save(path string) error
}

// DownloadResource implements Reader.DownloadResource (§4.1).
func (d *DB) DownloadResource(resourceID, destPath string) (string, error) {
	return d.downloadResource(resourceID, destPath)
}

var (
	_ Reader = (*DB)(nil)
	_ Writer = (*DB)(nil)
)
