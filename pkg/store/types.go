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

// Package store implements the content-addressed artifact store and
// build-info graph: BuildInfo campaigns, content-addressed Resources, named
// Files bound to a campaign, and Components aggregating Files into a
// shippable deliverable.
package store

import "time"

// FileKind is the nature of the bytes a File points at.
type FileKind string

const (
	FileKindSource     FileKind = "source"
	FileKindReadme     FileKind = "readme"
	FileKindThirdparty FileKind = "thirdparty"
	FileKindBinary     FileKind = "binary"
	FileKindAttachment FileKind = "attachment"
)

// ComponentFileRole distinguishes the role a File plays for a Component from
// the File's own Kind: a File of Kind "source" is attached to a Component
// with role "source", but a readme File (Kind "readme") is referenced
// separately via Component.ReadmeID, never through a component_files row.
type ComponentFileRole string

const (
	RoleFile       ComponentFileRole = "file"
	RoleSource     ComponentFileRole = "source"
	RoleAttachment ComponentFileRole = "attachment"
)

// Metadata is the opaque JSON map carried by File and Component. The store
// never interprets its contents, only round-trips them.
type Metadata map[string]any

// BuildInfo is a named build campaign: setup x build_date x build_version.
type BuildInfo struct {
	ID           string
	Setup        string
	BuildDate    string
	BuildVersion string
	CreationDate time.Time
	IsReady      bool
}

// Resource is the content-addressed bytes backing one or more Files.
type Resource struct {
	ID           string
	Path         string
	Size         int64
	CreationDate time.Time
}

// File is a named handle to a Resource, qualified by Kind, BuildID and
// free-form Metadata.
//
// DownloadedAs, UnpackDir and Internal are boundary-only fields: they travel
// with a File value between caller and store but are never persisted as
// File-row columns (Internal is instead read from the
// component_files.internal join column, see listComponentFiles).
type File struct {
	ID           string
	Name         string
	Alias        string
	Filename     string
	BuildID      string
	Kind         FileKind
	ResourceID   string
	Revision     string
	Metadata     Metadata
	CreationDate time.Time

	// Aggregated sub-values, populated by reads so that a File forms a
	// self-consistent bundle with its BuildInfo and Resource.
	BuildInfo *BuildInfo
	Resource  *Resource

	// Boundary-only fields, not persisted.
	DownloadedAs string
	UnpackDir    string
	// Internal is the transient "is this file internal-only" flag. When a
	// File is bound to a Component, nil means "use the default": false when
	// the File's own Kind is binary, true otherwise (see internalDefault).
	// The resulting value is stored on the component_files row and returned
	// by reads of that Component; Files read on their own leave it nil.
	Internal *bool
}

// Attachment is a File attached to a Component under a caller-chosen unique
// key string.
type Attachment struct {
	Name string
	File File
}

// Component is a shippable aggregate: binaries + sources + readme +
// attachments + release labels, qualified by (name, platform, version,
// build_id).
type Component struct {
	ID           string
	Name         string
	Platform     string
	Version      string
	SpecName     *string
	BuildID      string
	CreationDate time.Time
	IsValid      bool
	IsPublished  bool
	ReadmeID     *string
	Metadata     Metadata

	// Aggregated sub-values, derived at read time.
	BuildInfo   *BuildInfo
	Readme      *File
	Files       []File
	Sources     []File
	Attachments map[string]File
	Releases    []string
}

// BuildData is the result of GetBuildData: every source/thirdparty File and
// every Component belonging to one build.
type BuildData struct {
	Sources    []File
	Components []Component
}

// ComponentSubmission is the input to Writer.SubmitComponent: a set of
// not-yet-uploaded binaries, a readme, a set of caller-chosen attachments,
// release labels, and a set of sources that are assumed already uploaded
// (submitted separately, e.g. via Writer.SubmitFile or CreateThirdparty).
type ComponentSubmission struct {
	Name        string
	Platform    string
	Version     string
	SpecName    *string
	BuildID     string
	IsValid     *bool
	IsPublished *bool
	Metadata    Metadata

	Readme      *File
	Files       []File
	Sources     []File
	Attachments []Attachment
	Releases    []string
}
