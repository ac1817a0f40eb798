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
	"io"
	"os"
	"strconv"
	"strings"
)

// Mirror is a LocalMirror (§4.5.4): a Store that owns its own database and
// holds a non-owning pointer to an upstream Reader it can pull from.
type Mirror struct {
	*DB
	Upstream Reader
}

// OpenMirror opens (or creates) the local database at path and wires it to
// upstream, which may be nil if this mirror is only ever used offline.
func OpenMirror(path string, upstream Reader, opts ...Option) (*Mirror, error) {
	db, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	return &Mirror{DB: db, Upstream: upstream}, nil
}

var _ LocalMirror = (*Mirror)(nil)

// isConflict reports whether err is a primary-key / uniqueness violation,
// the only sqlite error the raw-add paths treat specially (§7 Conflict).
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// rawAddBuildInfo is the unexported, non-committing half of
// RawAddBuildInfo, reused by rawAddFile and rawAddComponent so a whole
// component graph commits as one transaction.
func (m *Mirror) rawAddBuildInfo(q querier, bi BuildInfo) (bool, error) {
	_, err := q.Exec(
		`INSERT INTO buildinfos (id, build_date, setup, creation_date, build_version, isready)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		bi.ID, bi.BuildDate, bi.Setup, formatTime(bi.CreationDate), bi.BuildVersion, boolToInt(bi.IsReady),
	)
	if err != nil {
		if isConflict(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RawAddBuildInfo implements LocalMirror.RawAddBuildInfo (§4.5.4): insert bi
// verbatim, preserving id and creation_date. A primary-key conflict is a
// no-op; the existing row wins.
func (m *Mirror) RawAddBuildInfo(bi BuildInfo) (bool, error) {
	return m.rawAddBuildInfo(m.q(), bi)
}

// rawAddFile is the unexported, non-committing half of RawAddFile.
func (m *Mirror) rawAddFile(q querier, f File) (*File, bool, error) {
	// Idempotence probe: if the local store already has a matching File,
	// return it and report no insertion.
	kind := string(f.Kind)
	existing, err := m.GetSourceInfo(f.Name, f.BuildID, kind)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}

	if f.Metadata == nil {
		f.Metadata = Metadata{}
	}
	metaJSON, err := encodeMetadata(f.Metadata)
	if err != nil {
		return nil, false, err
	}

	if _, err := q.Exec(
		`INSERT INTO files (id, name, alias, filename, build_id, kind, resource_id, revision, metadata, creation_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Alias, f.Filename, f.BuildID, kind, f.ResourceID, f.Revision, metaJSON, formatTime(f.CreationDate),
	); err != nil {
		return nil, false, err
	}

	// get_source_info can look backward in time, so the embedded BuildInfo
	// may not be the query's target build: register it too.
	if f.BuildInfo != nil {
		if _, err := m.rawAddBuildInfo(q, *f.BuildInfo); err != nil {
			return nil, false, err
		}
	}

	var res *Resource
	if f.Resource != nil {
		res, err = m.ensureResourceAt(q, *f.Resource)
	} else {
		res, err = getResource(q, f.ResourceID)
	}
	if err != nil && !IsNotFound(err) {
		return nil, false, err
	}

	out := f
	out.Resource = res
	if res != nil && res.Path != "" {
		out.DownloadedAs = res.Path
	}
	return &out, true, nil
}

// RawAddFile implements LocalMirror.RawAddFile (§4.5.4).
func (m *Mirror) RawAddFile(f File) (bool, error) {
	_, inserted, err := m.rawAddFile(m.q(), f)
	return inserted, err
}

// AddBuildInfoFromStore implements LocalMirror.AddBuildInfoFromStore
// (§4.5.4): fetch bid upstream and raw-add it, unless it is already local.
func (m *Mirror) AddBuildInfoFromStore(upstream Reader, bid string) error {
	if _, err := m.GetBuildInfo(bid); err == nil {
		return nil
	} else if !IsNotFound(err) {
		return err
	}
	bi, err := upstream.GetBuildInfo(bid)
	if err != nil {
		return err
	}
	_, err = m.RawAddBuildInfo(*bi)
	return err
}

// AddSourceFromStore implements LocalMirror.AddSourceFromStore (§4.5.4).
func (m *Mirror) AddSourceFromStore(upstream Reader, name, bid, setup, date, kind string) error {
	var bi *BuildInfo
	var err error
	if bid == "" {
		if date == "" {
			date = "all"
		}
		bi, err = upstream.GetLatestBuildInfo(setup, date, "", true)
		if err != nil {
			return err
		}
		if _, err := m.RawAddBuildInfo(*bi); err != nil {
			return err
		}
	} else {
		bi, err = m.GetBuildInfo(bid)
		if err != nil {
			if !IsNotFound(err) {
				return err
			}
			bi, err = upstream.GetBuildInfo(bid)
			if err != nil {
				return err
			}
			if _, err := m.RawAddBuildInfo(*bi); err != nil {
				return err
			}
		}
	}

	if kind == "" {
		kind = "source"
	}
	f, err := upstream.GetSourceInfo(name, bi.ID, kind)
	if err != nil {
		return err
	}
	_, err = m.RawAddFile(*f)
	return err
}

// rawAddComponent is the unexported, non-committing half of
// RawAddComponent.
func (m *Mirror) rawAddComponent(q querier, c Component) (*Component, bool, error) {
	if c.ID == "" {
		return nil, false, invalidInputf("cannot add a raw component without id")
	}

	row := q.QueryRow(
		`SELECT id, name, platform, version, specname, build_id, creation_date, is_valid, is_published, readme_id, metadata
		 FROM components WHERE id = ?`, c.ID,
	)
	if cr, err := scanComponentRow(row); err == nil {
		existing, err := m.hydrateComponent(q, cr)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	for _, f := range c.Files {
		if _, _, err := m.rawAddFile(q, f); err != nil {
			return nil, false, err
		}
	}
	for _, f := range c.Sources {
		if _, _, err := m.rawAddFile(q, f); err != nil {
			return nil, false, err
		}
	}
	attachments, err := normalizeAttachments(attachmentsFromMap(c.Attachments))
	if err != nil {
		return nil, false, err
	}
	for i, att := range attachments {
		added, _, err := m.rawAddFile(q, att.File)
		if err != nil {
			return nil, false, err
		}
		attachments[i].File = *added
	}

	if c.BuildInfo != nil {
		if _, err := m.rawAddBuildInfo(q, *c.BuildInfo); err != nil {
			return nil, false, err
		}
	}

	var readmeID *string
	if c.Readme != nil {
		added, _, err := m.rawAddFile(q, *c.Readme)
		if err != nil {
			return nil, false, err
		}
		readmeID = &added.ID
	} else if c.ReadmeID != nil {
		readmeID = c.ReadmeID
	}

	metaJSON, err := encodeMetadata(c.Metadata)
	if err != nil {
		return nil, false, err
	}
	var specname any
	if c.SpecName != nil {
		specname = *c.SpecName
	}
	var readmeIDArg any
	if readmeID != nil {
		readmeIDArg = *readmeID
	}
	if _, err := q.Exec(
		`INSERT INTO components (id, name, platform, version, specname, build_id, creation_date, is_valid, is_published, readme_id, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Platform, c.Version, specname, c.BuildID, formatTime(c.CreationDate),
		boolToInt(c.IsValid), boolToInt(c.IsPublished), readmeIDArg, metaJSON,
	); err != nil {
		return nil, false, err
	}

	if err := m.insertComponentFiles(q, RoleFile, c.Files, c.ID); err != nil {
		return nil, false, err
	}
	if err := m.insertComponentFiles(q, RoleSource, c.Sources, c.ID); err != nil {
		return nil, false, err
	}
	if err := m.insertAttachments(q, attachments, c.ID); err != nil {
		return nil, false, err
	}
	for _, release := range c.Releases {
		if _, err := q.Exec(`INSERT INTO component_releases (name, component_id) VALUES (?, ?)`, release, c.ID); err != nil {
			return nil, false, err
		}
	}

	row = q.QueryRow(
		`SELECT id, name, platform, version, specname, build_id, creation_date, is_valid, is_published, readme_id, metadata
		 FROM components WHERE id = ?`, c.ID,
	)
	cr, err := scanComponentRow(row)
	if err != nil {
		return nil, false, err
	}
	added, err := m.hydrateComponent(q, cr)
	if err != nil {
		return nil, false, err
	}
	return added, true, nil
}

func attachmentsFromMap(m map[string]File) []Attachment {
	out := make([]Attachment, 0, len(m))
	for name, f := range m {
		out = append(out, Attachment{Name: name, File: f})
	}
	return out
}

// RawAddComponent implements LocalMirror.RawAddComponent (§4.5.4). The
// whole cascade of raw_add_file calls it triggers commits together with the
// Component row, so a reader never observes a half-inserted Component.
func (m *Mirror) RawAddComponent(c Component) (bool, error) {
	tx, err := m.conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	_, inserted, err := m.rawAddComponent(tx, c)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}
	return true, tx.Commit()
}

// AddComponentFromStore implements LocalMirror.AddComponentFromStore
// (§4.5.4).
func (m *Mirror) AddComponentFromStore(upstream Reader, setup, name, platform, date, specname string) error {
	if name == "" {
		name = "all"
	}
	if platform == "" {
		platform = "all"
	}
	comps, err := upstream.LatestComponents(setup, date, platform, name, specname, "")
	if err != nil {
		return err
	}
	if len(comps) == 0 {
		return notFoundf("no component matching setup=%q date=%q name=%q platform=%q specname=%q", setup, date, name, platform, specname)
	}
	for _, c := range comps {
		if _, err := m.RawAddComponent(c); err != nil {
			return err
		}
	}
	return nil
}

// Save implements LocalMirror.Save (§6): flush and optionally copy the
// database file to path.
func (m *Mirror) Save(path string) error {
	if path == "" || path == m.dbPath {
		return nil
	}
	src, err := os.Open(m.dbPath)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Close()
}

// defaultChunkSizeEnv is the environment variable recognized for the bulk
// planner's CHUNK_SIZE (§6 Configuration).
const defaultChunkSizeEnv = "E3STORE_BULK_CHUNK_SIZE"

func chunkSize() int {
	v, ok := os.LookupEnv(defaultChunkSizeEnv)
	if !ok {
		return 100
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 100
	}
	return n
}

// BulkUpdateFromStore implements LocalMirror.BulkUpdateFromStore (§4.5.4): a
// cache-through planner that probes the local database before batching
// whatever is missing to the upstream bulk_query.
func (m *Mirror) BulkUpdateFromStore(upstream Reader, queries []Query) ([]QueryResult, error) {
	var deferred []Query
	var localResults []QueryResult
	requiredBIDs := map[string]bool{}

	for _, q := range queries {
		if q.Query != QuerySource {
			deferred = append(deferred, q)
			continue
		}

		if q.Kind == "" {
			q.Kind = "source"
		}
		if q.BID == "" && q.Setup != "" {
			bi, err := upstream.GetLatestBuildInfo(q.Setup, q.Date, "", true)
			if err == nil {
				q.BID = bi.ID
			}
		}
		if q.BID != "" {
			requiredBIDs[q.BID] = true
		}

		src, err := m.GetSourceInfo(q.Name, q.BID, q.Kind)
		switch {
		case err == nil && (q.Kind == "thirdparty" || (src.BuildInfo != nil && src.BuildInfo.ID == q.BID)):
			localResults = append(localResults, QueryResult{Query: q, Response: src})
		case err == nil:
			// A regular source resolved, but to a different (earlier) build
			// than the query asked for: defer to upstream so the caller
			// gets the exact build it asked about.
			deferred = append(deferred, q)
		case IsNotFound(err):
			deferred = append(deferred, q)
		default:
			return nil, err
		}
	}

	size := chunkSize()
	var allResults []QueryResult
	for start := 0; start < len(deferred); start += size {
		end := start + size
		if end > len(deferred) {
			end = len(deferred)
		}
		chunk := deferred[start:end]

		results := upstream.BulkQuery(chunk)
		allResults = append(allResults, results...)

		for _, r := range results {
			if r.Response == nil {
				continue
			}
			if r.Query.Query == QuerySource {
				if f, ok := r.Response.(*File); ok && f != nil {
					if _, err := m.RawAddFile(*f); err != nil {
						return nil, err
					}
				}
			} else {
				if c, ok := r.Response.(*Component); ok && c != nil {
					if _, err := m.RawAddComponent(*c); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	for bid := range requiredBIDs {
		if err := m.AddBuildInfoFromStore(upstream, bid); err != nil {
			return nil, err
		}
	}

	return append(allResults, localResults...), nil
}
