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
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

func encodeMetadata(m Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMetadata(s string) (Metadata, error) {
	if s == "" || s == "{}" {
		return Metadata{}, nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// internalDefault implements the §9 asymmetric default: a binary File
// defaults to non-internal (distributable), everything else defaults to
// internal.
func internalDefault(kind FileKind) bool {
	return kind != FileKindBinary
}

type fileRow struct {
	ID, Name, Alias, Filename, BuildID string
	Kind                               string
	ResourceID, Revision, Metadata     string
	CreationDate                       string
}

func scanFileRow(row interface{ Scan(dest ...any) error }) (*fileRow, error) {
	var r fileRow
	if err := row.Scan(&r.ID, &r.Name, &r.Alias, &r.Filename, &r.BuildID, &r.Kind, &r.ResourceID, &r.Revision, &r.Metadata, &r.CreationDate); err != nil {
		return nil, err
	}
	return &r, nil
}

// hydrateFile converts a raw row plus optionally-precomputed BuildInfo and
// Resource into a self-consistent File bundle, matching _tuple_to_file.
func (d *DB) hydrateFile(q querier, r *fileRow, bi *BuildInfo, res *Resource, internal *bool) (*File, error) {
	meta, err := decodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	creationDate, err := parseTime(r.CreationDate)
	if err != nil {
		return nil, err
	}

	if bi == nil || bi.ID != r.BuildID {
		bi, err = d.getBuildInfoTx(q, r.BuildID)
		if err != nil {
			return nil, err
		}
	}
	if res == nil || res.ID != r.ResourceID {
		res, err = getResource(q, r.ResourceID)
		if err != nil {
			return nil, err
		}
	}

	f := &File{
		ID: r.ID, Name: r.Name, Alias: r.Alias, Filename: r.Filename,
		BuildID: r.BuildID, Kind: FileKind(r.Kind), ResourceID: r.ResourceID,
		Revision: r.Revision, Metadata: meta, CreationDate: creationDate,
		BuildInfo: bi, Resource: res, Internal: internal,
		DownloadedAs: res.Path,
	}
	return f, nil
}

// getBuildInfoTx is GetBuildInfo but usable against either the DB or an
// in-flight transaction.
func (d *DB) getBuildInfoTx(q querier, id string) (*BuildInfo, error) {
	row := q.QueryRow(
		`SELECT id, build_date, setup, creation_date, build_version, isready FROM buildinfos WHERE id = ?`, id,
	)
	bi, err := scanBuildInfo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || IsNotFound(err) {
			return nil, notFoundf("buildinfo %q not found", id)
		}
		return nil, err
	}
	return bi, nil
}

// submitFile is the transactional core of SubmitFile, reused (without an
// outer commit) by SubmitComponent so a component submission commits as one
// unit.
func (d *DB) submitFile(q querier, f File) (*File, error) {
	if f.DownloadedAs == "" {
		return nil, invalidInputf("file %q: downloaded_as is required", f.Name)
	}
	if f.ResourceID == "" {
		return nil, invalidInputf("file %q: resource_id is required", f.Name)
	}
	if _, err := d.getBuildInfoTx(q, f.BuildID); err != nil {
		return nil, err
	}

	st, err := os.Stat(f.DownloadedAs)
	if err != nil || !st.Mode().IsRegular() {
		return nil, resourceIOf(err, "%s: not found or is not a file", f.DownloadedAs)
	}

	res, err := d.ensureResource(q, f.ResourceID, f.DownloadedAs, st.Size())
	if err != nil {
		return nil, err
	}

	id := d.ids.NewID()
	now := d.now()
	metaJSON, err := encodeMetadata(f.Metadata)
	if err != nil {
		return nil, err
	}
	if _, err := q.Exec(
		`INSERT INTO files (id, name, alias, filename, build_id, kind, resource_id, revision, metadata, creation_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, f.Name, f.Alias, f.Filename, f.BuildID, string(f.Kind), f.ResourceID, f.Revision, metaJSON, formatTime(now),
	); err != nil {
		return nil, err
	}

	bi, err := d.getBuildInfoTx(q, f.BuildID)
	if err != nil {
		return nil, err
	}

	out := f
	out.ID = id
	out.CreationDate = now
	out.Resource = res
	out.BuildInfo = bi
	out.DownloadedAs = f.DownloadedAs
	return &out, nil
}

// SubmitFile implements File registry submit (§4.3).
func (d *DB) SubmitFile(f File) (*File, error) {
	return d.submitFile(d.q(), f)
}

// CreateThirdparty implements File registry create_thirdparty (§4.3): a
// convenience wrapper around submit that pins kind=thirdparty, revision="".
func (d *DB) CreateThirdparty(f File) (*File, error) {
	f.Kind = FileKindThirdparty
	f.Revision = ""
	return d.SubmitFile(f)
}

// UpdateFileMetadata implements File registry update_metadata (§4.3). If f
// carries an embedded BuildInfo, it must agree with f.BuildID: the original
// store rejects a mismatched embedded BuildInfo, and so do we (§9 Open
// Questions).
func (d *DB) UpdateFileMetadata(f File) (*File, error) {
	if f.ID == "" {
		return nil, invalidInputf("cannot update metadata: file id missing")
	}
	if f.BuildInfo != nil && f.BuildID != "" && f.BuildInfo.ID != f.BuildID {
		return nil, invalidInputf("malformed file: build_id field != build.id")
	}

	metaJSON, err := encodeMetadata(f.Metadata)
	if err != nil {
		return nil, err
	}
	res, err := d.q().Exec(`UPDATE files SET metadata = ? WHERE id = ?`, metaJSON, f.ID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, notFoundf("file %q not found", f.ID)
	}

	row := d.q().QueryRow(
		`SELECT id, name, alias, filename, build_id, kind, resource_id, revision, metadata, creation_date
		 FROM files WHERE id = ?`, f.ID,
	)
	fr, err := scanFileRow(row)
	if err != nil {
		return nil, err
	}
	return d.hydrateFile(d.q(), fr, f.BuildInfo, nil, nil)
}

// GetSourceInfo implements File registry get_source (§4.3): looks up a File
// by name and kind with a relaxed build scope — either build_id = bid, or
// (kind in {source, thirdparty} and its BuildInfo's creation_date <= bid's
// creation_date). Ordered by BuildInfo creation_date desc, first wins.
func (d *DB) GetSourceInfo(name, bid, kind string) (*File, error) {
	if kind == "" {
		kind = "source"
	}
	rows, err := d.q().Query(
		`SELECT files.id, files.name, files.alias, files.filename, files.build_id, files.kind,
		        files.resource_id, files.revision, files.metadata, files.creation_date
		 FROM files
		 INNER JOIN buildinfos ON buildinfos.id = files.build_id
		 WHERE files.name = ? AND files.kind = ?
		   AND (
		       files.build_id = ?
		       OR (
		           files.kind IN ('source', 'thirdparty')
		           AND buildinfos.creation_date <= (SELECT creation_date FROM buildinfos WHERE id = ?)
		       )
		   )
		 ORDER BY buildinfos.creation_date DESC`,
		name, kind, bid, bid,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, notFoundf("file(name=%q, kind=%q, bid=%q) not found", name, kind, bid)
	}
	fr, err := scanFileRow(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()
	return d.hydrateFile(d.q(), fr, nil, nil, nil)
}

// LatestThirdparty implements File registry latest_thirdparty (§4.3).
// Returns (nil, nil) if none match, never a NotFound error.
func (d *DB) LatestThirdparty(name, tpID, rid string) (*File, error) {
	where := []string{"kind = 'thirdparty'"}
	args := []any{}
	if name != "" && name != "all" {
		where = append(where, "name = ?")
		args = append(args, name)
	}
	if tpID != "" && tpID != "all" {
		where = append(where, "id = ?")
		args = append(args, tpID)
	}
	if rid != "" && rid != "all" {
		where = append(where, "resource_id = ?")
		args = append(args, rid)
	}

	query := `SELECT id, name, alias, filename, build_id, kind, resource_id, revision, metadata, creation_date
	          FROM files WHERE ` + strings.Join(where, " AND ") + ` ORDER BY creation_date DESC LIMIT 1`
	row := d.q().QueryRow(query, args...)
	fr, err := scanFileRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d.hydrateFile(d.q(), fr, nil, nil, nil)
}
