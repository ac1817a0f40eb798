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
	"strings"
)

type componentRow struct {
	ID, Name, Platform, Version string
	SpecName                    sql.NullString
	BuildID, CreationDate       string
	IsValid, IsPublished        int
	ReadmeID                    sql.NullString
	Metadata                    string
}

func scanComponentRow(row interface{ Scan(dest ...any) error }) (*componentRow, error) {
	var r componentRow
	if err := row.Scan(&r.ID, &r.Name, &r.Platform, &r.Version, &r.SpecName, &r.BuildID,
		&r.CreationDate, &r.IsValid, &r.IsPublished, &r.ReadmeID, &r.Metadata); err != nil {
		return nil, err
	}
	return &r, nil
}

// listComponentFiles implements _list_component_files: fetch the Files
// attached to a Component under a given role, applying the internal-flag
// default on read.
func (d *DB) listComponentFiles(q querier, role ComponentFileRole, componentID string, bi *BuildInfo) ([]File, map[string]File, error) {
	selectAttachmentName := role == RoleAttachment
	cols := "component_files.internal, files.id, files.name, files.alias, files.filename, files.build_id, files.kind, files.resource_id, files.revision, files.metadata, files.creation_date"
	if selectAttachmentName {
		cols = "component_files.attachment_name, " + cols
	}

	rows, err := q.Query(
		`SELECT `+cols+` FROM files
		 INNER JOIN component_files ON files.id = component_files.file_id
		 WHERE component_files.component_id = ? AND component_files.kind = ?`,
		componentID, string(role),
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	type scannedRow struct {
		attName  sql.NullString
		internal int
		fr       fileRow
	}
	var scanned []scannedRow
	for rows.Next() {
		var s scannedRow
		var dest []any
		if selectAttachmentName {
			dest = []any{&s.attName, &s.internal, &s.fr.ID, &s.fr.Name, &s.fr.Alias, &s.fr.Filename, &s.fr.BuildID, &s.fr.Kind, &s.fr.ResourceID, &s.fr.Revision, &s.fr.Metadata, &s.fr.CreationDate}
		} else {
			dest = []any{&s.internal, &s.fr.ID, &s.fr.Name, &s.fr.Alias, &s.fr.Filename, &s.fr.BuildID, &s.fr.Kind, &s.fr.ResourceID, &s.fr.Revision, &s.fr.Metadata, &s.fr.CreationDate}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		scanned = append(scanned, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	// Release the connection before hydrating, which issues further queries.
	rows.Close()

	var list []File
	attachments := map[string]File{}
	for _, s := range scanned {
		isInternal := s.internal != 0
		f, err := d.hydrateFile(q, &s.fr, bi, nil, &isInternal)
		if err != nil {
			return nil, nil, err
		}
		if selectAttachmentName {
			attachments[s.attName.String] = *f
		} else {
			list = append(list, *f)
		}
	}
	return list, attachments, nil
}

func (d *DB) listReleases(q querier, componentID string) ([]string, error) {
	rows, err := q.Query(`SELECT name FROM component_releases WHERE component_id = ?`, componentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// hydrateComponent converts a raw row into a self-consistent Component
// bundle (files, sources, attachments, releases, readme, buildinfo).
func (d *DB) hydrateComponent(q querier, r *componentRow) (*Component, error) {
	creationDate, err := parseTime(r.CreationDate)
	if err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	bi, err := d.getBuildInfoTx(q, r.BuildID)
	if err != nil {
		return nil, err
	}

	files, _, err := d.listComponentFiles(q, RoleFile, r.ID, bi)
	if err != nil {
		return nil, err
	}
	sources, _, err := d.listComponentFiles(q, RoleSource, r.ID, bi)
	if err != nil {
		return nil, err
	}
	_, attachments, err := d.listComponentFiles(q, RoleAttachment, r.ID, bi)
	if err != nil {
		return nil, err
	}
	releases, err := d.listReleases(q, r.ID)
	if err != nil {
		return nil, err
	}

	c := &Component{
		ID: r.ID, Name: r.Name, Platform: r.Platform, Version: r.Version,
		BuildID: r.BuildID, CreationDate: creationDate,
		IsValid: r.IsValid != 0, IsPublished: r.IsPublished != 0,
		Metadata: meta, BuildInfo: bi,
		Files: files, Sources: sources, Attachments: attachments, Releases: releases,
	}
	if r.SpecName.Valid {
		c.SpecName = &r.SpecName.String
	}
	if r.ReadmeID.Valid {
		c.ReadmeID = &r.ReadmeID.String
		row := q.QueryRow(
			`SELECT id, name, alias, filename, build_id, kind, resource_id, revision, metadata, creation_date
			 FROM files WHERE id = ?`, r.ReadmeID.String,
		)
		fr, err := scanFileRow(row)
		if err != nil {
			return nil, err
		}
		readme, err := d.hydrateFile(q, fr, bi, nil, nil)
		if err != nil {
			return nil, err
		}
		c.Readme = readme
	}
	return c, nil
}

// insertComponentFiles inserts component_files rows for the "file" and
// "source" roles, which carry no attachment_name. Attachments go through
// insertAttachments instead, since that role requires a per-file name.
func (d *DB) insertComponentFiles(q querier, role ComponentFileRole, files []File, componentID string) error {
	for _, f := range files {
		internal := internalDefault(f.Kind)
		if f.Internal != nil {
			internal = *f.Internal
		}
		if _, err := q.Exec(
			`INSERT INTO component_files (kind, file_id, component_id, internal, attachment_name) VALUES (?, ?, ?, ?, NULL)`,
			string(role), f.ID, componentID, boolToInt(internal),
		); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) insertAttachments(q querier, attachments []Attachment, componentID string) error {
	for _, att := range attachments {
		internal := internalDefault(att.File.Kind)
		if att.File.Internal != nil {
			internal = *att.File.Internal
		}
		if _, err := q.Exec(
			`INSERT INTO component_files (kind, file_id, component_id, internal, attachment_name) VALUES ('attachment', ?, ?, ?, ?)`,
			att.File.ID, componentID, boolToInt(internal), att.Name,
		); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// normalizeAttachments takes attachments in list form ([]Attachment; the
// map[name]File form of Component.Attachments is converted first by
// attachmentsFromMap) and returns a name-unique list, rejecting empty or
// duplicate keys with KindInvalidInput.
func normalizeAttachments(attachments []Attachment) ([]Attachment, error) {
	seen := map[string]bool{}
	out := make([]Attachment, 0, len(attachments))
	for _, att := range attachments {
		if att.Name == "" {
			return nil, invalidInputf("attachment key must not be empty")
		}
		if seen[att.Name] {
			return nil, invalidInputf("duplicate attachment key %q", att.Name)
		}
		seen[att.Name] = true
		out = append(out, att)
	}
	return out, nil
}

// SubmitComponent implements Component registry submit (§4.4). It runs as a
// single transaction: a partial failure leaves no Component row visible.
func (d *DB) SubmitComponent(c ComponentSubmission) (*Component, error) {
	if c.BuildID == "" {
		return nil, invalidInputf("no build id associated with the component to submit")
	}
	attachments, err := normalizeAttachments(c.Attachments)
	if err != nil {
		return nil, err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := d.getBuildInfoTx(tx, c.BuildID); err != nil {
		return nil, err
	}

	var readmeID *string
	if c.Readme != nil {
		readme, err := d.submitFile(tx, *c.Readme)
		if err != nil {
			return nil, err
		}
		readmeID = &readme.ID
	}

	uploadedFiles := make([]File, 0, len(c.Files))
	for _, f := range c.Files {
		uploaded, err := d.submitFile(tx, f)
		if err != nil {
			return nil, err
		}
		uploadedFiles = append(uploadedFiles, *uploaded)
	}

	uploadedAttachments := make([]Attachment, 0, len(attachments))
	for _, att := range attachments {
		uploaded, err := d.submitFile(tx, att.File)
		if err != nil {
			return nil, err
		}
		uploadedAttachments = append(uploadedAttachments, Attachment{Name: att.Name, File: *uploaded})
	}

	id := d.ids.NewID()
	now := d.now()
	isValid := true
	if c.IsValid != nil {
		isValid = *c.IsValid
	}
	isPublished := false
	if c.IsPublished != nil {
		isPublished = *c.IsPublished
	}
	metaJSON, err := encodeMetadata(c.Metadata)
	if err != nil {
		return nil, err
	}
	var specname any
	if c.SpecName != nil {
		specname = *c.SpecName
	}
	var readmeIDArg any
	if readmeID != nil {
		readmeIDArg = *readmeID
	}

	if _, err := tx.Exec(
		`INSERT INTO components (id, name, platform, version, specname, build_id, creation_date, is_valid, is_published, readme_id, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.Name, c.Platform, c.Version, specname, c.BuildID, formatTime(now),
		boolToInt(isValid), boolToInt(isPublished), readmeIDArg, metaJSON,
	); err != nil {
		return nil, err
	}

	if err := d.insertComponentFiles(tx, RoleFile, uploadedFiles, id); err != nil {
		return nil, err
	}
	if err := d.insertComponentFiles(tx, RoleSource, c.Sources, id); err != nil {
		return nil, err
	}
	if err := d.insertAttachments(tx, uploadedAttachments, id); err != nil {
		return nil, err
	}
	for _, release := range c.Releases {
		if _, err := tx.Exec(`INSERT INTO component_releases (name, component_id) VALUES (?, ?)`, release, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	row := &componentRow{
		ID: id, Name: c.Name, Platform: c.Platform, Version: c.Version,
		BuildID: c.BuildID, CreationDate: formatTime(now),
		IsValid: boolToInt(isValid), IsPublished: boolToInt(isPublished),
		Metadata: metaJSON,
	}
	if c.SpecName != nil {
		row.SpecName = sql.NullString{String: *c.SpecName, Valid: true}
	}
	if readmeID != nil {
		row.ReadmeID = sql.NullString{String: *readmeID, Valid: true}
	}
	return d.hydrateComponent(d.q(), row)
}

// AddComponentAttachment implements Component registry add_attachment
// (§4.4): append one attachment row to an already-submitted Component.
func (d *DB) AddComponentAttachment(componentID, fileID, name string) error {
	_, err := d.q().Exec(
		`INSERT INTO component_files (kind, file_id, component_id, internal, attachment_name) VALUES ('attachment', ?, ?, 1, ?)`,
		fileID, componentID, name,
	)
	return err
}

// ListComponents implements Component registry list (§4.4).
func (d *DB) ListComponents(buildID, component, platform string) ([]Component, error) {
	where := []string{"build_id = ?"}
	args := []any{buildID}
	if component != "" && component != "all" {
		where = append(where, "name = ?")
		args = append(args, component)
	}
	if platform != "" && platform != "all" {
		where = append(where, "platform = ?")
		args = append(args, platform)
	}

	query := `SELECT id, name, platform, version, specname, build_id, creation_date, is_valid, is_published, readme_id, metadata
	          FROM components WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id DESC`
	return d.queryComponents(query, args...)
}

// LatestComponents implements Component registry latest (§4.4): for each
// (name, platform) pair, keep only the row with the greatest creation_date,
// breaking ties by id for determinism (§5 Ordering guarantees).
func (d *DB) LatestComponents(setup, date, platform, component, specname, buildID string) ([]Component, error) {
	where := []string{"buildinfos.setup = ?"}
	args := []any{setup}
	if date != "" && date != "all" {
		where = append(where, "buildinfos.build_date = ?")
		args = append(args, date)
	}
	if component != "" && component != "all" {
		where = append(where, "components.name = ?")
		args = append(args, component)
	}
	if platform != "" && platform != "all" {
		where = append(where, "components.platform = ?")
		args = append(args, platform)
	}
	if specname != "" && specname != "all" {
		where = append(where, "components.specname = ?")
		args = append(args, specname)
	}
	if buildID != "" && buildID != "all" {
		where = append(where, "components.build_id = ?")
		args = append(args, buildID)
	}

	query := `WITH latest AS (
		SELECT components.*, ROW_NUMBER() OVER (
			PARTITION BY components.name, components.platform
			ORDER BY components.creation_date DESC, components.id DESC
		) AS lc
		FROM components
		INNER JOIN buildinfos ON components.build_id = buildinfos.id
		WHERE ` + strings.Join(where, " AND ") + `
	)
	SELECT id, name, platform, version, specname, build_id, creation_date, is_valid, is_published, readme_id, metadata
	FROM latest WHERE lc = 1 ORDER BY creation_date DESC, id DESC`

	return d.queryComponents(query, args...)
}

// ListReleaseComponents implements Component registry list_releases (§4.4).
func (d *DB) ListReleaseComponents(releaseName, component, version, platform string) ([]Component, error) {
	comps, err := d.queryComponents(
		`SELECT components.id, components.name, components.platform, components.version, components.specname,
		        components.build_id, components.creation_date, components.is_valid, components.is_published,
		        components.readme_id, components.metadata
		 FROM component_releases
		 INNER JOIN components ON component_releases.component_id = components.id
		 WHERE component_releases.name = ?
		 ORDER BY components.id DESC`,
		releaseName,
	)
	if err != nil {
		return nil, err
	}

	out := comps[:0]
	for _, c := range comps {
		if component != "" && component != "all" && c.Name != component {
			continue
		}
		if version != "" && version != "all" && c.Version != version {
			continue
		}
		if platform != "" && platform != "all" && c.Platform != platform {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *DB) queryComponents(query string, args ...any) ([]Component, error) {
	rows, err := d.q().Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var crs []*componentRow
	for rows.Next() {
		cr, err := scanComponentRow(rows)
		if err != nil {
			return nil, err
		}
		crs = append(crs, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the connection before hydrating, which issues further queries.
	rows.Close()

	var out []Component
	for _, cr := range crs {
		c, err := d.hydrateComponent(d.q(), cr)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// GetBuildData implements Component registry get_build_data (§4.4).
func (d *DB) GetBuildData(bid string) (*BuildData, error) {
	rows, err := d.q().Query(
		`SELECT id, name, alias, filename, build_id, kind, resource_id, revision, metadata, creation_date
		 FROM files WHERE build_id = ? AND kind IN ('source', 'thirdparty') ORDER BY creation_date DESC`,
		bid,
	)
	if err != nil {
		return nil, err
	}
	var frs []*fileRow
	for rows.Next() {
		fr, err := scanFileRow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		frs = append(frs, fr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before hydrating, which issues further queries.
	rows.Close()

	var sources []File
	for _, fr := range frs {
		f, err := d.hydrateFile(d.q(), fr, nil, nil, nil)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *f)
	}

	comps, err := d.queryComponents(
		`SELECT id, name, platform, version, specname, build_id, creation_date, is_valid, is_published, readme_id, metadata
		 FROM components WHERE build_id = ? ORDER BY creation_date DESC`,
		bid,
	)
	if err != nil {
		return nil, err
	}
	return &BuildData{Sources: sources, Components: comps}, nil
}
