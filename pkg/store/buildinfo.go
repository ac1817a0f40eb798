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
	"errors"
	"fmt"
	"strings"
)

func scanBuildInfo(row interface {
	Scan(dest ...any) error
}) (*BuildInfo, error) {
	var bi BuildInfo
	var creationDate string
	var isready int
	if err := row.Scan(&bi.ID, &bi.BuildDate, &bi.Setup, &creationDate, &bi.BuildVersion, &isready); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundf("buildinfo not found")
		}
		return nil, err
	}
	t, err := parseTime(creationDate)
	if err != nil {
		return nil, err
	}
	bi.CreationDate = t
	bi.IsReady = isready != 0
	return &bi, nil
}

// CreateBuildID implements BuildInfo registry create (§4.2).
func (d *DB) CreateBuildID(setup, date, version string) (*BuildInfo, error) {
	id := d.ids.NewID()
	now := d.now()
	if _, err := d.q().Exec(
		`INSERT INTO buildinfos (id, build_date, setup, creation_date, build_version, isready)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		id, date, setup, formatTime(now), version,
	); err != nil {
		return nil, err
	}
	return &BuildInfo{
		ID: id, Setup: setup, BuildDate: date, BuildVersion: version,
		CreationDate: now, IsReady: false,
	}, nil
}

// MarkBuildReady implements BuildInfo registry mark_ready (§4.2). Returns
// the final value of isready (always true on success).
func (d *DB) MarkBuildReady(id string) (bool, error) {
	res, err := d.q().Exec(`UPDATE buildinfos SET isready = 1 WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, notFoundf("buildinfo %q not found", id)
	}
	return true, nil
}

// GetBuildInfo implements BuildInfo registry get (§4.2).
func (d *DB) GetBuildInfo(id string) (*BuildInfo, error) {
	row := d.q().QueryRow(
		`SELECT id, build_date, setup, creation_date, build_version, isready
		 FROM buildinfos WHERE id = ?`, id,
	)
	bi, err := scanBuildInfo(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFoundf("buildinfo %q not found", id)
		}
		return nil, err
	}
	return bi, nil
}

// GetLatestBuildInfo implements BuildInfo registry get_latest (§4.2).
func (d *DB) GetLatestBuildInfo(setup, date, version string, readyOnly bool) (*BuildInfo, error) {
	where := []string{"setup = ?"}
	args := []any{setup}
	if date != "" && date != "all" {
		where = append(where, "build_date = ?")
		args = append(args, date)
	}
	if version != "" && version != "all" {
		where = append(where, "build_version = ?")
		args = append(args, version)
	}
	if readyOnly {
		where = append(where, "isready = 1")
	}

	query := fmt.Sprintf(
		`SELECT id, build_date, setup, creation_date, build_version, isready
		 FROM buildinfos WHERE %s
		 ORDER BY build_date DESC, creation_date DESC LIMIT 1`,
		strings.Join(where, " AND "),
	)
	row := d.q().QueryRow(query, args...)
	bi, err := scanBuildInfo(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFoundf("no buildinfo matching setup=%q date=%q version=%q ready_only=%v", setup, date, version, readyOnly)
		}
		return nil, err
	}
	return bi, nil
}

// ListBuildInfos implements BuildInfo registry list (§4.2).
//
// When date is a compact YYYYMMDD string, results are restricted to the
// inclusive window [date - nbDays days, date] against the canonicalized
// build_date column. "all" or empty means no date filter.
func (d *DB) ListBuildInfos(date, setup, version string, nbDays int) ([]BuildInfo, error) {
	where := []string{}
	args := []any{}

	if date != "" && date != "all" {
		if len(date) != 8 {
			return nil, invalidInputf("date must be YYYYMMDD or \"all\", got %q", date)
		}
		canon := fmt.Sprintf("%s-%s-%s", date[:4], date[4:6], date[6:8])
		where = append(where, fmt.Sprintf(
			`(substr(build_date, 1, 4) || '-' || substr(build_date, 5, 2) || '-' || substr(build_date, 7, 2))
			 BETWEEN date(?, '-' || ? || ' days') AND date(?)`,
		))
		args = append(args, canon, nbDays, canon)
	}
	if setup != "" && setup != "all" {
		where = append(where, "setup = ?")
		args = append(args, setup)
	}
	if version != "" && version != "all" {
		where = append(where, "build_version = ?")
		args = append(args, version)
	}

	query := `SELECT id, build_date, setup, creation_date, build_version, isready FROM buildinfos`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := d.q().Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BuildInfo
	for rows.Next() {
		bi, err := scanBuildInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *bi)
	}
	return out, rows.Err()
}

// CopyBuildID implements BuildInfo registry copy (§4.2): fork bid into
// destSetup, carrying over build_date and build_version but never isready
// (the new BuildInfo always starts not-ready).
func (d *DB) CopyBuildID(bid, destSetup string) (*BuildInfo, error) {
	src, err := d.GetBuildInfo(bid)
	if err != nil {
		return nil, err
	}
	id := d.ids.NewID()
	now := d.now()
	if _, err := d.q().Exec(
		`INSERT INTO buildinfos (id, build_date, setup, creation_date, build_version, isready)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		id, src.BuildDate, destSetup, formatTime(now), src.BuildVersion,
	); err != nil {
		return nil, err
	}
	return &BuildInfo{
		ID: id, Setup: destSetup, BuildDate: src.BuildDate, BuildVersion: src.BuildVersion,
		CreationDate: now, IsReady: false,
	}, nil
}
