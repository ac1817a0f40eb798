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
	"io"
	"os"
	"path/filepath"
)

// querier is satisfied by both *sql.DB and *sql.Tx, letting the resource
// helpers run either standalone or as part of a larger transaction (as they
// do from raw_add_component's cascade of raw_add_file calls).
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (d *DB) q() querier {
	return d.conn
}

// getResource looks up a Resource row by its content id. Returns a
// KindNotFound *Error when absent.
func getResource(q querier, resourceID string) (*Resource, error) {
	row := q.QueryRow(
		`SELECT resource_id, path, size, creation_date FROM resources WHERE resource_id = ?`,
		resourceID,
	)
	var r Resource
	var creationDate string
	if err := row.Scan(&r.ID, &r.Path, &r.Size, &creationDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundf("resource %q not found", resourceID)
		}
		return nil, err
	}
	t, err := parseTime(creationDate)
	if err != nil {
		return nil, err
	}
	r.CreationDate = t
	return &r, nil
}

// ensureResource implements Resource.ensure (§4.1): if a row exists for
// resourceID, return it, rewriting its path if the stored one no longer
// points at a regular file. Otherwise insert a fresh row. Bytes themselves
// are never read by the store; localPath is trusted to already hold them.
func (d *DB) ensureResource(q querier, resourceID, localPath string, size int64) (*Resource, error) {
	existing, err := getResource(q, resourceID)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		if _, statErr := os.Stat(existing.Path); statErr != nil {
			if _, err := q.Exec(`UPDATE resources SET path = ? WHERE resource_id = ?`, localPath, resourceID); err != nil {
				return nil, err
			}
			existing.Path = localPath
		}
		return existing, nil
	}

	now := formatTime(d.now())
	if _, err := q.Exec(
		`INSERT INTO resources (resource_id, path, size, creation_date) VALUES (?, ?, ?, ?)`,
		resourceID, localPath, size, now,
	); err != nil {
		return nil, err
	}
	t, _ := parseTime(now)
	return &Resource{ID: resourceID, Path: localPath, Size: size, CreationDate: t}, nil
}

// ensureResourceAt inserts resourceID verbatim with the given path, size and
// creation_date, used by raw_add_file where the embedded Resource's
// creation_date must be preserved rather than re-stamped.
func (d *DB) ensureResourceAt(q querier, r Resource) (*Resource, error) {
	existing, err := getResource(q, r.ID)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		if r.Path != "" {
			if _, statErr := os.Stat(existing.Path); statErr != nil {
				if _, err := q.Exec(`UPDATE resources SET path = ? WHERE resource_id = ?`, r.Path, r.ID); err != nil {
					return nil, err
				}
				existing.Path = r.Path
			}
		}
		return existing, nil
	}

	creationDate := formatTime(r.CreationDate)
	if r.CreationDate.IsZero() {
		creationDate = formatTime(d.now())
	}
	if _, err := q.Exec(
		`INSERT INTO resources (resource_id, path, size, creation_date) VALUES (?, ?, ?, ?)`,
		r.ID, r.Path, r.Size, creationDate,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// downloadResource implements Reader.DownloadResource (§4.1): copy the bytes
// currently backing resourceID to destPath, returning the absolute path
// written.
func (d *DB) downloadResource(resourceID, destPath string) (string, error) {
	r, err := getResource(d.q(), resourceID)
	if err != nil {
		return "", err
	}
	if err := copyFile(r.Path, destPath); err != nil {
		return "", resourceIOf(err, "download resource %q to %q", resourceID, destPath)
	}
	abs, err := filepath.Abs(destPath)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("destination directory: %w", err)
		}
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy bytes: %w", err)
	}
	return out.Close()
}
