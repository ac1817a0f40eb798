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
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS buildinfos (
	id            TEXT NOT NULL PRIMARY KEY,
	build_date    TEXT NOT NULL,
	setup         TEXT NOT NULL,
	creation_date TEXT NOT NULL,
	build_version TEXT NOT NULL,
	isready       INTEGER NOT NULL DEFAULT 0 CHECK(isready IN (0, 1))
);

CREATE TABLE IF NOT EXISTS resources (
	row_id        INTEGER PRIMARY KEY AUTOINCREMENT,
	resource_id   TEXT NOT NULL UNIQUE,
	path          TEXT NOT NULL,
	size          INTEGER NOT NULL,
	creation_date TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	id            TEXT NOT NULL PRIMARY KEY,
	name          TEXT NOT NULL,
	alias         TEXT NOT NULL,
	filename      TEXT NOT NULL,
	build_id      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	resource_id   TEXT NOT NULL,
	revision      TEXT NOT NULL,
	metadata      TEXT NOT NULL,
	creation_date TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS component_files (
	row_id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind            TEXT NOT NULL,
	file_id         TEXT NOT NULL,
	component_id    TEXT NOT NULL,
	internal        INTEGER NOT NULL DEFAULT 1 CHECK(internal IN (0, 1)),
	attachment_name TEXT,
	CHECK (
		(attachment_name IS NOT NULL AND kind = 'attachment')
		OR kind IN ('file', 'source')
	)
);

CREATE TABLE IF NOT EXISTS component_releases (
	row_id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	component_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS components (
	id            TEXT NOT NULL PRIMARY KEY,
	name          TEXT NOT NULL,
	platform      TEXT NOT NULL,
	version       TEXT NOT NULL,
	specname      TEXT,
	build_id      TEXT NOT NULL,
	creation_date TEXT NOT NULL,
	is_valid      INTEGER NOT NULL DEFAULT 1 CHECK(is_valid IN (0, 1)),
	is_published  INTEGER NOT NULL DEFAULT 0 CHECK(is_published IN (0, 1)),
	readme_id     TEXT,
	metadata      TEXT NOT NULL
);
`

// DB wraps the single sqlite connection a store handle owns. Per the
// concurrency model, a DB is single-writer and not safe to share across
// goroutines.
type DB struct {
	conn   *sql.DB
	dbPath string
	clock  Clock
	ids    IDGenerator
}

// Option customizes a newly opened DB.
type Option func(*DB)

// WithClock overrides the Clock used for creation_date stamping. Intended
// for tests that need deterministic ordering.
func WithClock(c Clock) Option {
	return func(d *DB) { d.clock = c }
}

// WithIDGenerator overrides the IDGenerator used for fresh row ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *DB) { d.ids = g }
}

// Open creates (if needed) the six backing tables at path and returns a DB
// handle. Passing ":memory:" opens a private in-memory database, handy for
// tests.
func Open(path string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection keeps writes serialized, matching the
	// single-writer-per-handle concurrency model.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	d := &DB{conn: conn, dbPath: path, clock: SystemClock, ids: UUIDGenerator}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close flushes and closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) now() time.Time {
	return d.clock.Now()
}
