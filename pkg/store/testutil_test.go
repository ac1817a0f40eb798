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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stepClock advances by one second on every Now() call, starting at base, so
// rows inserted in sequence get strictly increasing creation_date values
// without depending on wall-clock time.
type stepClock struct {
	base time.Time
	n    int
}

func (c *stepClock) Now() time.Time {
	t := c.base.Add(time.Duration(c.n) * time.Second)
	c.n++
	return t
}

func newStepClock() *stepClock {
	return &stepClock{base: time.Date(2024, 10, 28, 12, 0, 0, 0, time.UTC)}
}

// seqIDs hands out predictable, prefixed ids so tests can assert on exact
// values instead of matching a random UUID.
type seqIDs struct {
	prefix string
	n      int
}

func (g *seqIDs) NewID() string {
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", WithClock(newStepClock()), WithIDGenerator(&seqIDs{prefix: "id"}))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// writeBytes creates a file under t.TempDir() containing body and returns its
// path, standing in for bytes a caller has already downloaded to local disk.
func writeBytes(t *testing.T, name string, body []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, body, 0644))
	return path
}

func must[T any](t *testing.T, v T, err error) T {
	t.Helper()
	require.NoError(t, err)
	return v
}
