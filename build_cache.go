// Copyright (C) 2022  Shanhu Tech Inc.
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, either version 3 of the License, or (at your
// option) any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU Affero General Public License
// for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package mkdist

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"shanhu.io/misc/errcode"

	_ "modernc.org/sqlite" // sql driver
)

var errNotFoundInCache = errors.New("not found in cache")

// builtDist records a packaged distribution.
type builtDist struct {
	Digest   string
	Package  string
	Version  string
	Archive  *fileStat // Tarball, relative to the output directory.
	Manifest string    `json:",omitempty"`
	Sha256   string
	Files    int
	Created  time.Time
}

type buildCache struct {
	db *sql.DB
}

const buildCacheSchema = `
CREATE TABLE IF NOT EXISTS dists (
	digest TEXT PRIMARY KEY,
	package TEXT NOT NULL,
	version TEXT NOT NULL,
	created INTEGER NOT NULL,
	built TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS dists_package ON dists (package, created);
`

func newBuildCache(f string) (*buildCache, error) {
	if err := os.MkdirAll(filepath.Dir(f), 0755); err != nil {
		return nil, errcode.Annotate(err, "make cache dir")
	}
	db, err := sql.Open("sqlite", f)
	if err != nil {
		return nil, errcode.Annotate(err, "open database")
	}
	if _, err := db.Exec(buildCacheSchema); err != nil {
		db.Close()
		return nil, errcode.Annotate(err, "create tables")
	}
	return &buildCache{db: db}, nil
}

func (c *buildCache) get(digest string) (*builtDist, error) {
	row := c.db.QueryRow(`SELECT built FROM dists WHERE digest=?`, digest)
	var bs []byte
	if err := row.Scan(&bs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFoundInCache
		}
		return nil, err
	}
	b := new(builtDist)
	if err := json.Unmarshal(bs, b); err != nil {
		return nil, errcode.Annotate(err, "unmarshal built")
	}
	return b, nil
}

func (c *buildCache) put(b *builtDist) error {
	bs, err := json.Marshal(b)
	if err != nil {
		return errcode.Annotate(err, "marshal built")
	}
	if _, err := c.db.Exec(
		`INSERT OR REPLACE INTO dists (digest, package, version, created, built)
		VALUES (?, ?, ?, ?, ?)`,
		b.Digest, b.Package, b.Version, b.Created.UnixNano(), bs,
	); err != nil {
		return errcode.Annotate(err, "insert")
	}
	return nil
}

func (c *buildCache) remove(digest string) error {
	_, err := c.db.Exec(`DELETE FROM dists WHERE digest=?`, digest)
	return err
}

// list returns the distributions built for a package, latest first.
func (c *buildCache) list(pkg string) ([]*builtDist, error) {
	rows, err := c.db.Query(
		`SELECT built FROM dists WHERE package=? ORDER BY created DESC`,
		pkg,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []*builtDist
	for rows.Next() {
		var bs []byte
		if err := rows.Scan(&bs); err != nil {
			return nil, err
		}
		b := new(builtDist)
		if err := json.Unmarshal(bs, b); err != nil {
			return nil, errcode.Annotate(err, "unmarshal built")
		}
		ret = append(ret, b)
	}
	return ret, rows.Err()
}

func (c *buildCache) Close() error { return c.db.Close() }
