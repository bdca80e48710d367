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
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"shanhu.io/misc/errcode"
)

type fileStat struct {
	Name         string
	Type         string
	Size         int64
	ModTimestamp int64 `json:",omitempty"`
	Mode         uint32
	Sha256       string `json:",omitempty"`
}

const (
	fileTypeSrc  = "s"
	fileTypeOut  = "o"
	fileTypeDist = "d"
)

func (e *env) fileTypePath(t, p string) string {
	switch t {
	case fileTypeOut:
		return e.out(p)
	case fileTypeDist:
		return e.top(p)
	}
	return e.src(p)
}

func newSrcFileStat(env *env, p string) (*fileStat, error) {
	return newFileStat(env, p, fileTypeSrc)
}

func newOutFileStat(env *env, p string) (*fileStat, error) {
	return newFileStat(env, p, fileTypeOut)
}

func newFileStat(env *env, p, t string) (*fileStat, error) {
	f := env.fileTypePath(t, p)
	info, err := os.Lstat(f)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errcode.NotFoundf("%s:%s not found", t, p)
		}
		return nil, err
	}

	return &fileStat{
		Name:         p,
		Type:         t,
		Size:         info.Size(),
		ModTimestamp: info.ModTime().UnixNano(),
		Mode:         uint32(info.Mode()),
	}, nil
}

// newInputFileStat stats a source file by content rather than by time, so
// a build step that rewrites a file with the same bytes does not change it.
// Symlinks are keyed by their target.
func newInputFileStat(env *env, p string) (*fileStat, error) {
	stat, err := newSrcFileStat(env, p)
	if err != nil {
		return nil, err
	}
	stat.ModTimestamp = 0

	f := env.src(p)
	if os.FileMode(stat.Mode)&os.ModeSymlink != 0 {
		target, err := os.Readlink(f)
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256([]byte(target))
		stat.Sha256 = hex.EncodeToString(sum[:])
		return stat, nil
	}

	sum, err := fileSha256(f)
	if err != nil {
		return nil, errcode.Annotate(err, "checksum")
	}
	stat.Sha256 = sum
	return stat, nil
}

func sameFileStat(env *env, stat *fileStat) (bool, error) {
	cur, err := newFileStat(env, stat.Name, stat.Type)
	if err != nil {
		if errcode.IsNotFound(err) {
			return false, nil
		}
		return false, errcode.Annotate(err, "check current")
	}

	same := cur.Size == stat.Size
	same = same && cur.ModTimestamp == stat.ModTimestamp
	same = same && cur.Mode == stat.Mode

	return same, nil
}

func fileSha256(f string) (string, error) {
	r, err := os.Open(f)
	if err != nil {
		return "", err
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
