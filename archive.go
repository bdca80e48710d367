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
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/jsonutil"
)

// walkDist lists everything under the distribution directory as slash
// paths, in lexical order. Symlinks are listed but not followed.
func walkDist(env *env) ([]string, error) {
	var ret []string
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == env.topDir {
			return nil
		}
		rel, err := filepath.Rel(env.topDir, p)
		if err != nil {
			return err
		}
		ret = append(ret, filepath.ToSlash(rel))
		return nil
	}
	if err := filepath.WalkDir(env.topDir, walk); err != nil {
		return nil, err
	}
	return ret, nil
}

func tarHeader(env *env, prefix, name string) (*tar.Header, error) {
	info, err := os.Lstat(env.top(name))
	if err != nil {
		return nil, err
	}
	link := ""
	if info.Mode()&os.ModeSymlink != 0 {
		l, err := os.Readlink(env.top(name))
		if err != nil {
			return nil, errcode.Annotate(err, "read link")
		}
		link = l
	}
	h, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return nil, err
	}
	h.Name = path.Join(prefix, name)
	if info.IsDir() {
		h.Name += "/"
	}
	h.Uid, h.Gid = 0, 0
	h.Uname, h.Gname = "", ""
	h.Format = tar.FormatPAX
	return h, nil
}

func writeTar(w io.Writer, env *env, prefix string, names []string) error {
	tw := tar.NewWriter(w)
	top, err := tarHeader(env, "", ".")
	if err != nil {
		return errcode.Annotate(err, "top dir")
	}
	top.Name = prefix + "/"
	if err := tw.WriteHeader(top); err != nil {
		return err
	}

	for _, name := range names {
		h, err := tarHeader(env, prefix, name)
		if err != nil {
			return errcode.Annotatef(err, "header of %q", name)
		}
		if err := tw.WriteHeader(h); err != nil {
			return errcode.Annotatef(err, "write header of %q", name)
		}
		if h.Typeflag != tar.TypeReg {
			continue
		}
		if err := copyFileTo(tw, env.top(name)); err != nil {
			return errcode.Annotatef(err, "write %q", name)
		}
	}
	return tw.Close()
}

func copyFileTo(w io.Writer, f string) error {
	r, err := os.Open(f)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(w, r)
	return err
}

// writeArchive writes the distribution directory into a gzipped tarball
// and returns its sha256 checksum.
func writeArchive(env *env, out string, names []string) (string, error) {
	f, err := os.Create(out)
	if err != nil {
		return "", errcode.Annotate(err, "create")
	}
	defer f.Close()

	h := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(f, h))
	prefix := filepath.Base(env.topDir)
	if err := writeTar(gz, env, prefix, names); err != nil {
		return "", errcode.Annotate(err, "write tar")
	}
	if err := gz.Close(); err != nil {
		return "", errcode.Annotate(err, "flush gzip")
	}
	if err := f.Sync(); err != nil {
		return "", errcode.Annotate(err, "filesystem sync")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeManifest records the size, mode and checksum of every regular file
// in the distribution directory.
func writeManifest(env *env, out string, names []string) (int, error) {
	var list []*fileStat
	for _, name := range names {
		s, err := newFileStat(env, name, fileTypeDist)
		if err != nil {
			return 0, errcode.Annotatef(err, "stat %q", name)
		}
		if !os.FileMode(s.Mode).IsRegular() {
			continue
		}
		sum, err := fileSha256(env.top(name))
		if err != nil {
			return 0, errcode.Annotatef(err, "checksum %q", name)
		}
		s.ModTimestamp = 0
		s.Sha256 = sum
		list = append(list, s)
	}
	if err := jsonutil.WriteFile(out, list); err != nil {
		return 0, err
	}
	return len(list), nil
}
