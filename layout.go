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
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/strutil"
)

type layout struct {
	files     []string // sources and aux files
	buildDirs []string
	replacers []*replacer
}

func (l *layout) check() error {
	set := strutil.MakeSet(l.files)
	for _, f := range replacementTargets(l.replacers) {
		if !set[f] {
			return errcode.NotFoundf(
				"replacement target %q is not in the distribution", f,
			)
		}
	}
	return nil
}

func copyLink(src, dest string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	return os.Symlink(target, dest)
}

func (l *layout) copyFile(env *env, f string) error {
	src := env.src(f)
	dest := env.top(f)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errcode.Annotate(err, "make dir")
	}

	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return copyLink(src, dest)
	}
	if !info.Mode().IsRegular() {
		return errcode.InvalidArgf("%q is not a regular file", f)
	}

	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	content, changed := applyReplacers(f, content, l.replacers)
	if changed {
		log.Debugf("replaced in %s", f)
	}
	return os.WriteFile(dest, content, info.Mode().Perm())
}

// lay copies the files into the distribution directory, applying the
// replacements. The distribution directory must not exist yet.
func (l *layout) lay(env *env) error {
	if err := l.check(); err != nil {
		return err
	}

	if _, err := os.Lstat(env.topDir); err == nil {
		return errcode.InvalidArgf("%q already exists", env.topDir)
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(env.topDir, 0755); err != nil {
		return errcode.Annotate(err, "make distribution dir")
	}

	for _, f := range l.files {
		if err := l.copyFile(env, f); err != nil {
			return errcode.Annotatef(err, "copy %q", f)
		}
	}
	for _, d := range l.buildDirs {
		if err := os.MkdirAll(env.top(cleanRelPath(d)), 0755); err != nil {
			return errcode.Annotatef(err, "make build dir %q", d)
		}
	}
	return nil
}
