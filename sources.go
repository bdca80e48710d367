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
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/charmbracelet/log"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/osutil"
	"shanhu.io/misc/strutil"
)

// listAllFiles lists the files under dir, skipping .git and the directory
// skip, which is usually the output directory. The two paths are compared
// in absolute form, so either can be relative to the working directory.
func listAllFiles(dir, skip string) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errcode.Annotate(err, "resolve source dir")
	}
	if skip != "" {
		abs, err := filepath.Abs(skip)
		if err != nil {
			return nil, errcode.Annotate(err, "resolve skipped dir")
		}
		skip = abs
	}

	var files []string
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || (p != root && p == skip) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	}

	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, err
	}
	return files, nil
}

// listGitFiles lists the files in the git index of dir that are present in
// the working tree. Tracked files deleted from the tree are skipped, and so
// are submodules, which show up as directories.
func listGitFiles(dir string) ([]string, error) {
	out, err := runCmdOutput(
		dir, "git", "ls-files", "-z", "--cached", "--exclude-standard",
	)
	if err != nil {
		return nil, errcode.Annotate(err, "git ls-files")
	}
	var files []string
	for _, f := range bytes.Split(out, []byte{0}) {
		if len(f) > 0 {
			files = append(files, string(f))
		}
	}
	return presentFiles(dir, files)
}

// presentFiles keeps the entries of files that exist under dir as regular
// files or symlinks.
func presentFiles(dir string, files []string) ([]string, error) {
	var ret []string
	for _, f := range files {
		info, err := os.Lstat(filepath.Join(dir, filepath.FromSlash(f)))
		if err != nil {
			if os.IsNotExist(err) {
				log.Debugf("skip missing %s", f)
				continue
			}
			return nil, errcode.Annotatef(err, "stat %q", f)
		}
		mode := info.Mode()
		if !mode.IsRegular() && mode&os.ModeSymlink == 0 {
			log.Debugf("skip non-file %s", f)
			continue
		}
		ret = append(ret, f)
	}
	return ret, nil
}

// listTreeFiles lists the files tracked in the source tree. For a git
// checkout these are the files git knows about; otherwise it is every file.
func listTreeFiles(env *env) ([]string, error) {
	isGit, err := osutil.IsDir(env.src(".git"))
	if err != nil {
		return nil, errcode.Annotate(err, "check git dir")
	}
	if isGit {
		return listGitFiles(env.srcDir)
	}
	return listAllFiles(env.srcDir, env.outDir)
}

func globSources(env *env, pattern string) ([]string, error) {
	matches, err := filepath.Glob(env.src(cleanRelPath(pattern)))
	if err != nil {
		return nil, errcode.Annotatef(err, "glob %q", pattern)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%q select no files", pattern)
	}

	var ret []string
	for _, match := range matches {
		rel, err := filepath.Rel(env.srcDir, match)
		if err != nil {
			return nil, errcode.Annotatef(
				err, "get relative path for %q", match,
			)
		}
		ret = append(ret, filepath.ToSlash(rel))
	}
	return ret, nil
}

// listSources returns the sorted source list of a distribution: the files
// in the source tree that are not excluded, plus the auxiliary sources.
func listSources(env *env, m *Meta) ([]string, error) {
	files, err := listTreeFiles(env)
	if err != nil {
		return nil, errcode.Annotate(err, "list source tree")
	}

	var exclude *regexp.Regexp
	if m.ExcludeSrc != "" {
		re, err := regexp.Compile(m.ExcludeSrc)
		if err != nil {
			return nil, errcode.Annotate(err, "compile exclude pattern")
		}
		exclude = re
	}

	set := make(map[string]bool)
	for _, f := range files {
		if exclude != nil && exclude.MatchString(rootedPath(f)) {
			continue
		}
		set[f] = true
	}

	for _, pat := range m.AuxSources {
		matches, err := globSources(env, pat)
		if err != nil {
			return nil, errcode.Annotate(err, "aux sources")
		}
		for _, f := range matches {
			set[f] = true
		}
	}
	return strutil.SortedList(set), nil
}

// listAuxFiles checks that all auxiliary files exist and returns their
// cleaned paths.
func listAuxFiles(env *env, m *Meta) ([]string, error) {
	var ret []string
	for _, f := range m.AuxFiles {
		f = cleanRelPath(f)
		ok, err := osutil.IsRegular(env.src(f))
		if err != nil {
			return nil, errcode.Annotatef(err, "check aux file %q", f)
		}
		if !ok {
			return nil, errcode.NotFoundf("aux file %q not found", f)
		}
		ret = append(ret, f)
	}
	return ret, nil
}
