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
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"shanhu.io/misc/errcode"
)

// Context is what the packager hands to a descriptor's hooks.
type Context struct {
	Package string
	Version string

	// Sources is the sorted list of source files, as slash paths relative
	// to SrcDir. Excluded files are already removed and auxiliary sources
	// are already added. It is empty when Build runs, since the build may
	// generate sources.
	Sources []string

	SrcDir string // Source tree root.
	TopDir string // Distribution directory being laid out.
}

// VersionBin returns the release version packed as a hex literal.
func (c *Context) VersionBin() (string, error) {
	return VersionBin(c.Version)
}

// IncludeByRegex returns the entries in list that match re.
func (c *Context) IncludeByRegex(list []string, re *regexp.Regexp) []string {
	var ret []string
	for _, s := range list {
		if re.MatchString(s) {
			ret = append(ret, s)
		}
	}
	return ret
}

// ExcludeByRegex returns the entries in list that do not match re.
func (c *Context) ExcludeByRegex(list []string, re *regexp.Regexp) []string {
	var ret []string
	for _, s := range list {
		if !re.MatchString(s) {
			ret = append(ret, s)
		}
	}
	return ret
}

// RegexReplace replaces the matches of re in every entry of list. The
// replacement can refer to submatches with $1 and alike.
func (c *Context) RegexReplace(
	list []string, re *regexp.Regexp, repl string,
) []string {
	ret := make([]string, 0, len(list))
	for _, s := range list {
		ret = append(ret, re.ReplaceAllString(s, repl))
	}
	return ret
}

// SourcesToObjects maps C sources in list to the object files a build
// produces for them.
func (c *Context) SourcesToObjects(list []string, suffix string) []string {
	return sourcesToObjects(list, suffix)
}

// Run runs a command in dir, which is relative to the source tree.
func (c *Context) Run(dir, bin string, args ...string) error {
	log.Infof("run %s", strings.Join(append([]string{bin}, args...), " "))
	return runCmd(filepath.Join(c.SrcDir, filepath.FromSlash(dir)), bin, args...)
}

// Symlink creates a symbolic link at name, relative to the distribution
// directory, that points to target. It fails when name already exists.
func (c *Context) Symlink(target, name string) error {
	if c.TopDir == "" {
		return errcode.Internalf("distribution directory not set")
	}
	p := filepath.Join(c.TopDir, filepath.FromSlash(cleanRelPath(name)))
	if err := os.Symlink(target, p); err != nil {
		return errcode.Annotatef(err, "symlink %q", name)
	}
	return nil
}

// objectsDir is the build output directory that generated sources live in.
const objectsDir = ".objects"

// ObjectSuffix is the libtool object suffix.
const ObjectSuffix = ".lo"

func sourcesToObjects(list []string, suffix string) []string {
	var ret []string
	for _, s := range list {
		if !strings.HasSuffix(s, ".c") {
			continue
		}
		parts := strings.Split(s, "/")
		kept := parts[:0]
		for _, p := range parts {
			if p != objectsDir {
				kept = append(kept, p)
			}
		}
		obj := path.Join(kept...)
		ret = append(ret, strings.TrimSuffix(obj, ".c")+suffix)
	}
	return ret
}
