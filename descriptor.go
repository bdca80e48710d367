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
	"regexp"

	"shanhu.io/text/lexing"
)

// Meta is the static package metadata of a descriptor.
type Meta struct {
	Package string

	// ExcludeSrc is a regular expression. Source files whose path, with a
	// leading slash, matches it are left out.
	ExcludeSrc string `json:",omitempty"`

	// Glob patterns of generated sources to add to the source list.
	AuxSources []string `json:",omitempty"`

	// Plain files to add to the distribution.
	AuxFiles []string `json:",omitempty"`

	// Directories the build writes into, created empty in the
	// distribution.
	ExtraBuildDirs []string `json:",omitempty"`

	// Libtool version info, current:revision:age.
	VersionInfo string `json:",omitempty"`
}

// Descriptor describes how to package a source distribution.
type Descriptor interface {
	// Meta returns the static package metadata.
	Meta() *Meta

	// Replacements returns the substitutions to apply to the packaged
	// files, in application order.
	Replacements(ctx *Context) ([]*Replacement, error)

	// Finalize runs after the distribution directory is laid out and
	// before it is archived.
	Finalize(ctx *Context) error
}

// Builder is implemented by descriptors that need to build something in the
// source tree, like documentation, before packaging.
type Builder interface {
	Build(ctx *Context) error
}

// ObjectLister is implemented by descriptors that derive their object file
// list in their own way.
type ObjectLister interface {
	Objects(ctx *Context) []string
}

// Objects returns the object file list of a descriptor. Descriptors that
// are not an ObjectLister get SourcesToObjects with ObjectSuffix.
func Objects(d Descriptor, ctx *Context) []string {
	if l, ok := d.(ObjectLister); ok {
		return l.Objects(ctx)
	}
	return ctx.SourcesToObjects(ctx.Sources, ObjectSuffix)
}

func checkMeta(m *Meta, version string) []*lexing.Error {
	errList := lexing.NewErrorList()
	if m.Package == "" {
		errList.Errorf(nil, "package name is empty")
	}
	if version == "" {
		errList.Errorf(nil, "version is empty")
	}
	if m.ExcludeSrc != "" {
		if _, err := regexp.Compile(m.ExcludeSrc); err != nil {
			errList.Errorf(nil, "invalid exclude pattern: %s", err)
		}
	}
	if m.VersionInfo != "" {
		if err := checkVersionInfo(m.VersionInfo); err != nil {
			errList.Errorf(nil, "%s", err)
		}
	}
	return errList.Errs()
}
