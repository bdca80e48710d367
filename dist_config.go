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
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/jsonx"
)

// DistConfig is the structure of a dist.jsonx or dist.toml file. It is a
// descriptor written as data rather than code.
type DistConfig struct {
	Package        string
	ExcludeSrc     string   `json:",omitempty"`
	AuxSources     []string `json:",omitempty"`
	AuxFiles       []string `json:",omitempty"`
	ExtraBuildDirs []string `json:",omitempty"`
	VersionInfo    string   `json:",omitempty"`

	// Commands to run in the source tree before packaging.
	BuildCmds [][]string `json:"Build,omitempty" toml:"Build"`

	// Symlinks to create in the distribution directory.
	Links []*Link `json:",omitempty"`

	// Replacement texts can use ${version}, ${version_bin}, ${objects},
	// ${versioninfo}, ${libversion} and ${package}.
	Replace []*Replacement `json:",omitempty"`

	// Object suffix for ${objects}. Defaults to ".lo".
	ObjectSuffix string `json:",omitempty"`
}

// Link is a symlink created when finalizing a distribution.
type Link struct {
	Dir    string `json:",omitempty"`
	Name   string
	Target string `json:",omitempty"` // Defaults to "."
}

// Default descriptor file names, in lookup order.
var distConfigFiles = []string{"dist.jsonx", "dist.toml"}

// ReadDistConfig reads a descriptor file. Files ending with .toml are TOML;
// everything else is jsonx.
func ReadDistConfig(f string) (*DistConfig, error) {
	c := new(DistConfig)
	if strings.HasSuffix(f, ".toml") {
		bs, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(bs, c); err != nil {
			return nil, errcode.Annotatef(err, "parse %q", f)
		}
		return c, nil
	}
	if err := jsonx.ReadFile(f, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindDistConfig looks for a descriptor file in dir.
func FindDistConfig(dir string) (string, error) {
	for _, name := range distConfigFiles {
		f := filepath.Join(dir, name)
		if _, err := os.Stat(f); err == nil {
			return f, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
	return "", errcode.NotFoundf(
		"no %s in %q", strings.Join(distConfigFiles, " or "), dir,
	)
}

// Meta returns the package metadata.
func (c *DistConfig) Meta() *Meta {
	return &Meta{
		Package:        c.Package,
		ExcludeSrc:     c.ExcludeSrc,
		AuxSources:     c.AuxSources,
		AuxFiles:       c.AuxFiles,
		ExtraBuildDirs: c.ExtraBuildDirs,
		VersionInfo:    c.VersionInfo,
	}
}

func (c *DistConfig) vars(ctx *Context) (map[string]string, error) {
	bin, err := ctx.VersionBin()
	if err != nil {
		return nil, errcode.Annotate(err, "pack version")
	}
	objects := c.Objects(ctx)
	return map[string]string{
		"package":     c.Package,
		"version":     ctx.Version,
		"version_bin": bin,
		"objects":     strings.Join(objects, " "),
		"versioninfo": c.VersionInfo,
		"libversion":  LibVersion(c.VersionInfo),
	}, nil
}

// Objects returns the C sources of ctx mapped to object files with the
// configured suffix.
func (c *DistConfig) Objects(ctx *Context) []string {
	suffix := c.ObjectSuffix
	if suffix == "" {
		suffix = ObjectSuffix
	}
	return ctx.SourcesToObjects(ctx.Sources, suffix)
}

func expandVars(s string, vars map[string]string) (string, error) {
	var missing []string
	ret := os.Expand(s, func(k string) string {
		v, ok := vars[k]
		if !ok {
			missing = append(missing, k)
		}
		return v
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", errcode.InvalidArgf(
			"unknown variables: %s", strings.Join(missing, ", "),
		)
	}
	return ret, nil
}

// Replacements returns the configured replacements with variables
// expanded.
func (c *DistConfig) Replacements(ctx *Context) ([]*Replacement, error) {
	vars, err := c.vars(ctx)
	if err != nil {
		return nil, err
	}

	var ret []*Replacement
	for i, r := range c.Replace {
		repl, err := expandVars(r.Replacement, vars)
		if err != nil {
			return nil, errcode.Annotatef(err, "replacement #%d", i)
		}
		ret = append(ret, &Replacement{
			Tag:         r.Tag,
			Replacement: repl,
			Files:       r.Files,
			Regex:       r.Regex,
		})
	}
	return ret, nil
}

// Build runs the configured build commands in order.
func (c *DistConfig) Build(ctx *Context) error {
	for _, args := range c.BuildCmds {
		if len(args) == 0 {
			continue
		}
		if err := ctx.Run("", args[0], args[1:]...); err != nil {
			return errcode.Annotatef(err, "build %q", strings.Join(args, " "))
		}
	}
	return nil
}

// Finalize creates the configured symlinks.
func (c *DistConfig) Finalize(ctx *Context) error {
	for _, l := range c.Links {
		target := l.Target
		if target == "" {
			target = "."
		}
		if err := ctx.Symlink(target, path.Join(l.Dir, l.Name)); err != nil {
			return err
		}
	}
	return nil
}
