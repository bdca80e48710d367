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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/idutil"
	"shanhu.io/misc/strutil"
	"shanhu.io/text/lexing"
)

// Config provides the configuration to start a packager.
type Config struct {
	Src     string // Source directory
	Out     string // Output directory
	Version string // Release version

	Force   bool // Package even when the cache has the same distribution.
	NoCache bool // Do not read or record the build cache.
}

// Packager packages source distributions.
type Packager struct {
	env     *env
	version string
	force   bool
	noCache bool
}

const cacheFile = "mkdist.db"

// NewPackager creates a new packager.
func NewPackager(config *Config) *Packager {
	env := &env{
		srcDir: config.Src,
		outDir: config.Out,
	}
	return &Packager{
		env:     env,
		version: config.Version,
		force:   config.Force,
		noCache: config.NoCache,
	}
}

// Result is the outcome of packaging a distribution.
type Result struct {
	Archive  string // Path to the tarball.
	Manifest string // Path to the manifest.
	Sha256   string // Checksum of the tarball.
	Files    int    // Number of regular files packaged.
	Cached   bool   // If the tarball was reused from an earlier run.
}

// DistName returns the name of the distribution, which is also the name
// of its top directory.
func DistName(pkg, version string) string {
	return pkg + "-" + version
}

// Check validates the descriptor's metadata.
func (p *Packager) Check(d Descriptor) []*lexing.Error {
	return checkMeta(d.Meta(), p.version)
}

func (p *Packager) newContext(d Descriptor) *Context {
	m := d.Meta()
	p.env.topDir = p.env.out(DistName(m.Package, p.version))
	return &Context{
		Package: m.Package,
		Version: p.version,
		SrcDir:  p.env.srcDir,
		TopDir:  p.env.topDir,
	}
}

// Context returns the context that the descriptor's hooks would see,
// without building or laying out anything.
func (p *Packager) Context(d Descriptor) (*Context, error) {
	ctx := p.newContext(d)
	srcs, err := listSources(p.env, d.Meta())
	if err != nil {
		return nil, errcode.Annotate(err, "list sources")
	}
	ctx.Sources = srcs
	return ctx, nil
}

type distPlan struct {
	ctx       *Context
	meta      *Meta
	rules     []*Replacement
	replacers []*replacer
	files     []string
	digest    string
}

func (p *Packager) plan(d Descriptor) (*distPlan, error) {
	ctx := p.newContext(d)
	m := d.Meta()

	if b, ok := d.(Builder); ok {
		if err := b.Build(ctx); err != nil {
			return nil, errcode.Annotate(err, "build")
		}
	}

	srcs, err := listSources(p.env, m)
	if err != nil {
		return nil, errcode.Annotate(err, "list sources")
	}
	ctx.Sources = srcs

	aux, err := listAuxFiles(p.env, m)
	if err != nil {
		return nil, err
	}

	rules, err := d.Replacements(ctx)
	if err != nil {
		return nil, errcode.Annotate(err, "get replacements")
	}
	replacers, err := compileReplacements(rules)
	if err != nil {
		return nil, err
	}

	files := strutil.SortedList(strutil.MakeSet(append(
		append([]string(nil), srcs...), aux...,
	)))
	var inputs []*fileStat
	for _, f := range files {
		s, err := newInputFileStat(p.env, f)
		if err != nil {
			return nil, errcode.Annotatef(err, "stat %q", f)
		}
		inputs = append(inputs, s)
	}
	digest, err := makeDistDigest(m.Package, &distAction{
		Type:         fmt.Sprintf("%T", d),
		Descriptor:   d,
		Meta:         m,
		Version:      p.version,
		Replacements: rules,
		Inputs:       inputs,
	})
	if err != nil {
		return nil, errcode.Annotate(err, "digest")
	}

	return &distPlan{
		ctx:       ctx,
		meta:      m,
		rules:     rules,
		replacers: replacers,
		files:     files,
		digest:    digest,
	}, nil
}

func (p *Packager) cached(c *buildCache, digest string) (*Result, error) {
	built, err := c.get(digest)
	if err != nil {
		if errors.Is(err, errNotFoundInCache) {
			return nil, nil
		}
		return nil, errcode.Annotate(err, "check build cache")
	}
	same, err := sameFileStat(p.env, built.Archive)
	if err != nil {
		return nil, errcode.Annotate(err, "check archive")
	}
	if !same {
		return nil, nil
	}
	return &Result{
		Archive:  p.env.out(built.Archive.Name),
		Manifest: p.env.out(built.Manifest),
		Sha256:   built.Sha256,
		Files:    built.Files,
		Cached:   true,
	}, nil
}

// Dist packages the distribution described by d.
func (p *Packager) Dist(d Descriptor) (*Result, []*lexing.Error) {
	if errs := p.Check(d); errs != nil {
		return nil, errs
	}
	res, err := p.dist(d)
	if err != nil {
		return nil, lexing.SingleErr(err)
	}
	return res, nil
}

func (p *Packager) dist(d Descriptor) (*Result, error) {
	plan, err := p.plan(d)
	if err != nil {
		return nil, err
	}
	name := DistName(plan.meta.Package, p.version)

	var cache *buildCache
	if !p.noCache {
		c, err := newBuildCache(p.env.out(cacheFile))
		if err != nil {
			return nil, errcode.Annotate(err, "open build cache")
		}
		defer c.Close()
		cache = c

		if !p.force {
			res, err := p.cached(cache, plan.digest)
			if err != nil {
				return nil, err
			}
			if res != nil {
				log.Infof("%s is up to date (%s)", name, shortDigest(plan.digest))
				return res, nil
			}
		}
		if err := cache.remove(plan.digest); err != nil {
			return nil, errcode.Annotate(err, "invalidate cache")
		}
	}

	log.Infof("DIST %s", name)
	if err := os.RemoveAll(p.env.topDir); err != nil {
		return nil, errcode.Annotate(err, "remove old distribution dir")
	}
	l := &layout{
		files:     plan.files,
		buildDirs: plan.meta.ExtraBuildDirs,
		replacers: plan.replacers,
	}
	if err := l.lay(p.env); err != nil {
		return nil, errcode.Annotate(err, "lay out")
	}
	if err := d.Finalize(plan.ctx); err != nil {
		return nil, errcode.Annotate(err, "finalize")
	}

	names, err := walkDist(p.env)
	if err != nil {
		return nil, errcode.Annotate(err, "list distribution")
	}

	archiveName := name + ".tar.gz"
	manifestName := name + ".manifest.json"
	archive, err := p.env.prepareOut(archiveName)
	if err != nil {
		return nil, errcode.Annotate(err, "prepare output")
	}
	sum, err := writeArchive(p.env, archive, names)
	if err != nil {
		return nil, errcode.Annotate(err, "archive")
	}
	n, err := writeManifest(p.env, p.env.out(manifestName), names)
	if err != nil {
		return nil, errcode.Annotate(err, "manifest")
	}
	log.Infof("wrote %s, %d files, sha256:%s", archiveName, n, sum)

	if cache != nil {
		stat, err := newOutFileStat(p.env, archiveName)
		if err != nil {
			return nil, errcode.Annotate(err, "stat archive")
		}
		if err := cache.put(&builtDist{
			Digest:   plan.digest,
			Package:  plan.meta.Package,
			Version:  p.version,
			Archive:  stat,
			Manifest: manifestName,
			Sha256:   sum,
			Files:    n,
			Created:  time.Now(),
		}); err != nil {
			return nil, errcode.Annotate(err, "save in build cache")
		}
	}

	return &Result{
		Archive:  archive,
		Manifest: p.env.out(manifestName),
		Sha256:   sum,
		Files:    n,
	}, nil
}

func shortDigest(d string) string {
	return idutil.Short(strings.TrimPrefix(d, "sha256:"))
}

// Record is a distribution recorded in the build cache.
type Record struct {
	Version string
	Archive string
	Sha256  string
	Files   int
	Created time.Time
}

// History lists the distributions of pkg recorded in the build cache, latest
// first.
func (p *Packager) History(pkg string) ([]*Record, error) {
	c, err := newBuildCache(p.env.out(cacheFile))
	if err != nil {
		return nil, errcode.Annotate(err, "open build cache")
	}
	defer c.Close()

	list, err := c.list(pkg)
	if err != nil {
		return nil, errcode.Annotate(err, "list build cache")
	}
	var ret []*Record
	for _, b := range list {
		ret = append(ret, &Record{
			Version: b.Version,
			Archive: b.Archive.Name,
			Sha256:  b.Sha256,
			Files:   b.Files,
			Created: b.Created,
		})
	}
	return ret, nil
}

// GitVersion returns the latest tag of the git checkout in dir, without a
// leading "v".
func GitVersion(dir string) (string, error) {
	out, err := runCmdOutput(dir, "git", "describe", "--tags", "--abbrev=0")
	if err != nil {
		return "", errcode.Annotate(err, "git describe")
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return "", errcode.NotFoundf("no tag found")
	}
	return strings.TrimPrefix(v, "v"), nil
}
