package mkdist

import (
	"regexp"
	"strings"

	"shanhu.io/misc/errcode"
)

// T3Config packages libt3config.
//
// Revision 1 builds the documentation before packaging, derives the object
// list by rewriting paths, and links t3config in the distribution root.
// Revision 2 skips the documentation build, derives the object list with
// SourcesToObjects, and links t3config under src/.
type T3Config struct {
	Revision int
}

const t3configVersionInfo = "0:1:0"

var t3configMeta = &Meta{
	Package:    "libt3config",
	ExcludeSrc: `/(Makefile|TODO.*|SciTE.*|run\.sh|test\.c)$`,
	AuxSources: []string{
		"src/.objects/*_hide.h",
		"src/.objects/*.bytes",
		"src/config_api.h",
		"src/config_errors.h",
		"src/config_shared.c",
	},
	AuxFiles:    []string{"doc/API"},
	VersionInfo: t3configVersionInfo,
}

// Meta returns the libt3config package metadata.
func (d *T3Config) Meta() *Meta { return t3configMeta }

var (
	cSourceRegex = regexp.MustCompile(`\.c$`)
	objectsRegex = regexp.MustCompile(`/\.objects/`)
)

// Objects returns the libtool objects built from the C sources.
func (d *T3Config) Objects(ctx *Context) []string {
	if d.Revision >= 2 {
		return ctx.SourcesToObjects(ctx.Sources, ObjectSuffix)
	}
	objs := ctx.IncludeByRegex(ctx.Sources, cSourceRegex)
	objs = ctx.RegexReplace(objs, objectsRegex, "/")
	return ctx.RegexReplace(objs, cSourceRegex, ObjectSuffix)
}

// Replacements returns the version, object list and include path
// substitutions.
func (d *T3Config) Replacements(ctx *Context) ([]*Replacement, error) {
	bin, err := ctx.VersionBin()
	if err != nil {
		return nil, errcode.Annotate(err, "pack version")
	}

	const makefile = "Makefile.in"
	return []*Replacement{{
		Tag:         "<VERSION>",
		Replacement: ctx.Version,
	}, {
		Tag:         `^#define T3_CONFIG_VERSION .*`,
		Replacement: "#define T3_CONFIG_VERSION " + bin,
		Files:       []string{"src/config.h"},
		Regex:       true,
	}, {
		Tag:         "<OBJECTS>",
		Replacement: strings.Join(d.Objects(ctx), " "),
		Files:       []string{makefile},
	}, {
		Tag:         "<VERSIONINFO>",
		Replacement: t3configVersionInfo,
		Files:       []string{makefile},
	}, {
		Tag:         "<LIBVERSION>",
		Replacement: LibVersion(t3configVersionInfo),
		Files:       []string{makefile},
	}, {
		Tag:         objectsDir + "/",
		Replacement: "",
		Files:       []string{"src/parser.c"},
	}}, nil
}

// Build rebuilds the documentation. Only revision 1 does this.
func (d *T3Config) Build(ctx *Context) error {
	if d.Revision >= 2 {
		return nil
	}
	if err := ctx.Run("", "make", "-C", "doc", "clean"); err != nil {
		return errcode.Annotate(err, "clean doc")
	}
	if err := ctx.Run("", "make", "-C", "doc"); err != nil {
		return errcode.Annotate(err, "build doc")
	}
	return nil
}

// Finalize links t3config to its own directory so that includes like
// <t3config/config.h> resolve inside the unpacked tree.
func (d *T3Config) Finalize(ctx *Context) error {
	name := "t3config"
	if d.Revision >= 2 {
		name = "src/t3config"
	}
	return ctx.Symlink(".", name)
}
