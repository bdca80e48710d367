package mkdistbin

import (
	"os"

	"github.com/charmbracelet/log"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/flagutil"
	"shanhu.io/mkdist"
)

var cmdFlags = flagutil.NewFactory("mkdist")

type descriptorFlags struct {
	config  string
	builtin string
	verbose bool
}

func declareFlags(
	flags *flagutil.FlagSet, c *mkdist.Config, d *descriptorFlags,
) {
	flags.StringVar(&c.Src, "src", ".", "source directory")
	flags.StringVar(&c.Out, "out", "dist", "output directory")
	flags.StringVar(
		&c.Version, "version", "",
		"release version; defaults to the latest git tag",
	)
	flags.StringVar(
		&d.config, "config", "",
		"descriptor file; defaults to dist.jsonx or dist.toml in -src",
	)
	flags.StringVar(&d.builtin, "builtin", "", "use a builtin descriptor")
	flags.BoolVar(&d.verbose, "v", false, "verbose logging")
}

func (d *descriptorFlags) load(src string) (mkdist.Descriptor, error) {
	if d.verbose {
		log.SetLevel(log.DebugLevel)
	}
	if d.builtin != "" {
		return mkdist.Builtin(d.builtin)
	}

	f := d.config
	if f == "" {
		found, err := mkdist.FindDistConfig(src)
		if err != nil {
			return nil, err
		}
		f = found
	}
	c, err := mkdist.ReadDistConfig(f)
	if err != nil {
		return nil, errcode.Annotatef(err, "read descriptor %q", f)
	}
	return c, nil
}

func fillVersion(c *mkdist.Config) error {
	if c.Version != "" {
		return nil
	}
	v, err := mkdist.GitVersion(c.Src)
	if err != nil {
		return errcode.Annotate(err, "version not specified")
	}
	log.Debugf("version %s from git tag", v)
	c.Version = v
	return nil
}

func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
