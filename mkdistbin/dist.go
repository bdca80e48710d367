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

package mkdistbin

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"shanhu.io/misc/errcode"
	"shanhu.io/mkdist"
	"shanhu.io/text/lexing"
)

func cmdDist(args []string) error {
	flags := cmdFlags.New()
	config := new(mkdist.Config)
	desc := new(descriptorFlags)
	declareFlags(flags, config, desc)
	flags.BoolVar(
		&config.Force, "force", false,
		"package even if the build cache has the same distribution",
	)
	flags.BoolVar(&config.NoCache, "nocache", false, "skip the build cache")
	flags.ParseArgs(args)

	d, err := desc.load(config.Src)
	if err != nil {
		return err
	}
	if err := fillVersion(config); err != nil {
		return err
	}

	p := mkdist.NewPackager(config)
	res, errs := p.Dist(d)
	if errs != nil {
		lexing.FprintErrs(os.Stderr, errs, workDir())
		return errcode.InvalidArgf("dist got %d errors", len(errs))
	}
	fmt.Println(res.Archive)
	return nil
}

// loadContext loads the descriptor and the context its hooks would see.
func loadContext(args []string, needVersion bool) (
	mkdist.Descriptor, *mkdist.Context, error,
) {
	flags := cmdFlags.New()
	config := new(mkdist.Config)
	desc := new(descriptorFlags)
	declareFlags(flags, config, desc)
	flags.ParseArgs(args)

	d, err := desc.load(config.Src)
	if err != nil {
		return nil, nil, err
	}
	if needVersion {
		if err := fillVersion(config); err != nil {
			return nil, nil, err
		}
	}

	p := mkdist.NewPackager(config)
	ctx, err := p.Context(d)
	if err != nil {
		return nil, nil, err
	}
	return d, ctx, nil
}

func cmdReplacements(args []string) error {
	d, ctx, err := loadContext(args, true)
	if err != nil {
		return err
	}
	rules, err := d.Replacements(ctx)
	if err != nil {
		return errcode.Annotate(err, "get replacements")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rules)
}

func cmdObjects(args []string) error {
	d, ctx, err := loadContext(args, false)
	if err != nil {
		return err
	}
	objs := mkdist.Objects(d, ctx)
	fmt.Println(strings.Join(objs, " "))
	return nil
}

func cmdSources(args []string) error {
	_, ctx, err := loadContext(args, false)
	if err != nil {
		return err
	}
	for _, f := range ctx.Sources {
		fmt.Println(f)
	}
	return nil
}

func cmdHistory(args []string) error {
	flags := cmdFlags.New()
	config := new(mkdist.Config)
	desc := new(descriptorFlags)
	declareFlags(flags, config, desc)
	flags.ParseArgs(args)

	d, err := desc.load(config.Src)
	if err != nil {
		return err
	}
	p := mkdist.NewPackager(config)
	records, err := p.History(d.Meta().Package)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf(
			"%s  %-12s %s  %d files  sha256:%s\n",
			r.Created.Format("2006-01-02 15:04:05"),
			r.Version, r.Archive, r.Files, r.Sha256,
		)
	}
	return nil
}

func cmdBuiltins(args []string) error {
	for _, name := range mkdist.BuiltinNames() {
		fmt.Println(name)
	}
	return nil
}
