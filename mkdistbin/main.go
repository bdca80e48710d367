package mkdistbin

import (
	"shanhu.io/misc/subcmd"
)

func cmd() *subcmd.List {
	c := subcmd.New()
	c.Add("dist", "packages a source distribution", cmdDist)
	c.Add("replacements", "prints the replacement rules", cmdReplacements)
	c.Add("objects", "prints the object list of the sources", cmdObjects)
	c.Add("sources", "prints the source list", cmdSources)
	c.Add("history", "lists packaged distributions", cmdHistory)
	c.Add("builtins", "lists builtin descriptors", cmdBuiltins)
	return c
}

// Main is the entrance for the mkdist binary.
func Main() { cmd().Main() }
