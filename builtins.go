package mkdist

import (
	"sort"

	"shanhu.io/misc/errcode"
)

var builtins = map[string]func() Descriptor{
	"t3config":    func() Descriptor { return &T3Config{Revision: 2} },
	"t3config-r1": func() Descriptor { return &T3Config{Revision: 1} },
}

// Builtin returns the built-in descriptor of the given name.
func Builtin(name string) (Descriptor, error) {
	f, ok := builtins[name]
	if !ok {
		return nil, errcode.NotFoundf("no builtin descriptor %q", name)
	}
	return f(), nil
}

// BuiltinNames lists the built-in descriptors.
func BuiltinNames() []string {
	var names []string
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
