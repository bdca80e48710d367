package mkdist

import (
	"path"
	"strings"
)

// cleanRelPath cleans f into a slash path under the distribution root.
// It cannot escape the root.
func cleanRelPath(f string) string {
	f = path.Clean(path.Join("/", f))
	return strings.TrimPrefix(f, "/")
}

// rootedPath returns p with a leading slash, which is how the exclusion
// pattern sees source paths.
func rootedPath(p string) string {
	return "/" + strings.TrimPrefix(p, "/")
}
