package mkdist

import (
	"fmt"
	"strconv"
	"strings"

	"shanhu.io/misc/errcode"
)

// VersionBin packs a dotted release version into a hex literal of the form
// 0xMMmmpp, one byte per component. Missing components are zero.
func VersionBin(version string) (string, error) {
	if version == "" {
		return "", errcode.InvalidArgf("empty version")
	}
	parts := strings.Split(version, ".")
	if len(parts) > 3 {
		return "", errcode.InvalidArgf(
			"version %q has more than 3 components", version,
		)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", errcode.InvalidArgf(
				"invalid component %q in version %q", p, version,
			)
		}
		if n > 0xff {
			return "", errcode.InvalidArgf(
				"component %d in version %q does not fit a byte", n, version,
			)
		}
		nums[i] = n
	}
	return fmt.Sprintf("0x%02x%02x%02x", nums[0], nums[1], nums[2]), nil
}

// LibVersion returns the part of a libtool version-info string before the
// first colon.
func LibVersion(versionInfo string) string {
	major, _, _ := strings.Cut(versionInfo, ":")
	return major
}

func checkVersionInfo(versionInfo string) error {
	parts := strings.Split(versionInfo, ":")
	if len(parts) != 3 {
		return errcode.InvalidArgf(
			"version info %q is not current:revision:age", versionInfo,
		)
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return errcode.InvalidArgf(
				"invalid number %q in version info %q", p, versionInfo,
			)
		}
	}
	return nil
}
