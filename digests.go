package mkdist

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"shanhu.io/misc/errcode"
)

// distAction is a structure for creating the digest of packaging a
// distribution. Two runs with the same digest produce the same tarball.
type distAction struct {
	Type         string
	Descriptor   Descriptor
	Meta         *Meta
	Version      string
	Replacements []*Replacement
	Inputs       []*fileStat
}

func makeDistDigest(name string, v *distAction) (string, error) {
	buf := new(bytes.Buffer)
	fmt.Fprintln(buf, "dist")
	fmt.Fprintln(buf, name)
	bs, err := json.Marshal(v)
	if err != nil {
		return "", errcode.Annotate(err, "json marshal")
	}
	buf.Write(bs)
	sum := sha256.Sum256(buf.Bytes())
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
