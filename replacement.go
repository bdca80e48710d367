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
	"bytes"
	"regexp"
	"strings"

	"shanhu.io/misc/errcode"
	"shanhu.io/misc/strutil"
)

// Replacement substitutes a tag inside packaged files before they are
// archived.
type Replacement struct {
	// Tag is the literal text to replace, or a regular expression when
	// Regex is set. Regular expressions are multi-line: ^ and $ match at
	// line boundaries.
	Tag string

	// Replacement is the literal replacement text.
	Replacement string

	// Files limits the rule to these files, relative to the distribution
	// root. When empty, the rule applies to every text file.
	Files []string `json:",omitempty"`

	Regex bool `json:",omitempty"`
}

type replacer struct {
	rule  *Replacement
	re    *regexp.Regexp
	files map[string]bool
}

func newReplacer(r *Replacement) (*replacer, error) {
	if r.Tag == "" {
		return nil, errcode.InvalidArgf("replacement has empty tag")
	}
	ret := &replacer{rule: r}
	if len(r.Files) > 0 {
		var files []string
		for _, f := range r.Files {
			files = append(files, cleanRelPath(f))
		}
		ret.files = strutil.MakeSet(files)
	}
	if r.Regex {
		re, err := regexp.Compile("(?m)" + r.Tag)
		if err != nil {
			return nil, errcode.Annotatef(err, "compile %q", r.Tag)
		}
		ret.re = re
	}
	return ret, nil
}

func compileReplacements(rules []*Replacement) ([]*replacer, error) {
	var ret []*replacer
	for i, r := range rules {
		rep, err := newReplacer(r)
		if err != nil {
			return nil, errcode.Annotatef(err, "replacement #%d", i)
		}
		ret = append(ret, rep)
	}
	return ret, nil
}

func (r *replacer) global() bool { return r.files == nil }

func (r *replacer) appliesTo(f string, text bool) bool {
	if r.global() {
		return text
	}
	return r.files[f]
}

func (r *replacer) apply(s string) string {
	if r.re != nil {
		return r.re.ReplaceAllLiteralString(s, r.rule.Replacement)
	}
	return strings.ReplaceAll(s, r.rule.Tag, r.rule.Replacement)
}

// applyReplacers runs the rules that apply to file f over content, in
// order. It reports whether anything changed.
func applyReplacers(
	f string, content []byte, rs []*replacer,
) ([]byte, bool) {
	text := isText(content)
	s := string(content)
	for _, r := range rs {
		if r.appliesTo(f, text) {
			s = r.apply(s)
		}
	}
	if s == string(content) {
		return content, false
	}
	return []byte(s), true
}

// ApplyReplacements applies the rules to the content of file f the same way
// the packager does when laying out a distribution.
func ApplyReplacements(f, content string, rules []*Replacement) (
	string, error,
) {
	rs, err := compileReplacements(rules)
	if err != nil {
		return "", err
	}
	out, _ := applyReplacers(cleanRelPath(f), []byte(content), rs)
	return string(out), nil
}

const textSniffLen = 8000

// isText reports if the content looks like text, that is, there is no NUL
// byte in its head.
func isText(content []byte) bool {
	head := content
	if len(head) > textSniffLen {
		head = head[:textSniffLen]
	}
	return bytes.IndexByte(head, 0) < 0
}

// replacementTargets returns the set of files named by the rules.
func replacementTargets(rs []*replacer) []string {
	m := make(map[string]bool)
	for _, r := range rs {
		for f := range r.files {
			m[f] = true
		}
	}
	return strutil.SortedList(m)
}
