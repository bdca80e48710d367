package mkdist

import (
	"archive/tar"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"shanhu.io/misc/jsonutil"
)

// makeT3Tree creates a small libt3config-like source tree.
func makeT3Tree(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	for name, content := range map[string]string{
		"Makefile":                   "all:\n",
		"Makefile.in":                "OBJECTS=<OBJECTS>\nLIBVERSION=<LIBVERSION>\nVERSIONINFO=<VERSIONINFO>\n",
		"README":                     "libt3config <VERSION>\n",
		"TODO.txt":                   "nothing\n",
		"doc/API":                    "api docs\n",
		"src/config.c":               "int x;\n",
		"src/config.h":               "#define T3_CONFIG_VERSION 0\n",
		"src/parser.c":               "#include \".objects/parser.h\"\n",
		"src/test.c":                 "int main() {}\n",
		"src/config_api.h":           "\n",
		"src/config_errors.h":        "\n",
		"src/config_shared.c":        "\n",
		"src/.objects/config_hide.h": "\n",
		"src/.objects/grammar.bytes": "\x00\x01<VERSION>",
	} {
		writeTestFile(t, filepath.Join(src, filepath.FromSlash(name)), content)
	}
	return src
}

type tarEntry struct {
	typ     byte
	link    string
	content string
}

func readTarGz(t *testing.T, f string) map[string]*tarEntry {
	t.Helper()
	r, err := os.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	gz, err := gzip.NewReader(r)
	if err != nil {
		t.Fatal("gzip: ", err)
	}
	tr := tar.NewReader(gz)
	m := make(map[string]*tarEntry)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal("tar: ", err)
		}
		bs, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal("read entry: ", err)
		}
		m[h.Name] = &tarEntry{
			typ:     h.Typeflag,
			link:    h.Linkname,
			content: string(bs),
		}
	}
	return m
}

func TestPackagerDist(t *testing.T) {
	src := makeT3Tree(t)
	out := t.TempDir()
	p := NewPackager(&Config{Src: src, Out: out, Version: "0.2.3"})

	res, errs := p.Dist(&T3Config{Revision: 2})
	if errs != nil {
		t.Fatal("dist: ", errs[0])
	}
	if res.Cached {
		t.Error("first run should not be cached")
	}
	wantArchive := filepath.Join(out, "libt3config-0.2.3.tar.gz")
	if res.Archive != wantArchive {
		t.Errorf("archive got %q, want %q", res.Archive, wantArchive)
	}

	entries := readTarGz(t, res.Archive)
	const pre = "libt3config-0.2.3/"
	for _, excluded := range []string{"Makefile", "TODO.txt", "src/test.c"} {
		if _, ok := entries[pre+excluded]; ok {
			t.Errorf("%s should be excluded", excluded)
		}
	}
	for name, want := range map[string]string{
		"Makefile.in": "OBJECTS=src/config.lo src/config_shared.lo " +
			"src/parser.lo\nLIBVERSION=0\nVERSIONINFO=0:1:0\n",
		"README":                     "libt3config 0.2.3\n",
		"doc/API":                    "api docs\n",
		"src/config.h":               "#define T3_CONFIG_VERSION 0x000203\n",
		"src/parser.c":               "#include \"parser.h\"\n",
		"src/.objects/grammar.bytes": "\x00\x01<VERSION>",
	} {
		e, ok := entries[pre+name]
		if !ok {
			t.Errorf("%s missing", name)
			continue
		}
		if e.content != want {
			t.Errorf("%s got %q, want %q", name, e.content, want)
		}
	}

	link, ok := entries[pre+"src/t3config"]
	if !ok {
		t.Fatal("src/t3config link missing")
	}
	if link.typ != tar.TypeSymlink || link.link != "." {
		t.Errorf("bad link entry: %+v", link)
	}
	if e, ok := entries[pre]; !ok || e.typ != tar.TypeDir {
		t.Error("top dir entry missing")
	}

	var manifest []*fileStat
	if err := jsonutil.ReadFile(res.Manifest, &manifest); err != nil {
		t.Fatal("read manifest: ", err)
	}
	if len(manifest) != res.Files {
		t.Errorf("manifest has %d files, result says %d", len(manifest), res.Files)
	}
	for _, s := range manifest {
		if s.Sha256 == "" {
			t.Errorf("%s has no checksum", s.Name)
		}
		if s.Name == "src/t3config" {
			t.Error("symlinks should not be in the manifest")
		}
	}

	again, errs := p.Dist(&T3Config{Revision: 2})
	if errs != nil {
		t.Fatal("dist again: ", errs[0])
	}
	if !again.Cached || again.Sha256 != res.Sha256 {
		t.Errorf("second run should hit the cache: %+v", again)
	}

	forced := NewPackager(&Config{
		Src: src, Out: out, Version: "0.2.3", Force: true,
	})
	res3, errs := forced.Dist(&T3Config{Revision: 2})
	if errs != nil {
		t.Fatal("forced dist: ", errs[0])
	}
	if res3.Cached {
		t.Error("forced run should not be cached")
	}

	history, err := p.History("libt3config")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Version != "0.2.3" {
		t.Errorf("history: %+v", history)
	}
}

func TestPackagerDistSourceChange(t *testing.T) {
	src := makeT3Tree(t)
	out := t.TempDir()
	p := NewPackager(&Config{Src: src, Out: out, Version: "0.2.3"})
	if _, errs := p.Dist(&T3Config{Revision: 2}); errs != nil {
		t.Fatal(errs[0])
	}

	writeTestFile(t, filepath.Join(src, "src", "extra.c"), "int y;\n")
	res, errs := p.Dist(&T3Config{Revision: 2})
	if errs != nil {
		t.Fatal(errs[0])
	}
	if res.Cached {
		t.Error("changed sources should not hit the cache")
	}
	entries := readTarGz(t, res.Archive)
	mk := entries["libt3config-0.2.3/Makefile.in"]
	if mk == nil || !strings.Contains(mk.content, "src/extra.lo") {
		t.Errorf("new source not in object list: %+v", mk)
	}
}

func TestPackagerDistErrors(t *testing.T) {
	src := makeT3Tree(t)

	p := NewPackager(&Config{Src: src, Out: t.TempDir()})
	if _, errs := p.Dist(&T3Config{Revision: 2}); errs == nil {
		t.Error("missing version should fail")
	}

	if err := os.Remove(filepath.Join(src, "doc", "API")); err != nil {
		t.Fatal(err)
	}
	p = NewPackager(&Config{Src: src, Out: t.TempDir(), Version: "1.0"})
	if _, errs := p.Dist(&T3Config{Revision: 2}); errs == nil {
		t.Error("missing aux file should fail")
	}

	bad := &DistConfig{
		Package:    "libbad",
		ExcludeSrc: "(",
	}
	p = NewPackager(&Config{Src: src, Out: t.TempDir(), Version: "1.0"})
	if errs := p.Check(bad); len(errs) != 1 {
		t.Errorf("got %d check errors, want 1", len(errs))
	}

	missingTarget := &DistConfig{
		Package: "libbad",
		Replace: []*Replacement{
			{Tag: "x", Files: []string{"no/such/file"}},
		},
	}
	if _, errs := p.Dist(missingTarget); errs == nil {
		t.Error("replacement of a missing file should fail")
	}
}

func TestPackagerContext(t *testing.T) {
	src := makeT3Tree(t)
	out := filepath.Join(src, "dist")
	writeTestFile(t, filepath.Join(out, "old.c"), "\n")

	p := NewPackager(&Config{Src: src, Out: out, Version: "0.2.3"})
	ctx, err := p.Context(&T3Config{Revision: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Makefile.in",
		"README",
		"doc/API",
		"src/.objects/config_hide.h",
		"src/.objects/grammar.bytes",
		"src/config.c",
		"src/config.h",
		"src/config_api.h",
		"src/config_errors.h",
		"src/config_shared.c",
		"src/parser.c",
	}
	if strings.Join(ctx.Sources, ",") != strings.Join(want, ",") {
		t.Errorf("sources got %q, want %q", ctx.Sources, want)
	}
	if ctx.TopDir != filepath.Join(out, "libt3config-0.2.3") {
		t.Errorf("top dir %q", ctx.TopDir)
	}
}

func TestPackagerDistOutUnderSrc(t *testing.T) {
	src := makeT3Tree(t)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(src); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	out := filepath.Join(src, "dist")
	for i, force := range []bool{false, true} {
		p := NewPackager(&Config{
			Src: ".", Out: out, Version: "0.2.3", Force: force,
		})
		ctx, err := p.Context(&T3Config{Revision: 2})
		if err != nil {
			t.Fatalf("run %d: context: %s", i, err)
		}
		for _, f := range ctx.Sources {
			if strings.HasPrefix(f, "dist/") {
				t.Errorf("run %d: output file %q listed as source", i, f)
			}
		}

		res, errs := p.Dist(&T3Config{Revision: 2})
		if errs != nil {
			t.Fatalf("run %d: dist: %s", i, errs[0])
		}
		for name := range readTarGz(t, res.Archive) {
			if strings.Contains(name, "/dist/") {
				t.Errorf("run %d: archive has %q", i, name)
			}
		}
	}
}

func TestPackagerDistRevision1(t *testing.T) {
	if _, err := exec.LookPath("make"); err != nil {
		t.Skip("make not installed")
	}

	src := makeT3Tree(t)
	writeTestFile(t, filepath.Join(src, "doc", "Makefile"), strings.Join([]string{
		"all:",
		"\techo generated api > API",
		"clean:",
		"\trm -f API",
		"",
	}, "\n"))

	p := NewPackager(&Config{Src: src, Out: t.TempDir(), Version: "0.2.3"})
	res, errs := p.Dist(&T3Config{Revision: 1})
	if errs != nil {
		t.Fatal("dist: ", errs[0])
	}

	entries := readTarGz(t, res.Archive)
	const pre = "libt3config-0.2.3/"
	link, ok := entries[pre+"t3config"]
	if !ok {
		t.Fatal("t3config link missing")
	}
	if link.typ != tar.TypeSymlink || link.link != "." {
		t.Errorf("bad link entry: %+v", link)
	}
	if _, ok := entries[pre+"src/t3config"]; ok {
		t.Error("revision 1 should not link under src/")
	}
	if e := entries[pre+"doc/API"]; e == nil || e.content != "generated api\n" {
		t.Errorf("doc/API not rebuilt: %+v", e)
	}
	if _, ok := entries[pre+"doc/Makefile"]; ok {
		t.Error("doc/Makefile should be excluded")
	}

	again, errs := p.Dist(&T3Config{Revision: 1})
	if errs != nil {
		t.Fatal("dist again: ", errs[0])
	}
	if !again.Cached {
		t.Error("rebuilt docs with the same content should hit the cache")
	}
}

func TestPackagerDistTouchedSources(t *testing.T) {
	src := makeT3Tree(t)
	p := NewPackager(&Config{Src: src, Out: t.TempDir(), Version: "0.2.3"})
	if _, errs := p.Dist(&T3Config{Revision: 2}); errs != nil {
		t.Fatal(errs[0])
	}

	later := time.Now().Add(time.Hour)
	for _, f := range []string{"README", "doc/API"} {
		name := filepath.Join(src, filepath.FromSlash(f))
		if err := os.Chtimes(name, later, later); err != nil {
			t.Fatal(err)
		}
	}
	res, errs := p.Dist(&T3Config{Revision: 2})
	if errs != nil {
		t.Fatal(errs[0])
	}
	if !res.Cached {
		t.Error("touching sources without changing them should hit the cache")
	}
}
