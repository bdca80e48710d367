package mkdist

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
)

func TestListAllFilesRelativeSkip(t *testing.T) {
	src := t.TempDir()
	for _, f := range []string{"a.c", "sub/b.c", "out/old.tar.gz"} {
		writeTestFile(t, filepath.Join(src, filepath.FromSlash(f)), "\n")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(src); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	want := []string{"a.c", "sub/b.c"}
	for _, test := range []struct {
		dir, skip string
	}{
		{".", filepath.Join(src, "out")},
		{src, "out"},
		{".", "./out/"},
	} {
		got, err := listAllFiles(test.dir, test.skip)
		if err != nil {
			t.Errorf("list %q skip %q: %s", test.dir, test.skip, err)
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf(
				"list %q skip %q: got %q, want %q",
				test.dir, test.skip, got, want,
			)
		}
	}
}

func TestPresentFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "a.c"), "\n")
	if err := os.Symlink("a.c", filepath.Join(dir, "link.c")); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "module"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := presentFiles(dir, []string{
		"a.c", "deleted.c", "link.c", "module",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.c", "link.c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestListGitFiles(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	for _, f := range []string{"a.c", "b.c", "ignored.o", ".gitignore"} {
		content := "\n"
		if f == ".gitignore" {
			content = "*.o\n"
		}
		writeTestFile(t, filepath.Join(dir, f), content)
	}
	if err := runCmd(dir, "git", "init", "-q"); err != nil {
		t.Fatal(err)
	}
	if err := runCmd(dir, "git", "add", "a.c", "b.c", ".gitignore"); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "b.c")); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(dir, "untracked.c"), "\n")

	got, err := listGitFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{".gitignore", "a.c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}
