package scratch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_UniquePerRun(t *testing.T) {
	base := t.TempDir()

	a, err := New(base)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, err := New(base)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if a.Path() == b.Path() {
		t.Errorf("Expected unique scratch dirs, both are %s", a.Path())
	}
	if filepath.Dir(a.Path()) != base {
		t.Errorf("Expected dir under %s, got %s", base, a.Path())
	}
	if !strings.HasPrefix(filepath.Base(a.Path()), "speech-") {
		t.Errorf("Unexpected dir name %s", filepath.Base(a.Path()))
	}
}

func TestNew_CreatesMissingBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "scratch")

	d, err := New(base)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := os.Stat(d.Path()); err != nil {
		t.Errorf("Expected scratch dir to exist: %v", err)
	}
}

func TestWriteFileAndCleanup(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p, err := d.WriteFile("input.webm", []byte("clip"))
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if filepath.Dir(p) != d.Path() {
		t.Errorf("Expected file inside scratch dir, got %s", p)
	}

	out := d.File("output.mp3")
	if err := os.WriteFile(out, []byte("mp3"), 0o600); err != nil {
		t.Fatalf("Failed to write output: %v", err)
	}

	if files := d.Files(); len(files) != 2 {
		t.Errorf("Expected 2 tracked files, got %v", files)
	}

	if err := d.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := os.Stat(d.Path()); !os.IsNotExist(err) {
		t.Errorf("Expected scratch dir to be removed, stat err = %v", err)
	}

	// Second cleanup is a no-op
	if err := d.Cleanup(); err != nil {
		t.Errorf("Expected repeated cleanup to succeed, got %v", err)
	}
}

func TestFile_StaysInsideDir(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Cleanup()

	p := d.File("../../escape.wav")
	if filepath.Dir(p) != d.Path() {
		t.Errorf("Expected path to stay inside scratch dir, got %s", p)
	}
}

func TestCleanup_Nil(t *testing.T) {
	var d *Dir
	if err := d.Cleanup(); err != nil {
		t.Errorf("Expected nil dir cleanup to succeed, got %v", err)
	}
}
