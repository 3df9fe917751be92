// Package scratch manages the per-request working directories that hold
// uploaded clips, normalized waveforms and synthesized audio.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Dir is a unique directory owned by a single pipeline run
type Dir struct {
	path string

	mu    sync.Mutex
	files []string
}

// New creates a fresh directory under base. An empty base uses os.TempDir.
func New(base string) (*Dir, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch base %s: %w", base, err)
		}
	}

	path, err := os.MkdirTemp(base, "speech-"+uuid.NewString()+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	return &Dir{path: path}, nil
}

// Path returns the directory location
func (d *Dir) Path() string {
	return d.path
}

// File returns the path for name inside the directory and remembers it
// so Files can report what the run created.
func (d *Dir) File(name string) string {
	p := filepath.Join(d.path, filepath.Base(name))

	d.mu.Lock()
	d.files = append(d.files, p)
	d.mu.Unlock()

	return p
}

// WriteFile stores data under name and returns its path
func (d *Dir) WriteFile(name string, data []byte) (string, error) {
	p := d.File(name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write scratch file %s: %w", name, err)
	}
	return p, nil
}

// Files lists the paths handed out by File, in order
func (d *Dir) Files() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, len(d.files))
	copy(out, d.files)
	return out
}

// Cleanup removes the directory and everything in it.
// The error is informational only; callers log it and move on.
func (d *Dir) Cleanup() error {
	if d == nil || d.path == "" {
		return nil
	}
	return os.RemoveAll(d.path)
}
