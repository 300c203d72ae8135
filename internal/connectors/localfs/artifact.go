// Package localfs provides filesystem-backed collaborators: the notes
// artifact store and a survey report source reading YAML files.
package localfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact is a notes document stored at a fixed path below a station directory.
type Artifact struct {
	root string
	path string
}

// NewArtifact returns the artifact at path. A relative path is resolved
// below root; an absolute path must stay inside root.
func NewArtifact(root, path string) (*Artifact, error) {
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve station dir: %w", err)
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(absRoot, p)
	}
	p = filepath.Clean(p)
	if !isWithin(absRoot, p) {
		return nil, fmt.Errorf("notes path %s is outside %s", p, absRoot)
	}
	return &Artifact{root: absRoot, path: p}, nil
}

func isWithin(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Path returns the artifact path.
func (a *Artifact) Path() string { return a.path }

// Read returns the artifact content; a missing file reads as empty.
func (a *Artifact) Read() ([]byte, error) {
	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read notes: %w", err)
	}
	return data, nil
}

// Append writes data at the end of the artifact.
func (a *Artifact) Append(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("create notes directory: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open notes: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("append notes: %w", err)
	}
	return f.Close()
}

// Erase deletes the artifact. Erasing a missing artifact is not an error.
func (a *Artifact) Erase() error {
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("erase notes: %w", err)
	}
	return nil
}
