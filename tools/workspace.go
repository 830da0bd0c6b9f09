// Package tools provides the project file actions an agent can be given:
// listing, reading, and writing files inside a workspace directory, plus a
// terminal action that ends the run.
package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOutsideWorkspace is returned for paths that resolve outside the root.
var ErrOutsideWorkspace = errors.New("path is outside the workspace")

// Workspace is the directory file actions operate in.
type Workspace struct {
	Root       string
	Extensions []string // listed file suffixes; empty lists every file
}

// NewWorkspace creates a workspace rooted at root, resolved to an absolute
// path.
func NewWorkspace(root string, extensions ...string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", abs)
	}
	return &Workspace{Root: abs, Extensions: extensions}, nil
}

// resolve maps a workspace-relative name to an absolute path, rejecting
// anything that escapes the root.
func (w *Workspace) resolve(name string) (string, error) {
	if name == "" {
		return "", errors.New("file name is empty")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%s: %w", name, ErrOutsideWorkspace)
	}
	resolved := filepath.Join(w.Root, name)
	rel, err := filepath.Rel(w.Root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", name, ErrOutsideWorkspace)
	}
	return resolved, nil
}

// ReadFile returns the contents of a file in the workspace.
func (w *Workspace) ReadFile(name string) (string, error) {
	path, err := w.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read_project_file: %w", err)
	}
	return string(data), nil
}

// WriteFile writes content to a file in the workspace, creating parent
// directories as needed.
func (w *Workspace) WriteFile(name, content string) error {
	path, err := w.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("write_project_file: failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write_project_file: %w", err)
	}
	return nil
}

// ListFiles returns the sorted names of regular files at the top level of the
// workspace that match its extensions.
func (w *Workspace) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		return nil, fmt.Errorf("list_project_files: %w", err)
	}
	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !w.matches(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

func (w *Workspace) matches(name string) bool {
	if len(w.Extensions) == 0 {
		return true
	}
	for _, ext := range w.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
