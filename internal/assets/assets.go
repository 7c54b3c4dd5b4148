// Package assets reads and writes file-backed prompt and session assets
// under a per-namespace root directory.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrPathEscapesRoot is returned when a resolved asset path falls outside
// the configured root.
var ErrPathEscapesRoot = errors.New("asset path escapes the configured root")

// Store provides access to files under one root directory. Any name that
// resolves outside the root is rejected.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: filepath.Clean(dir)}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) resolve(name string) (string, error) {
	path := filepath.Join(s.root, name)
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", ErrPathEscapesRoot
	}
	return path, nil
}

// Read returns the contents of the named file.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", name, err)
	}
	return data, nil
}

// Write stores data under the named file, creating the root if needed.
func (s *Store) Write(name string, data []byte) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write asset %s: %w", name, err)
	}
	return nil
}

// ListPrompts returns the prompt names available under the root: every .txt
// file except .dist.txt templates, sorted, without the extension.
func (s *Store) ListPrompts() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".dist.txt") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".txt"))
	}
	sort.Strings(names)
	return names, nil
}
