package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local stores blobs on the local filesystem. Intended for development and
// tests; refs are paths relative to the root directory.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blob: absolute root for %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, fmt.Errorf("blob: create root %q: %w", abs, err)
	}
	return &Local{root: abs}, nil
}

func (s *Local) path(ref string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(ref))
	if !strings.HasPrefix(full, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("blob: invalid ref %q", ref)
	}
	return full, nil
}

func (s *Local) Put(_ context.Context, name string, data []byte) (string, error) {
	full, err := s.path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return "", fmt.Errorf("blob: create dir for %q: %w", name, err)
	}
	if err := os.WriteFile(full, data, 0600); err != nil {
		return "", fmt.Errorf("blob: write %q: %w", name, err)
	}
	return name, nil
}

func (s *Local) Get(_ context.Context, ref string) ([]byte, error) {
	full, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, ErrNoObject
	}
	if err != nil {
		return nil, fmt.Errorf("blob: read %q: %w", ref, err)
	}
	return data, nil
}

func (s *Local) URI(ref string) string {
	full, err := s.path(ref)
	if err != nil {
		return ""
	}
	return "file://" + filepath.ToSlash(full)
}

func (s *Local) Delete(_ context.Context, ref string) error {
	full, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); os.IsNotExist(err) {
		return ErrNoObject
	} else if err != nil {
		return fmt.Errorf("blob: delete %q: %w", ref, err)
	}
	return nil
}
