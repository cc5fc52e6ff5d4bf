package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps one JSON document per target under dir. Writes go through
// a temp file and rename so a crash never leaves a torn snapshot.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir exposes the store root.
func (s *FileStore) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

func (s *FileStore) Load(_ context.Context, target string) (Snapshot, error) {
	path, err := s.path(target)
	if err != nil {
		return Snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load state %s: %w", target, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode state %s: %w", target, err)
	}
	return snap, nil
}

func (s *FileStore) Save(_ context.Context, target string, snap Snapshot) error {
	path, err := s.path(target)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save state %s: %w", target, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save state %s: %w", target, err)
	}
	return nil
}

func (s *FileStore) path(target string) (string, error) {
	if s == nil {
		return "", errors.New("state store not configured")
	}
	if target == "" || strings.ContainsAny(target, `/\`) || target == "." || target == ".." {
		return "", fmt.Errorf("invalid state target %q", target)
	}
	return filepath.Join(s.dir, target+".json"), nil
}
