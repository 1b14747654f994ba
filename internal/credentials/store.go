// Package credentials persists the auth token between runs.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"interviewmic/internal/ports"
)

const (
	keyToken = "token"
	keyJWT   = "jwt"
)

var _ ports.TokenStore = (*FileStore)(nil)

// FileStore keeps string entries in a small JSON file. The token is read from
// "token" and falls back to "jwt".
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return "", err
	}
	if token := strings.TrimSpace(entries[keyToken]); token != "" {
		return token, nil
	}
	return strings.TrimSpace(entries[keyJWT]), nil
}

func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return err
	}
	entries[keyToken] = token
	return s.writeLocked(entries)
}

// Clear removes both token keys.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return err
	}
	delete(entries, keyToken)
	delete(entries, keyJWT)
	if len(entries) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove credentials file %q: %w", s.path, err)
		}
		return nil
	}
	return s.writeLocked(entries)
}

func (s *FileStore) readLocked() (map[string]string, error) {
	entries := map[string]string{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("read credentials file %q: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse credentials file %q: %w", s.path, err)
	}
	return entries, nil
}

func (s *FileStore) writeLocked(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials file %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace credentials file %q: %w", s.path, err)
	}
	return nil
}
