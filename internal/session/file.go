package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore persists values to a YAML file so a terminal session survives
// restarts, the way browser local storage survives page reloads. Every
// write rewrites the file atomically with 0600 permissions.
//
// File example:
//
//	accessToken: eyJhbGciOi...
//	authProvider: local
//	refreshToken: eyJhbGciOi...
//	theme: dark
//	userData: '{"id":"1","email":"x@y.com"}'
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenFileStore loads path, or starts empty when it does not exist yet.
func OpenFileStore(path string) (*FileStore, error) {
	fsStore := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fsStore, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if err := yaml.Unmarshal(data, &fsStore.values); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	if fsStore.values == nil {
		fsStore.values = make(map[string]string)
	}
	return fsStore, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	return f.mutate(func(values map[string]string) {
		values[key] = value
	})
}

// SetMany writes all values with a single file rewrite.
func (f *FileStore) SetMany(_ context.Context, values map[string]string) error {
	return f.mutate(func(current map[string]string) {
		for k, v := range values {
			current[k] = v
		}
	})
}

func (f *FileStore) Delete(_ context.Context, keys ...string) error {
	return f.mutate(func(values map[string]string) {
		for _, k := range keys {
			delete(values, k)
		}
	})
}

// mutate applies fn to a copy and only swaps it in once the file is written.
func (f *FileStore) mutate(fn func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make(map[string]string, len(f.values)+1)
	for k, v := range f.values {
		next[k] = v
	}
	fn(next)

	if err := writeFileAtomic(f.path, next); err != nil {
		return err
	}
	f.values = next
	return nil
}

func writeFileAtomic(path string, values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode session file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set session file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}
