package zarr

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio"
)

// ErrKeyNotFound is returned by Backend.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// Backend is flat key-value storage underneath a zarr array.  Put must be
// atomic: a concurrent or crashed writer must never leave a key visible
// with a partial value, since the resumable pipeline treats every listed
// chunk key as fully written.
type Backend interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	List() ([]string, error)
}

// MemoryStore is an in-memory Backend used for testing.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, found := s.data[key]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return d, nil
}

func (s *MemoryStore) Put(key string, value []byte) error {
	d := make([]byte, len(value))
	copy(d, value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = d
	return nil
}

func (s *MemoryStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// Delete removes a key.  Tests use this to simulate partially completed
// runs.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// LocalStore is a directory-backed Backend.  Each key is one flat file;
// writes go through an atomic rename so a chunk file is never observably
// partial.
type LocalStore struct {
	base string
}

// NewLocalStore returns a LocalStore rooted at base, creating the
// directory if needed.
func NewLocalStore(base string) (*LocalStore, error) {
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{base: base}, nil
}

// OpenLocalStore returns a LocalStore for an existing directory, with
// found == false if the directory does not exist.
func OpenLocalStore(base string) (s *LocalStore, found bool, err error) {
	base, err = filepath.Abs(base)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Stat(base)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !info.IsDir() {
		return nil, false, fmt.Errorf("store path %q is not a directory", base)
	}
	return &LocalStore{base: base}, true, nil
}

func (s *LocalStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.base, key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return data, err
}

func (s *LocalStore) Put(key string, value []byte) error {
	return renameio.WriteFile(filepath.Join(s.base, key), value, 0644)
}

func (s *LocalStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		keys = append(keys, entry.Name())
	}
	return keys, nil
}
