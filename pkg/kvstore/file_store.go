package kvstore

import (
	"fmt"
	"os"
	"sync"

	"github.com/benmeehan/signage-agent/pkg/file"
)

// FileStore keeps all keys in one JSON document that is rewritten atomically
// on every mutation.
type FileStore struct {
	path    string
	fileOps file.FileOperations

	mu   sync.RWMutex
	data map[string]string
}

// NewFileStore loads (or initializes) the JSON document at path. A nil fileOps
// uses the default file service.
func NewFileStore(path string, fileOps file.FileOperations) (*FileStore, error) {
	if fileOps == nil {
		fileOps = file.NewFileService()
	}

	s := &FileStore{
		path:    path,
		fileOps: fileOps,
		data:    make(map[string]string),
	}

	if err := fileOps.ReadJsonFile(path, &s.data); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read store %s: %w", path, err)
		}
		s.data = make(map[string]string)
	}
	if s.data == nil {
		s.data = make(map[string]string)
	}

	return s, nil
}

// Get returns the value stored under key.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	return value, ok, nil
}

// Put writes key and persists the whole document. On a failed write the
// in-memory view is left unchanged.
func (s *FileStore) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyLocked()
	next[key] = value
	return s.commitLocked(next)
}

// Delete removes key and persists the document.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}

	next := s.copyLocked()
	delete(next, key)
	return s.commitLocked(next)
}

// Close is a no-op; every mutation is already on disk.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) copyLocked() map[string]string {
	next := make(map[string]string, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	return next
}

func (s *FileStore) commitLocked(next map[string]string) error {
	if err := s.fileOps.WriteJsonFile(s.path, next); err != nil {
		return fmt.Errorf("failed to write store %s: %w", s.path, err)
	}
	s.data = next
	return nil
}
