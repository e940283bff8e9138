package ps

import (
	"errors"
	"sort"
	"sync"

	"github.com/nickyhof/MiniDB/core"
)

var ErrClosed = errors.New("storage is closed")

// Storage is the durable home of table documents. Implementations must make
// Persist atomic: a reader sees either the previous document or the new one,
// never a partial write. Every failure is a *core.Error of kind StorageError.
type Storage interface {
	// Load returns the stored document for a table. found is false, with a
	// nil error, when the table has never been persisted.
	Load(name string) (doc Document, found bool, err error)
	Persist(name string, doc Document) error
	// List returns the names of every stored table, sorted.
	List() ([]string, error)
	Close() error
}

// MemoryStorage keeps encoded documents in a map. Documents go through the
// same codec as the durable backends, so it catches encoding problems too.
type MemoryStorage struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	closed bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{docs: make(map[string][]byte)}
}

func (s *MemoryStorage) Load(name string) (Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Document{}, false, core.WrapStorage(ErrClosed, "load %s", name)
	}
	data, ok := s.docs[name]
	if !ok {
		return Document{}, false, nil
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return Document{}, false, core.WrapStorage(err, "load %s", name)
	}
	return doc, true, nil
}

func (s *MemoryStorage) Persist(name string, doc Document) error {
	if err := checkTableName(name); err != nil {
		return err
	}
	data, err := EncodeDocument(doc)
	if err != nil {
		return core.WrapStorage(err, "persist %s", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.WrapStorage(ErrClosed, "persist %s", name)
	}
	s.docs[name] = data
	return nil
}

func (s *MemoryStorage) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, core.WrapStorage(ErrClosed, "list tables")
	}
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Raw returns the encoded document for a table as last persisted.
func (s *MemoryStorage) Raw(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[name]
	return data, ok
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
