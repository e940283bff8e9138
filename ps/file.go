package ps

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/nickyhof/MiniDB/core"
)

const tempMarker = documentExt + ".tmp-"

// FileStorage stores one <table>.json document per table in a billy
// filesystem. Persist writes to a temp file beside the target, syncs it and
// renames it over the canonical file.
type FileStorage struct {
	fs     billy.Filesystem
	mu     sync.Mutex
	closed bool
}

// NewFileStorage wraps fs and removes temp files left by interrupted writes.
func NewFileStorage(fs billy.Filesystem) (*FileStorage, error) {
	s := &FileStorage{fs: fs}
	if err := s.removeStrayTempFiles(); err != nil {
		return nil, core.WrapStorage(err, "open %s", fs.Root())
	}
	return s, nil
}

// OpenFileStorage opens (creating if needed) a data directory on disk.
func OpenFileStorage(dir string) (*FileStorage, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, core.WrapStorage(err, "create data directory %s", dir)
	}
	return NewFileStorage(osfs.New(dir))
}

func (s *FileStorage) removeStrayTempFiles() error {
	entries, err := s.fs.ReadDir(".")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && strings.Contains(name, tempMarker) {
			if err := s.fs.Remove(name); err != nil {
				return fmt.Errorf("failed to remove stray temp file %s: %w", name, err)
			}
		}
	}
	return nil
}

func (s *FileStorage) Load(name string) (Document, bool, error) {
	if err := checkTableName(name); err != nil {
		return Document{}, false, err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return Document{}, false, core.WrapStorage(ErrClosed, "load %s", name)
	}

	data, err := util.ReadFile(s.fs, documentName(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Document{}, false, nil
		}
		return Document{}, false, core.WrapStorage(err, "load %s", name)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return Document{}, false, core.WrapStorage(err, "load %s", name)
	}
	return doc, true, nil
}

func (s *FileStorage) Persist(name string, doc Document) error {
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
	if err := s.replace(documentName(name), data); err != nil {
		return core.WrapStorage(err, "persist %s", name)
	}
	return nil
}

// replace writes data to a fresh temp file and renames it over target. The
// temp file is removed on every failure path.
func (s *FileStorage) replace(target string, data []byte) (err error) {
	tmp, err := util.TempFile(s.fs, ".", "."+target+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			s.fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if syncer, ok := tmp.(interface{ Sync() error }); ok {
		if err = syncer.Sync(); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to sync temp file: %w", err)
		}
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = s.fs.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	return nil
}

func (s *FileStorage) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, core.WrapStorage(ErrClosed, "list tables")
	}

	entries, err := s.fs.ReadDir(".")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, core.WrapStorage(err, "list tables")
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := tableName(entry.Name()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
