package ps

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
	"github.com/nickyhof/MiniDB/core"
)

// Identity is the author recorded on every commit.
type Identity struct {
	Name  string
	Email string
}

func (identity Identity) String() string {
	return fmt.Sprintf("%s <%s>", identity.Name, identity.Email)
}

var DefaultIdentity = Identity{Name: "MiniDB", Email: "minidb@localhost"}

// GitStorage keeps each table document as a blob at the root of a git tree.
// Every Persist writes a new tree and commit through the object store; the
// branch reference update is the atomic replace.
type GitStorage struct {
	repo     *git.Repository
	identity Identity
	mu       sync.Mutex
	closed   bool
}

// NewMemoryGitStorage creates a repository that lives only in memory.
func NewMemoryGitStorage(identity Identity) (*GitStorage, error) {
	repo, err := git.Init(memory.NewStorage())
	if err != nil {
		return nil, core.WrapStorage(err, "init in-memory repository")
	}

	return &GitStorage{repo: repo, identity: identity}, nil
}

// OpenGitStorage opens the bare repository in dir, initializing it if the
// directory holds none yet.
func OpenGitStorage(dir string, identity Identity) (*GitStorage, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, core.WrapStorage(err, "create repository directory %s", dir)
	}

	storer := filesystem.NewStorageWithOptions(
		osfs.New(dir),
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	repo, err := git.Open(storer, nil)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		// Directory holds no repository yet, initialize a new one
		repo, err = git.Init(storer)
	}
	if err != nil {
		return nil, core.WrapStorage(err, "open repository %s", dir)
	}

	return &GitStorage{repo: repo, identity: identity}, nil
}

func (s *GitStorage) Load(name string) (Document, bool, error) {
	if err := checkTableName(name); err != nil {
		return Document{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Document{}, false, core.WrapStorage(ErrClosed, "load %s", name)
	}

	data, found, err := s.readHeadFile(documentName(name))
	if err != nil {
		return Document{}, false, core.WrapStorage(err, "load %s", name)
	}
	if !found {
		return Document{}, false, nil
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return Document{}, false, core.WrapStorage(err, "load %s", name)
	}
	return doc, true, nil
}

func (s *GitStorage) Persist(name string, doc Document) error {
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
	if _, err := s.commitDocument(name, data); err != nil {
		return core.WrapStorage(err, "persist %s", name)
	}
	return nil
}

func (s *GitStorage) commitDocument(name string, data []byte) (Transaction, error) {
	parent, err := s.headCommit()
	if err != nil {
		return Transaction{}, err
	}

	blobHash, err := s.createBlob(data)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to create blob for %s: %w", name, err)
	}

	currentTree := emptyTreeHash
	if parent != nil {
		currentTree = parent.TreeHash
	}

	newTree, err := s.putTreeEntry(currentTree, documentName(name), blobHash)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to update tree: %w", err)
	}

	if parent != nil && parent.TreeHash == newTree {
		// Document unchanged, nothing to commit
		return s.transactionOf(parent), nil
	}

	return s.createCommitDirect(newTree, parent, "Persist table "+name)
}

func (s *GitStorage) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, core.WrapStorage(ErrClosed, "list tables")
	}

	files, err := s.listHeadFiles()
	if err != nil {
		return nil, core.WrapStorage(err, "list tables")
	}

	var names []string
	for _, file := range files {
		if name, ok := tableName(file); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *GitStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if closer, ok := s.repo.Storer.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return core.WrapStorage(err, "close repository")
		}
	}
	return nil
}
