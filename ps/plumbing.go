package ps

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// createBlob creates a blob object directly in the object store without filesystem I/O
func (s *GitStorage) createBlob(data []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}

	return hash, nil
}

// headCommit returns the commit HEAD points at, or nil if there are no commits yet.
func (s *GitStorage) headCommit() (*object.Commit, error) {
	headRef, err := s.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// No commits yet
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	commit, err := s.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get head commit: %w", err)
	}

	return commit, nil
}

// getTreeEntries reads all entries from an existing tree, returning a map of name -> entry
func (s *GitStorage) getTreeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)

	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}

	tree, err := object.GetTree(s.repo.Storer, treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}

	return entries, nil
}

// putTreeEntry returns a new tree equal to treeHash with name pointing at blobHash.
// Table documents live at the root of the tree, so no subtrees are involved.
func (s *GitStorage) putTreeEntry(treeHash plumbing.Hash, name string, blobHash plumbing.Hash) (plumbing.Hash, error) {
	entries, err := s.getTreeEntries(treeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	entries[name] = object.TreeEntry{
		Name: name,
		Mode: filemode.Regular,
		Hash: blobHash,
	}

	// Convert map to slice and build new tree
	entrySlice := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		entrySlice = append(entrySlice, entry)
	}

	return s.buildTreeFromEntries(entrySlice)
}

// buildTreeFromEntries creates a tree object from a list of entries
func (s *GitStorage) buildTreeFromEntries(entries []object.TreeEntry) (plumbing.Hash, error) {
	// Sort entries by name (Git requirement)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	tree := &object.Tree{Entries: entries}

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	return hash, nil
}

// createCommitDirect creates a commit object directly without using a worktree
// and moves the current branch to it. The reference update is what makes the
// new tree visible.
func (s *GitStorage) createCommitDirect(treeHash plumbing.Hash, parent *object.Commit, message string) (Transaction, error) {
	var parentHashes []plumbing.Hash
	if parent != nil {
		parentHashes = []plumbing.Hash{parent.Hash}
	}

	sig := object.Signature{
		Name:  s.identity.Name,
		Email: s.identity.Email,
		When:  time.Now(),
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parentHashes,
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return Transaction{}, fmt.Errorf("failed to encode commit: %w", err)
	}

	commitHash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to store commit: %w", err)
	}

	// Update branch reference
	branchName := plumbing.Master
	if headRef, err := s.repo.Storer.Reference(plumbing.HEAD); err == nil && headRef.Type() == plumbing.SymbolicReference {
		branchName = headRef.Target()
	}

	ref := plumbing.NewHashReference(branchName, commitHash)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return Transaction{}, fmt.Errorf("failed to update HEAD: %w", err)
	}

	return Transaction{
		Id:      commitHash.String(),
		When:    sig.When,
		Author:  s.identity.String(),
		Message: message,
	}, nil
}

// readHeadFile reads a file from the HEAD tree. found is false if there are no
// commits yet or the file is not in the tree.
func (s *GitStorage) readHeadFile(name string) ([]byte, bool, error) {
	commit, err := s.headCommit()
	if err != nil {
		return nil, false, err
	}
	if commit == nil {
		return nil, false, nil
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get tree: %w", err)
	}

	file, err := tree.File(name)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to find %s: %w", name, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read contents: %w", err)
	}

	return []byte(content), true, nil
}

// listHeadFiles lists the names of the regular files at the root of the HEAD tree.
func (s *GitStorage) listHeadFiles() ([]string, error) {
	commit, err := s.headCommit()
	if err != nil {
		return nil, err
	}
	if commit == nil {
		return nil, nil // No commits yet = empty
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	var names []string
	for _, entry := range tree.Entries {
		if entry.Mode == filemode.Dir {
			continue
		}
		names = append(names, entry.Name)
	}

	return names, nil
}
