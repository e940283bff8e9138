package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/nickyhof/MiniDB/core"
)

// emptyTreeHash marks "no tree yet"; getTreeEntries treats it as empty.
var emptyTreeHash = plumbing.ZeroHash

// Transaction is one commit of the git backend.
type Transaction struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>" format
	Message string
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}

func (s *GitStorage) transactionOf(commit *object.Commit) Transaction {
	author := ""
	if commit.Author.Name != "" || commit.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email)
	}

	return Transaction{
		Id:      commit.Hash.String(),
		When:    commit.Committer.When,
		Author:  author,
		Message: commit.Message,
	}
}

// LatestTransaction returns the HEAD commit, or the zero Transaction if
// nothing has been persisted yet.
func (s *GitStorage) LatestTransaction() Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.headCommit()
	if err != nil || commit == nil {
		// No commits yet
		return Transaction{}
	}

	return s.transactionOf(commit)
}

// History lists the commits that changed a table's document, newest first.
func (s *GitStorage) History(table string) ([]Transaction, error) {
	if err := checkTableName(table); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.headCommit()
	if err != nil {
		return nil, core.WrapStorage(err, "history of %s", table)
	}
	if commit == nil {
		return nil, nil
	}

	fileName := documentName(table)
	cIter, err := s.repo.Log(&git.LogOptions{
		From:     commit.Hash,
		FileName: &fileName,
	})
	if err != nil {
		return nil, core.WrapStorage(err, "history of %s", table)
	}
	defer cIter.Close()

	var transactions []Transaction
	err = cIter.ForEach(func(c *object.Commit) error {
		transactions = append(transactions, s.transactionOf(c))
		return nil
	})
	if err != nil {
		return nil, core.WrapStorage(err, "history of %s", table)
	}

	return transactions, nil
}
