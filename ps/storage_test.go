package ps

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/nickyhof/MiniDB/core"
)

func usersDocument() Document {
	return Document{
		Schema: core.Schema{
			Name: "users",
			Columns: []core.Column{
				{Name: "id", Type: core.IntType, PrimaryKey: true, Unique: true},
				{Name: "name", Type: core.TextType, Nullable: true},
				{Name: "active", Type: core.BoolType, Nullable: true},
			},
		},
		Rows: []core.Row{
			{ID: 1, Values: []core.Value{core.IntValue(1), core.TextValue("Alice"), core.BoolValue(true)}},
			{ID: 3, Values: []core.Value{core.IntValue(2), core.TextValue(`Bob "the builder"`), core.BoolValue(false)}},
		},
		NextRowID: 4,
	}
}

// fakeS3 is an in-process bucket implementing S3Client.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	file, err := NewFileStorage(memfs.New())
	if err != nil {
		t.Fatalf("Failed to create file storage: %v", err)
	}
	git, err := NewMemoryGitStorage(DefaultIdentity)
	if err != nil {
		t.Fatalf("Failed to create git storage: %v", err)
	}

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   file,
		"git":    git,
		"s3":     NewS3Storage(newFakeS3(), "bucket", "tables"),
	}
}

func TestStorageRoundTrip(t *testing.T) {
	for name, storage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			expected := usersDocument()

			if err := storage.Persist("users", expected); err != nil {
				t.Fatalf("Failed to persist: %v", err)
			}

			actual, found, err := storage.Load("users")
			if err != nil {
				t.Fatalf("Failed to load: %v", err)
			}
			if !found {
				t.Fatal("Expected users to be found")
			}
			if !reflect.DeepEqual(actual, expected) {
				t.Errorf("Expected %+v, got %+v", expected, actual)
			}
		})
	}
}

func TestStorageLoadMissing(t *testing.T) {
	for name, storage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := storage.Load("nothing")
			if err != nil {
				t.Fatalf("Expected no error for a missing table, got %v", err)
			}
			if found {
				t.Error("Expected missing table to be reported as not found")
			}
		})
	}
}

func TestStorageReplaceAndList(t *testing.T) {
	for name, storage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			doc := usersDocument()
			if err := storage.Persist("users", doc); err != nil {
				t.Fatalf("Failed to persist: %v", err)
			}

			doc.Rows = doc.Rows[:1]
			if err := storage.Persist("users", doc); err != nil {
				t.Fatalf("Failed to persist again: %v", err)
			}

			empty := Document{Schema: core.Schema{Name: "tasks", Columns: []core.Column{{Name: "title", Type: core.TextType}}}, NextRowID: 1}
			if err := storage.Persist("tasks", empty); err != nil {
				t.Fatalf("Failed to persist empty table: %v", err)
			}

			loaded, _, err := storage.Load("users")
			if err != nil {
				t.Fatalf("Failed to load: %v", err)
			}
			if len(loaded.Rows) != 1 {
				t.Errorf("Expected 1 row after replace, got %d", len(loaded.Rows))
			}
			if loaded.NextRowID != 4 {
				t.Errorf("Expected next row id 4 to survive, got %d", loaded.NextRowID)
			}

			names, err := storage.List()
			if err != nil {
				t.Fatalf("Failed to list: %v", err)
			}
			if !reflect.DeepEqual(names, []string{"tasks", "users"}) {
				t.Errorf("Expected [tasks users], got %v", names)
			}
		})
	}
}

func TestStorageRejectsBadNames(t *testing.T) {
	for name, storage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := storage.Persist("../escape", usersDocument())
			if core.KindOf(err) != core.StorageError {
				t.Errorf("Expected StorageError, got %v", err)
			}
		})
	}
}

func TestStorageClosed(t *testing.T) {
	for name, storage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := storage.Close(); err != nil {
				t.Fatalf("Failed to close: %v", err)
			}
			if err := storage.Persist("users", usersDocument()); core.KindOf(err) != core.StorageError {
				t.Errorf("Expected StorageError after close, got %v", err)
			}
		})
	}
}

func TestEncodeDocumentLayout(t *testing.T) {
	data, err := EncodeDocument(usersDocument())
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	text := string(data)
	for _, fragment := range []string{`"schema"`, `"rows"`, `"next_row_id": 4`, `"_rid": 1`, `"type": "INT"`, `"primary_key": true`} {
		if !strings.Contains(text, fragment) {
			t.Errorf("Expected document to contain %s:\n%s", fragment, text)
		}
	}
	if strings.Index(text, `"_rid": 1`) > strings.Index(text, `"id": 1`) {
		t.Error("Expected _rid to precede the column values")
	}
}

func TestDecodeDocumentChecksTypes(t *testing.T) {
	data := []byte(`{
  "schema": {"name": "t", "columns": [{"name": "n", "type": "INT"}]},
  "rows": [{"_rid": 1, "n": "one"}],
  "next_row_id": 2
}`)
	if _, err := DecodeDocument(data); err == nil {
		t.Fatal("Expected a type error decoding text into an INT column")
	}

	data = []byte(`{
  "schema": {"name": "t", "columns": [{"name": "n", "type": "INT"}]},
  "rows": [{"_rid": 7, "n": 1}]
}`)
	doc, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if doc.NextRowID != 8 {
		t.Errorf("Expected next row id derived from rows (8), got %d", doc.NextRowID)
	}
}

func TestFileStorageRemovesStrayTempFiles(t *testing.T) {
	fs := memfs.New()
	if err := util.WriteFile(fs, ".users.json.tmp-123", []byte("{partial"), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	if err := util.WriteFile(fs, "notes.txt", []byte("hello"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	storage, err := NewFileStorage(fs)
	if err != nil {
		t.Fatalf("Failed to open file storage: %v", err)
	}

	if _, err := fs.Stat(".users.json.tmp-123"); err == nil {
		t.Error("Expected stray temp file to be removed")
	}

	names, err := storage.List()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no tables, got %v", names)
	}
}

func TestFileStorageLeavesNoTempFiles(t *testing.T) {
	fs := memfs.New()
	storage, err := NewFileStorage(fs)
	if err != nil {
		t.Fatalf("Failed to open file storage: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := storage.Persist("users", usersDocument()); err != nil {
			t.Fatalf("Failed to persist: %v", err)
		}
	}

	entries, err := fs.ReadDir(".")
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "users.json" {
		var names []string
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Errorf("Expected only users.json, got %v", names)
	}
}

func TestGitStorageHistory(t *testing.T) {
	storage, err := NewMemoryGitStorage(Identity{Name: "Test User", Email: "test@example.com"})
	if err != nil {
		t.Fatalf("Failed to create git storage: %v", err)
	}

	doc := usersDocument()
	if err := storage.Persist("users", doc); err != nil {
		t.Fatalf("Failed to persist: %v", err)
	}
	other := Document{Schema: core.Schema{Name: "tasks", Columns: []core.Column{{Name: "title", Type: core.TextType}}}, NextRowID: 1}
	if err := storage.Persist("tasks", other); err != nil {
		t.Fatalf("Failed to persist: %v", err)
	}
	doc.Rows = nil
	if err := storage.Persist("users", doc); err != nil {
		t.Fatalf("Failed to persist: %v", err)
	}

	// Unchanged document adds no commit
	if err := storage.Persist("users", doc); err != nil {
		t.Fatalf("Failed to persist: %v", err)
	}

	history, err := storage.History("users")
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 commits touching users, got %d: %v", len(history), history)
	}
	if history[0].Author != "Test User <test@example.com>" {
		t.Errorf("Unexpected author: %s", history[0].Author)
	}

	latest := storage.LatestTransaction()
	if latest.Id != history[0].Id {
		t.Errorf("Expected latest transaction %s, got %s", history[0].Id, latest.Id)
	}
}

func TestGitStorageBrokenHead(t *testing.T) {
	storage, err := NewMemoryGitStorage(DefaultIdentity)
	if err != nil {
		t.Fatalf("Failed to create git storage: %v", err)
	}
	if err := storage.Persist("users", usersDocument()); err != nil {
		t.Fatalf("Failed to persist: %v", err)
	}
	before, err := storage.History("users")
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}

	head, err := storage.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		t.Fatalf("Failed to read HEAD: %v", err)
	}

	// HEAD now resolves through a reference cycle
	loop := plumbing.ReferenceName("refs/heads/loop")
	if err := storage.repo.Storer.SetReference(plumbing.NewSymbolicReference(loop, loop)); err != nil {
		t.Fatalf("Failed to set reference: %v", err)
	}
	if err := storage.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, loop)); err != nil {
		t.Fatalf("Failed to set HEAD: %v", err)
	}

	if err := storage.Persist("users", Document{Schema: usersDocument().Schema, NextRowID: 1}); core.KindOf(err) != core.StorageError {
		t.Errorf("Expected StorageError on persist, got %v", err)
	}
	if _, _, err := storage.Load("users"); core.KindOf(err) != core.StorageError {
		t.Errorf("Expected StorageError on load, got %v", err)
	}
	if _, err := storage.List(); core.KindOf(err) != core.StorageError {
		t.Errorf("Expected StorageError on list, got %v", err)
	}
	if _, err := storage.History("users"); core.KindOf(err) != core.StorageError {
		t.Errorf("Expected StorageError on history, got %v", err)
	}

	// The failed persist wrote nothing on top of the old commit
	if err := storage.repo.Storer.SetReference(head); err != nil {
		t.Fatalf("Failed to restore HEAD: %v", err)
	}
	after, err := storage.History("users")
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if !reflect.DeepEqual(after, before) {
		t.Errorf("Expected history %v, got %v", before, after)
	}
}

func TestS3StoragePrefixAndErrors(t *testing.T) {
	client := newFakeS3()
	storage := NewS3Storage(client, "bucket", "db")

	if err := storage.Persist("users", usersDocument()); err != nil {
		t.Fatalf("Failed to persist: %v", err)
	}
	if _, ok := client.objects["db/users.json"]; !ok {
		t.Errorf("Expected object db/users.json, got %v", client.objects)
	}

	client.objects["db/nested/other.json"] = []byte("{}")
	client.objects["elsewhere.json"] = []byte("{}")
	names, err := storage.List()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"users"}) {
		t.Errorf("Expected [users], got %v", names)
	}

	client.failPut = io.ErrUnexpectedEOF
	if err := storage.Persist("users", usersDocument()); core.KindOf(err) != core.StorageError {
		t.Errorf("Expected StorageError, got %v", err)
	}
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	storage, err := Open(ctx, Options{Backend: MemoryBackend})
	if err != nil {
		t.Fatalf("Failed to open memory backend: %v", err)
	}
	if _, ok := storage.(*MemoryStorage); !ok {
		t.Errorf("Expected *MemoryStorage, got %T", storage)
	}

	storage, err = Open(ctx, Options{Backend: FileBackend, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open file backend: %v", err)
	}
	if err := storage.Persist("users", usersDocument()); err != nil {
		t.Fatalf("Failed to persist to disk: %v", err)
	}

	gitDir := t.TempDir()
	storage, err = Open(ctx, Options{Backend: GitBackend, Dir: gitDir})
	if err != nil {
		t.Fatalf("Failed to open git backend: %v", err)
	}
	if err := storage.Persist("users", usersDocument()); err != nil {
		t.Fatalf("Failed to persist to git: %v", err)
	}

	reopened, err := Open(ctx, Options{Backend: GitBackend, Dir: gitDir})
	if err != nil {
		t.Fatalf("Failed to reopen git backend: %v", err)
	}
	if _, found, err := reopened.Load("users"); err != nil || !found {
		t.Errorf("Expected users after reopening, found=%v err=%v", found, err)
	}

	if _, err := Open(ctx, Options{Backend: "tape"}); err == nil {
		t.Error("Expected unknown backend to fail")
	}
	if _, err := Open(ctx, Options{Backend: S3Backend}); err == nil {
		t.Error("Expected s3 backend without bucket to fail")
	}
}
