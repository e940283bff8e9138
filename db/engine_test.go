package db

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/goccy/go-json"
	"github.com/nickyhof/MiniDB/core"
	"github.com/nickyhof/MiniDB/op"
	"github.com/nickyhof/MiniDB/ps"
)

func setupTestEngine(t testing.TB, storage ps.Storage) *Engine {
	t.Helper()
	catalog, err := op.OpenCatalog(storage)
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	return NewEngine(catalog)
}

func mustExecute(t testing.TB, engine *Engine, query string) Result {
	t.Helper()
	result, err := engine.Execute(query)
	if err != nil {
		t.Fatalf("Failed to execute %q: %v", query, err)
	}
	return result
}

func insertTestData(t *testing.T, engine *Engine) {
	t.Helper()
	mustExecute(t, engine, "CREATE TABLE users (id INT PRIMARY KEY, name TEXT, age INT)")
	mustExecute(t, engine, `INSERT INTO users VALUES (1, "Alice", 30)`)
	mustExecute(t, engine, `INSERT INTO users VALUES (2, "Bob", 25)`)
	mustExecute(t, engine, `INSERT INTO users (name, age, id) VALUES ("Charlie", 35, 3)`)
}

func TestEngineScenarios(t *testing.T) {
	fs := memfs.New()
	storage, err := ps.NewFileStorage(fs)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	engine := setupTestEngine(t, storage)

	reload := func() *Engine {
		reopened, err := ps.NewFileStorage(fs)
		if err != nil {
			t.Fatalf("Failed to reopen storage: %v", err)
		}
		return setupTestEngine(t, reopened)
	}

	// Create
	mustExecute(t, engine, "CREATE TABLE users (id INT PRIMARY KEY, name TEXT, active BOOL)")
	schema, err := engine.Describe("users")
	if err != nil {
		t.Fatalf("Failed to describe users: %v", err)
	}
	if len(schema.Columns) != 3 {
		t.Errorf("Expected 3 columns, got %d", len(schema.Columns))
	}

	// Duplicate key
	mustExecute(t, engine, `INSERT INTO users VALUES (1, "Alice", true)`)
	_, err = engine.Execute(`INSERT INTO users VALUES (1, "Bob", false)`)
	if core.KindOf(err) != core.ConstraintViolation {
		t.Fatalf("Expected ConstraintViolation, got %v", err)
	}

	// Point select
	alice := [][]core.Value{{core.IntValue(1), core.TextValue("Alice"), core.BoolValue(true)}}
	qr := mustExecute(t, engine, "SELECT * FROM users WHERE id = 1").(QueryResult)
	if !reflect.DeepEqual(qr.Rows, alice) {
		t.Errorf("Expected %v, got %v", alice, qr.Rows)
	}
	qr = mustExecute(t, engine, "SELECT * FROM users").(QueryResult)
	if !reflect.DeepEqual(qr.Rows, alice) {
		t.Errorf("Expected only Alice after the rejected insert, got %v", qr.Rows)
	}

	// Update survives reload
	cr := mustExecute(t, engine, "UPDATE users SET active = false WHERE id = 1").(CommitResult)
	if cr.Affected() != 1 {
		t.Errorf("Expected 1 row updated, got %d", cr.Affected())
	}
	qr = mustExecute(t, reload(), "SELECT active FROM users WHERE id = 1").(QueryResult)
	if !reflect.DeepEqual(qr.Rows, [][]core.Value{{core.BoolValue(false)}}) {
		t.Errorf("Expected active=false after reload, got %v", qr.Rows)
	}

	// Delete survives reload
	cr = mustExecute(t, engine, "DELETE FROM users WHERE id = 1").(CommitResult)
	if cr.Affected() != 1 {
		t.Errorf("Expected 1 row deleted, got %d", cr.Affected())
	}
	if qr := mustExecute(t, engine, "SELECT * FROM users").(QueryResult); len(qr.Rows) != 0 {
		t.Errorf("Expected no rows, got %v", qr.Rows)
	}
	if qr := mustExecute(t, reload(), "SELECT * FROM users").(QueryResult); len(qr.Rows) != 0 {
		t.Errorf("Expected no rows after reload, got %v", qr.Rows)
	}
}

func TestEngineSelectWithWhere(t *testing.T) {
	engine := setupTestEngine(t, ps.NewMemoryStorage())
	insertTestData(t, engine)

	tests := []struct {
		query    string
		expected []string
	}{
		{"SELECT name FROM users WHERE age > 28", []string{"Alice", "Charlie"}},
		{"SELECT name FROM users WHERE age <= 30", []string{"Alice", "Bob"}},
		{"SELECT name FROM users WHERE id >= 2", []string{"Bob", "Charlie"}},
		{"SELECT name FROM users WHERE id <> 2", []string{"Alice", "Charlie"}},
		{`SELECT name FROM users WHERE name = "Bob"`, []string{"Bob"}},
		{`SELECT name FROM users WHERE name < "B"`, []string{"Alice"}},
		{"SELECT name FROM users WHERE id = 99", nil},
	}

	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			qr := mustExecute(t, engine, test.query).(QueryResult)
			var names []string
			for _, row := range qr.Data() {
				names = append(names, row[0])
			}
			if !reflect.DeepEqual(names, test.expected) {
				t.Errorf("Expected %v, got %v", test.expected, names)
			}
			if qr.RecordsRead != len(test.expected) {
				t.Errorf("Expected %d records read, got %d", len(test.expected), qr.RecordsRead)
			}
		})
	}
}

func TestEngineErrors(t *testing.T) {
	engine := setupTestEngine(t, ps.NewMemoryStorage())
	insertTestData(t, engine)

	tests := []struct {
		query string
		kind  core.ErrorKind
	}{
		{"DROP TABLE users", core.SyntaxError},
		{"SELECT * FROM users WHERE id = 1 AND age = 30", core.SyntaxError},
		{`INSERT INTO users VALUES (4, "Dan)`, core.SyntaxError},
		{"CREATE TABLE t (a FLOAT)", core.SyntaxError},
		{"SELECT * FROM missing", core.SchemaError},
		{"CREATE TABLE users (id INT)", core.SchemaError},
		{"SELECT email FROM users", core.SchemaError},
		{`INSERT INTO users VALUES (4, "Dan")`, core.SchemaError},
		{`INSERT INTO users VALUES ("4", "Dan", 40)`, core.TypeMismatch},
		{"SELECT * FROM users WHERE name = 1", core.TypeMismatch},
		{"UPDATE users SET age = true", core.TypeMismatch},
		{"UPDATE users SET id = 1 WHERE id = 2", core.ConstraintViolation},
		{"UPDATE users SET id = 5", core.ConstraintViolation},
	}

	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			_, err := engine.Execute(test.query)
			if core.KindOf(err) != test.kind {
				t.Errorf("Expected %s, got %v", test.kind, err)
			}
		})
	}

	qr := mustExecute(t, engine, "SELECT id FROM users").(QueryResult)
	if len(qr.Rows) != 3 {
		t.Errorf("Expected failed statements to leave 3 rows, got %d", len(qr.Rows))
	}
}

func TestRunOutcome(t *testing.T) {
	engine := setupTestEngine(t, ps.NewMemoryStorage())
	insertTestData(t, engine)

	tests := []struct {
		query    string
		expected string
	}{
		{"SELECT id, name FROM users WHERE id = 2", `{"kind":"rows","columns":["id","name"],"rows":[[2,"Bob"]]}`},
		{"SELECT * FROM users WHERE id = 9", `{"kind":"rows","columns":["id","name","age"],"rows":[]}`},
		{"DELETE FROM users WHERE id = 9", `{"kind":"count","affected":0}`},
		{"UPDATE users SET age = 31 WHERE id = 1", `{"kind":"count","affected":1}`},
		{"SELECT * FROM nowhere", `{"kind":"error","error_kind":"SchemaError","message":"table nowhere does not exist"}`},
	}

	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			outcome := engine.Run(test.query)
			data, err := json.Marshal(outcome)
			if err != nil {
				t.Fatalf("Failed to marshal outcome: %v", err)
			}
			if string(data) != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, data)
			}
		})
	}
}

func TestRunSyntaxPosition(t *testing.T) {
	engine := setupTestEngine(t, ps.NewMemoryStorage())

	outcome := engine.Run("SELECT * FROM t WHERE a = 1 OR b = 2")
	if outcome.ErrorKind != core.SyntaxError || outcome.Position == nil || *outcome.Position != 28 {
		t.Errorf("Expected SyntaxError at 28, got %+v", outcome)
	}
	if outcome.Message != "compound WHERE conditions are not supported" {
		t.Errorf("Unexpected message %q", outcome.Message)
	}
}

func TestOutcomeOfInternalError(t *testing.T) {
	outcome := OutcomeOf(nil, errors.New("boom"))
	if !outcome.Failed() || outcome.ErrorKind != core.InternalError || outcome.Message != "boom" {
		t.Errorf("Expected InternalError outcome, got %+v", outcome)
	}
}

func TestRowIDColumnIsReserved(t *testing.T) {
	storage := ps.NewMemoryStorage()
	engine := setupTestEngine(t, storage)

	if _, err := engine.Execute("CREATE TABLE t (_rid INT, name TEXT)"); core.KindOf(err) != core.SchemaError {
		t.Fatalf("Expected SchemaError for a _rid column, got %v", err)
	}
	if _, err := engine.Execute(`INSERT INTO t VALUES (100, "a")`); core.KindOf(err) != core.SchemaError {
		t.Errorf("Expected SchemaError for the missing table, got %v", err)
	}

	mustExecute(t, engine, "CREATE TABLE u (rid INT, name TEXT)")
	mustExecute(t, engine, `INSERT INTO u VALUES (100, "a")`)
	mustExecute(t, engine, `INSERT INTO u VALUES (100, "b")`)

	reopened := setupTestEngine(t, storage)
	qr := mustExecute(t, reopened, "SELECT * FROM u").(QueryResult)
	expected := [][]string{{"100", "a"}, {"100", "b"}}
	if !reflect.DeepEqual(qr.Data(), expected) {
		t.Errorf("Expected %v after reload, got %v", expected, qr.Data())
	}
}

func TestRunScript(t *testing.T) {
	engine := setupTestEngine(t, ps.NewMemoryStorage())

	outcomes := engine.RunScript(`
		CREATE TABLE notes (id INT PRIMARY KEY, body TEXT);
		INSERT INTO notes VALUES (1, "a; b");
		INSERT INTO notes VALUES (1, "dup");
		INSERT INTO notes VALUES (2, "never");
	`)
	if len(outcomes) != 3 {
		t.Fatalf("Expected to stop after 3 statements, got %d", len(outcomes))
	}
	if outcomes[2].ErrorKind != core.ConstraintViolation {
		t.Errorf("Expected ConstraintViolation last, got %+v", outcomes[2])
	}

	qr := mustExecute(t, engine, "SELECT body FROM notes").(QueryResult)
	if !reflect.DeepEqual(qr.Data(), [][]string{{"a; b"}}) {
		t.Errorf("Expected [[a; b]], got %v", qr.Data())
	}
}

func TestDumpReplays(t *testing.T) {
	engine := setupTestEngine(t, ps.NewMemoryStorage())
	insertTestData(t, engine)
	mustExecute(t, engine, `CREATE TABLE tags (label TEXT UNIQUE NOT NULL, hot BOOL)`)
	mustExecute(t, engine, `INSERT INTO tags VALUES ('say "hi"', true)`)
	mustExecute(t, engine, `DELETE FROM users WHERE id = 2`)

	var buf bytes.Buffer
	if err := engine.Dump(&buf); err != nil {
		t.Fatalf("Failed to dump: %v", err)
	}

	replica := setupTestEngine(t, ps.NewMemoryStorage())
	for _, outcome := range replica.RunScript(buf.String()) {
		if outcome.Failed() {
			t.Fatalf("Failed to replay dump: %s\n%s", outcome.Message, buf.String())
		}
	}

	for _, table := range []string{"users", "tags"} {
		want := mustExecute(t, engine, "SELECT * FROM "+table).(QueryResult)
		got := mustExecute(t, replica, "SELECT * FROM "+table).(QueryResult)
		if !reflect.DeepEqual(got.Rows, want.Rows) {
			t.Errorf("%s: expected %v, got %v", table, want.Rows, got.Rows)
		}
		wantSchema, _ := engine.Describe(table)
		gotSchema, _ := replica.Describe(table)
		if !reflect.DeepEqual(gotSchema, wantSchema) {
			t.Errorf("%s: expected schema %v, got %v", table, wantSchema, gotSchema)
		}
	}
}

// fakeScriptS3 keeps uploaded objects in memory.
type fakeScriptS3 struct {
	objects map[string][]byte
}

func (f *fakeScriptS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeScriptS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Bucket+"/"+*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestExportImportS3(t *testing.T) {
	fake := &fakeScriptS3{objects: map[string][]byte{}}
	original := newS3Client
	newS3Client = func(ctx context.Context, opts ps.S3Options) (scriptS3Client, error) {
		return fake, nil
	}
	defer func() { newS3Client = original }()

	engine := setupTestEngine(t, ps.NewMemoryStorage())
	insertTestData(t, engine)

	ctx := context.Background()
	if err := engine.Export(ctx, "s3://backups/minidb.sql", ps.S3Options{}); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}
	if !strings.HasPrefix(string(fake.objects["backups/minidb.sql"]), "CREATE TABLE users") {
		t.Errorf("Unexpected export %q", fake.objects["backups/minidb.sql"])
	}

	replica := setupTestEngine(t, ps.NewMemoryStorage())
	outcomes, err := replica.Import(ctx, "s3://backups/minidb.sql", ps.S3Options{})
	if err != nil {
		t.Fatalf("Failed to import: %v", err)
	}
	if len(outcomes) != 4 {
		t.Errorf("Expected 4 statements, got %d", len(outcomes))
	}

	if _, err := replica.Import(ctx, "s3://backups/missing.sql", ps.S3Options{}); core.KindOf(err) != core.StorageError {
		t.Errorf("Expected StorageError for a missing object, got %v", err)
	}
	if _, err := replica.Import(ctx, "s3://only-bucket", ps.S3Options{}); core.KindOf(err) != core.StorageError {
		t.Errorf("Expected StorageError for a bad URL, got %v", err)
	}
	if err := replica.Export(ctx, "https://example.com/dump.sql", ps.S3Options{}); core.KindOf(err) != core.StorageError {
		t.Errorf("Expected StorageError exporting to HTTP, got %v", err)
	}
}

func TestDetectScheme(t *testing.T) {
	tests := map[string]urlScheme{
		"s3://bucket/key":        schemeS3,
		"S3://bucket/key":        schemeS3,
		"https://host/a.sql":     schemeHTTPS,
		"http://host/a.sql":      schemeHTTP,
		"file:///tmp/a.sql":      schemeFile,
		"/tmp/a.sql":             schemeLocal,
		"relative/path/seed.sql": schemeLocal,
	}
	for path, expected := range tests {
		if got := detectScheme(path); got != expected {
			t.Errorf("%s: expected %s, got %s", path, expected, got)
		}
	}
}

func TestDisplay(t *testing.T) {
	engine := setupTestEngine(t, ps.NewMemoryStorage())
	insertTestData(t, engine)

	var buf bytes.Buffer
	mustExecute(t, engine, "SELECT * FROM users").Display(&buf)
	out := buf.String()
	for _, want := range []string{"id", "name", "Alice", "Charlie", "3 rows"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	mustExecute(t, engine, "DELETE FROM users WHERE age > 26").Display(&buf)
	if !strings.Contains(buf.String(), "2 record(s) deleted") {
		t.Errorf("Unexpected commit output %q", buf.String())
	}

	buf.Reset()
	_, err := engine.Execute("SELECT * FROM users WHERE")
	DisplayError(&buf, err)
	if !strings.Contains(buf.String(), "SyntaxError") || !strings.Contains(buf.String(), "position 25") {
		t.Errorf("Unexpected error output %q", buf.String())
	}
}

func TestSchemaString(t *testing.T) {
	schema := core.Schema{Name: "t", Columns: []core.Column{
		{Name: "id", Type: core.IntType, PrimaryKey: true, Unique: true},
		{Name: "code", Type: core.TextType, Unique: true, Nullable: true},
		{Name: "flag", Type: core.BoolType},
	}}
	expected := "CREATE TABLE t (id INT PRIMARY KEY, code TEXT UNIQUE, flag BOOL NOT NULL)"
	if got := SchemaString(schema); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}
