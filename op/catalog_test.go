package op

import (
	"reflect"
	"testing"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/nickyhof/MiniDB/core"
	"github.com/nickyhof/MiniDB/ps"
)

func TestCatalogRegister(t *testing.T) {
	catalog, _, _ := newUsers(t)

	if _, err := catalog.Register(usersSchema()); core.KindOf(err) != core.SchemaError {
		t.Errorf("Expected SchemaError for a duplicate table, got %v", err)
	}
	if _, err := catalog.Lookup("orders"); core.KindOf(err) != core.SchemaError {
		t.Errorf("Expected SchemaError for a missing table, got %v", err)
	}

	invalid := []core.Schema{
		{Name: "empty"},
		{Name: "twice", Columns: []core.Column{{Name: "a", Type: core.IntType}, {Name: "a", Type: core.TextType}}},
		{Name: "keys", Columns: []core.Column{{Name: "a", Type: core.IntType, PrimaryKey: true}, {Name: "b", Type: core.IntType, PrimaryKey: true}}},
		{Name: "rid", Columns: []core.Column{{Name: ps.RowIDField, Type: core.IntType}, {Name: "name", Type: core.TextType}}},
		{Name: "Users", Columns: []core.Column{{Name: "a", Type: core.IntType}}},
		{Name: "USERS", Columns: []core.Column{{Name: "a", Type: core.IntType}}},
	}
	for _, schema := range invalid {
		t.Run(schema.Name, func(t *testing.T) {
			if _, err := catalog.Register(schema); core.KindOf(err) != core.SchemaError {
				t.Errorf("Expected SchemaError, got %v", err)
			}
			if catalog.Exists(schema.Name) {
				t.Error("Expected invalid table not to be registered")
			}
			if _, found, _ := catalog.Storage().Load(schema.Name); found {
				t.Error("Expected invalid table not to be stored")
			}
		})
	}

	if _, err := catalog.Register(core.Schema{Name: "bad name", Columns: []core.Column{{Name: "a", Type: core.IntType}}}); core.KindOf(err) != core.StorageError {
		t.Errorf("Expected StorageError for an unstorable name, got %v", err)
	}

	if _, err := catalog.Register(core.Schema{Name: "orders", Columns: []core.Column{{Name: "sku", Type: core.TextType, Unique: true}}}); err != nil {
		t.Fatalf("Failed to register orders: %v", err)
	}
	if names := catalog.Names(); !reflect.DeepEqual(names, []string{"orders", "users"}) {
		t.Errorf("Expected [orders users], got %v", names)
	}
}

func TestCatalogReload(t *testing.T) {
	fs := memfs.New()
	storage, err := ps.NewFileStorage(fs)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	catalog := NewCatalog(storage)
	table, err := catalog.Register(usersSchema())
	if err != nil {
		t.Fatalf("Failed to register users: %v", err)
	}
	insertUser(t, table, "1", "Alice", "true")
	insertUser(t, table, "2", "Bob", "false")
	insertUser(t, table, "3", "Carol", "true")
	if _, err := table.Delete(eq("id", intLit("3"))); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	reopened, err := ps.NewFileStorage(fs)
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	loaded, err := OpenCatalog(reopened)
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	users, err := loaded.Lookup("users")
	if err != nil {
		t.Fatalf("Failed to look up users: %v", err)
	}

	if !reflect.DeepEqual(users.Schema(), table.Schema()) {
		t.Errorf("Expected schema %v, got %v", table.Schema(), users.Schema())
	}
	expected := [][]core.Value{user(1, "Alice", true), user(2, "Bob", false)}
	if rows := selectAll(t, users); !reflect.DeepEqual(rows, expected) {
		t.Errorf("Expected %v, got %v", expected, rows)
	}

	// Indexes are rebuilt and row ids are not reused.
	if _, err := users.Insert([]core.Literal{intLit("2"), textLit("Dup"), boolLit("true")}, nil); core.KindOf(err) != core.ConstraintViolation {
		t.Errorf("Expected ConstraintViolation after reload, got %v", err)
	}
	rid := insertUser(t, users, "3", "Carol", "true")
	if rid != 4 {
		t.Errorf("Expected row id 4 after reload, got %d", rid)
	}
}

