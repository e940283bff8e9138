package op

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nickyhof/MiniDB/core"
	"github.com/nickyhof/MiniDB/ps"
)

// Catalog is the registry of tables. It is the only owner of *Table values;
// callers share the pointers it hands out.
type Catalog struct {
	mu      sync.RWMutex
	tables  map[string]*Table
	storage ps.Storage
}

// NewCatalog returns an empty catalog over storage without loading anything.
func NewCatalog(storage ps.Storage) *Catalog {
	return &Catalog{
		tables:  make(map[string]*Table),
		storage: storage,
	}
}

// OpenCatalog loads every table the storage holds and rebuilds its indexes.
func OpenCatalog(storage ps.Storage) (*Catalog, error) {
	catalog := NewCatalog(storage)

	names, err := storage.List()
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		doc, found, err := storage.Load(name)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if doc.Schema.Name != name {
			return nil, core.NewError(core.StorageError, "document for table %s describes table %s", name, doc.Schema.Name)
		}

		table, err := loadTable(doc, storage)
		if err != nil {
			return nil, err
		}
		catalog.tables[name] = table
	}

	return catalog, nil
}

func (c *Catalog) Storage() ps.Storage {
	return c.storage
}

// Register creates a table and persists it empty. If that first persist fails
// the table is not registered.
func (c *Catalog) Register(schema core.Schema) (*Table, error) {
	schema.Columns = append([]core.Column(nil), schema.Columns...)
	schema.Normalize()
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[schema.Name]; exists {
		return nil, core.NewError(core.SchemaError, "table %s already exists", schema.Name)
	}
	// Stored documents are named after the table, and some filesystems fold case.
	for name := range c.tables {
		if strings.EqualFold(name, schema.Name) {
			return nil, core.NewError(core.SchemaError, "table %s differs from existing table %s only by case", schema.Name, name)
		}
	}

	table := newTable(schema, c.storage)
	if err := table.Persist(); err != nil {
		return nil, err
	}

	c.tables[schema.Name] = table
	return table, nil
}

func (c *Catalog) Lookup(name string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	table, ok := c.tables[name]
	if !ok {
		return nil, core.NewError(core.SchemaError, "table %s does not exist", name)
	}
	return table, nil
}

func (c *Catalog) Exists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.tables[name]
	return ok
}

// Names returns the registered table names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush persists every table. All tables are attempted; the first error is
// returned.
func (c *Catalog) Flush() error {
	var firstErr error
	for _, name := range c.Names() {
		table, err := c.Lookup(name)
		if err != nil {
			continue
		}
		if err := table.Persist(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush %s: %w", name, err)
		}
	}
	return firstErr
}
