package core

type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	PrimaryKey bool       `json:"primary_key"`
	Unique     bool       `json:"unique"`
	Nullable   bool       `json:"nullable"`
}

// Constrained reports whether the column is subject to uniqueness enforcement.
func (c Column) Constrained() bool {
	return c.PrimaryKey || c.Unique
}

// RowIDColumn is the key that holds the row identifier in a stored row. No
// column may use it.
const RowIDColumn = "_rid"

type Schema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Normalize applies the implicit flags of a primary key (unique, not null).
func (s *Schema) Normalize() {
	for i := range s.Columns {
		if s.Columns[i].PrimaryKey {
			s.Columns[i].Unique = true
			s.Columns[i].Nullable = false
		}
	}
}

func (s Schema) Validate() error {
	if s.Name == "" {
		return NewError(SchemaError, "table name is empty")
	}
	if len(s.Columns) == 0 {
		return NewError(SchemaError, "table %s has no columns", s.Name)
	}

	seen := make(map[string]bool, len(s.Columns))
	primaryKeys := 0
	for _, col := range s.Columns {
		if col.Name == "" {
			return NewError(SchemaError, "table %s has a column without a name", s.Name)
		}
		if col.Name == RowIDColumn {
			return NewError(SchemaError, "column name %s is reserved", RowIDColumn)
		}
		if seen[col.Name] {
			return NewError(SchemaError, "duplicate column %s in table %s", col.Name, s.Name)
		}
		seen[col.Name] = true
		if !col.Type.Valid() {
			return NewError(SchemaError, "column %s has unknown type", col.Name)
		}
		if col.PrimaryKey {
			primaryKeys++
		}
	}
	if primaryKeys > 1 {
		return NewError(SchemaError, "table %s declares %d primary keys, at most one is supported", s.Name, primaryKeys)
	}
	return nil
}

// ColumnIndex returns the position of the named column, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, col := range s.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Column(name string) (Column, error) {
	i := s.ColumnIndex(name)
	if i < 0 {
		return Column{}, NewError(SchemaError, "unknown column %s in table %s", name, s.Name)
	}
	return s.Columns[i], nil
}

func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// ConstrainedColumns lists primary key and unique columns in schema order.
func (s Schema) ConstrainedColumns() []string {
	var names []string
	for _, col := range s.Columns {
		if col.Constrained() {
			names = append(names, col.Name)
		}
	}
	return names
}

func (s Schema) PrimaryKey() (string, bool) {
	for _, col := range s.Columns {
		if col.PrimaryKey {
			return col.Name, true
		}
	}
	return "", false
}

// RowID identifies a row within its table. IDs start at 1 and are never reused.
type RowID int64

// Row holds one value per schema column, in schema order.
type Row struct {
	ID     RowID
	Values []Value
}

func (r Row) Clone() Row {
	values := make([]Value, len(r.Values))
	copy(values, r.Values)
	return Row{ID: r.ID, Values: values}
}
