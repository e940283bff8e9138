package op

import (
	"errors"
	"slices"
	"sync"

	"github.com/nickyhof/MiniDB/core"
	"github.com/nickyhof/MiniDB/ps"
)

// Assignment is one `column = literal` of an UPDATE.
type Assignment struct {
	Column string
	Value  core.Literal
}

// Selection is the result of Table.Select. Every row holds the values of
// Columns, in that order.
type Selection struct {
	Columns []string
	Rows    []core.Row
}

// Table owns the live rows of one table and an Index per constrained column.
// Every operation holds the table lock for its whole duration, persists the
// full table once on success and restores the previous in-memory state if
// the persist fails.
type Table struct {
	mu sync.Mutex

	schema    core.Schema
	rows      []core.Row // insertion order
	positions map[core.RowID]int
	indexes   map[string]*Index
	nextID    core.RowID
	storage   ps.Storage
}

func newTable(schema core.Schema, storage ps.Storage) *Table {
	t := &Table{
		schema:    schema,
		positions: make(map[core.RowID]int),
		indexes:   make(map[string]*Index),
		nextID:    1,
		storage:   storage,
	}
	for _, column := range schema.ConstrainedColumns() {
		t.indexes[column] = NewIndex(schema.Name, column)
	}
	return t
}

// loadTable rebuilds a table and its indexes from a stored document.
func loadTable(doc ps.Document, storage ps.Storage) (*Table, error) {
	t := newTable(doc.Schema, storage)
	t.rows = doc.Rows
	t.nextID = doc.NextRowID

	if err := t.rebuild(); err != nil {
		return nil, err
	}
	for _, row := range t.rows {
		if row.ID >= t.nextID {
			t.nextID = row.ID + 1
		}
	}
	return t, nil
}

// rebuild recomputes positions and indexes from rows.
func (t *Table) rebuild() error {
	t.positions = make(map[core.RowID]int, len(t.rows))
	for name := range t.indexes {
		t.indexes[name] = NewIndex(t.schema.Name, name)
	}

	for i, row := range t.rows {
		if _, dup := t.positions[row.ID]; dup {
			return core.NewError(core.StorageError, "table %s holds row id %d twice", t.schema.Name, row.ID)
		}
		t.positions[row.ID] = i
		for name, idx := range t.indexes {
			value := row.Values[t.schema.ColumnIndex(name)]
			if idx.WouldViolate(value) {
				return core.NewError(core.StorageError, "table %s holds duplicate value %s in %s", t.schema.Name, value.SQL(), name)
			}
			idx.Insert(value, row.ID)
		}
	}
	return nil
}

func (t *Table) Name() string {
	return t.schema.Name
}

// Schema returns a copy of the table schema.
func (t *Table) Schema() core.Schema {
	schema := t.schema
	schema.Columns = slices.Clone(t.schema.Columns)
	return schema
}

// Len returns the number of live rows.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Index returns the index of a constrained column.
func (t *Table) Index(column string) (*Index, bool) {
	idx, ok := t.indexes[column]
	return idx, ok
}

func (t *Table) document() ps.Document {
	return ps.Document{
		Schema:    t.schema,
		Rows:      t.rows,
		NextRowID: t.nextID,
	}
}

func (t *Table) persist() error {
	return t.storage.Persist(t.schema.Name, t.document())
}

// Persist writes the table to storage as it is now.
func (t *Table) Persist() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persist()
}

// Insert adds one row. Without a column list the values are positional and
// must cover every column; with one, the list must name every column once.
func (t *Table) Insert(values []core.Literal, columns []string) (core.RowID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	literals, err := t.orderLiterals(values, columns)
	if err != nil {
		return 0, err
	}

	row := core.Row{Values: make([]core.Value, len(t.schema.Columns))}
	for i, col := range t.schema.Columns {
		value, err := core.Coerce(literals[i], col.Type)
		if err != nil {
			return 0, withColumn(err, col.Name)
		}
		row.Values[i] = value
	}

	for name, idx := range t.indexes {
		value := row.Values[t.schema.ColumnIndex(name)]
		if idx.WouldViolate(value) {
			return 0, t.violation(name, value)
		}
	}

	// Apply
	row.ID = t.nextID
	t.nextID++
	t.rows = append(t.rows, row)
	t.positions[row.ID] = len(t.rows) - 1
	for name, idx := range t.indexes {
		idx.Insert(row.Values[t.schema.ColumnIndex(name)], row.ID)
	}

	if err := t.persist(); err != nil {
		// Roll back
		for name, idx := range t.indexes {
			idx.Remove(row.Values[t.schema.ColumnIndex(name)], row.ID)
		}
		delete(t.positions, row.ID)
		t.rows = t.rows[:len(t.rows)-1]
		t.nextID = row.ID
		return 0, err
	}

	return row.ID, nil
}

func (t *Table) orderLiterals(values []core.Literal, columns []string) ([]core.Literal, error) {
	if len(columns) == 0 {
		if len(values) != len(t.schema.Columns) {
			return nil, core.NewError(core.SchemaError, "table %s has %d columns but %d values were supplied",
				t.schema.Name, len(t.schema.Columns), len(values))
		}
		return values, nil
	}

	if len(columns) != len(values) {
		return nil, core.NewError(core.SchemaError, "%d columns named but %d values supplied", len(columns), len(values))
	}

	ordered := make([]core.Literal, len(t.schema.Columns))
	seen := make([]bool, len(t.schema.Columns))
	for i, name := range columns {
		pos := t.schema.ColumnIndex(name)
		if pos < 0 {
			return nil, core.NewError(core.SchemaError, "unknown column %s in table %s", name, t.schema.Name)
		}
		if seen[pos] {
			return nil, core.NewError(core.SchemaError, "column %s named more than once", name)
		}
		seen[pos] = true
		ordered[pos] = values[i]
	}
	for pos, ok := range seen {
		if !ok {
			return nil, core.NewError(core.SchemaError, "no value supplied for column %s", t.schema.Columns[pos].Name)
		}
	}
	return ordered, nil
}

func (t *Table) violation(column string, value core.Value) error {
	kind := "unique"
	if col, _ := t.schema.Column(column); col.PrimaryKey {
		kind = "primary key"
	}
	return core.NewError(core.ConstraintViolation, "duplicate value %s for %s column %s in table %s",
		value.SQL(), kind, column, t.schema.Name)
}

// Select returns the rows matching where (all rows when nil) in insertion
// order, projected onto columns (all columns when empty).
func (t *Table) Select(where *core.Predicate, columns []string) (Selection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	projection, err := t.projection(columns)
	if err != nil {
		return Selection{}, err
	}
	positions, err := t.match(where)
	if err != nil {
		return Selection{}, err
	}

	selection := Selection{
		Columns: make([]string, len(projection)),
		Rows:    make([]core.Row, 0, len(positions)),
	}
	for i, pos := range projection {
		selection.Columns[i] = t.schema.Columns[pos].Name
	}
	for _, pos := range positions {
		row := t.rows[pos]
		values := make([]core.Value, len(projection))
		for i, col := range projection {
			values[i] = row.Values[col]
		}
		selection.Rows = append(selection.Rows, core.Row{ID: row.ID, Values: values})
	}
	return selection, nil
}

func (t *Table) projection(columns []string) ([]int, error) {
	if len(columns) == 0 {
		projection := make([]int, len(t.schema.Columns))
		for i := range projection {
			projection[i] = i
		}
		return projection, nil
	}

	projection := make([]int, len(columns))
	for i, name := range columns {
		pos := t.schema.ColumnIndex(name)
		if pos < 0 {
			return nil, core.NewError(core.SchemaError, "unknown column %s in table %s", name, t.schema.Name)
		}
		projection[i] = pos
	}
	return projection, nil
}

// condition is a predicate bound to this table's schema.
type condition struct {
	column int
	op     core.Operator
	value  core.Value
}

func (c condition) holds(row core.Row) bool {
	cmp, err := core.Compare(row.Values[c.column], c.value)
	return err == nil && c.op.Holds(cmp)
}

func (t *Table) bind(where *core.Predicate) (condition, error) {
	col, err := t.schema.Column(where.Column)
	if err != nil {
		return condition{}, err
	}
	value, err := core.Coerce(where.Value, col.Type)
	if err != nil {
		return condition{}, withColumn(err, col.Name)
	}
	return condition{column: t.schema.ColumnIndex(col.Name), op: where.Operator, value: value}, nil
}

// match returns the positions of matching rows, ascending. Predicates on a
// constrained column are answered by its index; everything else scans.
func (t *Table) match(where *core.Predicate) ([]int, error) {
	if where == nil {
		positions := make([]int, len(t.rows))
		for i := range positions {
			positions[i] = i
		}
		return positions, nil
	}

	cond, err := t.bind(where)
	if err != nil {
		return nil, err
	}

	if idx, ok := t.indexes[t.schema.Columns[cond.column].Name]; ok {
		return t.lookup(idx, cond), nil
	}
	return t.scan(cond), nil
}

func (t *Table) lookup(idx *Index, cond condition) []int {
	ids := idx.Range(cond.op, cond.value)
	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		positions = append(positions, t.positions[id])
	}
	// Positions, not ids, define insertion order.
	slices.Sort(positions)
	return positions
}

func (t *Table) scan(cond condition) []int {
	var positions []int
	for i, row := range t.rows {
		if cond.holds(row) {
			positions = append(positions, i)
		}
	}
	return positions
}

// Update applies assignments to every matching row. Either every matched row
// is updated or none is.
func (t *Table) Update(assignments []Assignment, where *core.Predicate) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	type change struct {
		column int
		value  core.Value
	}
	changes := make([]change, 0, len(assignments))
	assigned := make(map[int]bool, len(assignments))
	for _, assignment := range assignments {
		col, err := t.schema.Column(assignment.Column)
		if err != nil {
			return 0, err
		}
		pos := t.schema.ColumnIndex(col.Name)
		if assigned[pos] {
			return 0, core.NewError(core.SchemaError, "column %s assigned more than once", col.Name)
		}
		assigned[pos] = true

		value, err := core.Coerce(assignment.Value, col.Type)
		if err != nil {
			return 0, withColumn(err, col.Name)
		}
		changes = append(changes, change{column: pos, value: value})
	}

	positions, err := t.match(where)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return 0, nil
	}

	updated := make([]core.Row, len(positions))
	matched := make(map[core.RowID]bool, len(positions))
	for i, pos := range positions {
		row := t.rows[pos].Clone()
		for _, c := range changes {
			row.Values[c.column] = c.value
		}
		updated[i] = row
		matched[row.ID] = true
	}

	// Check every constrained column against rows outside the matched set and
	// against the other updated rows.
	for name, idx := range t.indexes {
		col := t.schema.ColumnIndex(name)
		if !assigned[col] {
			continue
		}
		seen := make(map[core.Value]bool, len(updated))
		for _, row := range updated {
			value := row.Values[col]
			if seen[value] {
				return 0, t.violation(name, value)
			}
			seen[value] = true
			for _, id := range idx.Lookup(value) {
				if !matched[id] {
					return 0, t.violation(name, value)
				}
			}
		}
	}

	// Apply
	previous := slices.Clone(t.rows)
	for i, pos := range positions {
		old := t.rows[pos]
		for name, idx := range t.indexes {
			col := t.schema.ColumnIndex(name)
			idx.Remove(old.Values[col], old.ID)
		}
		t.rows[pos] = updated[i]
	}
	for _, row := range updated {
		for name, idx := range t.indexes {
			idx.Insert(row.Values[t.schema.ColumnIndex(name)], row.ID)
		}
	}

	if err := t.persist(); err != nil {
		t.restore(previous, t.nextID)
		return 0, err
	}

	return len(positions), nil
}

// Delete removes every matching row and returns how many were removed.
func (t *Table) Delete(where *core.Predicate) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	positions, err := t.match(where)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return 0, nil
	}

	previous := t.rows
	remaining := make([]core.Row, 0, len(t.rows)-len(positions))
	next := 0
	for i, row := range t.rows {
		if next < len(positions) && positions[next] == i {
			next++
			for name, idx := range t.indexes {
				idx.Remove(row.Values[t.schema.ColumnIndex(name)], row.ID)
			}
			delete(t.positions, row.ID)
			continue
		}
		t.positions[row.ID] = len(remaining)
		remaining = append(remaining, row)
	}
	t.rows = remaining

	if err := t.persist(); err != nil {
		t.restore(previous, t.nextID)
		return 0, err
	}

	return len(positions), nil
}

// restore puts back a previous row set after a failed persist.
func (t *Table) restore(rows []core.Row, nextID core.RowID) {
	t.rows = rows
	t.nextID = nextID
	// Rows were valid before, so rebuilding cannot fail.
	_ = t.rebuild()
}

// withColumn prefixes an engine error message with the column it concerns.
func withColumn(err error, column string) error {
	var e *core.Error
	if errors.As(err, &e) {
		return core.NewError(e.Kind, "column %s: %s", column, e.Message)
	}
	return err
}
