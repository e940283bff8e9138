package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/nickyhof/MiniDB/core"
	"github.com/nickyhof/MiniDB/internal/logging"
	"github.com/nickyhof/MiniDB/op"
	"github.com/nickyhof/MiniDB/sql"
)

// Engine parses statements and executes them against a catalog. It holds no
// state of its own, so one Engine may be shared by any number of goroutines.
type Engine struct {
	catalog *op.Catalog
}

func NewEngine(catalog *op.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

func (engine *Engine) Catalog() *op.Catalog {
	return engine.catalog
}

// Execute runs one statement. Errors are *core.Error values carrying the
// kind of failure.
func (engine *Engine) Execute(query string) (Result, error) {
	startTime := time.Now()

	statement, err := sql.Parse(query)
	if err != nil {
		logging.Statement("PARSE", time.Since(startTime), string(core.KindOf(err)))
		return nil, err
	}

	var result Result
	switch statement.Type() {
	case sql.SelectStatementType:
		result, err = engine.executeSelectStatement(statement.(sql.SelectStatement), startTime)
	case sql.InsertStatementType:
		result, err = engine.executeInsertStatement(statement.(sql.InsertStatement), startTime)
	case sql.UpdateStatementType:
		result, err = engine.executeUpdateStatement(statement.(sql.UpdateStatement), startTime)
	case sql.DeleteStatementType:
		result, err = engine.executeDeleteStatement(statement.(sql.DeleteStatement), startTime)
	case sql.CreateTableStatementType:
		result, err = engine.executeCreateTableStatement(statement.(sql.CreateTableStatement), startTime)
	default:
		err = core.NewError(core.InternalError, "unsupported statement type: %v", statement.Type())
	}

	if err != nil {
		logging.Statement(statement.Type().String(), time.Since(startTime), string(core.KindOf(err)), "error", err)
		return nil, err
	}
	logging.Statement(statement.Type().String(), time.Since(startTime), "ok")
	return result, nil
}

// Run executes one statement and reports the result as an Outcome. It never
// fails; every error becomes an error outcome.
func (engine *Engine) Run(query string) Outcome {
	return OutcomeOf(engine.Execute(query))
}

// RunScript runs every statement of a ';'-separated script in order and
// stops at the first error. The outcomes of the statements that ran are
// returned, the failing one last.
func (engine *Engine) RunScript(script string) []Outcome {
	var outcomes []Outcome
	for _, statement := range sql.SplitStatements(script) {
		outcome := engine.Run(statement)
		outcomes = append(outcomes, outcome)
		if outcome.Failed() {
			break
		}
	}
	return outcomes
}

// Tables returns the names of all tables, sorted.
func (engine *Engine) Tables() []string {
	return engine.catalog.Names()
}

// Describe returns the schema of a table.
func (engine *Engine) Describe(table string) (core.Schema, error) {
	t, err := engine.catalog.Lookup(table)
	if err != nil {
		return core.Schema{}, err
	}
	return t.Schema(), nil
}

func (engine *Engine) executeSelectStatement(statement sql.SelectStatement, startTime time.Time) (QueryResult, error) {
	table, err := engine.catalog.Lookup(statement.Table)
	if err != nil {
		return QueryResult{}, err
	}

	selection, err := table.Select(statement.Where, statement.Columns)
	if err != nil {
		return QueryResult{}, err
	}

	rows := make([][]core.Value, len(selection.Rows))
	for i, row := range selection.Rows {
		rows[i] = row.Values
	}

	return QueryResult{
		Table:            statement.Table,
		Columns:          selection.Columns,
		Rows:             rows,
		RecordsRead:      len(rows),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeInsertStatement(statement sql.InsertStatement, startTime time.Time) (CommitResult, error) {
	table, err := engine.catalog.Lookup(statement.Table)
	if err != nil {
		return CommitResult{}, err
	}

	if _, err := table.Insert(statement.Values, statement.Columns); err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Table:            statement.Table,
		RecordsWritten:   1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeUpdateStatement(statement sql.UpdateStatement, startTime time.Time) (CommitResult, error) {
	table, err := engine.catalog.Lookup(statement.Table)
	if err != nil {
		return CommitResult{}, err
	}

	assignments := make([]op.Assignment, len(statement.Updates))
	for i, update := range statement.Updates {
		assignments[i] = op.Assignment{Column: update.Column, Value: update.Value}
	}

	updated, err := table.Update(assignments, statement.Where)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Table:            statement.Table,
		RecordsUpdated:   updated,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeDeleteStatement(statement sql.DeleteStatement, startTime time.Time) (CommitResult, error) {
	table, err := engine.catalog.Lookup(statement.Table)
	if err != nil {
		return CommitResult{}, err
	}

	deleted, err := table.Delete(statement.Where)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Table:            statement.Table,
		RecordsDeleted:   deleted,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeCreateTableStatement(statement sql.CreateTableStatement, startTime time.Time) (CommitResult, error) {
	schema := core.Schema{Name: statement.Table, Columns: statement.Columns}
	if _, err := engine.catalog.Register(schema); err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Table:            statement.Table,
		TablesCreated:    1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

// SchemaString renders a schema as the CREATE TABLE statement declaring it.
func SchemaString(schema core.Schema) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE " + schema.Name + " (")
	for i, col := range schema.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", col.Name, col.Type)
		switch {
		case col.PrimaryKey:
			b.WriteString(" PRIMARY KEY")
		case col.Unique:
			b.WriteString(" UNIQUE")
		}
		if !col.Nullable && !col.PrimaryKey {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(")")
	return b.String()
}
