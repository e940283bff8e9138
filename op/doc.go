// Package op holds the catalog and the table engine of MiniDB.
//
// The op package sits between the SQL engine (db/) and the persistence layer
// (ps/). It enforces schemas and constraints, keeps one Index per constrained
// column and writes each table back to storage after every change.
//
// # Catalog
//
//	catalog, err := op.OpenCatalog(storage)   // loads every stored table
//	table, err := catalog.Register(schema)    // CREATE TABLE
//	table, err = catalog.Lookup("users")
//	names := catalog.Names()
//
// # Table
//
//	id, err := table.Insert(literals, nil)
//	selection, err := table.Select(&core.Predicate{Column: "id", Operator: core.EqualsOperator, Value: lit}, nil)
//	n, err := table.Update([]op.Assignment{{Column: "active", Value: lit}}, where)
//	n, err = table.Delete(where)
//
// Constraint and type checks run before anything changes. If the persist that
// ends a statement fails, the table returns to its previous rows, indexes and
// next row id.
//
// # Architecture
//
// The layering is:
//
//	SQL Parser (sql/)
//	     ↓
//	SQL Engine (db/)
//	     ↓
//	Operations (op/)     ← This package
//	     ↓
//	Persistence (ps/)
package op
