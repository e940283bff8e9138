// Package db provides the SQL execution engine for MiniDB.
//
// The Engine type is the main entry point for executing SQL statements.
// It parses a statement, dispatches it to the catalog and returns a result.
//
// # Engine Usage
//
//	engine := db.NewEngine(catalog)
//	result, err := engine.Execute("SELECT * FROM users WHERE id = 1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result.Display(os.Stdout)
//
// Run returns the same result as a JSON-serializable Outcome and never
// fails; errors become outcomes of kind "error" carrying the error kind.
//
// # Result Types
//
// There are two result types:
//   - QueryResult: Returned by SELECT
//   - CommitResult: Returned by INSERT, UPDATE, DELETE and CREATE TABLE
//
// # Scripts
//
// Import runs a ';'-separated script from a local path, an http(s) URL or an
// s3://bucket/key object. Export writes the statements recreating every table
// to the same kinds of location.
package db
