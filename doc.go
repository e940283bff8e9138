// Package MiniDB provides a small relational database engine.
//
// Tables have typed columns (INT, TEXT, BOOL) with PRIMARY KEY and UNIQUE
// constraints enforced through in-memory indexes. Every successful write is
// persisted as one JSON document per table, on disk, in a Git repository or
// in an S3 bucket.
//
// # Quick Start
//
// Create an in-memory database:
//
//	instance, _ := MiniDB.Open(ps.NewMemoryStorage())
//	defer instance.Close()
//	engine := instance.Engine()
//
//	engine.Execute("CREATE TABLE users (id INT PRIMARY KEY, name TEXT, active BOOL)")
//	engine.Execute(`INSERT INTO users VALUES (1, "Alice", true)`)
//
//	result, _ := engine.Execute("SELECT * FROM users WHERE id = 1")
//	result.Display(os.Stdout)
//
// # Supported SQL
//
//   - CREATE TABLE with PRIMARY KEY, UNIQUE and NOT NULL column constraints
//   - INSERT, with an optional column list
//   - SELECT with * or a column list
//   - UPDATE and DELETE
//   - WHERE with a single comparison (=, !=, <>, <, <=, >, >=)
package MiniDB
