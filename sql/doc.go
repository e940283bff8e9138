// Package sql provides SQL lexing and parsing for MiniDB.
//
// The package includes a lexer that tokenizes SQL strings and a parser
// that produces statement values for the executor.
//
// # Lexer Usage
//
//	lexer := sql.NewLexer("SELECT * FROM users")
//	for {
//	    token := lexer.NextToken()
//	    if token.Type == sql.EOF {
//	        break
//	    }
//	    fmt.Printf("Token: %s at %d\n", token, token.Position)
//	}
//
// # Parser Usage
//
//	parser := sql.NewParser("SELECT name FROM users WHERE id = 1")
//	statement, err := parser.Parse()
//	if err != nil {
//	    log.Fatal(err) // *core.Error of kind SyntaxError, with Position set
//	}
//
// # Supported Statements
//
//   - CreateTableStatement: CREATE TABLE t (col TYPE [PRIMARY KEY] [UNIQUE] [NOT NULL], ...)
//   - InsertStatement: INSERT INTO t [(col, ...)] VALUES (lit, ...)
//   - SelectStatement: SELECT * | col, ... FROM t [WHERE col op lit]
//   - UpdateStatement: UPDATE t SET col = lit, ... [WHERE col op lit]
//   - DeleteStatement: DELETE FROM t [WHERE col op lit]
//
// Keywords and type names are case-insensitive; identifiers are not. Text
// literals may use single or double quotes, with the quote doubled to escape
// it. Comparison operators are =, != (or <>), <, <=, > and >=.
//
// SplitStatements breaks a script into individual statements on ';'
// outside of quoted literals.
package sql
