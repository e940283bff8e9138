// Package core provides the types shared by every MiniDB layer.
//
// # Values
//
// A Value is a closed tagged union over INT (int64), TEXT (string) and
// BOOL. Values are produced from statement literals with Coerce, which never
// converts across types:
//
//	v, err := core.Coerce(core.Literal{Kind: core.IntLiteral, Text: "42"}, core.IntType)
//	_, err = core.Coerce(core.Literal{Kind: core.TextLiteral, Text: "abc"}, core.IntType) // TypeMismatch
//
// # Schemas
//
//	schema := core.Schema{
//	    Name: "users",
//	    Columns: []core.Column{
//	        {Name: "id", Type: core.IntType, PrimaryKey: true},
//	        {Name: "name", Type: core.TextType, Nullable: true},
//	        {Name: "active", Type: core.BoolType, Nullable: true},
//	    },
//	}
//
// # Errors
//
// Every failure surfaced by the engine is an *Error carrying one of the
// ErrorKind constants: SyntaxError, SchemaError, TypeMismatch,
// ConstraintViolation, StorageError. KindOf extracts the kind from any error.
package core
