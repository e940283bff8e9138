package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ColumnType is the declared type of a column. The zero value is invalid.
type ColumnType int

const (
	IntType ColumnType = iota + 1
	TextType
	BoolType
)

func (t ColumnType) String() string {
	switch t {
	case IntType:
		return "INT"
	case TextType:
		return "TEXT"
	case BoolType:
		return "BOOL"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
}

func (t ColumnType) Valid() bool {
	return t == IntType || t == TextType || t == BoolType
}

// ParseColumnType resolves a type name as written in CREATE TABLE.
func ParseColumnType(name string) (ColumnType, bool) {
	switch strings.ToUpper(name) {
	case "INT", "INTEGER":
		return IntType, true
	case "TEXT":
		return TextType, true
	case "BOOL", "BOOLEAN":
		return BoolType, true
	default:
		return 0, false
	}
}

func (t ColumnType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid column type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *ColumnType) UnmarshalText(text []byte) error {
	parsed, ok := ParseColumnType(string(text))
	if !ok {
		return fmt.Errorf("unknown column type %q", text)
	}
	*t = parsed
	return nil
}

// Value is an immutable, comparable cell value. Exactly one of the payload
// fields is meaningful, selected by typ. Values are safe to use as map keys.
type Value struct {
	typ ColumnType
	i   int64
	s   string
	b   bool
}

func IntValue(i int64) Value { return Value{typ: IntType, i: i} }

func TextValue(s string) Value { return Value{typ: TextType, s: s} }

func BoolValue(b bool) Value { return Value{typ: BoolType, b: b} }

func (v Value) Type() ColumnType { return v.typ }

func (v Value) Int() (int64, bool) {
	return v.i, v.typ == IntType
}

func (v Value) Text() (string, bool) {
	return v.s, v.typ == TextType
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.typ == BoolType
}

// String renders the value for display.
func (v Value) String() string {
	switch v.typ {
	case IntType:
		return strconv.FormatInt(v.i, 10)
	case TextType:
		return v.s
	case BoolType:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// SQL renders the value as a literal that the parser accepts.
func (v Value) SQL() string {
	if v.typ == TextType {
		return `"` + strings.ReplaceAll(v.s, `"`, `""`) + `"`
	}
	return v.String()
}

// Native returns the Go value (int64, string or bool).
func (v Value) Native() any {
	switch v.typ {
	case IntType:
		return v.i
	case TextType:
		return v.s
	case BoolType:
		return v.b
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case IntType:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case TextType:
		return json.Marshal(v.s)
	case BoolType:
		return []byte(strconv.FormatBool(v.b)), nil
	default:
		return nil, fmt.Errorf("cannot encode untyped value")
	}
}

// DecodeValue decodes a JSON scalar that must hold a value of type t.
func DecodeValue(raw []byte, t ColumnType) (Value, error) {
	switch t {
	case IntType:
		i, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return Value{}, NewError(TypeMismatch, "stored value %s is not an INT", raw)
		}
		return IntValue(i), nil
	case TextType:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, NewError(TypeMismatch, "stored value %s is not TEXT", raw)
		}
		return TextValue(s), nil
	case BoolType:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, NewError(TypeMismatch, "stored value %s is not a BOOL", raw)
		}
		return BoolValue(b), nil
	default:
		return Value{}, NewError(SchemaError, "unknown column type %v", t)
	}
}

type LiteralKind int

const (
	IntLiteral LiteralKind = iota
	TextLiteral
	BoolLiteral
)

func (k LiteralKind) String() string {
	switch k {
	case IntLiteral:
		return "INT literal"
	case TextLiteral:
		return "TEXT literal"
	case BoolLiteral:
		return "BOOL literal"
	default:
		return "literal"
	}
}

// Literal is an untyped constant as it appeared in statement text.
type Literal struct {
	Kind LiteralKind
	Text string
}

func (l Literal) String() string {
	if l.Kind == TextLiteral {
		return strconv.Quote(l.Text)
	}
	return l.Text
}

// Coerce converts a literal into a Value of the declared type. There is no
// cross-type coercion: the literal's lexical kind must match the type.
func Coerce(lit Literal, t ColumnType) (Value, error) {
	switch t {
	case IntType:
		if lit.Kind != IntLiteral {
			return Value{}, NewError(TypeMismatch, "expected INT, got %s %s", lit.Kind, lit)
		}
		i, err := strconv.ParseInt(lit.Text, 10, 64)
		if err != nil {
			return Value{}, NewError(TypeMismatch, "INT literal %s out of range", lit.Text)
		}
		return IntValue(i), nil
	case TextType:
		if lit.Kind != TextLiteral {
			return Value{}, NewError(TypeMismatch, "expected TEXT, got %s %s", lit.Kind, lit)
		}
		return TextValue(lit.Text), nil
	case BoolType:
		if lit.Kind != BoolLiteral {
			return Value{}, NewError(TypeMismatch, "expected BOOL, got %s %s", lit.Kind, lit)
		}
		switch strings.ToLower(lit.Text) {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		}
		return Value{}, NewError(TypeMismatch, "invalid BOOL literal %s", lit.Text)
	default:
		return Value{}, NewError(SchemaError, "unknown column type %v", t)
	}
}

// Compare orders two values of the same type: -1, 0 or 1.
func Compare(a, b Value) (int, error) {
	if a.typ != b.typ {
		return 0, NewError(TypeMismatch, "cannot compare %s with %s", a.typ, b.typ)
	}
	switch a.typ {
	case IntType:
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		}
		return 0, nil
	case TextType:
		return strings.Compare(a.s, b.s), nil
	case BoolType:
		switch {
		case a.b == b.b:
			return 0, nil
		case !a.b:
			return -1, nil
		}
		return 1, nil
	default:
		return 0, NewError(TypeMismatch, "cannot compare untyped values")
	}
}

// Less is Compare for values already known to share a type.
func Less(a, b Value) bool {
	c, err := Compare(a, b)
	if err != nil {
		return a.typ < b.typ
	}
	return c < 0
}
