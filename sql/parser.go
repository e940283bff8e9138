package sql

import (
	"strings"

	"github.com/nickyhof/MiniDB/core"
)

type StatementType int

const (
	SelectStatementType StatementType = iota
	InsertStatementType
	UpdateStatementType
	DeleteStatementType
	CreateTableStatementType
)

func (t StatementType) String() string {
	switch t {
	case SelectStatementType:
		return "SELECT"
	case InsertStatementType:
		return "INSERT"
	case UpdateStatementType:
		return "UPDATE"
	case DeleteStatementType:
		return "DELETE"
	case CreateTableStatementType:
		return "CREATE TABLE"
	default:
		return "UNKNOWN"
	}
}

type Statement interface {
	Type() StatementType
}

type SelectStatement struct {
	Table   string
	Columns []string // empty means *
	Where   *core.Predicate
}

type InsertStatement struct {
	Table   string
	Columns []string // empty means positional
	Values  []core.Literal
}

type UpdateStatement struct {
	Table   string
	Updates []SetClause
	Where   *core.Predicate
}

type SetClause struct {
	Column string
	Value  core.Literal
}

type DeleteStatement struct {
	Table string
	Where *core.Predicate
}

type CreateTableStatement struct {
	Table   string
	Columns []core.Column
}

func (s SelectStatement) Type() StatementType {
	return SelectStatementType
}

func (s InsertStatement) Type() StatementType {
	return InsertStatementType
}

func (s UpdateStatement) Type() StatementType {
	return UpdateStatementType
}

func (s DeleteStatement) Type() StatementType {
	return DeleteStatementType
}

func (s CreateTableStatement) Type() StatementType {
	return CreateTableStatementType
}

type Parser struct {
	lexer *Lexer
}

func NewParser(sql string) *Parser {
	lexer := NewLexer(sql)
	return &Parser{lexer: lexer}
}

// Parse parses exactly one statement, optionally terminated by ';'.
// All failures are *core.Error values of kind SyntaxError.
func (parser *Parser) Parse() (Statement, error) {
	token := parser.lexer.NextToken()

	var statement Statement
	var err error
	switch token.Type {
	case Select:
		statement, err = ParseSelect(parser)
	case Insert:
		statement, err = ParseInsert(parser)
	case Update:
		statement, err = ParseUpdate(parser)
	case Delete:
		statement, err = ParseDelete(parser)
	case Create:
		statement, err = ParseCreate(parser)
	case Illegal:
		return nil, core.NewSyntaxError(token.Position, "%s", token.Value)
	case EOF:
		return nil, core.NewSyntaxError(token.Position, "empty statement")
	default:
		return nil, core.NewSyntaxError(token.Position, "unknown statement %s, expected CREATE, INSERT, SELECT, UPDATE or DELETE", token.describe())
	}
	if err != nil {
		return nil, err
	}

	token = parser.lexer.NextToken()
	if token.Type == Semicolon {
		token = parser.lexer.NextToken()
	}
	if token.Type != EOF {
		return nil, parser.unexpected(token, "end of statement")
	}

	return statement, nil
}

// unexpected builds the syntax error for a token that does not fit the grammar.
func (parser *Parser) unexpected(token Token, expected string) error {
	if token.Type == Illegal {
		return core.NewSyntaxError(token.Position, "%s", token.Value)
	}
	if token.Type == And || token.Type == Or {
		return core.NewSyntaxError(token.Position, "compound WHERE conditions are not supported")
	}
	return core.NewSyntaxError(token.Position, "expected %s, got %s", expected, token.describe())
}

func (parser *Parser) expect(tokenType TokenType, expected string) (Token, error) {
	token := parser.lexer.NextToken()
	if token.Type != tokenType {
		return token, parser.unexpected(token, expected)
	}
	return token, nil
}

func ParseSelect(parser *Parser) (Statement, error) {
	var selectStatement SelectStatement

	token := parser.lexer.NextToken()
	if token.Type == Wildcard {
		selectStatement.Columns = []string{}
	} else if token.Type == Identifier {
		// Parse columns
		selectStatement.Columns = append(selectStatement.Columns, token.Value)
		for parser.lexer.PeekToken().Type == Comma {
			parser.lexer.NextToken() // consume comma
			token, err := parser.expect(Identifier, "column name after ','")
			if err != nil {
				return nil, err
			}
			selectStatement.Columns = append(selectStatement.Columns, token.Value)
		}
	} else {
		return nil, parser.unexpected(token, "'*' or column list")
	}

	if _, err := parser.expect(From, "FROM"); err != nil {
		return nil, err
	}

	token, err := parser.expect(Identifier, "table name")
	if err != nil {
		return nil, err
	}
	selectStatement.Table = token.Value

	selectStatement.Where, err = parseOptionalWhere(parser)
	if err != nil {
		return nil, err
	}

	return selectStatement, nil
}

func parseOptionalWhere(parser *Parser) (*core.Predicate, error) {
	if parser.lexer.PeekToken().Type != Where {
		return nil, nil
	}
	parser.lexer.NextToken() // consume WHERE
	predicate, err := ParseWhere(parser)
	if err != nil {
		return nil, err
	}
	return &predicate, nil
}

// ParseWhere parses the single `column op literal` condition after WHERE.
func ParseWhere(parser *Parser) (core.Predicate, error) {
	var predicate core.Predicate

	token, err := parser.expect(Identifier, "column name in WHERE clause")
	if err != nil {
		return predicate, err
	}
	predicate.Column = token.Value

	token = parser.lexer.NextToken()
	switch token.Type {
	case Equals:
		predicate.Operator = core.EqualsOperator
	case NotEquals:
		predicate.Operator = core.NotEqualsOperator
	case LessThan:
		predicate.Operator = core.LessThanOperator
	case GreaterThan:
		predicate.Operator = core.GreaterThanOperator
	case LessThanOrEqual:
		predicate.Operator = core.LessThanOrEqualOperator
	case GreaterThanOrEqual:
		predicate.Operator = core.GreaterThanOrEqualOperator
	default:
		return predicate, parser.unexpected(token, "comparison operator (=, !=, <, <=, >, >=)")
	}

	predicate.Value, err = parseLiteral(parser)
	if err != nil {
		return predicate, err
	}

	return predicate, nil
}

func parseLiteral(parser *Parser) (core.Literal, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Int:
		return core.Literal{Kind: core.IntLiteral, Text: token.Value}, nil
	case String:
		return core.Literal{Kind: core.TextLiteral, Text: token.Value}, nil
	case True, False:
		return core.Literal{Kind: core.BoolLiteral, Text: strings.ToLower(token.Value)}, nil
	default:
		return core.Literal{}, parser.unexpected(token, "literal value")
	}
}

func ParseInsert(parser *Parser) (Statement, error) {
	var insertStatement InsertStatement

	// Parse INTO
	if _, err := parser.expect(Into, "INTO after INSERT"); err != nil {
		return nil, err
	}

	// Parse table name
	token, err := parser.expect(Identifier, "table name after INSERT INTO")
	if err != nil {
		return nil, err
	}
	insertStatement.Table = token.Value

	// Optional column list
	if parser.lexer.PeekToken().Type == ParenOpen {
		parser.lexer.NextToken() // consume '('
		for {
			token, err = parser.expect(Identifier, "column name")
			if err != nil {
				return nil, err
			}
			insertStatement.Columns = append(insertStatement.Columns, token.Value)

			token = parser.lexer.NextToken()
			if token.Type == Comma {
				continue
			} else if token.Type == ParenClose {
				break
			} else {
				return nil, parser.unexpected(token, "',' or ')' in column list")
			}
		}
	}

	// Parse VALUES
	if _, err := parser.expect(Values, "VALUES"); err != nil {
		return nil, err
	}

	if _, err := parser.expect(ParenOpen, "'(' after VALUES"); err != nil {
		return nil, err
	}

	for {
		literal, err := parseLiteral(parser)
		if err != nil {
			return nil, err
		}
		insertStatement.Values = append(insertStatement.Values, literal)

		token = parser.lexer.NextToken()
		if token.Type == Comma {
			continue
		} else if token.Type == ParenClose {
			break
		} else {
			return nil, parser.unexpected(token, "',' or ')' in values list")
		}
	}

	return insertStatement, nil
}

func ParseUpdate(parser *Parser) (Statement, error) {
	var updateStatement UpdateStatement

	// Parse table name
	token, err := parser.expect(Identifier, "table name after UPDATE")
	if err != nil {
		return nil, err
	}
	updateStatement.Table = token.Value

	// Parse SET clause
	if _, err := parser.expect(Set, "SET after table name"); err != nil {
		return nil, err
	}

	for {
		token, err = parser.expect(Identifier, "column name in SET clause")
		if err != nil {
			return nil, err
		}
		column := token.Value

		if _, err := parser.expect(Equals, "'=' in SET clause"); err != nil {
			return nil, err
		}

		value, err := parseLiteral(parser)
		if err != nil {
			return nil, err
		}

		updateStatement.Updates = append(updateStatement.Updates, SetClause{
			Column: column,
			Value:  value,
		})

		if parser.lexer.PeekToken().Type == Comma {
			parser.lexer.NextToken() // consume comma
			continue
		}
		break
	}

	updateStatement.Where, err = parseOptionalWhere(parser)
	if err != nil {
		return nil, err
	}

	return updateStatement, nil
}

func ParseDelete(parser *Parser) (Statement, error) {
	var deleteStatement DeleteStatement

	// Parse FROM
	if _, err := parser.expect(From, "FROM after DELETE"); err != nil {
		return nil, err
	}

	// Parse table name
	token, err := parser.expect(Identifier, "table name after FROM")
	if err != nil {
		return nil, err
	}
	deleteStatement.Table = token.Value

	deleteStatement.Where, err = parseOptionalWhere(parser)
	if err != nil {
		return nil, err
	}

	return deleteStatement, nil
}

func ParseCreate(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case TableIdentifier:
		return ParseCreateTable(parser)
	default:
		return nil, parser.unexpected(token, "TABLE after CREATE")
	}
}

func ParseCreateTable(parser *Parser) (Statement, error) {
	var createTableStatement CreateTableStatement

	// Parse table name
	token, err := parser.expect(Identifier, "table name after TABLE")
	if err != nil {
		return nil, err
	}
	createTableStatement.Table = token.Value

	// Parse columns
	if _, err := parser.expect(ParenOpen, "'(' after table name"); err != nil {
		return nil, err
	}

	for {
		token, err = parser.expect(Identifier, "column name")
		if err != nil {
			return nil, err
		}
		column := core.Column{Name: token.Value, Nullable: true}

		token = parser.lexer.NextToken()
		if token.Type != Identifier {
			return nil, parser.unexpected(token, "column type (INT, TEXT, BOOL)")
		}
		columnType, ok := core.ParseColumnType(token.Value)
		if !ok {
			return nil, core.NewSyntaxError(token.Position, "unknown column type %q, expected INT, TEXT or BOOL", token.Value)
		}
		column.Type = columnType

		// Column constraints
	constraints:
		for {
			switch parser.lexer.PeekToken().Type {
			case PrimaryKey:
				parser.lexer.NextToken() // consume PRIMARY KEY
				column.PrimaryKey = true
				column.Unique = true
				column.Nullable = false
			case Unique:
				parser.lexer.NextToken() // consume UNIQUE
				column.Unique = true
			case Not:
				parser.lexer.NextToken() // consume NOT
				if _, err := parser.expect(Null, "NULL after NOT"); err != nil {
					return nil, err
				}
				column.Nullable = false
			default:
				break constraints
			}
		}

		createTableStatement.Columns = append(createTableStatement.Columns, column)

		token = parser.lexer.NextToken()
		if token.Type == Comma {
			continue
		} else if token.Type == ParenClose {
			break
		} else {
			return nil, parser.unexpected(token, "',' or ')' in column list")
		}
	}

	return createTableStatement, nil
}

func parse(sql string) (Statement, error) {
	parser := NewParser(sql)

	return parser.Parse()
}

// Parse is a convenience wrapper around NewParser(sql).Parse().
func Parse(sql string) (Statement, error) {
	return parse(sql)
}

// SplitStatements splits a script on ';' outside quoted literals. Empty
// statements are dropped and the separators are not included.
func SplitStatements(script string) []string {
	var statements []string
	var buf strings.Builder
	var quote byte

	flush := func() {
		statement := strings.TrimSpace(buf.String())
		if statement != "" {
			statements = append(statements, statement)
		}
		buf.Reset()
	}

	for i := 0; i < len(script); i++ {
		ch := script[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == ';':
			flush()
			continue
		}
		buf.WriteByte(ch)
	}
	flush()

	return statements
}

// Complete reports whether script ends with a ';' outside any string literal,
// ignoring trailing whitespace.
func Complete(script string) bool {
	var quote byte
	terminated := false
	for i := 0; i < len(script); i++ {
		ch := script[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
			terminated = false
		case ch == ';':
			terminated = true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		default:
			terminated = false
		}
	}
	return quote == 0 && terminated
}
