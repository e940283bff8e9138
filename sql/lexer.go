package sql

type Token struct {
	Type     TokenType
	Value    string
	Position int
}

type TokenType int

const (
	Identifier TokenType = iota
	TableIdentifier
	Wildcard
	String
	Int
	PrimaryKey
	Unique
	Comma
	Semicolon
	ParenOpen
	ParenClose
	Equals
	NotEquals
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	And
	Or
	Not
	Null
	True
	False
	Select
	From
	Where
	Create
	Insert
	Update
	Delete
	Set
	Into
	Values
	EOF
	Unknown
	Illegal
)

func (token Token) String() string {
	switch token.Type {
	case Identifier:
		return "Identifier(" + token.Value + ")"
	case TableIdentifier:
		return "TableIdentifier"
	case Wildcard:
		return "Wildcard"
	case String:
		return "String(" + token.Value + ")"
	case Int:
		return "Int(" + token.Value + ")"
	case PrimaryKey:
		return "PrimaryKey"
	case Unique:
		return "Unique"
	case Comma:
		return "Comma"
	case Semicolon:
		return "Semicolon"
	case ParenOpen:
		return "ParenOpen"
	case ParenClose:
		return "ParenClose"
	case Equals:
		return "Equals"
	case NotEquals:
		return "NotEquals"
	case LessThan:
		return "LessThan"
	case GreaterThan:
		return "GreaterThan"
	case LessThanOrEqual:
		return "LessThanOrEqual"
	case GreaterThanOrEqual:
		return "GreaterThanOrEqual"
	case And:
		return "And"
	case Or:
		return "Or"
	case Not:
		return "Not"
	case Null:
		return "Null"
	case True:
		return "True"
	case False:
		return "False"
	case Select:
		return "Select"
	case From:
		return "From"
	case Where:
		return "Where"
	case Create:
		return "Create"
	case Insert:
		return "Insert"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	case Set:
		return "Set"
	case Into:
		return "Into"
	case Values:
		return "Values"
	case EOF:
		return "EOF"
	case Illegal:
		return "Illegal(" + token.Value + ")"
	default:
		return "Unknown(" + token.Value + ")"
	}
}

// describe renders a token the way syntax errors quote it.
func (token Token) describe() string {
	switch token.Type {
	case EOF:
		return "end of input"
	case String:
		return "string \"" + token.Value + "\""
	default:
		return "\"" + token.Value + "\""
	}
}

type Lexer struct {
	sql          string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(sql string) *Lexer {
	lexer := &Lexer{sql: sql}
	lexer.readChar()
	return lexer
}

func (lexer *Lexer) readChar() {
	if lexer.readPosition >= len(lexer.sql) {
		lexer.ch = 0
	} else {
		lexer.ch = lexer.sql[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

func (lexer *Lexer) peekChar() byte {
	if lexer.readPosition >= len(lexer.sql) {
		return 0
	}
	return lexer.sql[lexer.readPosition]
}

func (lexer *Lexer) NextToken() Token {
	var token Token

	lexer.skipWhitespace()
	start := lexer.position

	switch lexer.ch {
	case ',':
		token = Token{Type: Comma, Value: string(lexer.ch)}
	case ';':
		token = Token{Type: Semicolon, Value: string(lexer.ch)}
	case '(':
		token = Token{Type: ParenOpen, Value: string(lexer.ch)}
	case ')':
		token = Token{Type: ParenClose, Value: string(lexer.ch)}
	case '*':
		token = Token{Type: Wildcard, Value: string(lexer.ch)}
	case 0:
		if lexer.position < len(lexer.sql) {
			token = Token{Type: Unknown, Value: string(lexer.ch)}
		} else {
			token = Token{Type: EOF, Value: ""}
		}
	case '"', '\'':
		str, terminated := lexer.readString(lexer.ch)
		if !terminated {
			return Token{Type: Illegal, Value: "unterminated string literal", Position: start}
		}
		return Token{Type: String, Value: str, Position: start}
	default:
		if isOperator(lexer.ch) {
			operator := lexer.readOperator()
			switch operator {
			case "=":
				return Token{Type: Equals, Value: operator, Position: start}
			case "!=", "<>":
				return Token{Type: NotEquals, Value: operator, Position: start}
			case "<":
				return Token{Type: LessThan, Value: operator, Position: start}
			case ">":
				return Token{Type: GreaterThan, Value: operator, Position: start}
			case "<=":
				return Token{Type: LessThanOrEqual, Value: operator, Position: start}
			case ">=":
				return Token{Type: GreaterThanOrEqual, Value: operator, Position: start}
			default:
				return Token{Type: Unknown, Value: operator, Position: start}
			}
		} else if isDigit(lexer.ch) || (lexer.ch == '-' && isDigit(lexer.peekChar())) {
			negative := lexer.ch == '-'
			if negative {
				lexer.readChar()
			}
			num := lexer.readNumber()
			if isLetter(lexer.ch) {
				// 12abc is neither a number nor an identifier
				rest := lexer.readIdentifier()
				return Token{Type: Unknown, Value: num + rest, Position: start}
			}
			if negative {
				num = "-" + num
			}
			return Token{Type: Int, Value: num, Position: start}
		} else if isLetter(lexer.ch) {
			literal := lexer.readIdentifier()
			if toUpper(literal) == "PRIMARY" {
				// Check for KEY
				saved := *lexer
				lexer.skipWhitespace()
				nextLiteral := lexer.readIdentifier()
				if toUpper(nextLiteral) == "KEY" {
					return Token{Type: PrimaryKey, Value: "PRIMARY KEY", Position: start}
				}
				*lexer = saved
				return Token{Type: Unknown, Value: literal, Position: start}
			}
			tokenType := lookupIdentifier(literal)
			return Token{Type: tokenType, Value: literal, Position: start}
		} else {
			token = Token{Type: Unknown, Value: string(lexer.ch)}
		}
	}

	token.Position = start
	lexer.readChar()
	return token
}

func (lexer *Lexer) PeekToken() Token {
	// Save current state
	savedPosition := lexer.position
	savedReadPosition := lexer.readPosition
	savedCh := lexer.ch

	// Get next token
	token := lexer.NextToken()

	// Restore state
	lexer.position = savedPosition
	lexer.readPosition = savedReadPosition
	lexer.ch = savedCh

	return token
}

func (lexer *Lexer) skipWhitespace() {
	for lexer.ch == ' ' || lexer.ch == '\t' || lexer.ch == '\n' || lexer.ch == '\r' {
		lexer.readChar()
	}
}

func (lexer *Lexer) readIdentifier() string {
	position := lexer.position
	for isAlphaNumeric(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

// readString consumes a quoted literal. A doubled quote inside the literal
// stands for one quote character.
func (lexer *Lexer) readString(quote byte) (string, bool) {
	lexer.readChar() // skip opening quote
	var buf []byte
	for {
		if lexer.position >= len(lexer.sql) {
			return "", false
		}
		if lexer.ch == quote {
			if lexer.peekChar() == quote {
				buf = append(buf, quote)
				lexer.readChar()
				lexer.readChar()
				continue
			}
			lexer.readChar() // skip closing quote
			return string(buf), true
		}
		buf = append(buf, lexer.ch)
		lexer.readChar()
	}
}

func (lexer *Lexer) readNumber() string {
	position := lexer.position
	for isDigit(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func (lexer *Lexer) readOperator() string {
	position := lexer.position
	for isOperator(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isAlphaNumeric(ch byte) bool {
	return isLetter(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isOperator(ch byte) bool {
	return ch == '=' || ch == '!' || ch == '<' || ch == '>'
}

func lookupIdentifier(id string) TokenType {
	// Convert to uppercase for case-insensitive matching
	switch toUpper(id) {
	case "TABLE":
		return TableIdentifier
	case "UNIQUE":
		return Unique
	case "AND":
		return And
	case "OR":
		return Or
	case "NOT":
		return Not
	case "NULL":
		return Null
	case "TRUE":
		return True
	case "FALSE":
		return False
	case "SELECT":
		return Select
	case "FROM":
		return From
	case "WHERE":
		return Where
	case "CREATE":
		return Create
	case "INSERT":
		return Insert
	case "UPDATE":
		return Update
	case "DELETE":
		return Delete
	case "SET":
		return Set
	case "INTO":
		return Into
	case "VALUES":
		return Values
	default:
		return Identifier
	}
}

// toUpper converts a string to uppercase without allocating for ASCII strings
func toUpper(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			// Need to convert, allocate a new string
			b := make([]byte, len(s))
			for j := 0; j < len(s); j++ {
				if s[j] >= 'a' && s[j] <= 'z' {
					b[j] = s[j] - 32
				} else {
					b[j] = s[j]
				}
			}
			return string(b)
		}
	}
	return s
}

func tokenize(sql string) []Token {
	lexer := NewLexer(sql)

	var tokens []Token

	for {
		token := lexer.NextToken()
		if token.Type == EOF {
			return append(tokens, token)
		}
		tokens = append(tokens, token)
	}
}
