package core

type Operator int

const (
	EqualsOperator Operator = iota
	NotEqualsOperator
	LessThanOperator
	GreaterThanOperator
	LessThanOrEqualOperator
	GreaterThanOrEqualOperator
)

func (op Operator) String() string {
	switch op {
	case EqualsOperator:
		return "="
	case NotEqualsOperator:
		return "!="
	case LessThanOperator:
		return "<"
	case GreaterThanOperator:
		return ">"
	case LessThanOrEqualOperator:
		return "<="
	case GreaterThanOrEqualOperator:
		return ">="
	default:
		return "?"
	}
}

// Holds reports whether a Compare result satisfies the operator.
func (op Operator) Holds(cmp int) bool {
	switch op {
	case EqualsOperator:
		return cmp == 0
	case NotEqualsOperator:
		return cmp != 0
	case LessThanOperator:
		return cmp < 0
	case GreaterThanOperator:
		return cmp > 0
	case LessThanOrEqualOperator:
		return cmp <= 0
	case GreaterThanOrEqualOperator:
		return cmp >= 0
	default:
		return false
	}
}

// Predicate is a single `column op literal` test, the only WHERE form the
// grammar supports.
type Predicate struct {
	Column   string
	Operator Operator
	Value    Literal
}

func (p Predicate) String() string {
	return p.Column + " " + p.Operator.String() + " " + p.Value.String()
}
