package db

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/nickyhof/MiniDB/core"
)

type OutcomeKind string

const (
	RowsOutcome  OutcomeKind = "rows"
	CountOutcome OutcomeKind = "count"
	ErrorOutcome OutcomeKind = "error"
)

// Outcome is the structured, JSON-serializable result of one statement.
// Exactly one of the rows, count or error groups is meaningful, as selected
// by Kind. Rows hold native JSON scalars (int64, string, bool).
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`

	Affected int `json:"affected,omitempty"`

	ErrorKind core.ErrorKind `json:"error_kind,omitempty"`
	Message   string         `json:"message,omitempty"`
	Position  *int           `json:"position,omitempty"`
}

// OutcomeOf converts an Execute return pair into an Outcome.
func OutcomeOf(result Result, err error) Outcome {
	if err != nil {
		kind, msg, position := describe(err)
		outcome := Outcome{Kind: ErrorOutcome, ErrorKind: kind, Message: msg}
		if position >= 0 {
			outcome.Position = &position
		}
		return outcome
	}

	switch r := result.(type) {
	case QueryResult:
		rows := make([][]any, len(r.Rows))
		for i, row := range r.Rows {
			cells := make([]any, len(row))
			for j, value := range row {
				cells[j] = value.Native()
			}
			rows[i] = cells
		}
		return Outcome{Kind: RowsOutcome, Columns: r.Columns, Rows: rows}
	case CommitResult:
		return Outcome{Kind: CountOutcome, Affected: r.Affected()}
	default:
		return Outcome{Kind: ErrorOutcome, ErrorKind: core.InternalError, Message: "statement produced no result"}
	}
}

// MarshalJSON writes only the fields of the outcome's kind, so an empty
// result set still carries "rows": [] and a zero count "affected": 0.
func (o Outcome) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case RowsOutcome:
		rows := o.Rows
		if rows == nil {
			rows = [][]any{}
		}
		return json.Marshal(struct {
			Kind    OutcomeKind `json:"kind"`
			Columns []string    `json:"columns"`
			Rows    [][]any     `json:"rows"`
		}{o.Kind, o.Columns, rows})
	case CountOutcome:
		return json.Marshal(struct {
			Kind     OutcomeKind `json:"kind"`
			Affected int         `json:"affected"`
		}{o.Kind, o.Affected})
	default:
		return json.Marshal(struct {
			Kind      OutcomeKind    `json:"kind"`
			ErrorKind core.ErrorKind `json:"error_kind"`
			Message   string         `json:"message"`
			Position  *int           `json:"position,omitempty"`
		}{o.Kind, o.ErrorKind, o.Message, o.Position})
	}
}

// Failed reports whether the outcome is an error.
func (o Outcome) Failed() bool {
	return o.Kind == ErrorOutcome
}

// describe splits err into its kind, message and syntax position (-1 when
// there is none). Anything that is not a *core.Error is an InternalError.
func describe(err error) (core.ErrorKind, string, int) {
	var e *core.Error
	if !errors.As(err, &e) {
		return core.InternalError, err.Error(), -1
	}

	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	position := -1
	if e.Kind == core.SyntaxError {
		position = e.Position
	}
	return e.Kind, msg, position
}
