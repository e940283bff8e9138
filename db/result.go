package db

import (
	"fmt"
	"io"
	"strings"

	"github.com/nickyhof/MiniDB/core"
)

type ResultType int

const (
	QueryResultType ResultType = iota
	CommitResultType
)

type Result interface {
	Type() ResultType
	Display(w io.Writer)
}

// QueryResult is returned by SELECT.
type QueryResult struct {
	Table            string
	Columns          []string
	Rows             [][]core.Value
	RecordsRead      int
	ExecutionTimeSec float64
}

// CommitResult is returned by every statement that writes.
type CommitResult struct {
	Table            string
	TablesCreated    int
	RecordsWritten   int
	RecordsUpdated   int
	RecordsDeleted   int
	ExecutionTimeSec float64
}

func (result QueryResult) Type() ResultType {
	return QueryResultType
}

func (result CommitResult) Type() ResultType {
	return CommitResultType
}

// Data renders every value as display text.
func (result QueryResult) Data() [][]string {
	data := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		cells := make([]string, len(row))
		for j, value := range row {
			cells[j] = value.String()
		}
		data[i] = cells
	}
	return data
}

// Affected is the number of rows the statement inserted, updated or deleted.
func (result CommitResult) Affected() int {
	return result.RecordsWritten + result.RecordsUpdated + result.RecordsDeleted
}

// formatDuration formats a duration in human-readable form
func formatDuration(secs float64) string {
	if secs < 0.001 {
		return "<1ms"
	} else if secs < 1 {
		ms := secs * 1000
		if ms < 10 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	} else if secs < 60 {
		if secs < 10 {
			return fmt.Sprintf("%.1fs", secs)
		}
		return fmt.Sprintf("%ds", int(secs))
	}
	mins := int(secs / 60)
	remainSecs := int(secs) % 60
	if remainSecs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, remainSecs)
}

func (result QueryResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result CommitResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result QueryResult) Display(w io.Writer) {
	if len(result.Rows) > 0 {
		data := NewTable(w)
		data.Header(result.Columns)
		data.Bulk(result.Data())
		data.Render()
	}

	fmt.Fprintln(w, statsStyle.Render(fmt.Sprintf("%d rows (%s)", result.RecordsRead, result.ExecutionTime())))
}

func (result CommitResult) Display(w io.Writer) {
	var parts []string

	if result.TablesCreated > 0 {
		parts = append(parts, fmt.Sprintf("%d table(s) created", result.TablesCreated))
	}
	if result.RecordsWritten > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) written", result.RecordsWritten))
	}
	if result.RecordsUpdated > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) updated", result.RecordsUpdated))
	}
	if result.RecordsDeleted > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) deleted", result.RecordsDeleted))
	}

	summary := "OK"
	if len(parts) > 0 {
		summary = strings.Join(parts, ", ")
	}
	fmt.Fprintln(w, statsStyle.Render(fmt.Sprintf("%s (%s)", summary, result.ExecutionTime())))
}

// DisplayError renders an execution error.
func DisplayError(w io.Writer, err error) {
	kind, msg, position := describe(err)
	text := fmt.Sprintf("%s: %s", kind, msg)
	if position >= 0 {
		text = fmt.Sprintf("%s: %s (at position %d)", kind, msg, position)
	}
	fmt.Fprintln(w, errorStyle.Render(text))
}
