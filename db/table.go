package db

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#475569"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8B5CF6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	statsStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
)

// TableWriter renders rows as a bordered table.
type TableWriter struct {
	writer  io.Writer
	headers []string
	rows    [][]string
}

func NewTable(w io.Writer) *TableWriter {
	return &TableWriter{writer: w}
}

func (t *TableWriter) Header(headers []string) {
	t.headers = headers
}

func (t *TableWriter) Row(row []string) {
	t.rows = append(t.rows, row)
}

func (t *TableWriter) Bulk(rows [][]string) {
	t.rows = append(t.rows, rows...)
}

func (t *TableWriter) Render() {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}

	rendered := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(t.headers...).
		Rows(t.rows...)

	fmt.Fprintln(t.writer, rendered.Render())
}
