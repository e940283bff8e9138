package ps

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nickyhof/MiniDB/core"
)

// RowIDField is the reserved key holding the row identifier in a stored row.
const RowIDField = core.RowIDColumn

const documentExt = ".json"

// Document is the durable form of one table: its schema, its live rows in
// insertion order and the next row identifier to hand out.
type Document struct {
	Schema    core.Schema
	Rows      []core.Row
	NextRowID core.RowID
}

type storedDocument struct {
	Schema    core.Schema       `json:"schema"`
	Rows      []json.RawMessage `json:"rows"`
	NextRowID core.RowID        `json:"next_row_id"`
}

// EncodeDocument renders a document as indented JSON. Row keys follow
// schema order, with the row identifier first.
func EncodeDocument(doc Document) ([]byte, error) {
	stored := storedDocument{
		Schema:    doc.Schema,
		Rows:      make([]json.RawMessage, 0, len(doc.Rows)),
		NextRowID: doc.NextRowID,
	}

	for _, row := range doc.Rows {
		if len(row.Values) != len(doc.Schema.Columns) {
			return nil, fmt.Errorf("row %d has %d values, table %s has %d columns",
				row.ID, len(row.Values), doc.Schema.Name, len(doc.Schema.Columns))
		}

		var buf bytes.Buffer
		fmt.Fprintf(&buf, `{"%s":%d`, RowIDField, row.ID)
		for i, col := range doc.Schema.Columns {
			key, err := json.Marshal(col.Name)
			if err != nil {
				return nil, err
			}
			value, err := row.Values[i].MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s of row %d: %w", col.Name, row.ID, err)
			}
			buf.WriteByte(',')
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
		stored.Rows = append(stored.Rows, buf.Bytes())
	}

	return json.MarshalIndent(stored, "", "  ")
}

// DecodeDocument parses a stored document, checking every value against its
// column's declared type.
func DecodeDocument(data []byte) (Document, error) {
	var stored storedDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		return Document{}, fmt.Errorf("failed to decode table document: %w", err)
	}

	doc := Document{
		Schema:    stored.Schema,
		Rows:      make([]core.Row, 0, len(stored.Rows)),
		NextRowID: stored.NextRowID,
	}
	doc.Schema.Normalize()
	if err := doc.Schema.Validate(); err != nil {
		return Document{}, fmt.Errorf("stored schema is invalid: %w", err)
	}

	for n, raw := range stored.Rows {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return Document{}, fmt.Errorf("failed to decode row %d: %w", n, err)
		}

		var row core.Row
		ridRaw, ok := fields[RowIDField]
		if !ok {
			return Document{}, fmt.Errorf("row %d has no %s", n, RowIDField)
		}
		if err := json.Unmarshal(ridRaw, &row.ID); err != nil {
			return Document{}, fmt.Errorf("row %d has an invalid %s: %w", n, RowIDField, err)
		}

		row.Values = make([]core.Value, len(doc.Schema.Columns))
		for i, col := range doc.Schema.Columns {
			valueRaw, ok := fields[col.Name]
			if !ok {
				return Document{}, fmt.Errorf("row %d is missing column %s", row.ID, col.Name)
			}
			value, err := core.DecodeValue(valueRaw, col.Type)
			if err != nil {
				return Document{}, fmt.Errorf("row %d column %s: %w", row.ID, col.Name, err)
			}
			row.Values[i] = value
		}

		if row.ID >= doc.NextRowID {
			doc.NextRowID = row.ID + 1
		}
		doc.Rows = append(doc.Rows, row)
	}

	if doc.NextRowID < 1 {
		doc.NextRowID = 1
	}

	return doc, nil
}

func documentName(table string) string {
	return table + documentExt
}

// tableName maps a stored file name back to its table, rejecting temp files
// and anything else that is not a table document.
func tableName(file string) (string, bool) {
	if strings.HasPrefix(file, ".") || !strings.HasSuffix(file, documentExt) {
		return "", false
	}
	name := strings.TrimSuffix(file, documentExt)
	return name, validTableName(name)
}

// validTableName accepts the identifiers the SQL lexer produces, which keeps
// table names safe to use as file names and object keys.
func validTableName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch == '_', 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z':
		case '0' <= ch && ch <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func checkTableName(name string) error {
	if !validTableName(name) {
		return core.NewError(core.StorageError, "invalid table name %q", name)
	}
	return nil
}
