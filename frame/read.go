package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/safeval/lang"
)

// ErrRead indicates a data document could not be decoded into a table.
var ErrRead = lang.NewError("invalid table data")

// dateLayouts are tried in order when a string cell may hold a timestamp.
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTime parses s with the first matching date layout.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(time.DateOnly) || !isDigitString(s[:4]) {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func isDigitString(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}

// ReadYAML decodes a mapping of column name to list of cells. Column order
// follows the document. String cells holding dates become timestamps.
func ReadYAML(r io.Reader) (*Table, error) {
	var doc yaml.MapSlice

	if err := yaml.NewDecoder(r, yaml.UseOrderedMap()).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return NewTable()
		}

		return nil, ErrRead.Wrap(err).With(slog.String("format", "yaml"))
	}

	columns := make([]*Column, 0, len(doc))

	for _, item := range doc {
		name := fmt.Sprint(item.Key)

		cells, ok := item.Value.([]any)
		if !ok {
			return nil, ErrRead.With(
				slog.String("format", "yaml"),
				slog.String("column", name),
				slog.String("reason", "column must be a sequence"),
			)
		}

		values := make([]lang.Value, len(cells))

		for i, cell := range cells {
			v, err := yamlCell(cell)
			if err != nil {
				return nil, ErrRead.Wrap(err).With(
					slog.String("format", "yaml"),
					slog.String("column", name),
					slog.Int("row", i),
				)
			}

			values[i] = v
		}

		columns = append(columns, NewColumn(name, values))
	}

	t, err := NewTable(columns...)
	if err != nil {
		return nil, ErrRead.Wrap(err).With(slog.String("format", "yaml"))
	}

	return t, nil
}

func yamlCell(cell any) (lang.Value, error) {
	switch x := cell.(type) {
	case string:
		if t, ok := ParseTime(x); ok {
			return lang.Time(t), nil
		}
	case yaml.MapSlice:
		return lang.Null(), ErrRead.With(slog.String("reason", "nested mappings are not supported"))
	}

	return lang.FromNative(cell)
}

// ReadCSV decodes a table with a header row. Each cell is inferred as None
// (empty), a boolean, an integer, a float, a timestamp, or a string.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, ErrRead.Wrap(err).With(slog.String("format", "csv"))
	}

	if len(records) == 0 {
		return NewTable()
	}

	header := records[0]
	columns := make([]*Column, len(header))

	for j, name := range header {
		values := make([]lang.Value, len(records)-1)
		for i, rec := range records[1:] {
			values[i] = ParseCell(rec[j])
		}

		columns[j] = NewColumn(strings.TrimSpace(name), values)
	}

	t, err := NewTable(columns...)
	if err != nil {
		return nil, ErrRead.Wrap(err).With(slog.String("format", "csv"))
	}

	return t, nil
}

// ParseCell infers the value of a textual cell.
func ParseCell(s string) lang.Value {
	s = strings.TrimSpace(s)

	switch s {
	case "":
		return lang.Null()
	case "True", "true":
		return lang.Bool(true)
	case "False", "false":
		return lang.Bool(false)
	case "nan", "NaN":
		return lang.Float(math.NaN())
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return lang.Int(n)
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return lang.Float(f)
	}

	if t, ok := ParseTime(s); ok {
		return lang.Time(t)
	}

	return lang.String(s)
}

// Read decodes a table from r, choosing the decoder by format: "csv" or
// "yaml" (also "yml").
func Read(r io.Reader, format string) (*Table, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "csv":
		return ReadCSV(r)
	case "yaml", "yml", "":
		return ReadYAML(r)
	}

	return nil, ErrRead.With(slog.String("format", format), slog.String("reason", "unknown format"))
}

// WriteYAML encodes t as a mapping of column name to cells, in column order.
func WriteYAML(w io.Writer, t *Table, opts ...yaml.EncodeOption) error {
	doc := make(yaml.MapSlice, 0, len(t.names))

	for _, name := range t.names {
		doc = append(doc, yaml.MapItem{Key: name, Value: nativeCells(t.columns[name].values)})
	}

	return yaml.NewEncoder(w, opts...).Encode(doc)
}

// EncodeYAML encodes any expression result as YAML. Tables become a mapping
// of column name to cells and columns a single-entry mapping.
func EncodeYAML(w io.Writer, v lang.Value, opts ...yaml.EncodeOption) error {
	var doc any

	switch v.Kind() {
	case lang.KindTable:
		t, _ := v.AsTable()
		m := make(yaml.MapSlice, 0, len(t.Columns()))

		for _, name := range t.Columns() {
			c, _ := t.Column(name)
			m = append(m, yaml.MapItem{Key: name, Value: nativeCells(cells(c))})
		}

		doc = m

	case lang.KindColumn:
		c, _ := v.AsColumn()
		doc = yaml.MapSlice{{Key: c.Name(), Value: nativeCells(cells(c))}}

	default:
		doc = nativeCell(v)
	}

	return yaml.NewEncoder(w, opts...).Encode(doc)
}

func cells(c lang.Column) []lang.Value {
	out := make([]lang.Value, c.Len())
	for i := range out {
		out[i] = c.At(i)
	}

	return out
}

func nativeCells(values []lang.Value) []any {
	out := make([]any, len(values))

	for i, v := range values {
		out[i] = nativeCell(v)
	}

	return out
}

func nativeCell(v lang.Value) any {
	switch v.Kind() {
	case lang.KindSequence:
		seq, _ := v.AsSeq()

		return nativeCells(seq)
	case lang.KindComplex, lang.KindObject, lang.KindCallable, lang.KindTable, lang.KindColumn:
		return v.String()
	}

	return v.Native()
}
