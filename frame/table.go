package frame

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ardnew/safeval/lang"
)

// Table is an ordered collection of equal-length columns sharing one index.
type Table struct {
	names   []string
	columns map[string]*Column
	index   []int
}

// NewTable returns a table holding columns in the given order. Every column
// must have the same length and names must be unique.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{columns: make(map[string]*Column, len(columns))}

	for i, c := range columns {
		if i == 0 {
			t.index = slices.Clone(c.index)
		}

		if c.Len() != len(t.index) {
			return nil, lang.ErrOperandType.With(
				slog.String("column", c.name),
				slog.Int("length", c.Len()),
				slog.Int("expected", len(t.index)),
				slog.String("reason", "columns must have equal length"),
			)
		}

		if _, dup := t.columns[c.name]; dup {
			return nil, lang.ErrOperandType.With(
				slog.String("column", c.name),
				slog.String("reason", "duplicate column name"),
			)
		}

		t.names = append(t.names, c.name)
		t.columns[c.name] = &Column{name: c.name, values: c.values, index: t.index}
	}

	return t, nil
}

// Column implements [lang.Table].
func (t *Table) Column(name string) (lang.Column, bool) {
	c, ok := t.columns[name]
	if !ok {
		return nil, false
	}

	return c, true
}

// Columns implements [lang.Table].
func (t *Table) Columns() []string { return slices.Clone(t.names) }

// Len implements [lang.Table].
func (t *Table) Len() int { return len(t.index) }

// Series returns the named column with its concrete type.
func (t *Table) Series(name string) (*Column, bool) {
	c, ok := t.columns[name]

	return c, ok
}

// reindex returns a table built by taking rows perm of t.
func (t *Table) reindex(perm []int, ignoreIndex bool) *Table {
	out := &Table{
		names:   t.names,
		columns: make(map[string]*Column, len(t.columns)),
	}

	for _, name := range t.names {
		c := t.columns[name].take(perm, ignoreIndex)
		out.columns[name] = c
		out.index = c.index
	}

	if out.index == nil {
		out.index = []int{}
	}

	return out
}

var tableMethods map[string]signature[*Table]

func init() {
	tableMethods = map[string]signature[*Table]{
		"apply": {params: []string{"func", "axis", "raw", "result_type"}, fn: tableApply},
		"sort_values": {
			params: []string{"by", "axis", "ascending", "inplace", "kind", "na_position", "ignore_index"},
			fn:     tableSort,
		},
		"head":        {params: []string{"n"}, fn: tableSlice(true)},
		"tail":        {params: []string{"n"}, fn: tableSlice(false)},
		"count":       {params: []string{"axis", "numeric_only"}, fn: tableCount},
		"reset_index": {params: []string{"drop"}, fn: tableResetIndex},
	}
}

// Method implements [lang.Capabilities].
func (t *Table) Method(name string) (lang.Callable, bool) {
	m, ok := tableMethods[name]
	if !ok {
		return nil, false
	}

	return bind(name, t, m), true
}

// Property implements [lang.Capabilities].
func (t *Table) Property(name string) (lang.Value, bool) {
	switch name {
	case "shape":
		return lang.Seq(lang.Int(int64(t.Len())), lang.Int(int64(len(t.names)))), true
	case "columns":
		out := make([]lang.Value, len(t.names))
		for i, n := range t.names {
			out[i] = lang.String(n)
		}

		return lang.Seq(out...), true
	case "empty":
		return lang.Bool(t.Len() == 0 || len(t.names) == 0), true
	case "size":
		return lang.Int(int64(t.Len() * len(t.names))), true
	case "index":
		return indexValue(t.index), true
	case "dtypes":
		out := make([]lang.Value, len(t.names))
		for i, n := range t.names {
			out[i] = lang.String(DType(t.columns[n].values))
		}

		return lang.Seq(out...), true
	}

	if c, ok := t.columns[name]; ok {
		return lang.ColumnValue(c), true
	}

	return lang.Null(), false
}

// parameterized is implemented by callables with named parameters, such as
// lambdas.
type parameterized interface {
	Params() []string
}

// Apply calls fn once per row and collects the results in a column sharing
// t's index. When every parameter of fn names a column, each row is passed
// as keyword arguments; otherwise fn receives a row object whose properties
// are the row's cells.
func (t *Table) Apply(ctx context.Context, fn lang.Callable) (*Column, error) {
	byName := false

	if p, ok := fn.(parameterized); ok {
		params := p.Params()
		byName = len(params) > 0 && !slices.ContainsFunc(params, func(name string) bool {
			_, ok := t.columns[name]

			return !ok
		})
	}

	out := make([]lang.Value, t.Len())

	for i := range out {
		var args lang.Arguments

		if byName {
			for _, name := range fn.(parameterized).Params() {
				args = args.WithKeyword(name, t.columns[name].values[i])
			}
		} else {
			args = lang.Args(lang.ObjectValue(&Row{table: t, row: i}))
		}

		r, err := fn.Call(ctx, args)
		if err != nil {
			return nil, err
		}

		out[i] = r
	}

	return &Column{values: out, index: t.index}, nil
}

func tableApply(ctx context.Context, t *Table, p params) (lang.Value, error) {
	fn, err := p.callable("func")
	if err != nil {
		return lang.Null(), err
	}

	if axis, ok := p.value("axis"); ok {
		if !axis.Equal(lang.Int(1)) && !axis.Equal(lang.String("columns")) {
			return lang.Null(), p.invalid("axis", axis)
		}
	}

	c, err := t.Apply(ctx, fn)
	if err != nil {
		return lang.Null(), err
	}

	return lang.ColumnValue(c), nil
}

// names reads a string or a list of strings.
func names(p params, param string) ([]string, error) {
	v, err := p.required(param)
	if err != nil {
		return nil, err
	}

	if s, ok := v.AsString(); ok {
		return []string{s}, nil
	}

	vals, ok := v.AsSeq()
	if !ok {
		return nil, p.invalid(param, v)
	}

	out := make([]string, len(vals))

	for i, e := range vals {
		s, ok := e.AsString()
		if !ok {
			return nil, p.invalid(param, e)
		}

		out[i] = s
	}

	return out, nil
}

func tableSort(_ context.Context, t *Table, p params) (lang.Value, error) {
	by, err := names(p, "by")
	if err != nil {
		return lang.Null(), err
	}

	keys := make([]*Column, len(by))

	for i, name := range by {
		c, ok := t.columns[name]
		if !ok {
			return lang.Null(), lang.ErrUnknownColumn.With(slog.String("column", name))
		}

		keys[i] = c
	}

	ascending := make([]bool, len(by))

	v, ok := p.value("ascending")
	if !ok {
		v = lang.Bool(true)
	}

	if flags, ok := v.AsSeq(); ok {
		if len(flags) != len(by) {
			return lang.Null(), lang.ErrOperandType.With(
				slog.String("method", p.fn),
				slog.Int("ascending", len(flags)),
				slog.Int("by", len(by)),
				slog.String("reason", "length of ascending != length of by"),
			)
		}

		for i, f := range flags {
			ascending[i] = f.Truthy()
		}
	} else {
		for i := range ascending {
			ascending[i] = v.Truthy()
		}
	}

	ignoreIndex, err := p.bool("ignore_index", false)
	if err != nil {
		return lang.Null(), err
	}

	perm, err := order(t.Len(), keys, ascending)
	if err != nil {
		return lang.Null(), err
	}

	return lang.TableValue(t.reindex(perm, ignoreIndex)), nil
}

func tableSlice(head bool) method[*Table] {
	return func(_ context.Context, t *Table, p params) (lang.Value, error) {
		n, err := p.int("n", 5)
		if err != nil {
			return lang.Null(), err
		}

		lo, hi := window(t.Len(), n, head)

		return lang.TableValue(t.reindex(rangeFrom(lo, hi), false)), nil
	}
}

func rangeFrom(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}

	return out
}

// tableCount returns the number of present values in each column, in column
// order.
func tableCount(_ context.Context, t *Table, _ params) (lang.Value, error) {
	out := make([]lang.Value, len(t.names))
	for i, name := range t.names {
		out[i] = lang.Int(int64(len(t.columns[name].present())))
	}

	return lang.ColumnValue(&Column{name: "count", values: out, index: rangeIndex(len(out))}), nil
}

func tableResetIndex(_ context.Context, t *Table, _ params) (lang.Value, error) {
	return lang.TableValue(t.reindex(rangeIndex(t.Len()), true)), nil
}

// Row is one row of a table, passed to callables given to Table.apply. Its
// properties are the row's cells and its index label.
type Row struct {
	table *Table
	row   int
}

// Method implements [lang.Capabilities].
func (r *Row) Method(name string) (lang.Callable, bool) {
	if name != "get" {
		return nil, false
	}

	return lang.NewFunc("get", func(_ context.Context, args lang.Arguments) (lang.Value, error) {
		bound, err := args.Bind("get", "key", "default")
		if err != nil {
			return lang.Null(), err
		}

		key, _ := bound["key"].AsString()
		if v, ok := r.Property(key); ok {
			return v, nil
		}

		return bound["default"], nil
	}), true
}

// Property implements [lang.Capabilities].
func (r *Row) Property(name string) (lang.Value, bool) {
	if name == "name" {
		if _, shadowed := r.table.columns[name]; !shadowed {
			return lang.Int(int64(r.table.index[r.row])), true
		}
	}

	c, ok := r.table.columns[name]
	if !ok {
		return lang.Null(), false
	}

	return c.values[r.row], true
}
