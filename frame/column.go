package frame

import (
	"slices"

	"github.com/ardnew/safeval/lang"
)

// Column is an indexed, named vector of values.
type Column struct {
	name   string
	values []lang.Value
	index  []int
}

// NewColumn returns a column with a default 0..n-1 index.
func NewColumn(name string, values []lang.Value) *Column {
	return &Column{name: name, values: values, index: rangeIndex(len(values))}
}

// FromNative builds a column from plain Go values.
func FromNative(name string, values []any) (*Column, error) {
	vals := make([]lang.Value, len(values))

	for i, x := range values {
		v, err := lang.FromNative(x)
		if err != nil {
			return nil, err
		}

		vals[i] = v
	}

	return NewColumn(name, vals), nil
}

func rangeIndex(n int) []int {
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}

	return index
}

// with returns a column sharing c's name holding values at the given index.
func (c *Column) with(values []lang.Value, index []int) *Column {
	return &Column{name: c.name, values: values, index: index}
}

// Name implements [lang.Column].
func (c *Column) Name() string { return c.name }

// Len implements [lang.Column].
func (c *Column) Len() int { return len(c.values) }

// At implements [lang.Column].
func (c *Column) At(i int) lang.Value { return c.values[i] }

// Derive implements [lang.Column].
func (c *Column) Derive(values []lang.Value) lang.Column {
	return c.with(values, c.index)
}

// Values returns a copy of the column's values.
func (c *Column) Values() []lang.Value { return slices.Clone(c.values) }

// Index returns a copy of the column's index labels.
func (c *Column) Index() []int { return slices.Clone(c.index) }

// Rename returns a copy of c named name.
func (c *Column) Rename(name string) *Column {
	return &Column{name: name, values: c.values, index: c.index}
}

// Method implements [lang.Capabilities].
func (c *Column) Method(name string) (lang.Callable, bool) {
	m, ok := columnMethods[name]
	if !ok {
		return nil, false
	}

	return bind(name, c, m), true
}

// Property implements [lang.Capabilities].
func (c *Column) Property(name string) (lang.Value, bool) {
	switch name {
	case "dtype":
		return lang.String(DType(c.values)), true
	case "shape":
		return lang.Seq(lang.Int(int64(c.Len()))), true
	case "size":
		return lang.Int(int64(c.Len())), true
	case "empty":
		return lang.Bool(c.Len() == 0), true
	case "index":
		return indexValue(c.index), true
	case "name":
		return lang.String(c.name), true
	case "values":
		return lang.Seq(c.Values()...), true
	case "str":
		return lang.ObjectValue(&strAccessor{c: c}), true
	case "dt":
		return lang.ObjectValue(&dtAccessor{c: c}), true
	}

	return lang.Null(), false
}

func indexValue(index []int) lang.Value {
	out := make([]lang.Value, len(index))
	for i, n := range index {
		out[i] = lang.Int(int64(n))
	}

	return lang.Seq(out...)
}

// DType names the pandas dtype that best describes values.
func DType(values []lang.Value) string {
	var ints, floats, bools, complexes, times, missing int

	for _, v := range values {
		switch v.Kind() {
		case lang.KindNull:
			missing++
		case lang.KindInt:
			ints++
		case lang.KindFloat:
			floats++
		case lang.KindBool:
			bools++
		case lang.KindComplex:
			complexes++
		case lang.KindTime:
			times++
		default:
			return "object"
		}
	}

	n := len(values) - missing

	switch {
	case n == 0:
		return "object"
	case times == n:
		return "datetime64[ns]"
	case bools == n && missing == 0:
		return "bool"
	case ints == n && missing == 0:
		return "int64"
	case bools > 0 || times > 0:
		return "object"
	case complexes > 0:
		return "complex128"
	}

	return "float64"
}
