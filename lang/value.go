package lang

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a [Value].
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindComplex
	KindTime
	KindSequence
	KindColumn
	KindTable
	KindObject
	KindCallable
)

// String returns the Python-flavoured type name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NoneType"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "str"
	case KindComplex:
		return "complex"
	case KindTime:
		return "datetime"
	case KindSequence:
		return "list"
	case KindColumn:
		return "Series"
	case KindTable:
		return "DataFrame"
	case KindObject:
		return "object"
	case KindCallable:
		return "function"
	default:
		return "unknown"
	}
}

// Capabilities is implemented by host values that expose named methods and
// properties to expressions.
type Capabilities interface {
	// Method returns the callable bound to the named method.
	Method(name string) (Callable, bool)
	// Property returns the value of the named property.
	Property(name string) (Value, bool)
}

// Column is a named vector of values supplied by the host.
type Column interface {
	Capabilities
	Name() string
	Len() int
	At(i int) Value
	// Derive returns a new column that shares the receiver's index and holds
	// the given values. It is used for elementwise operator results.
	Derive(values []Value) Column
}

// Table is a collection of named columns of equal length.
type Table interface {
	Capabilities
	Column(name string) (Column, bool)
	Columns() []string
	Len() int
}

// Callable is anything an expression can invoke: closures, primitives,
// namespace functions and bound methods.
type Callable interface {
	Name() string
	Call(ctx context.Context, args Arguments) (Value, error)
}

// Value is the tagged union of everything an expression can produce.
// The zero Value is None.
type Value struct {
	kind Kind
	i    int64
	f    float64
	c    complex128
	s    string
	t    time.Time
	seq  []Value
	col  Column
	tab  Table
	obj  Capabilities
	fn   Callable
}

// Null returns the None value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}

	return v
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Complex returns a complex value.
func Complex(c complex128) Value { return Value{kind: KindComplex, c: c} }

// Time returns a datetime value.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Seq returns an immutable sequence of the given values.
func Seq(values ...Value) Value {
	if values == nil {
		values = []Value{}
	}

	return Value{kind: KindSequence, seq: values}
}

// ColumnValue wraps a host column.
func ColumnValue(c Column) Value { return Value{kind: KindColumn, col: c} }

// TableValue wraps a host table.
func TableValue(t Table) Value { return Value{kind: KindTable, tab: t} }

// ObjectValue wraps a host capability object.
func ObjectValue(o Capabilities) Value { return Value{kind: KindObject, obj: o} }

// CallableValue wraps a callable.
func CallableValue(fn Callable) Value { return Value{kind: KindCallable, fn: fn} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is None.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsVector reports whether v is a column or a table.
func (v Value) IsVector() bool { return v.kind == KindColumn || v.kind == KindTable }

// IsNumeric reports whether v is a bool, int, float or complex.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case KindBool, KindInt, KindFloat, KindComplex:
		return true
	}

	return false
}

// AsInt returns v as an integer. Bools convert to 0 or 1.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt, KindBool:
		return v.i, true
	}

	return 0, false
}

// AsFloat returns v as a float. Ints and bools convert losslessly.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt, KindBool:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}

	return 0, false
}

// AsComplex returns v as a complex number.
func (v Value) AsComplex() (complex128, bool) {
	if v.kind == KindComplex {
		return v.c, true
	}

	f, ok := v.AsFloat()

	return complex(f, 0), ok
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.i != 0, v.kind == KindBool }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsTime returns the datetime held by v.
func (v Value) AsTime() (time.Time, bool) { return v.t, v.kind == KindTime }

// AsSeq returns the elements held by a sequence.
func (v Value) AsSeq() ([]Value, bool) { return v.seq, v.kind == KindSequence }

// AsColumn returns the column held by v.
func (v Value) AsColumn() (Column, bool) { return v.col, v.kind == KindColumn }

// AsTable returns the table held by v.
func (v Value) AsTable() (Table, bool) { return v.tab, v.kind == KindTable }

// AsObject returns the capability object held by v.
func (v Value) AsObject() (Capabilities, bool) { return v.obj, v.kind == KindObject }

// AsCallable returns the callable held by v.
func (v Value) AsCallable() (Callable, bool) { return v.fn, v.kind == KindCallable }

// Elements returns the values of a sequence or a column.
func (v Value) Elements() ([]Value, bool) {
	switch v.kind {
	case KindSequence:
		return v.seq, true
	case KindColumn:
		out := make([]Value, v.col.Len())
		for i := range out {
			out[i] = v.col.At(i)
		}

		return out, true
	}

	return nil, false
}

// Capabilities returns the host capability set for columns, tables and
// objects.
func (v Value) Capabilities() (Capabilities, bool) {
	switch v.kind {
	case KindColumn:
		return v.col, true
	case KindTable:
		return v.tab, true
	case KindObject:
		return v.obj, true
	}

	return nil, false
}

// Truthy implements Python truth testing.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindInt, KindBool:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindComplex:
		return v.c != 0
	case KindString:
		return v.s != ""
	case KindTime:
		return true
	case KindSequence:
		return len(v.seq) > 0
	case KindColumn:
		return v.col.Len() > 0
	case KindTable:
		return v.tab.Len() > 0
	}

	return true
}

// Equal reports whether v and w hold equal values. Numbers compare across
// int, float, bool and complex; sequences compare elementwise.
func (v Value) Equal(w Value) bool {
	if v.IsNumeric() && w.IsNumeric() {
		if v.kind == KindComplex || w.kind == KindComplex {
			a, _ := v.AsComplex()
			b, _ := w.AsComplex()

			return a == b
		}

		if v.kind != KindFloat && w.kind != KindFloat {
			return v.i == w.i
		}

		a, _ := v.AsFloat()
		b, _ := w.AsFloat()

		return a == b
	}

	if v.kind != w.kind {
		return false
	}

	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == w.s
	case KindTime:
		return v.t.Equal(w.t)
	case KindSequence:
		if len(v.seq) != len(w.seq) {
			return false
		}

		for i := range v.seq {
			if !v.seq[i].Equal(w.seq[i]) {
				return false
			}
		}

		return true
	case KindColumn:
		return v.col == w.col
	case KindTable:
		return v.tab == w.tab
	case KindObject:
		return v.obj == w.obj
	case KindCallable:
		return v.fn == w.fn
	}

	return false
}

// TypeName returns the Python-flavoured type name of v.
func (v Value) TypeName() string { return v.kind.String() }

// String renders v the way Python's str() would.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "None"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBool:
		if v.i != 0 {
			return "True"
		}

		return "False"
	case KindString:
		return v.s
	case KindComplex:
		return formatComplex(v.c)
	case KindTime:
		return v.t.Format(time.DateTime)
	case KindSequence:
		return formatElements("[", "]", v.seq)
	case KindColumn:
		vals, _ := v.Elements()

		return formatElements("[", "]", vals)
	case KindTable:
		return fmt.Sprintf("DataFrame(%d rows x %d columns)",
			v.tab.Len(), len(v.tab.Columns()))
	case KindObject:
		return fmt.Sprintf("<%T>", v.obj)
	case KindCallable:
		return "<function " + v.fn.Name() + ">"
	}

	return "<unknown>"
}

// Repr renders v the way Python's repr() would: strings are quoted.
func (v Value) Repr() string {
	if v.kind == KindString {
		return "'" + v.s + "'"
	}

	return v.String()
}

func formatElements(open, close string, vals []Value) string {
	parts := make([]string, len(vals))
	for i, e := range vals {
		parts[i] = e.Repr()
	}

	return open + strings.Join(parts, ", ") + close
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	case f == math.Trunc(f) && math.Abs(f) < 1e16:
		return strconv.FormatFloat(f, 'f', 1, 64)
	}

	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatComplex(c complex128) string {
	im := imag(c)
	sign := "+"

	if im < 0 || (im == 0 && math.Signbit(im)) {
		sign = "-"
		im = -im
	}

	imStr := strconv.FormatFloat(im, 'g', -1, 64)
	if cmplx.IsNaN(c) || real(c) != 0 {
		return "(" + strconv.FormatFloat(real(c), 'g', -1, 64) + sign + imStr + "j)"
	}

	if sign == "-" {
		return "-" + imStr + "j"
	}

	return imStr + "j"
}

// Native converts v to a plain Go value: nil, int64, float64, bool, string,
// complex128, time.Time, []any, or the host object itself.
func (v Value) Native() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.i != 0
	case KindString:
		return v.s
	case KindComplex:
		return v.c
	case KindTime:
		return v.t
	case KindSequence, KindColumn:
		vals, _ := v.Elements()
		out := make([]any, len(vals))

		for i, e := range vals {
			out[i] = e.Native()
		}

		return out
	case KindTable:
		return v.tab
	case KindObject:
		return v.obj
	case KindCallable:
		return v.fn
	}

	return nil
}

// FromNative converts a plain Go value to a Value.
func FromNative(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Float(float64(x)), nil
		}

		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case complex64:
		return Complex(complex128(x)), nil
	case complex128:
		return Complex(x), nil
	case string:
		return String(x), nil
	case time.Time:
		return Time(x), nil
	case []Value:
		return Seq(x...), nil
	case []any:
		out := make([]Value, len(x))

		for i, e := range x {
			v, err := FromNative(e)
			if err != nil {
				return Null(), err
			}

			out[i] = v
		}

		return Seq(out...), nil
	case []int:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = Int(int64(e))
		}

		return Seq(out...), nil
	case []float64:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = Float(e)
		}

		return Seq(out...), nil
	case []string:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = String(e)
		}

		return Seq(out...), nil
	case Column:
		return ColumnValue(x), nil
	case Table:
		return TableValue(x), nil
	case Callable:
		return CallableValue(x), nil
	case Capabilities:
		return ObjectValue(x), nil
	}

	return Null(), ErrOperandType.With(
		slog.String("type", fmt.Sprintf("%T", x)),
	)
}
