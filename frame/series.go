package frame

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"math/cmplx"
	"slices"
	"strings"

	"github.com/ardnew/safeval/lang"
)

var aggregateParams = []string{"axis", "skipna", "numeric_only", "level"}

var columnMethods map[string]signature[*Column]

func init() {
	columnMethods = map[string]signature[*Column]{
		"apply":       {params: []string{"func", "convert_dtype"}, fn: columnApply("func")},
		"map":         {params: []string{"arg", "na_action"}, fn: columnApply("arg")},
		"astype":      {params: []string{"dtype", "copy", "errors"}, fn: columnAstype},
		"max":         {params: aggregateParams, fn: reduce(maxOf)},
		"min":         {params: aggregateParams, fn: reduce(minOf)},
		"sum":         {params: aggregateParams, fn: reduce(sumOf)},
		"mean":        {params: aggregateParams, fn: reduce(meanOf)},
		"median":      {params: aggregateParams, fn: reduce(medianOf)},
		"std":         {params: append([]string{"ddof"}, aggregateParams...), fn: columnSpread(true)},
		"var":         {params: append([]string{"ddof"}, aggregateParams...), fn: columnSpread(false)},
		"count":       {params: []string{"level"}, fn: reduce(countOf)},
		"any":         {params: aggregateParams, fn: reduce(anyOf)},
		"all":         {params: aggregateParams, fn: reduce(allOf)},
		"idxmax":      {params: aggregateParams, fn: columnArg(maxOf)},
		"idxmin":      {params: aggregateParams, fn: columnArg(minOf)},
		"quantile":    {params: []string{"q", "interpolation"}, fn: columnQuantile},
		"abs":         {fn: elementwise(absOf)},
		"round":       {params: []string{"decimals"}, fn: columnRound},
		"cumsum":      {params: aggregateParams, fn: columnCumsum},
		"head":        {params: []string{"n"}, fn: columnSlice(true)},
		"tail":        {params: []string{"n"}, fn: columnSlice(false)},
		"unique":      {fn: columnUnique},
		"nunique":     {params: []string{"dropna"}, fn: columnNunique},
		"isin":        {params: []string{"values"}, fn: columnIsin},
		"isna":        {fn: elementwise(isMissing)},
		"isnull":      {fn: elementwise(isMissing)},
		"notna":       {fn: elementwise(isPresent)},
		"notnull":     {fn: elementwise(isPresent)},
		"fillna":      {params: []string{"value"}, fn: columnFillna},
		"between":     {params: []string{"left", "right", "inclusive"}, fn: columnBetween},
		"tolist":      {fn: columnList},
		"to_list":     {fn: columnList},
		"sort_values": {params: []string{"ascending", "ignore_index", "na_position"}, fn: columnSort},
	}
}

// Apply calls fn with every element of c and collects the results in a
// column sharing c's index.
func (c *Column) Apply(ctx context.Context, fn lang.Callable) (*Column, error) {
	out := make([]lang.Value, c.Len())

	for i, v := range c.values {
		r, err := fn.Call(ctx, lang.Args(v))
		if err != nil {
			return nil, err
		}

		out[i] = r
	}

	return c.with(out, c.index), nil
}

func columnApply(param string) method[*Column] {
	return func(ctx context.Context, c *Column, p params) (lang.Value, error) {
		fn, err := p.callable(param)
		if err != nil {
			return lang.Null(), err
		}

		r, err := c.Apply(ctx, fn)
		if err != nil {
			return lang.Null(), err
		}

		return lang.ColumnValue(r), nil
	}
}

func columnAstype(ctx context.Context, c *Column, p params) (lang.Value, error) {
	dtype, err := p.required("dtype")
	if err != nil {
		return lang.Null(), err
	}

	fn, ok := dtype.AsCallable()
	if !ok {
		name, ok := dtype.AsString()
		if !ok {
			return lang.Null(), p.invalid("dtype", dtype)
		}

		if fn, ok = converter(name); !ok {
			return lang.Null(), lang.ErrOperandType.With(
				slog.String("method", "astype"),
				slog.String("dtype", name),
				slog.String("reason", "data type not understood"),
			)
		}
	}

	r, err := c.Apply(ctx, fn)
	if err != nil {
		return lang.Null(), err
	}

	return lang.ColumnValue(r), nil
}

// converter maps a dtype name to the conversion applied to each element.
func converter(dtype string) (lang.Callable, bool) {
	var conv func(lang.Value) (lang.Value, error)

	switch strings.ToLower(dtype) {
	case "int", "int64", "int32", "int16", "int8":
		conv = lang.ToInt
	case "float", "float64", "float32":
		conv = lang.ToFloat
	case "bool":
		conv = lang.ToBool
	case "str", "string", "object":
		conv = func(v lang.Value) (lang.Value, error) { return lang.String(v.String()), nil }
	case "complex", "complex128", "complex64":
		conv = func(v lang.Value) (lang.Value, error) {
			c, err := lang.ToComplex(v)

			return lang.Complex(c), err
		}
	case "datetime64", "datetime64[ns]", "datetime":
		conv = toDatetime
	default:
		return nil, false
	}

	return lang.NewFunc(dtype, func(_ context.Context, args lang.Arguments) (lang.Value, error) {
		if err := args.Expect(dtype, 1, 1); err != nil {
			return lang.Null(), err
		}

		return conv(args.Positional[0])
	}), true
}

// present returns the values of c that are not missing.
func (c *Column) present() []lang.Value {
	out := make([]lang.Value, 0, len(c.values))

	for _, v := range c.values {
		if !lang.IsMissing(v) {
			out = append(out, v)
		}
	}

	return out
}

func reduce(fn func([]lang.Value) (lang.Value, error)) method[*Column] {
	return func(_ context.Context, c *Column, p params) (lang.Value, error) {
		if axis, ok := p.value("axis"); ok {
			if n, _ := axis.AsInt(); n != 0 {
				return lang.Null(), p.invalid("axis", axis)
			}
		}

		return fn(c.present())
	}
}

func extreme(values []lang.Value, want int) (int, error) {
	best := -1

	for i, v := range values {
		if best < 0 {
			best = i

			continue
		}

		c, err := lang.Compare(v, values[best])
		if err != nil {
			return -1, err
		}

		if c == want {
			best = i
		}
	}

	return best, nil
}

func maxOf(values []lang.Value) (lang.Value, error) {
	i, err := extreme(values, 1)
	if err != nil || i < 0 {
		return lang.Float(math.NaN()), err
	}

	return values[i], nil
}

func minOf(values []lang.Value) (lang.Value, error) {
	i, err := extreme(values, -1)
	if err != nil || i < 0 {
		return lang.Float(math.NaN()), err
	}

	return values[i], nil
}

func sumOf(values []lang.Value) (lang.Value, error) {
	total := lang.Int(0)

	for i, v := range values {
		if i == 0 && v.Kind() == lang.KindString {
			total = lang.String("")
		}

		r, err := lang.Binary("+", total, v)
		if err != nil {
			return lang.Null(), err
		}

		total = r
	}

	return total, nil
}

func floats(values []lang.Value) ([]float64, error) {
	out := make([]float64, len(values))

	for i, v := range values {
		f, ok := v.AsFloat()
		if !ok {
			return nil, lang.ErrOperandType.With(
				slog.String("operand", v.TypeName()),
				slog.String("reason", "numeric values required"),
			)
		}

		out[i] = f
	}

	return out, nil
}

func meanOf(values []lang.Value) (lang.Value, error) {
	fs, err := floats(values)
	if err != nil || len(fs) == 0 {
		return lang.Float(math.NaN()), err
	}

	return lang.Float(mean(fs)), nil
}

func mean(fs []float64) float64 {
	total := 0.0
	for _, f := range fs {
		total += f
	}

	return total / float64(len(fs))
}

func medianOf(values []lang.Value) (lang.Value, error) {
	return quantileOf(values, 0.5)
}

func quantileOf(values []lang.Value, q float64) (lang.Value, error) {
	fs, err := floats(values)
	if err != nil || len(fs) == 0 {
		return lang.Float(math.NaN()), err
	}

	slices.Sort(fs)

	pos := q * float64(len(fs)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)

	return lang.Float(fs[int(lo)] + (fs[int(hi)]-fs[int(lo)])*(pos-lo)), nil
}

func countOf(values []lang.Value) (lang.Value, error) {
	return lang.Int(int64(len(values))), nil
}

func anyOf(values []lang.Value) (lang.Value, error) {
	return lang.Bool(slices.ContainsFunc(values, lang.Value.Truthy)), nil
}

func allOf(values []lang.Value) (lang.Value, error) {
	for _, v := range values {
		if !v.Truthy() {
			return lang.Bool(false), nil
		}
	}

	return lang.Bool(true), nil
}

func columnSpread(root bool) method[*Column] {
	return func(_ context.Context, c *Column, p params) (lang.Value, error) {
		ddof, err := p.int("ddof", 1)
		if err != nil {
			return lang.Null(), err
		}

		fs, err := floats(c.present())
		if err != nil {
			return lang.Null(), err
		}

		if len(fs)-ddof <= 0 {
			return lang.Float(math.NaN()), nil
		}

		m := mean(fs)
		ss := 0.0

		for _, f := range fs {
			ss += (f - m) * (f - m)
		}

		v := ss / float64(len(fs)-ddof)
		if root {
			v = math.Sqrt(v)
		}

		return lang.Float(v), nil
	}
}

// columnArg returns the index label of the value selected by pick.
func columnArg(pick func([]lang.Value) (lang.Value, error)) method[*Column] {
	return func(_ context.Context, c *Column, _ params) (lang.Value, error) {
		v, err := pick(c.present())
		if err != nil {
			return lang.Null(), err
		}

		for i, e := range c.values {
			if e.Equal(v) {
				return lang.Int(int64(c.index[i])), nil
			}
		}

		return lang.Float(math.NaN()), nil
	}
}

func columnQuantile(_ context.Context, c *Column, p params) (lang.Value, error) {
	interp, err := p.string("interpolation", "linear")
	if err != nil {
		return lang.Null(), err
	}

	if interp != "linear" {
		return lang.Null(), p.invalid("interpolation", lang.String(interp))
	}

	q, ok := p.value("q")
	if !ok {
		q = lang.Float(0.5)
	}

	one := func(q lang.Value) (lang.Value, error) {
		f, ok := q.AsFloat()
		if !ok || f < 0 || f > 1 {
			return lang.Null(), lang.ErrOperandType.With(
				slog.String("method", "quantile"),
				slog.String("q", q.Repr()),
				slog.String("reason", "percentiles should all be in the interval [0, 1]"),
			)
		}

		return quantileOf(c.present(), f)
	}

	qs, ok := lang.Iterate(q)
	if !ok || q.Kind() == lang.KindString {
		return one(q)
	}

	out := make([]lang.Value, len(qs))

	for i, e := range qs {
		r, err := one(e)
		if err != nil {
			return lang.Null(), err
		}

		out[i] = r
	}

	return lang.Seq(out...), nil
}

func elementwise(fn func(lang.Value) lang.Value) method[*Column] {
	return func(_ context.Context, c *Column, _ params) (lang.Value, error) {
		out := make([]lang.Value, c.Len())
		for i, v := range c.values {
			out[i] = fn(v)
		}

		return lang.ColumnValue(c.with(out, c.index)), nil
	}
}

func absOf(v lang.Value) lang.Value {
	switch v.Kind() {
	case lang.KindInt, lang.KindBool:
		n, _ := v.AsInt()
		if n < 0 {
			n = -n
		}

		return lang.Int(n)
	case lang.KindFloat:
		f, _ := v.AsFloat()

		return lang.Float(math.Abs(f))
	case lang.KindComplex:
		c, _ := v.AsComplex()

		return lang.Float(cmplx.Abs(c))
	}

	return v
}

func isMissing(v lang.Value) lang.Value { return lang.Bool(lang.IsMissing(v)) }

func isPresent(v lang.Value) lang.Value { return lang.Bool(!lang.IsMissing(v)) }

func columnRound(ctx context.Context, c *Column, p params) (lang.Value, error) {
	decimals, err := p.int("decimals", 0)
	if err != nil {
		return lang.Null(), err
	}

	scale := math.Pow(10, float64(decimals))

	return elementwise(func(v lang.Value) lang.Value {
		switch v.Kind() {
		case lang.KindFloat:
			f, _ := v.AsFloat()

			return lang.Float(math.RoundToEven(f*scale) / scale)
		case lang.KindInt:
			if decimals < 0 {
				f, _ := v.AsFloat()

				return lang.Int(int64(math.RoundToEven(f*scale) / scale))
			}
		}

		return v
	})(ctx, c, p)
}

func columnCumsum(_ context.Context, c *Column, _ params) (lang.Value, error) {
	out := make([]lang.Value, c.Len())
	total := lang.Int(0)

	for i, v := range c.values {
		if lang.IsMissing(v) {
			out[i] = v

			continue
		}

		r, err := lang.Binary("+", total, v)
		if err != nil {
			return lang.Null(), err
		}

		total = r
		out[i] = r
	}

	return lang.ColumnValue(c.with(out, c.index)), nil
}

// window returns the bounds of the first (head) or last n rows of a
// sequence of length size. A negative n excludes that many rows from the
// other end.
func window(size, n int, head bool) (int, int) {
	if n < 0 {
		n = max(size+n, 0)
	}

	n = min(n, size)

	if head {
		return 0, n
	}

	return size - n, size
}

func columnSlice(head bool) method[*Column] {
	return func(_ context.Context, c *Column, p params) (lang.Value, error) {
		n, err := p.int("n", 5)
		if err != nil {
			return lang.Null(), err
		}

		lo, hi := window(c.Len(), n, head)

		return lang.ColumnValue(c.with(
			slices.Clone(c.values[lo:hi]),
			slices.Clone(c.index[lo:hi]),
		)), nil
	}
}

func distinct(values []lang.Value) []lang.Value {
	var out []lang.Value

	nan := false

	for _, v := range values {
		if f, ok := v.AsFloat(); ok && v.Kind() == lang.KindFloat && math.IsNaN(f) {
			if !nan {
				nan = true

				out = append(out, v)
			}

			continue
		}

		if !slices.ContainsFunc(out, v.Equal) {
			out = append(out, v)
		}
	}

	return out
}

func columnUnique(_ context.Context, c *Column, _ params) (lang.Value, error) {
	return lang.Seq(distinct(c.values)...), nil
}

func columnNunique(_ context.Context, c *Column, p params) (lang.Value, error) {
	dropna, err := p.bool("dropna", true)
	if err != nil {
		return lang.Null(), err
	}

	values := c.values
	if dropna {
		values = c.present()
	}

	return lang.Int(int64(len(distinct(values)))), nil
}

func columnIsin(ctx context.Context, c *Column, p params) (lang.Value, error) {
	v, err := p.required("values")
	if err != nil {
		return lang.Null(), err
	}

	set, ok := lang.Iterate(v)
	if !ok || v.Kind() == lang.KindString {
		return lang.Null(), p.invalid("values", v)
	}

	return elementwise(func(e lang.Value) lang.Value {
		return lang.Bool(slices.ContainsFunc(set, e.Equal))
	})(ctx, c, p)
}

func columnFillna(ctx context.Context, c *Column, p params) (lang.Value, error) {
	fill, err := p.required("value")
	if err != nil {
		return lang.Null(), err
	}

	return elementwise(func(v lang.Value) lang.Value {
		if lang.IsMissing(v) {
			return fill
		}

		return v
	})(ctx, c, p)
}

func columnBetween(_ context.Context, c *Column, p params) (lang.Value, error) {
	left, err := p.required("left")
	if err != nil {
		return lang.Null(), err
	}

	right, err := p.required("right")
	if err != nil {
		return lang.Null(), err
	}

	inclusive, err := p.string("inclusive", "both")
	if err != nil {
		return lang.Null(), err
	}

	lo, hi := ">=", "<="

	switch inclusive {
	case "both":
	case "neither":
		lo, hi = ">", "<"
	case "left":
		hi = "<"
	case "right":
		lo = ">"
	default:
		return lang.Null(), p.invalid("inclusive", lang.String(inclusive))
	}

	out := make([]lang.Value, c.Len())

	for i, v := range c.values {
		if lang.IsMissing(v) {
			out[i] = lang.Bool(false)

			continue
		}

		a, err := lang.Binary(lo, v, left)
		if err != nil {
			return lang.Null(), err
		}

		b, err := lang.Binary(hi, v, right)
		if err != nil {
			return lang.Null(), err
		}

		out[i] = lang.Bool(a.Truthy() && b.Truthy())
	}

	return lang.ColumnValue(c.with(out, c.index)), nil
}

func columnList(_ context.Context, c *Column, _ params) (lang.Value, error) {
	return lang.Seq(c.Values()...), nil
}

// order returns the stable permutation that sorts the rows described by
// keys. Missing values sort last regardless of direction.
func order(n int, keys []*Column, ascending []bool) ([]int, error) {
	perm := rangeIndex(n)

	var failed error

	slices.SortStableFunc(perm, func(i, j int) int {
		for k, key := range keys {
			a, b := key.values[i], key.values[j]
			am, bm := lang.IsMissing(a), lang.IsMissing(b)

			switch {
			case am && bm:
				continue
			case am:
				return 1
			case bm:
				return -1
			}

			c, err := lang.Compare(a, b)
			if err != nil {
				failed = cmp.Or(failed, err)

				return 0
			}

			if !ascending[k] {
				c = -c
			}

			if c != 0 {
				return c
			}
		}

		return 0
	})

	return perm, failed
}

func (c *Column) take(perm []int, ignoreIndex bool) *Column {
	values := make([]lang.Value, len(perm))
	index := make([]int, len(perm))

	for i, j := range perm {
		values[i] = c.values[j]
		index[i] = c.index[j]
	}

	if ignoreIndex {
		index = rangeIndex(len(perm))
	}

	return c.with(values, index)
}

func columnSort(_ context.Context, c *Column, p params) (lang.Value, error) {
	ascending, err := p.bool("ascending", true)
	if err != nil {
		return lang.Null(), err
	}

	ignoreIndex, err := p.bool("ignore_index", false)
	if err != nil {
		return lang.Null(), err
	}

	perm, err := order(c.Len(), []*Column{c}, []bool{ascending})
	if err != nil {
		return lang.Null(), err
	}

	return lang.ColumnValue(c.take(perm, ignoreIndex)), nil
}
