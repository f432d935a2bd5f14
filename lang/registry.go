package lang

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Func adapts a Go function to a [Callable].
type Func struct {
	name   string
	params []string
	fn     func(context.Context, Arguments) (Value, error)
}

// NewFunc returns a callable named name that invokes fn.
func NewFunc(
	name string,
	fn func(context.Context, Arguments) (Value, error),
) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements [Callable].
func (f *Func) Name() string { return f.name }

// WithParams records the parameter names of f for [Params] and returns f.
func (f *Func) WithParams(params ...string) *Func {
	f.params = params

	return f
}

// Params returns the parameter names recorded with [Func.WithParams].
func (f *Func) Params() []string { return slices.Clone(f.params) }

// Call implements [Callable].
func (f *Func) Call(ctx context.Context, args Arguments) (Value, error) {
	return f.fn(ctx, args)
}

// Namespace is a named group of callables reached through a dotted prefix,
// such as "np.mean".
type Namespace interface {
	Lookup(name string) (Callable, bool)
	Names() []string
}

// FuncMap is a [Namespace] backed by a map.
type FuncMap map[string]Callable

// Lookup implements [Namespace].
func (m FuncMap) Lookup(name string) (Callable, bool) {
	fn, ok := m[name]

	return fn, ok
}

// Names implements [Namespace].
func (m FuncMap) Names() []string { return sortedKeys(m) }

// primitives returns the built-in callables gated by the policy allow-list.
func primitives() map[string]Callable {
	return map[string]Callable{
		"range":   NewFunc("range", callRange).WithParams("start", "stop", "step"),
		"map":     NewFunc("map", callMap).WithParams("function", "iterable"),
		"filter":  NewFunc("filter", callFilter).WithParams("function", "iterable"),
		"list":    NewFunc("list", callList).WithParams("iterable"),
		"bool":    NewFunc("bool", callBool).WithParams("x"),
		"int":     NewFunc("int", callInt).WithParams("x"),
		"float":   NewFunc("float", callFloat).WithParams("x"),
		"complex": NewFunc("complex", callComplex).WithParams("real", "imag"),
		"str":     NewFunc("str", callStr).WithParams("object"),
	}
}

// resolve returns the callable name refers to. The policy is consulted
// before any lookup.
func (e *Evaluator) resolve(ctx context.Context, name string) (Callable, error) {
	if !e.policy.IsAvailable(name) {
		e.logger.DebugContext(ctx, "function rejected by policy",
			slog.String("function", name),
		)

		return nil, ErrUnsupportedFunction.With(slog.String("function", name))
	}

	if fn, ok := e.funcs[name]; ok {
		return fn, nil
	}

	if prefix, member, ok := strings.Cut(name, "."); ok {
		if ns, ok := e.namespaces[prefix]; ok {
			if fn, ok := ns.Lookup(member); ok {
				return fn, nil
			}
		}
	}

	return nil, ErrUnsupportedFunction.With(slog.String("function", name))
}

// Lookup returns the callable an expression would reach through name,
// subject to the policy.
func (e *Evaluator) Lookup(ctx context.Context, name string) (Callable, error) {
	return e.resolve(ctx, name)
}

// Params returns the parameter names of fn, or nil if fn does not report
// them.
func Params(fn Callable) []string {
	if p, ok := fn.(interface{ Params() []string }); ok {
		return p.Params()
	}

	return nil
}

// Names returns every callable name an expression may reference under the
// current policy, sorted.
func (e *Evaluator) Names() []string {
	var names []string

	for name := range e.funcs {
		if e.policy.IsAvailable(name) {
			names = append(names, name)
		}
	}

	for prefix, ns := range e.namespaces {
		for _, member := range ns.Names() {
			if name := prefix + "." + member; e.policy.IsAvailable(name) {
				names = append(names, name)
			}
		}
	}

	slices.Sort(names)

	return names
}

// Iterate returns the elements of an iterable value: sequences, columns,
// the characters of a string, or the column names of a table.
func Iterate(v Value) ([]Value, bool) {
	if vals, ok := v.Elements(); ok {
		return vals, true
	}

	switch v.kind {
	case KindString:
		out := make([]Value, 0, len(v.s))
		for _, r := range v.s {
			out = append(out, String(string(r)))
		}

		return out, true

	case KindTable:
		names := v.tab.Columns()
		out := make([]Value, len(names))

		for i, name := range names {
			out[i] = String(name)
		}

		return out, true
	}

	return nil, false
}

func notIterable(fn string, v Value) *Error {
	return ErrOperandType.With(
		slog.String("function", fn),
		slog.String("operand", v.TypeName()),
		slog.String("reason", "object is not iterable"),
	)
}

func positionalOnly(fn string, args Arguments, lo, hi int) error {
	if len(args.Keyword) > 0 {
		return ErrArgumentCount.With(
			slog.String("function", fn),
			slog.String("unexpected", args.KeywordNames()[0]),
		)
	}

	return args.Expect(fn, lo, hi)
}

func callRange(_ context.Context, args Arguments) (Value, error) {
	if err := positionalOnly("range", args, 1, 3); err != nil {
		return Null(), err
	}

	bounds := make([]int64, len(args.Positional))

	for i, v := range args.Positional {
		n, ok := v.AsInt()
		if !ok {
			return Null(), operandError("range", v)
		}

		bounds[i] = n
	}

	start, stop, step := int64(0), bounds[0], int64(1)

	if len(bounds) > 1 {
		start, stop = bounds[0], bounds[1]
	}

	if len(bounds) > 2 {
		step = bounds[2]
	}

	if step == 0 {
		return Null(), ErrArithmetic.With(
			slog.String("function", "range"),
			slog.String("reason", "arg 3 must not be zero"),
		)
	}

	n := rangeLen(start, stop, step)
	if n > MaxSequenceLength {
		return Null(), ErrArithmetic.With(
			slog.String("function", "range"),
			slog.String("reason", "range too long"),
		)
	}

	out := make([]Value, int(n))
	for k := range out {
		out[k] = Int(start + int64(k)*step)
	}

	return Seq(out...), nil
}

// rangeLen returns the number of values range(start, stop, step) yields.
func rangeLen(start, stop, step int64) float64 {
	n := math.Ceil((float64(stop) - float64(start)) / float64(step))

	return max(n, 0)
}

func callMap(ctx context.Context, args Arguments) (Value, error) {
	if err := positionalOnly("map", args, 2, math.MaxInt); err != nil {
		return Null(), err
	}

	fn, ok := args.Positional[0].AsCallable()
	if !ok {
		return Null(), operandError("map", args.Positional[0])
	}

	iters := make([][]Value, len(args.Positional)-1)
	n := math.MaxInt

	for i, v := range args.Positional[1:] {
		vals, ok := Iterate(v)
		if !ok {
			return Null(), notIterable("map", v)
		}

		iters[i] = vals
		n = min(n, len(vals))
	}

	out := make([]Value, n)

	for i := range out {
		call := make([]Value, len(iters))
		for j, vals := range iters {
			call[j] = vals[i]
		}

		r, err := fn.Call(ctx, Args(call...))
		if err != nil {
			return Null(), err
		}

		out[i] = r
	}

	return Seq(out...), nil
}

func callFilter(ctx context.Context, args Arguments) (Value, error) {
	if err := positionalOnly("filter", args, 2, 2); err != nil {
		return Null(), err
	}

	vals, ok := Iterate(args.Positional[1])
	if !ok {
		return Null(), notIterable("filter", args.Positional[1])
	}

	var fn Callable

	if f := args.Positional[0]; !f.IsNull() {
		if fn, ok = f.AsCallable(); !ok {
			return Null(), operandError("filter", f)
		}
	}

	var out []Value

	for _, v := range vals {
		keep := v

		if fn != nil {
			r, err := fn.Call(ctx, Args(v))
			if err != nil {
				return Null(), err
			}

			keep = r
		}

		if keep.Truthy() {
			out = append(out, v)
		}
	}

	return Seq(out...), nil
}

func callList(_ context.Context, args Arguments) (Value, error) {
	if err := positionalOnly("list", args, 0, 1); err != nil {
		return Null(), err
	}

	if len(args.Positional) == 0 {
		return Seq(), nil
	}

	vals, ok := Iterate(args.Positional[0])
	if !ok {
		return Null(), notIterable("list", args.Positional[0])
	}

	return Seq(slices.Clone(vals)...), nil
}

func callBool(_ context.Context, args Arguments) (Value, error) {
	if err := positionalOnly("bool", args, 0, 1); err != nil {
		return Null(), err
	}

	if len(args.Positional) == 0 {
		return Bool(false), nil
	}

	return ToBool(args.Positional[0])
}

func callInt(_ context.Context, args Arguments) (Value, error) {
	if err := positionalOnly("int", args, 0, 1); err != nil {
		return Null(), err
	}

	if len(args.Positional) == 0 {
		return Int(0), nil
	}

	return ToInt(args.Positional[0])
}

func callFloat(_ context.Context, args Arguments) (Value, error) {
	if err := positionalOnly("float", args, 0, 1); err != nil {
		return Null(), err
	}

	if len(args.Positional) == 0 {
		return Float(0), nil
	}

	return ToFloat(args.Positional[0])
}

func callComplex(_ context.Context, args Arguments) (Value, error) {
	if err := args.Expect("complex", 0, 2); err != nil {
		return Null(), err
	}

	re, hasRe := args.Lookup(0, "real")
	im, hasIm := args.Lookup(1, "imag")

	if !hasRe {
		re = Int(0)
	}

	if s, ok := re.AsString(); ok {
		if hasIm {
			return Null(), operandError("complex", re, im)
		}

		return parseComplex(s)
	}

	x, err := ToComplex(re)
	if err != nil {
		return Null(), err
	}

	if !hasIm {
		return Complex(x), nil
	}

	y, err := ToComplex(im)
	if err != nil {
		return Null(), err
	}

	return Complex(x + y*1i), nil
}

func callStr(_ context.Context, args Arguments) (Value, error) {
	if err := positionalOnly("str", args, 0, 1); err != nil {
		return Null(), err
	}

	if len(args.Positional) == 0 {
		return String(""), nil
	}

	return String(args.Positional[0].String()), nil
}

// ToBool converts v by truth testing. Vectors have no single truth value.
func ToBool(v Value) (Value, error) {
	if v.IsVector() {
		return Null(), ErrOperandType.With(
			slog.String("function", "bool"),
			slog.String("operand", v.TypeName()),
			slog.String("reason", "truth value of a vector is ambiguous"),
		)
	}

	return Bool(v.Truthy()), nil
}

// ToInt converts v to an integer, truncating floats toward zero and parsing
// decimal strings.
func ToInt(v Value) (Value, error) {
	switch v.kind {
	case KindInt:
		return v, nil

	case KindBool:
		return Int(v.i), nil

	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return Null(), ErrArithmetic.With(
				slog.String("function", "int"),
				slog.String("reason", "cannot convert "+formatFloat(v.f)+" to integer"),
			)
		}

		t := math.Trunc(v.f)
		if t < math.MinInt64 || t >= math.MaxInt64 {
			return Null(), ErrArithmetic.With(
				slog.String("function", "int"),
				slog.String("reason", formatFloat(v.f)+" overflows int64"),
			)
		}

		return Int(int64(t)), nil

	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return Null(), ErrOperandType.Wrap(err).With(
				slog.String("function", "int"),
				slog.String("operand", v.Repr()),
			)
		}

		return Int(n), nil
	}

	return Null(), operandError("int", v)
}

// ToFloat converts v to a float, parsing strings such as "1.5" or "nan".
func ToFloat(v Value) (Value, error) {
	if f, ok := v.AsFloat(); ok {
		return Float(f), nil
	}

	if s, ok := v.AsString(); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Null(), ErrOperandType.Wrap(err).With(
				slog.String("function", "float"),
				slog.String("operand", v.Repr()),
			)
		}

		return Float(f), nil
	}

	return Null(), operandError("float", v)
}

// ToComplex converts a number to complex128.
func ToComplex(v Value) (complex128, error) {
	c, ok := v.AsComplex()
	if !ok {
		return 0, operandError("complex", v)
	}

	return c, nil
}

func parseComplex(s string) (Value, error) {
	text := strings.TrimSpace(s)
	text = strings.TrimSuffix(strings.TrimPrefix(text, "("), ")")
	text = strings.NewReplacer("j", "i", "J", "i").Replace(text)

	c, err := strconv.ParseComplex(text, 128)
	if err != nil {
		return Null(), ErrOperandType.Wrap(err).With(
			slog.String("function", "complex"),
			slog.String("operand", String(s).Repr()),
		)
	}

	return Complex(c), nil
}
