package lang

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/builtin"
	"github.com/expr-lang/expr/vm"
)

// numericFunc is a member of the numeric namespace. Its arguments are bound
// to numpy-style parameter names and passed positionally, as a0, a1, ...,
// to a fixed expr program.
type numericFunc struct {
	name     string
	params   []string
	defaults map[string]Value
	program  string
	// builtin names the expr builtin the program depends on, if any.
	builtin string
	// elementwise functions map over vector arguments.
	elementwise bool
}

var numericFuncs = []numericFunc{
	{name: "mean", params: []string{"a", "axis"}, program: "mean(a0)", builtin: "mean"},
	{name: "average", params: []string{"a", "axis"}, program: "mean(a0)", builtin: "mean"},
	{name: "median", params: []string{"a", "axis"}, program: "median(a0)", builtin: "median"},
	{name: "sum", params: []string{"a", "axis"}, program: "sum(a0)", builtin: "sum"},
	{name: "max", params: []string{"a", "axis"}, program: "max(a0)", builtin: "max"},
	{name: "amax", params: []string{"a", "axis"}, program: "max(a0)", builtin: "max"},
	{name: "min", params: []string{"a", "axis"}, program: "min(a0)", builtin: "min"},
	{name: "amin", params: []string{"a", "axis"}, program: "min(a0)", builtin: "min"},
	{name: "prod", params: []string{"a", "axis"}, program: "reduce(a0, #acc * #, 1)", builtin: "reduce"},
	{
		name:    "var",
		params:  []string{"a", "axis"},
		program: "let m = mean(a0); mean(map(a0, (# - m) ** 2))",
		builtin: "mean",
	},
	{
		name:    "std",
		params:  []string{"a", "axis"},
		program: "let m = mean(a0); mean(map(a0, (# - m) ** 2)) ** 0.5",
		builtin: "mean",
	},
	{name: "argmax", params: []string{"a", "axis"}, program: "findIndex(a0, # == max(a0))", builtin: "findIndex"},
	{name: "argmin", params: []string{"a", "axis"}, program: "findIndex(a0, # == min(a0))", builtin: "findIndex"},
	{name: "size", params: []string{"a", "axis"}, program: "len(a0)", builtin: "len"},
	{name: "sort", params: []string{"a", "axis"}, program: "sort(a0)", builtin: "sort"},
	{name: "unique", params: []string{"ar"}, program: "sort(uniq(a0))", builtin: "uniq"},
	{name: "flip", params: []string{"m", "axis"}, program: "reverse(a0)", builtin: "reverse"},
	{name: "concatenate", params: []string{"a", "b"}, program: "concat(a0, a1)", builtin: "concat"},
	{name: "abs", params: []string{"x"}, program: "abs(a0)", builtin: "abs", elementwise: true},
	{name: "absolute", params: []string{"x"}, program: "abs(a0)", builtin: "abs", elementwise: true},
	{name: "ceil", params: []string{"x"}, program: "ceil(a0)", builtin: "ceil", elementwise: true},
	{name: "floor", params: []string{"x"}, program: "floor(a0)", builtin: "floor", elementwise: true},
	{
		name:        "round",
		params:      []string{"a", "decimals"},
		defaults:    map[string]Value{"decimals": Int(0)},
		program:     "round(a0 * 10 ** a1) / 10 ** a1",
		builtin:     "round",
		elementwise: true,
	},
	{name: "sqrt", params: []string{"x"}, program: "a0 ** 0.5", elementwise: true},
	{name: "square", params: []string{"x"}, program: "a0 * a0", elementwise: true},
	{name: "power", params: []string{"x1", "x2"}, program: "a0 ** a1", elementwise: true},
	{name: "isnan", params: []string{"x"}, program: "a0 != a0", elementwise: true},
	{name: "sign", params: []string{"x"}, program: "a0 > 0 ? 1 : a0 < 0 ? -1 : 0", elementwise: true},
	{name: "where", params: []string{"condition", "x", "y"}, program: "a0 ? a1 : a2", elementwise: true},
	{
		name:        "clip",
		params:      []string{"a", "a_min", "a_max"},
		program:     "max(min(a0, a2), a1)",
		builtin:     "max",
		elementwise: true,
	},
}

// NumericNamespace returns the numeric namespace registered by default under
// the "np" and "numpy" prefixes.
func NumericNamespace() Namespace {
	ns := make(FuncMap, len(numericFuncs))

	for i := range numericFuncs {
		f := &numericFuncs[i]
		if f.builtin != "" {
			if _, ok := builtin.Index[f.builtin]; !ok {
				continue
			}
		}

		ns[f.name] = f
	}

	return ns
}

// Name implements [Callable].
func (f *numericFunc) Name() string { return "np." + f.name }

// Params returns the numpy parameter names of f.
func (f *numericFunc) Params() []string { return slices.Clone(f.params) }

// Call implements [Callable].
func (f *numericFunc) Call(ctx context.Context, args Arguments) (Value, error) {
	bound, err := args.Bind(f.Name(), f.params...)
	if err != nil {
		return Null(), err
	}

	var operands []Value

	for _, p := range f.params {
		v, ok := bound[p]

		if p == "axis" {
			if ok && !v.IsNull() {
				return Null(), ErrOperandType.With(
					slog.String("function", f.Name()),
					slog.String("axis", v.Repr()),
					slog.String("reason", "axis must be None"),
				)
			}

			continue
		}

		if !ok {
			if v, ok = f.defaults[p]; !ok {
				return Null(), ErrArgumentCount.With(
					slog.String("function", f.Name()),
					slog.String("missing", p),
				)
			}
		}

		operands = append(operands, v)
	}

	if f.elementwise {
		return f.broadcast(ctx, operands)
	}

	return f.run(ctx, operands)
}

// broadcast runs the program once per element of the vector operands.
// Scalars are reused for every element.
func (f *numericFunc) broadcast(ctx context.Context, operands []Value) (Value, error) {
	var (
		base Column
		n    = -1
		vals = make([][]Value, len(operands))
	)

	for i, v := range operands {
		elems, ok := v.Elements()
		if !ok {
			continue
		}

		if c, ok := v.AsColumn(); ok && base == nil {
			base = c
		}

		if n >= 0 && len(elems) != n {
			return Null(), lengthError(f.Name(), n, len(elems))
		}

		n = len(elems)
		vals[i] = elems
	}

	if n < 0 {
		return f.run(ctx, operands)
	}

	out := make([]Value, n)
	row := make([]Value, len(operands))

	for j := range out {
		for i, v := range operands {
			if vals[i] != nil {
				row[i] = vals[i][j]
			} else {
				row[i] = v
			}
		}

		r, err := f.run(ctx, row)
		if err != nil {
			return Null(), err
		}

		out[j] = r
	}

	if base != nil {
		return ColumnValue(base.Derive(out)), nil
	}

	return Seq(out...), nil
}

// programs caches compiled programs by source and operand types.
var programs sync.Map

func (f *numericFunc) run(ctx context.Context, operands []Value) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Null(), err
	}

	env := make(map[string]any, len(operands))
	sig := make([]string, len(operands))

	for i, v := range operands {
		env[fmt.Sprintf("a%d", i)] = v.Native()
		sig[i] = fmt.Sprintf("%T", env[fmt.Sprintf("a%d", i)])
	}

	key := f.program + "|" + strings.Join(sig, ",")

	var program *vm.Program

	if p, ok := programs.Load(key); ok {
		program, _ = p.(*vm.Program)
	}

	if program == nil {
		p, err := expr.Compile(f.program, expr.Env(env))
		if err != nil {
			return Null(), ErrOperandType.Wrap(err).With(slog.String("function", f.Name()))
		}

		programs.Store(key, p)
		program = p
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return Null(), ErrOperandType.Wrap(err).With(slog.String("function", f.Name()))
	}

	return FromNative(out)
}
