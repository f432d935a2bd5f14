package lang

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// Closure is a lambda expression bound to the table and locals that were in
// scope where it was written.
type Closure struct {
	eval   *Evaluator
	table  Table
	locals map[string]Value
	params []string
	body   string
}

func (e *Evaluator) closure(sc scope, params []string, body string) *Closure {
	return &Closure{
		eval:   e,
		table:  sc.table,
		locals: maps.Clone(sc.locals),
		params: params,
		body:   body,
	}
}

// Name implements [Callable].
func (c *Closure) Name() string { return "<lambda>" }

// Params returns the parameter names in declaration order.
func (c *Closure) Params() []string { return c.params }

// String renders the closure as lambda source.
func (c *Closure) String() string {
	return "lambda " + strings.Join(c.params, ", ") + ": " + c.body
}

// Call binds args to the parameters and evaluates the body. Keyword
// arguments that name no parameter are bound into the body scope as well.
// Both shadow captured locals of the same name.
func (c *Closure) Call(ctx context.Context, args Arguments) (Value, error) {
	extra := make(map[string]Value)

	for _, name := range args.KeywordNames() {
		if !slices.Contains(c.params, name) {
			extra[name] = args.Keyword[name]
		}
	}

	for name := range extra {
		args = args.withoutKeyword(name)
	}

	bound, err := args.Bind(c.Name(), c.params...)
	if err != nil {
		return Null(), err
	}

	for _, p := range c.params {
		if _, ok := bound[p]; !ok {
			return Null(), ErrArgumentCount.With(
				slog.String("function", c.Name()),
				slog.String("missing", p),
			)
		}
	}

	locals := make(map[string]Value, len(c.locals)+len(extra)+len(bound))
	maps.Copy(locals, c.locals)
	maps.Copy(locals, extra)
	maps.Copy(locals, bound)

	return c.eval.evaluate(ctx, c.body, scope{table: c.table, locals: locals})
}
