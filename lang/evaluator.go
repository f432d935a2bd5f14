package lang

import (
	"context"
	"log/slog"
	"maps"

	"github.com/ardnew/safeval/log"
)

// Default evaluation limits.
const (
	DefaultMaxDepth  = 100
	DefaultMaxLength = 10000
)

// Evaluator evaluates expressions under a fixed policy. It is safe for
// concurrent use.
type Evaluator struct {
	policy     *Policy
	logger     log.Logger
	funcs      map[string]Callable
	namespaces map[string]Namespace
	cache      *tokenCache
	maxDepth   int
	maxLength  int
}

// Option configures an [Evaluator].
type Option func(*Evaluator)

// WithPolicy sets the security policy. A nil policy selects
// [DefaultPolicy].
func WithPolicy(p *Policy) Option {
	return func(e *Evaluator) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithMaxDepth sets the maximum nesting of sub-evaluations (call arguments,
// ternary branches and lambda bodies).
func WithMaxDepth(depth int) Option {
	return func(e *Evaluator) {
		e.maxDepth = depth
	}
}

// WithMaxLength sets the maximum length in bytes of an expression.
func WithMaxLength(n int) Option {
	return func(e *Evaluator) {
		e.maxLength = n
	}
}

// WithNamespace registers ns under prefix, so that "prefix.name" resolves to
// ns.Lookup("name"). The policy must still permit the dotted name.
func WithNamespace(prefix string, ns Namespace) Option {
	return func(e *Evaluator) {
		e.namespaces[prefix] = ns
	}
}

// WithFunc registers an additional top-level callable. The policy must
// still permit its name.
func WithFunc(fn Callable) Option {
	return func(e *Evaluator) {
		e.funcs[fn.Name()] = fn
	}
}

// WithCacheSize sets the number of lexed expressions retained. Zero
// disables caching.
func WithCacheSize(n int) Option {
	return func(e *Evaluator) {
		e.cache = &tokenCache{limit: n}
	}
}

// New returns an evaluator configured by opts.
func New(opts ...Option) *Evaluator {
	numeric := NumericNamespace()

	e := &Evaluator{
		policy: DefaultPolicy(),
		funcs:  primitives(),
		namespaces: map[string]Namespace{
			"np":    numeric,
			"numpy": numeric,
		},
		cache:     &tokenCache{limit: DefaultCacheSize},
		maxDepth:  DefaultMaxDepth,
		maxLength: DefaultMaxLength,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Policy returns the evaluator's security policy.
func (e *Evaluator) Policy() *Policy { return e.policy }

// Logger returns the evaluator's logger.
func (e *Evaluator) Logger() log.Logger { return e.logger }

// EvalOption binds the environment of a single evaluation.
type EvalOption func(*scope)

// WithTable binds the table that column references resolve against.
func WithTable(t Table) EvalOption {
	return func(sc *scope) {
		sc.table = t
	}
}

// WithLocals binds named values. Later bindings replace earlier ones.
func WithLocals(locals map[string]Value) EvalOption {
	return func(sc *scope) {
		if sc.locals == nil {
			sc.locals = make(map[string]Value, len(locals))
		}

		maps.Copy(sc.locals, locals)
	}
}

// WithLocal binds a single named value.
func WithLocal(name string, v Value) EvalOption {
	return WithLocals(map[string]Value{name: v})
}

func newScope(opts ...EvalOption) scope {
	var sc scope

	for _, opt := range opts {
		opt(&sc)
	}

	return sc
}

// Evaluate evaluates expr. Column references resolve against the table
// bound with [WithTable] and identifiers against the locals bound with
// [WithLocals].
func (e *Evaluator) Evaluate(
	ctx context.Context,
	expr string,
	opts ...EvalOption,
) (Value, error) {
	sc := newScope(opts...)

	e.logger.DebugContext(ctx, "evaluate",
		slog.Int("length", len(expr)),
		slog.Int("locals", len(sc.locals)),
		slog.Bool("table", sc.table != nil),
	)

	v, err := e.evaluate(ctx, expr, sc)
	if err != nil {
		e.logger.DebugContext(ctx, "evaluate failed", slog.Any("error", err))

		return Null(), err
	}

	e.logger.TraceContext(ctx, "evaluate complete", valueAttr("result", v))

	return v, nil
}

// Check lexes and validates expr without evaluating it. Names in locals are
// treated as bound variables.
func (e *Evaluator) Check(
	ctx context.Context,
	expr string,
	locals ...string,
) ([]Token, error) {
	if err := e.checkLength(expr); err != nil {
		return nil, err
	}

	tokens, err := e.Tokens(ctx, expr, locals...)
	if err != nil {
		return nil, err
	}

	if err := Validate(tokens); err != nil {
		return nil, err
	}

	return tokens, nil
}

func (e *Evaluator) checkLength(expr string) error {
	if e.maxLength > 0 && len(expr) > e.maxLength {
		return ErrExpressionTooLong.With(
			slog.Int("length", len(expr)),
			slog.Int("max", e.maxLength),
		)
	}

	return nil
}

type depthKey struct{}

// descend records one more level of nested evaluation in ctx.
func (e *Evaluator) descend(ctx context.Context) (context.Context, error) {
	depth, _ := ctx.Value(depthKey{}).(int)
	if depth++; depth > e.maxDepth {
		return ctx, ErrMaxDepthExceeded.With(slog.Int("max", e.maxDepth))
	}

	return context.WithValue(ctx, depthKey{}, depth), nil
}

// evaluate runs the pipeline: length guard, cached lex, bracket validation,
// reduction.
func (e *Evaluator) evaluate(
	ctx context.Context,
	expr string,
	sc scope,
) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Null(), err
	}

	ctx, err := e.descend(ctx)
	if err != nil {
		return Null(), err
	}

	if err := e.checkLength(expr); err != nil {
		return Null(), err
	}

	tokens, err := e.tokens(ctx, expr, sc)
	if err != nil {
		return Null(), err
	}

	if err := Validate(tokens); err != nil {
		return Null(), err
	}

	e.logger.TraceContext(ctx, "reduce", tokenAttrs(tokens))

	return e.reduce(ctx, tokens, sc)
}
