package lang

import (
	"context"
	"log/slog"
)

// scope is the environment an expression is reduced in.
type scope struct {
	table  Table
	locals map[string]Value
}

func (sc scope) names() []string { return sortedKeys(sc.locals) }

// pending is an entry of the operator stack.
type pending struct {
	tok Token
	at  int // index into the token sequence
}

// machine reduces a token sequence with an operand stack and an operator
// stack.
type machine struct {
	e        *Evaluator
	sc       scope
	tokens   []Token
	operands []Value
	ops      []pending
}

// Reduce evaluates a token sequence produced by [Evaluator.Tokens].
func (e *Evaluator) Reduce(
	ctx context.Context,
	tokens []Token,
	opts ...EvalOption,
) (Value, error) {
	return e.reduce(ctx, tokens, newScope(opts...))
}

func (e *Evaluator) reduce(
	ctx context.Context,
	tokens []Token,
	sc scope,
) (Value, error) {
	m := &machine{e: e, sc: sc, tokens: tokens}

	for i, t := range tokens {
		if err := m.step(ctx, t, i); err != nil {
			return Null(), err
		}
	}

	for len(m.ops) > 0 {
		if m.top().tok.IsOpen() {
			p := m.top()

			return Null(), ErrBracketMismatch.WithPosition(p.tok.Pos, renderTokens(tokens, p.at))
		}

		if err := m.apply(); err != nil {
			return Null(), err
		}
	}

	switch len(m.operands) {
	case 0:
		return Null(), ErrEmptyExpression
	case 1:
		return m.operands[0], nil
	}

	return Null(), ErrAmbiguousResult.With(
		slog.Int("operands", len(m.operands)),
		slog.String("context", renderTokens(tokens, len(tokens)-1)),
	)
}

func (m *machine) top() pending { return m.ops[len(m.ops)-1] }

func (m *machine) push(v Value) { m.operands = append(m.operands, v) }

func (m *machine) pop() Value {
	v := m.operands[len(m.operands)-1]
	m.operands = m.operands[:len(m.operands)-1]

	return v
}

func (m *machine) underflow(at int) *Error {
	return ErrStackUnderflow.WithPosition(m.tokens[at].Pos, renderTokens(m.tokens, at))
}

func (m *machine) step(ctx context.Context, t Token, at int) error {
	switch t.Kind {
	case TokenBracket:
		if t.IsOpen() {
			m.ops = append(m.ops, pending{tok: t, at: at})

			return nil
		}

		for len(m.ops) > 0 && !m.top().tok.IsOpen() {
			if err := m.apply(); err != nil {
				return err
			}
		}

		if len(m.ops) == 0 {
			return ErrBracketMismatch.WithPosition(t.Pos, renderTokens(m.tokens, at))
		}

		m.ops = m.ops[:len(m.ops)-1]

	case TokenOperator:
		op := operators[t.Text]

		if !op.unary {
			for len(m.ops) > 0 && !m.top().tok.IsOpen() &&
				operators[m.top().tok.Text].yields(op) {
				if err := m.apply(); err != nil {
					return err
				}
			}
		}

		m.ops = append(m.ops, pending{tok: t, at: at})

	case TokenLiteral:
		m.push(t.Value)

	case TokenColumn:
		if m.sc.table == nil {
			return ErrNoTable.With(slog.String("column", t.Text))
		}

		c, ok := m.sc.table.Column(t.Text)
		if !ok {
			return ErrUnknownColumn.With(slog.String("column", t.Text))
		}

		m.push(ColumnValue(c))

	case TokenTable:
		if m.sc.table == nil {
			return ErrNoTable
		}

		m.push(TableValue(m.sc.table))

	case TokenVariable:
		v, ok := m.sc.locals[t.Text]
		if !ok {
			return ErrUnknownVariable.With(slog.String("variable", t.Text))
		}

		m.push(v)

	case TokenProperty, TokenMethod:
		return m.member(ctx, t, at)

	case TokenFunction:
		return m.call(ctx, t)

	case TokenCallable:
		return m.pushCallable(t.Value, at)

	case TokenLambda:
		return m.pushCallable(CallableValue(m.e.closure(m.sc, t.Params, t.Body)), at)

	case TokenTernary:
		return m.ternary(ctx, t)
	}

	return nil
}

// apply pops the top operator and its operands and pushes the result.
func (m *machine) apply() error {
	p := m.top()
	m.ops = m.ops[:len(m.ops)-1]
	op := operators[p.tok.Text]

	if op.unary {
		if len(m.operands) < 1 {
			return m.underflow(p.at)
		}

		r, err := applyUnary(op.symbol, m.pop())
		if err != nil {
			return err
		}

		m.push(r)

		return nil
	}

	if len(m.operands) < 2 {
		return m.underflow(p.at)
	}

	b := m.pop()
	a := m.pop()

	r, err := applyBinary(op.symbol, a, b)
	if err != nil {
		return err
	}

	m.push(r)

	return nil
}

func (m *machine) pushCallable(v Value, at int) error {
	if len(m.operands) > 0 {
		return ErrAmbiguousResult.WithPosition(m.tokens[at].Pos, renderTokens(m.tokens, at))
	}

	m.push(v)

	return nil
}

// member applies a property access or method call to the top operand.
func (m *machine) member(ctx context.Context, t Token, at int) error {
	if len(m.operands) == 0 {
		return m.underflow(at)
	}

	recv := m.pop()

	if t.Kind == TokenProperty {
		v, err := property(recv, t.Text)
		if err != nil {
			return err
		}

		m.push(v)

		return nil
	}

	fn, err := method(recv, t.Text)
	if err != nil {
		return err
	}

	args, err := m.e.evalArgs(ctx, t.Args, m.sc)
	if err != nil {
		return err
	}

	v, err := fn.Call(ctx, args)
	if err != nil {
		return err
	}

	m.push(v)

	return nil
}

// call invokes a bare function call. The name always passes the policy,
// including names bound in locals.
func (m *machine) call(ctx context.Context, t Token) error {
	fn, err := m.e.resolve(ctx, t.Text)
	if err != nil {
		return err
	}

	args, err := m.e.evalArgs(ctx, t.Args, m.sc)
	if err != nil {
		return err
	}

	m.e.logger.TraceContext(ctx, "call",
		slog.String("function", t.Text),
		slog.Int("positional", len(args.Positional)),
		slog.Int("keyword", len(args.Keyword)),
	)

	v, err := fn.Call(ctx, args)
	if err != nil {
		return err
	}

	m.push(v)

	return nil
}

// ternary evaluates the condition and then only the selected branch.
func (m *machine) ternary(ctx context.Context, t Token) error {
	cond, err := m.e.evaluate(ctx, t.Cond, m.sc)
	if err != nil {
		return err
	}

	if cond.IsVector() {
		return ErrOperandType.With(
			slog.String("operator", "if"),
			slog.String("operand", cond.TypeName()),
			slog.String("reason", "truth value of a vector is ambiguous"),
		)
	}

	var v Value

	switch {
	case cond.Truthy():
		v, err = m.e.evaluate(ctx, t.Then, m.sc)
	case t.HasElse:
		v, err = m.e.evaluate(ctx, t.Else, m.sc)
	}

	if err != nil {
		return err
	}

	m.push(v)

	return nil
}
