package frame

import (
	"context"
	"log/slog"

	"github.com/ardnew/safeval/lang"
)

// method is the implementation of a named method on a receiver of type T.
type method[T any] func(ctx context.Context, recv T, p params) (lang.Value, error)

// signature pairs a method with the parameter names it binds.
type signature[T any] struct {
	params []string
	fn     method[T]
}

// bind returns a callable that invokes sig on recv.
func bind[T any](name string, recv T, sig signature[T]) lang.Callable {
	return lang.NewFunc(name, func(ctx context.Context, args lang.Arguments) (lang.Value, error) {
		bound, err := args.Bind(name, sig.params...)
		if err != nil {
			return lang.Null(), err
		}

		return sig.fn(ctx, recv, params{fn: name, bound: bound})
	}).WithParams(sig.params...)
}

// params holds the bound arguments of a method call.
type params struct {
	fn    string
	bound map[string]lang.Value
}

func (p params) value(name string) (lang.Value, bool) {
	v, ok := p.bound[name]
	if !ok || v.IsNull() {
		return lang.Null(), false
	}

	return v, true
}

func (p params) required(name string) (lang.Value, error) {
	v, ok := p.bound[name]
	if !ok {
		return lang.Null(), lang.ErrArgumentCount.With(
			slog.String("method", p.fn),
			slog.String("missing", name),
		)
	}

	return v, nil
}

func (p params) int(name string, def int) (int, error) {
	v, ok := p.value(name)
	if !ok {
		return def, nil
	}

	n, ok := v.AsInt()
	if !ok {
		return 0, p.invalid(name, v)
	}

	return int(n), nil
}

func (p params) float(name string, def float64) (float64, error) {
	v, ok := p.value(name)
	if !ok {
		return def, nil
	}

	f, ok := v.AsFloat()
	if !ok {
		return 0, p.invalid(name, v)
	}

	return f, nil
}

func (p params) bool(name string, def bool) (bool, error) {
	v, ok := p.value(name)
	if !ok {
		return def, nil
	}

	b, ok := v.AsBool()
	if !ok {
		return false, p.invalid(name, v)
	}

	return b, nil
}

func (p params) string(name, def string) (string, error) {
	v, ok := p.value(name)
	if !ok {
		return def, nil
	}

	s, ok := v.AsString()
	if !ok {
		return "", p.invalid(name, v)
	}

	return s, nil
}

func (p params) callable(name string) (lang.Callable, error) {
	v, err := p.required(name)
	if err != nil {
		return nil, err
	}

	fn, ok := v.AsCallable()
	if !ok {
		return nil, p.invalid(name, v)
	}

	return fn, nil
}

func (p params) invalid(name string, v lang.Value) *lang.Error {
	return lang.ErrOperandType.With(
		slog.String("method", p.fn),
		slog.String("argument", name),
		slog.String("operand", v.TypeName()),
	)
}
