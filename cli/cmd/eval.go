package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ardnew/safeval/frame"
	"github.com/ardnew/safeval/lang"
	"github.com/ardnew/safeval/log"
)

// Eval evaluates expressions and prints each result.
type Eval struct {
	Expr   []string `arg:""     help:"Expressions to evaluate"                                  name:"expr" optional:""`
	Source []string `help:"Read one expression from each file, or '-' for stdin" placeholder:"FILE" short:"f"    type:"path"`
	Output string   `default:"repr"                                                  enum:"repr,str,yaml" help:"Result format (${enum})" short:"o"`
}

// Run executes the eval command.
func (e *Eval) Run(ctx context.Context, env *Env) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	return e.run(ctx, env, os.Stdin, os.Stdout)
}

func (e *Eval) run(ctx context.Context, env *Env, stdin io.Reader, stdout io.Writer) error {
	srcs, err := openSources(e.Source, stdin)
	if err != nil {
		return err
	}
	defer srcs.Close()

	if len(e.Expr) == 0 && srcs.IsZero() {
		return ErrNoExpression
	}

	s, err := env.open(ctx, stdin)
	if err != nil {
		return err
	}

	for _, expr := range e.Expr {
		v, err := s.eval.Evaluate(ctx, expr, s.options()...)
		if err != nil {
			return ErrEvaluate.With(slog.String("expr", expr)).Wrap(err)
		}

		if err := e.print(stdout, v); err != nil {
			return err
		}
	}

	for name, r := range srcs.All() {
		v, err := s.eval.EvaluateReader(ctx, r, s.options()...)
		if err != nil {
			return ErrEvaluate.With(slog.String("file", name)).Wrap(err)
		}

		if err := e.print(stdout, v); err != nil {
			return err
		}
	}

	log.DebugContext(ctx, "eval complete",
		slog.Int("expressions", len(e.Expr)),
		slog.Bool("table", s.table != nil),
		slog.Int("locals", len(s.locals)),
	)

	return nil
}

// print writes v in the configured output format.
func (e *Eval) print(w io.Writer, v lang.Value) error {
	var err error

	switch e.Output {
	case "yaml":
		if err = frame.EncodeYAML(w, v); err != nil {
			return ErrYAMLMarshal.With(slog.String("type", v.TypeName())).Wrap(err)
		}

		return nil

	case "str":
		_, err = fmt.Fprintln(w, v.String())

	default:
		_, err = fmt.Fprintln(w, v.Repr())
	}

	if err != nil {
		return ErrWriteOutput.Wrap(err)
	}

	return nil
}
