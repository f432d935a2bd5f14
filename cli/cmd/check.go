package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ardnew/safeval/log"
)

// Check lexes and validates expressions without evaluating them.
type Check struct {
	Expr   []string `arg:""                                                   help:"Expressions to check" name:"expr" optional:""`
	Source []string `help:"Check each line of the files, or '-' for stdin" placeholder:"FILE"           short:"f"    type:"path"`
	Quiet  bool     `help:"Only report failures"                           short:"q"`
}

// Run executes the check command.
func (c *Check) Run(ctx context.Context, env *Env) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	return c.run(ctx, env, os.Stdin, os.Stdout)
}

func (c *Check) run(ctx context.Context, env *Env, stdin io.Reader, stdout io.Writer) error {
	srcs, err := openSources(c.Source, stdin)
	if err != nil {
		return err
	}
	defer srcs.Close()

	if len(c.Expr) == 0 && srcs.IsZero() {
		return ErrNoExpression
	}

	s, err := env.open(ctx, stdin)
	if err != nil {
		return err
	}

	var total, failed int

	check := func(where, expr string) error {
		total++

		_, err := s.eval.Check(ctx, expr, s.localNames()...)
		if err != nil {
			failed++

			_, err = fmt.Fprintf(stdout, "%s: %s: %v\n", where, expr, err)
		} else if !c.Quiet {
			_, err = fmt.Fprintf(stdout, "%s: ok\n", where)
		}

		if err != nil {
			return ErrWriteOutput.Wrap(err)
		}

		return nil
	}

	for i, expr := range c.Expr {
		if err := check(fmt.Sprintf("arg %d", i+1), expr); err != nil {
			return err
		}
	}

	for name, r := range srcs.All() {
		sc := bufio.NewScanner(r)
		line := 0

		for sc.Scan() {
			line++

			expr := strings.TrimSpace(sc.Text())
			if expr == "" || strings.HasPrefix(expr, "#") {
				continue
			}

			if err := check(fmt.Sprintf("%s:%d", name, line), expr); err != nil {
				return err
			}
		}

		if err := sc.Err(); err != nil {
			return ErrReadSource.With(slog.String("file", name)).Wrap(err)
		}
	}

	log.DebugContext(ctx, "check complete",
		slog.Int("total", total),
		slog.Int("failed", failed),
	)

	if failed > 0 {
		return ErrCheckFailed.With(slog.Int("failed", failed), slog.Int("total", total))
	}

	return nil
}
