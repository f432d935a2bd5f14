package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/ardnew/safeval/cli/cmd/repl"
	"github.com/ardnew/safeval/lang"
	"github.com/ardnew/safeval/log"
)

// Repl starts an interactive session over the loaded table and variables.
type Repl struct {
	NoHistory bool `help:"Do not load or save input history" name:"no-history"`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context, env *Env) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if env.Data == stdinSource {
		return ErrReadData.With(
			slog.String("file", env.Data),
			slog.String("reason", "stdin is reserved for interactive input"),
		)
	}

	s, err := env.open(ctx, os.Stdin)
	if err != nil {
		return err
	}

	var table lang.Table
	if s.table != nil {
		table = s.table
	}

	var cacheDir string
	if !r.NoHistory {
		cacheDir = kongContextFrom(ctx).Model.Vars()[CacheIdentifier]
	}

	log.DebugContext(ctx, "starting repl",
		slog.Bool("table", table != nil),
		slog.Int("locals", len(s.locals)),
		slog.String("cache", cacheDir),
	)

	return repl.Run(ctx, repl.NewSession(s.eval, table, s.locals), cacheDir, log.Default())
}
