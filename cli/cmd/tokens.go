package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
)

// Tokens prints the token sequence an expression lexes to.
type Tokens struct {
	Expr   string `arg:""         help:"Expression to lex"              name:"expr"`
	Output string `default:"text" enum:"text,yaml" help:"Output format (${enum})" short:"o"`
}

// token is the serialized form of a lexed token.
type token struct {
	Pos  int    `yaml:"pos"`
	Kind string `yaml:"kind"`
	Text string `yaml:"text"`
}

// Run executes the tokens command.
func (t *Tokens) Run(ctx context.Context, env *Env) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	return t.run(ctx, env, os.Stdin, os.Stdout)
}

func (t *Tokens) run(ctx context.Context, env *Env, stdin io.Reader, stdout io.Writer) error {
	s, err := env.open(ctx, stdin)
	if err != nil {
		return err
	}

	tokens, err := s.eval.Check(ctx, t.Expr, s.localNames()...)
	if err != nil {
		return ErrEvaluate.With(slog.String("expr", t.Expr)).Wrap(err)
	}

	out := make([]token, len(tokens))
	for i, tok := range tokens {
		out[i] = token{Pos: tok.Pos, Kind: tok.Kind.String(), Text: tok.String()}
	}

	if t.Output == "yaml" {
		b, err := yaml.Marshal(out)
		if err != nil {
			return ErrYAMLMarshal.Wrap(err)
		}

		if _, err := stdout.Write(b); err != nil {
			return ErrWriteOutput.Wrap(err)
		}

		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)

	for _, tok := range out {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", tok.Pos, tok.Kind, tok.Text)
	}

	if err := tw.Flush(); err != nil {
		return ErrWriteOutput.Wrap(err)
	}

	return nil
}
