package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/safeval/lang"
	"github.com/ardnew/safeval/log"
)

// Policy prints the effective security policy.
type Policy struct {
	Names bool   `help:"List every callable name the policy admits instead" short:"n"`
	Write string `help:"Write the policy to a file instead of stdout"     placeholder:"FILE" short:"w" type:"path"`
	Force bool   `help:"Overwrite an existing file"                        short:"F"`
}

// Run executes the policy command.
func (p *Policy) Run(ctx context.Context, env *Env) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	return p.run(ctx, env, os.Stdout)
}

func (p *Policy) run(ctx context.Context, env *Env, stdout io.Writer) error {
	ev, err := env.Evaluator(ctx)
	if err != nil {
		return err
	}

	emit := func(w io.Writer) error {
		if p.Names {
			return writeNames(w, ev.Names())
		}

		return writePolicy(w, ev.Policy())
	}

	if p.Write != "" {
		if err := writeFile(p.Write, p.Force, emit); err != nil {
			return err
		}

		log.DebugContext(ctx, "wrote policy", slog.String("file", p.Write))

		return nil
	}

	if err := emit(stdout); err != nil {
		return ErrWriteOutput.Wrap(err)
	}

	return nil
}

func writeNames(w io.Writer, names []string) error {
	for _, name := range names {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}

	return nil
}

// writePolicy encodes the fully expanded configuration of p, so the output
// is a usable policy file even when p is the default.
func writePolicy(w io.Writer, p *lang.Policy) error {
	b, err := yaml.MarshalWithOptions(p.Config(), yaml.Indent(defaultConfigIndent))
	if err != nil {
		return ErrYAMLMarshal.Wrap(err)
	}

	_, err = w.Write(b)

	return err
}
