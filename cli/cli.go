package cli

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/ardnew/safeval/cli/cmd"
	"github.com/ardnew/safeval/pkg"
)

// CLI is the top-level command-line interface for safeval.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Env cmd.Env `embed:""`

	Init   cmd.Init   `cmd:"" help:"Initialize configuration file"`
	Policy cmd.Policy `cmd:"" help:"Print or write the security policy"`
	Tokens cmd.Tokens `cmd:"" help:"Print the tokens of an expression"`
	Check  cmd.Check  `cmd:"" help:"Validate expressions without evaluating them"`
	Repl   cmd.Repl   `cmd:"" help:"Start an interactive session"`

	Eval cmd.Eval `cmd:"" default:"withargs" help:"Evaluate expressions"`

	Version kong.VersionFlag `help:"Print version and exit" short:"V"`
}

// Run executes the safeval CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	if err := mkdirCache(); err != nil {
		return err
	}

	configFilePath := configPath(baseConfig)

	vars := kong.Vars{
		cmd.ConfigIdentifier: configFilePath,
		cmd.CacheIdentifier:  cacheDir(),
		"version":            pkg.Version(),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars()).
		CloneWith(cli.Env.Vars(".", configDir()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Configure the logger before parsing so that parse errors honor the
	// logger flags wherever they appear.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(resolve(cmd.ConfigIdentifier), configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)

	ktx.BindTo(ctx, (*context.Context)(nil))
	ktx.Bind(&cli.Env)

	defer cli.Log.start(ctx)()

	// No-op unless built with tag pprof and a mode is selected.
	defer cli.Pprof.start(ctx)()

	return ktx.Run()
}
