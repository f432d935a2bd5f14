// Package cmd implements the safeval subcommands: eval, tokens, check,
// policy, init and repl.
//
// Every command shares the [Env] flags, which load the security policy, the
// table bound to `${column}` references and the local variables visible to
// expressions.
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the configuration file.
	ConfigIdentifier = "config"
)
