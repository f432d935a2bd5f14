// Package cli contains the command line interface for safeval.
//
// # Usage
//
// Expressions are evaluated by default; the remaining commands inspect,
// validate or explore them:
//
//	safeval --data sales.csv '${price}.sum()'
//	safeval --data sales.csv --var rate=0.07 '${price} * (1 + rate)'
//	safeval tokens 'np.round(${price} * 1.1, 2)'
//	safeval check --source exprs.txt
//	safeval policy --names
//	safeval repl --data sales.yaml
//	safeval init
//
// # Configuration Loader
//
// Flag defaults may be set in a YAML configuration file, by default
// config.yaml in the user configuration directory. The loader ([resolve])
// flattens nested mappings into flag names, so that either of these sets
// --log-level:
//
//	log-level: debug
//
//	log:
//	  level: debug
//
// The document may also nest every setting under a top-level "config" key.
// The init command writes the current flag values in this format.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (text, json)
//   - --log-time-layout: Set timestamp format (RFC3339, Kitchen, etc.)
//   - --log-caller: Include caller information in log output
//   - --log-pretty: Colorize text output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default:
//     ~/.cache/safeval/pprof)
package cli
