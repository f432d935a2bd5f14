// Package log wraps [log/slog] with a leveled [Logger] whose configuration
// is fixed when it is made.
//
// A [Logger] is built from a writer and functional options:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithFormat(log.FormatJSON),
//		log.WithTimeLayout("kitchen"))
//
// The zero Logger discards every record, so types may embed one without
// initializing it.
//
// Records below the configured [Level] are dropped before any attribute is
// formatted. [LevelTrace] sits below [LevelDebug] and is rendered as "TRACE".
//
// With pretty output enabled (the default) records are styled with
// lipgloss. Styling is dropped automatically when the writer is not a color
// terminal. Disable it with [WithPretty] to use the plain [slog] handlers.
//
// The package-level functions log through a shared default Logger that
// [Config] and [SetDefault] replace.
package log
