// Package profile starts optional runtime profiling of the safeval command
// using [github.com/pkg/profile].
//
// Profiling is compiled in only with the "pprof" build tag:
//
//	go build -tags pprof .
//	./safeval --pprof-mode cpu eval '${price}.sum()' --data sales.csv
//
// Without the tag [Profiler.Start] always returns a no-op [Stopper] and
// [Modes] is empty.
//
// With the tag the package also imports [net/http/pprof], registering its
// handlers on [net/http.DefaultServeMux].
//
// Profiles are written to the configured directory as <mode>.pprof and can
// be inspected with:
//
//	go tool pprof -http=: ./safeval cpu.pprof
package profile

// Tag is the build tag that enables profiling.
const Tag = `pprof`
