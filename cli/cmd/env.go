package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/ardnew/mung"
	"github.com/klauspost/readahead"

	"github.com/ardnew/safeval/frame"
	"github.com/ardnew/safeval/lang"
	"github.com/ardnew/safeval/log"
)

// PathIdentifier is the kong variable identifier containing the default
// search list for relative policy and data files.
const PathIdentifier = "searchPath"

// Env holds the flags shared by every command that evaluates expressions.
type Env struct {
	Policy    string   `help:"Security policy file (YAML)"                                placeholder:"FILE"         short:"P"`
	Data      string   `help:"Table data file (YAML or CSV), or '-' for stdin"            placeholder:"FILE"         short:"d"`
	Format    string   `help:"Data file format (${enum})"                                 default:"auto"             enum:"auto,yaml,csv"`
	Var       []string `help:"Bind a local variable, evaluated in order"                  placeholder:"NAME=EXPR"    sep:"none" short:"v"`
	Path      string   `help:"Search list for relative policy and data files"             default:"${searchPath}"    env:"SAFEVAL_PATH"`
	MaxDepth  int      `help:"Maximum nesting depth of closures and lambdas"              default:"${maxDepth}"`
	MaxLength int      `help:"Maximum expression length, 0 for no limit"                  default:"${maxLength}"`
	CacheSize int      `help:"Number of lexed expressions to cache, 0 disables the cache" default:"${cacheSize}"`
}

// Vars returns the kong variables referenced by the Env flag defaults.
func (Env) Vars(searchPath ...string) kong.Vars {
	return kong.Vars{
		PathIdentifier: strings.Join(searchPath, string(os.PathListSeparator)),
		"maxDepth":     strconv.Itoa(lang.DefaultMaxDepth),
		"maxLength":    strconv.Itoa(lang.DefaultMaxLength),
		"cacheSize":    strconv.Itoa(lang.DefaultCacheSize),
	}
}

// session is everything an expression needs to evaluate: the evaluator and
// the options binding the table and locals.
type session struct {
	eval   *lang.Evaluator
	table  *frame.Table
	locals map[string]lang.Value
}

// options returns the evaluation options binding the session's table and
// locals.
func (s *session) options() []lang.EvalOption {
	opts := []lang.EvalOption{lang.WithLocals(s.locals)}
	if s.table != nil {
		opts = append(opts, lang.WithTable(s.table))
	}

	return opts
}

// localNames returns the names of the session's locals.
func (s *session) localNames() []string {
	names := make([]string, 0, len(s.locals))
	for name := range s.locals {
		names = append(names, name)
	}

	return names
}

// open builds the evaluator, loads the table and binds the locals.
func (e *Env) open(ctx context.Context, stdin io.Reader) (*session, error) {
	ev, err := e.Evaluator(ctx)
	if err != nil {
		return nil, err
	}

	table, err := e.Table(ctx, stdin)
	if err != nil {
		return nil, err
	}

	s := &session{eval: ev, table: table}

	s.locals, err = e.Locals(ctx, ev, table)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Evaluator returns an evaluator configured by the policy file and limits.
func (e *Env) Evaluator(ctx context.Context) (*lang.Evaluator, error) {
	policy := lang.DefaultPolicy()

	if e.Policy != "" {
		path := e.resolve(e.Policy)

		f, err := os.Open(path)
		if err != nil {
			return nil, ErrReadPolicy.With(slog.String("file", path)).Wrap(err)
		}
		defer f.Close()

		policy, err = lang.ReadPolicy(readahead.NewReader(f))
		if err != nil {
			return nil, ErrReadPolicy.With(slog.String("file", path)).Wrap(err)
		}

		log.DebugContext(ctx, "policy loaded",
			slog.String("file", path),
			slog.Int("allowed", len(policy.Allowed())),
			slog.Any("namespaces", policy.NamespacePrefixes()),
		)
	}

	opts := append([]lang.Option{
		lang.WithPolicy(policy),
		lang.WithLogger(log.Default()),
		lang.WithMaxDepth(e.MaxDepth),
		lang.WithMaxLength(e.MaxLength),
		lang.WithCacheSize(e.CacheSize),
	}, frame.Options()...)

	return lang.New(opts...), nil
}

// Table loads the data file, or returns nil if none is configured.
func (e *Env) Table(ctx context.Context, stdin io.Reader) (*frame.Table, error) {
	if e.Data == "" {
		return nil, nil
	}

	var (
		r    io.Reader
		path = e.Data
	)

	if path == stdinSource {
		r = stdin
	} else {
		path = e.resolve(path)

		f, err := os.Open(path)
		if err != nil {
			return nil, ErrReadData.With(slog.String("file", path)).Wrap(err)
		}
		defer f.Close()

		r = f
	}

	ra := readahead.NewReader(r)
	defer ra.Close()

	format := e.Format
	if format == "auto" {
		format = filepath.Ext(path)
	}

	t, err := frame.Read(ra, format)
	if err != nil {
		return nil, ErrReadData.With(slog.String("file", path)).Wrap(err)
	}

	log.DebugContext(ctx, "table loaded",
		slog.String("file", path),
		slog.Int("rows", t.Len()),
		slog.Any("columns", t.Columns()),
	)

	return t, nil
}

// Locals evaluates each NAME=EXPR binding in order. Every expression sees
// the table and the locals bound before it.
func (e *Env) Locals(
	ctx context.Context,
	ev *lang.Evaluator,
	table *frame.Table,
) (map[string]lang.Value, error) {
	locals := make(map[string]lang.Value, len(e.Var))

	for _, bind := range e.Var {
		name, expr, ok := strings.Cut(bind, "=")
		name = strings.TrimSpace(name)

		if !ok || !isIdentifier(name) {
			return nil, ErrBindVariable.With(slog.String("binding", bind))
		}

		opts := []lang.EvalOption{lang.WithLocals(locals)}
		if table != nil {
			opts = append(opts, lang.WithTable(table))
		}

		v, err := ev.Evaluate(ctx, expr, opts...)
		if err != nil {
			return nil, ErrBindVariable.With(slog.String("name", name)).Wrap(err)
		}

		locals[name] = v

		log.TraceContext(ctx, "bound variable",
			slog.String("name", name),
			slog.String("value", v.Repr()),
		)
	}

	return locals, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}

	return true
}

// searchPath returns the directories named by the Path search list, with the
// working directory first. Entries that are not directories are dropped.
func (e *Env) searchPath() []string {
	list := mung.Make(
		mung.WithSubjectItems(e.Path),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems("."),
		mung.WithFilter(isDir),
	).String()

	return filepath.SplitList(list)
}

// resolve returns the first existing file named by path in the search list.
// Absolute paths and paths that do not exist anywhere are returned as is.
func (e *Env) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	for _, dir := range e.searchPath() {
		if p := filepath.Join(dir, path); isFile(p) {
			return p
		}
	}

	return path
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
