package repl

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/ardnew/safeval/lang"
)

// keywords are the reserved words offered as completions at the top level.
var keywords = []string{"lambda", "if", "else", "in", "True", "False", "None"}

// Session is the evaluation state shared by every line typed into the REPL:
// the evaluator, the bound table and the local variables. Locals may be
// added with [Session.Set].
type Session struct {
	eval   *lang.Evaluator
	table  lang.Table
	locals map[string]lang.Value
	funcs  map[string]struct{}
}

// NewSession returns a session evaluating with ev against table, which may
// be nil, and a copy of locals.
func NewSession(
	ev *lang.Evaluator,
	table lang.Table,
	locals map[string]lang.Value,
) *Session {
	s := &Session{
		eval:   ev,
		table:  table,
		locals: maps.Clone(locals),
		funcs:  make(map[string]struct{}),
	}

	if s.locals == nil {
		s.locals = make(map[string]lang.Value)
	}

	for _, name := range ev.Names() {
		s.funcs[name] = struct{}{}
	}

	return s
}

func (s *Session) options() []lang.EvalOption {
	opts := []lang.EvalOption{lang.WithLocals(s.locals)}
	if s.table != nil {
		opts = append(opts, lang.WithTable(s.table))
	}

	return opts
}

// Evaluate evaluates expr against the session's table and locals.
func (s *Session) Evaluate(ctx context.Context, expr string) (lang.Value, error) {
	return s.eval.Evaluate(ctx, expr, s.options()...)
}

// Tokens lexes and validates expr with the session's locals in scope.
func (s *Session) Tokens(ctx context.Context, expr string) ([]lang.Token, error) {
	return s.eval.Check(ctx, expr, s.Locals()...)
}

// Set evaluates expr and binds the result to name.
func (s *Session) Set(ctx context.Context, name, expr string) (lang.Value, error) {
	if !isIdentifier(name) {
		return lang.Null(), ErrInvalidName.With(slog.String("name", name))
	}

	v, err := s.Evaluate(ctx, expr)
	if err != nil {
		return lang.Null(), err
	}

	s.locals[name] = v

	return v, nil
}

// Local returns the value bound to name.
func (s *Session) Local(name string) (lang.Value, bool) {
	v, ok := s.locals[name]

	return v, ok
}

// Locals returns the sorted names of the session's locals.
func (s *Session) Locals() []string { return slices.Sorted(maps.Keys(s.locals)) }

// Columns returns the column names of the bound table, or nil.
func (s *Session) Columns() []string {
	if s.table == nil {
		return nil
	}

	return s.table.Columns()
}

// Policy returns the policy the session's evaluator enforces.
func (s *Session) Policy() *lang.Policy { return s.eval.Policy() }

// Functions returns every callable name the policy admits.
func (s *Session) Functions() []string { return slices.Sorted(maps.Keys(s.funcs)) }

// IsFunction reports whether name resolves to an admitted callable.
func (s *Session) IsFunction(name string) bool {
	_, ok := s.funcs[name]

	return ok
}

// IsNamespace reports whether prefix is an admitted namespace prefix.
func (s *Session) IsNamespace(prefix string) bool {
	return slices.Contains(s.Policy().NamespacePrefixes(), prefix)
}

// topLevel returns every name that may begin an expression: undotted
// callables, namespace prefixes, locals and keywords.
func (s *Session) topLevel() []string {
	seen := make(map[string]struct{})

	for name := range s.funcs {
		head, _, _ := strings.Cut(name, ".")
		seen[head] = struct{}{}
	}

	for name := range s.locals {
		seen[name] = struct{}{}
	}

	for _, kw := range keywords {
		seen[kw] = struct{}{}
	}

	return slices.Sorted(maps.Keys(seen))
}

// namespaceMembers returns the admitted member names under prefix.
func (s *Session) namespaceMembers(prefix string) []string {
	var names []string

	for name := range s.funcs {
		if member, ok := strings.CutPrefix(name, prefix+"."); ok {
			names = append(names, member)
		}
	}

	slices.Sort(names)

	return names
}

// receiver evaluates the receiver text of a member access. Text containing a
// call is never evaluated while completing.
func (s *Session) receiver(ctx context.Context, text string) (lang.Value, bool) {
	if text == "" || strings.ContainsAny(text, "()") {
		return lang.Null(), false
	}

	v, err := s.Evaluate(ctx, text)
	if err != nil {
		return lang.Null(), false
	}

	return v, true
}

// members returns the completions after "text.".
func (s *Session) members(ctx context.Context, text string) []string {
	if s.IsNamespace(text) {
		return s.namespaceMembers(text)
	}

	v, ok := s.receiver(ctx, text)
	if !ok {
		return nil
	}

	return lang.Members(v)
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
