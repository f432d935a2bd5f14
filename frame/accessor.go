package frame

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ardnew/safeval/lang"
)

// strAccessor implements the Series.str namespace. Elements that are not
// strings map to None.
type strAccessor struct{ c *Column }

var strMethods map[string]signature[*strAccessor]

func init() {
	strMethods = map[string]signature[*strAccessor]{
		"lower":      {fn: strMap(strings.ToLower)},
		"upper":      {fn: strMap(strings.ToUpper)},
		"title":      {fn: strMap(lang.Title)},
		"strip":      {params: []string{"to_strip"}, fn: strTrim(strings.Trim, strings.TrimSpace)},
		"lstrip":     {params: []string{"to_strip"}, fn: strTrim(strings.TrimLeft, trimLeftSpace)},
		"rstrip":     {params: []string{"to_strip"}, fn: strTrim(strings.TrimRight, trimRightSpace)},
		"len":        {fn: strLen},
		"contains":   {params: []string{"pat", "case", "flags", "na", "regex"}, fn: strContains},
		"startswith": {params: []string{"pat", "na"}, fn: strAffix(strings.HasPrefix)},
		"endswith":   {params: []string{"pat", "na"}, fn: strAffix(strings.HasSuffix)},
		"replace":    {params: []string{"pat", "repl", "n", "case", "flags", "regex"}, fn: strReplace},
		"split":      {params: []string{"pat", "n"}, fn: strSplit},
	}
}

// Method implements [lang.Capabilities].
func (a *strAccessor) Method(name string) (lang.Callable, bool) {
	m, ok := strMethods[name]
	if !ok {
		return nil, false
	}

	return bind("str."+name, a, m), true
}

// Property implements [lang.Capabilities].
func (a *strAccessor) Property(string) (lang.Value, bool) { return lang.Null(), false }

func trimLeftSpace(s string) string  { return strings.TrimLeft(s, " \t\r\n\v\f") }
func trimRightSpace(s string) string { return strings.TrimRight(s, " \t\r\n\v\f") }

// each maps fn over the string elements of a's column.
func (a *strAccessor) each(fn func(string) lang.Value) lang.Value {
	out := make([]lang.Value, a.c.Len())

	for i, v := range a.c.values {
		if s, ok := v.AsString(); ok {
			out[i] = fn(s)
		}
	}

	return lang.ColumnValue(a.c.with(out, a.c.index))
}

func strMap(fn func(string) string) method[*strAccessor] {
	return func(_ context.Context, a *strAccessor, _ params) (lang.Value, error) {
		return a.each(func(s string) lang.Value { return lang.String(fn(s)) }), nil
	}
}

func strTrim(
	cut func(string, string) string,
	space func(string) string,
) method[*strAccessor] {
	return func(_ context.Context, a *strAccessor, p params) (lang.Value, error) {
		chars, ok := p.value("to_strip")
		if !ok {
			return a.each(func(s string) lang.Value { return lang.String(space(s)) }), nil
		}

		set, ok := chars.AsString()
		if !ok {
			return lang.Null(), p.invalid("to_strip", chars)
		}

		return a.each(func(s string) lang.Value { return lang.String(cut(s, set)) }), nil
	}
}

func strLen(_ context.Context, a *strAccessor, _ params) (lang.Value, error) {
	return a.each(func(s string) lang.Value {
		return lang.Int(int64(utf8.RuneCountInString(s)))
	}), nil
}

// pattern compiles pat as a regular expression, or as a literal when regex
// is false.
func pattern(p params, regex, fold bool) (*regexp.Regexp, error) {
	pat, err := p.required("pat")
	if err != nil {
		return nil, err
	}

	s, ok := pat.AsString()
	if !ok {
		return nil, p.invalid("pat", pat)
	}

	if !regex {
		s = regexp.QuoteMeta(s)
	}

	if fold {
		s = "(?i)" + s
	}

	re, err := regexp.Compile(s)
	if err != nil {
		return nil, lang.ErrOperandType.Wrap(err).With(
			slog.String("method", p.fn),
			slog.String("pattern", s),
		)
	}

	return re, nil
}

func strContains(_ context.Context, a *strAccessor, p params) (lang.Value, error) {
	sensitive, err := p.bool("case", true)
	if err != nil {
		return lang.Null(), err
	}

	regex, err := p.bool("regex", true)
	if err != nil {
		return lang.Null(), err
	}

	re, err := pattern(p, regex, !sensitive)
	if err != nil {
		return lang.Null(), err
	}

	r := a.each(func(s string) lang.Value { return lang.Bool(re.MatchString(s)) })

	return fillMissing(a, r, p), nil
}

// fillMissing replaces the results of non-string elements with the na
// argument, if one was given.
func fillMissing(a *strAccessor, r lang.Value, p params) lang.Value {
	na, ok := p.value("na")
	if !ok {
		return r
	}

	col, _ := r.AsColumn()
	out := make([]lang.Value, col.Len())

	for i := range out {
		if _, isString := a.c.values[i].AsString(); isString {
			out[i] = col.At(i)
		} else {
			out[i] = na
		}
	}

	return lang.ColumnValue(a.c.with(out, a.c.index))
}

func strAffix(match func(string, string) bool) method[*strAccessor] {
	return func(_ context.Context, a *strAccessor, p params) (lang.Value, error) {
		pat, err := p.required("pat")
		if err != nil {
			return lang.Null(), err
		}

		var affixes []string

		if s, ok := pat.AsString(); ok {
			affixes = []string{s}
		} else if vals, ok := pat.AsSeq(); ok {
			for _, v := range vals {
				s, ok := v.AsString()
				if !ok {
					return lang.Null(), p.invalid("pat", v)
				}

				affixes = append(affixes, s)
			}
		} else {
			return lang.Null(), p.invalid("pat", pat)
		}

		r := a.each(func(s string) lang.Value {
			for _, x := range affixes {
				if match(s, x) {
					return lang.Bool(true)
				}
			}

			return lang.Bool(false)
		})

		return fillMissing(a, r, p), nil
	}
}

func strReplace(_ context.Context, a *strAccessor, p params) (lang.Value, error) {
	regex, err := p.bool("regex", false)
	if err != nil {
		return lang.Null(), err
	}

	sensitive, err := p.bool("case", true)
	if err != nil {
		return lang.Null(), err
	}

	n, err := p.int("n", -1)
	if err != nil {
		return lang.Null(), err
	}

	repl, err := p.required("repl")
	if err != nil {
		return lang.Null(), err
	}

	with, ok := repl.AsString()
	if !ok {
		return lang.Null(), p.invalid("repl", repl)
	}

	re, err := pattern(p, regex, !sensitive)
	if err != nil {
		return lang.Null(), err
	}

	if !regex {
		with = strings.ReplaceAll(with, "$", "$$")
	}

	return a.each(func(s string) lang.Value {
		if n < 0 {
			return lang.String(re.ReplaceAllString(s, with))
		}

		count := 0

		return lang.String(re.ReplaceAllStringFunc(s, func(m string) string {
			if count >= n {
				return m
			}

			count++

			return re.ReplaceAllString(m, with)
		}))
	}), nil
}

func strSplit(_ context.Context, a *strAccessor, p params) (lang.Value, error) {
	sep, err := p.string("pat", "")
	if err != nil {
		return lang.Null(), err
	}

	n, err := p.int("n", -1)
	if err != nil {
		return lang.Null(), err
	}

	return a.each(func(s string) lang.Value {
		var parts []string

		switch {
		case sep == "" && n < 0:
			parts = strings.Fields(s)
		case sep == "":
			parts = strings.SplitN(strings.TrimSpace(s), " ", n+1)
		case n < 0:
			parts = strings.Split(s, sep)
		default:
			parts = strings.SplitN(s, sep, n+1)
		}

		out := make([]lang.Value, len(parts))
		for i, part := range parts {
			out[i] = lang.String(part)
		}

		return lang.Seq(out...)
	}), nil
}

// dtAccessor implements the Series.dt namespace over datetime columns.
type dtAccessor struct{ c *Column }

var dtFields = map[string]func(time.Time) int64{
	"year":      func(t time.Time) int64 { return int64(t.Year()) },
	"month":     func(t time.Time) int64 { return int64(t.Month()) },
	"day":       func(t time.Time) int64 { return int64(t.Day()) },
	"hour":      func(t time.Time) int64 { return int64(t.Hour()) },
	"minute":    func(t time.Time) int64 { return int64(t.Minute()) },
	"second":    func(t time.Time) int64 { return int64(t.Second()) },
	"dayofweek": lang.Weekday,
	"weekday":   lang.Weekday,
	"dayofyear": func(t time.Time) int64 { return int64(t.YearDay()) },
	"quarter":   func(t time.Time) int64 { return int64(t.Month()-1)/3 + 1 },
}

var dtMethods map[string]signature[*dtAccessor]

func init() {
	dtMethods = map[string]signature[*dtAccessor]{
		"strftime":  {params: []string{"date_format"}, fn: dtStrftime},
		"normalize": {fn: dtNormalize},
	}
}

// Method implements [lang.Capabilities].
func (a *dtAccessor) Method(name string) (lang.Callable, bool) {
	m, ok := dtMethods[name]
	if !ok {
		return nil, false
	}

	return bind("dt."+name, a, m), true
}

// Property implements [lang.Capabilities].
func (a *dtAccessor) Property(name string) (lang.Value, bool) {
	if name == "date" {
		return a.each(midnight), true
	}

	field, ok := dtFields[name]
	if !ok {
		return lang.Null(), false
	}

	return a.each(func(t time.Time) lang.Value { return lang.Int(field(t)) }), true
}

func (a *dtAccessor) each(fn func(time.Time) lang.Value) lang.Value {
	out := make([]lang.Value, a.c.Len())

	for i, v := range a.c.values {
		if t, ok := v.AsTime(); ok {
			out[i] = fn(t)
		} else {
			out[i] = v
		}
	}

	return lang.ColumnValue(a.c.with(out, a.c.index))
}

func dtNormalize(_ context.Context, a *dtAccessor, _ params) (lang.Value, error) {
	return a.each(midnight), nil
}

func midnight(t time.Time) lang.Value {
	y, m, d := t.Date()

	return lang.Time(time.Date(y, m, d, 0, 0, 0, 0, t.Location()))
}

var strftimeDirectives = strings.NewReplacer(
	"%Y", "2006", "%m", "01", "%d", "02", "%H", "15", "%I", "03",
	"%M", "04", "%S", "05", "%p", "PM", "%y", "06", "%b", "Jan",
	"%B", "January", "%a", "Mon", "%A", "Monday", "%j", "002",
	"%z", "-0700", "%Z", "MST", "%%", "%",
)

func dtStrftime(_ context.Context, a *dtAccessor, p params) (lang.Value, error) {
	v, err := p.required("date_format")
	if err != nil {
		return lang.Null(), err
	}

	format, ok := v.AsString()
	if !ok {
		return lang.Null(), p.invalid("date_format", v)
	}

	layout := strftimeDirectives.Replace(format)

	return a.each(func(t time.Time) lang.Value {
		return lang.String(t.Format(layout))
	}), nil
}
