package frame

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ardnew/safeval/lang"
)

// Namespace returns the pandas-flavoured functions reachable through the
// "pd" and "pandas" prefixes.
func Namespace() lang.FuncMap {
	fns := map[string]signature[struct{}]{
		"date_range":  {params: []string{"start", "end", "periods", "freq", "name"}, fn: dateRange},
		"to_datetime": {params: []string{"arg", "errors", "format"}, fn: elementFunc(toDatetime)},
		"to_numeric":  {params: []string{"arg", "errors"}, fn: elementFunc(toNumeric)},
		"isna":        {params: []string{"obj"}, fn: elementFunc(wrap(isMissing))},
		"isnull":      {params: []string{"obj"}, fn: elementFunc(wrap(isMissing))},
		"notna":       {params: []string{"obj"}, fn: elementFunc(wrap(isPresent))},
		"notnull":     {params: []string{"obj"}, fn: elementFunc(wrap(isPresent))},
		"Series":      {params: []string{"data", "index", "dtype", "name"}, fn: newSeries},
	}

	ns := make(lang.FuncMap, len(fns))
	for name, sig := range fns {
		ns[name] = bind(name, struct{}{}, sig)
	}

	return ns
}

// Options returns the evaluator options that register [Namespace] under
// both of its prefixes.
func Options() []lang.Option {
	ns := Namespace()

	return []lang.Option{
		lang.WithNamespace("pd", ns),
		lang.WithNamespace("pandas", ns),
	}
}

func wrap(fn func(lang.Value) lang.Value) func(lang.Value) (lang.Value, error) {
	return func(v lang.Value) (lang.Value, error) { return fn(v), nil }
}

// elementFunc applies conv to a scalar argument, or to each element of a
// sequence or column argument.
func elementFunc(conv func(lang.Value) (lang.Value, error)) method[struct{}] {
	return func(_ context.Context, _ struct{}, p params) (lang.Value, error) {
		arg, ok := p.bound["arg"]
		if !ok {
			arg, ok = p.bound["obj"]
		}

		if !ok {
			return lang.Null(), lang.ErrArgumentCount.With(
				slog.String("function", p.fn),
				slog.String("missing", "arg"),
			)
		}

		coerce := func(v lang.Value) (lang.Value, error) {
			r, err := conv(v)
			if err != nil {
				if mode, _ := p.string("errors", "raise"); mode == "coerce" {
					return lang.Null(), nil
				}
			}

			return r, err
		}

		switch arg.Kind() {
		case lang.KindColumn:
			col, _ := arg.AsColumn()
			out := make([]lang.Value, col.Len())

			for i := range out {
				r, err := coerce(col.At(i))
				if err != nil {
					return lang.Null(), err
				}

				out[i] = r
			}

			return lang.ColumnValue(col.Derive(out)), nil

		case lang.KindSequence:
			vals, _ := arg.AsSeq()
			out := make([]lang.Value, len(vals))

			for i, v := range vals {
				r, err := coerce(v)
				if err != nil {
					return lang.Null(), err
				}

				out[i] = r
			}

			return lang.Seq(out...), nil
		}

		return coerce(arg)
	}
}

func toDatetime(v lang.Value) (lang.Value, error) {
	switch v.Kind() {
	case lang.KindTime, lang.KindNull:
		return v, nil
	case lang.KindString:
		s, _ := v.AsString()
		if t, ok := ParseTime(s); ok {
			return lang.Time(t), nil
		}
	case lang.KindInt:
		n, _ := v.AsInt()

		return lang.Time(time.Unix(0, n).UTC()), nil
	}

	return lang.Null(), lang.ErrOperandType.With(
		slog.String("function", "to_datetime"),
		slog.String("operand", v.Repr()),
		slog.String("reason", "unknown datetime string format"),
	)
}

func toNumeric(v lang.Value) (lang.Value, error) {
	if v.Kind() == lang.KindNull || v.IsNumeric() {
		return v, nil
	}

	if s, ok := v.AsString(); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return lang.Int(n), nil
		}

		return lang.ToFloat(v)
	}

	return lang.Null(), lang.ErrOperandType.With(
		slog.String("function", "to_numeric"),
		slog.String("operand", v.TypeName()),
	)
}

func newSeries(ctx context.Context, _ struct{}, p params) (lang.Value, error) {
	name, err := p.string("name", "")
	if err != nil {
		return lang.Null(), err
	}

	data, ok := p.value("data")
	if !ok {
		return lang.ColumnValue(NewColumn(name, nil)), nil
	}

	vals, ok := lang.Iterate(data)
	if !ok || data.Kind() == lang.KindString {
		vals = []lang.Value{data}
	}

	c := NewColumn(name, vals)

	if dtype, ok := p.value("dtype"); ok {
		s, _ := dtype.AsString()

		conv, ok := converter(s)
		if !ok {
			return lang.Null(), p.invalid("dtype", dtype)
		}

		if c, err = c.Apply(ctx, conv); err != nil {
			return lang.Null(), err
		}
	}

	return lang.ColumnValue(c), nil
}

// frequency parses an offset alias such as "D", "1D", "12h" or "30min".
func frequency(alias string) (time.Duration, bool) {
	s := strings.TrimSpace(alias)

	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '-') {
		i++
	}

	n := int64(1)

	if i > 0 {
		var err error
		if n, err = strconv.ParseInt(s[:i], 10, 64); err != nil {
			return 0, false
		}
	}

	var unit time.Duration

	switch s[i:] {
	case "W":
		unit = 7 * 24 * time.Hour
	case "D":
		unit = 24 * time.Hour
	case "H", "h":
		unit = time.Hour
	case "T", "min":
		unit = time.Minute
	case "S", "s":
		unit = time.Second
	case "L", "ms":
		unit = time.Millisecond
	case "U", "us":
		unit = time.Microsecond
	case "N", "ns":
		unit = time.Nanosecond
	default:
		return 0, false
	}

	return time.Duration(n) * unit, n != 0
}

func timeParam(p params, name string) (time.Time, bool, error) {
	v, ok := p.value(name)
	if !ok {
		return time.Time{}, false, nil
	}

	t, err := toDatetime(v)
	if err != nil {
		return time.Time{}, false, err
	}

	ts, _ := t.AsTime()

	return ts, true, nil
}

// dateRange returns a column of evenly spaced timestamps. Exactly three of
// start, end, periods and freq determine the range; freq defaults to one
// day when it is not given and periods does not stand in for it.
func dateRange(_ context.Context, _ struct{}, p params) (lang.Value, error) {
	start, hasStart, err := timeParam(p, "start")
	if err != nil {
		return lang.Null(), err
	}

	end, hasEnd, err := timeParam(p, "end")
	if err != nil {
		return lang.Null(), err
	}

	periods, err := p.int("periods", -1)
	if err != nil {
		return lang.Null(), err
	}

	name, err := p.string("name", "")
	if err != nil {
		return lang.Null(), err
	}

	freqValue, hasFreq := p.value("freq")
	step := 24 * time.Hour

	if hasFreq {
		alias, ok := freqValue.AsString()
		if ok {
			step, ok = frequency(alias)
		}

		if !ok {
			return lang.Null(), p.invalid("freq", freqValue)
		}
	}

	var stamps []time.Time

	switch {
	case hasStart && hasEnd && periods >= 0 && !hasFreq:
		for i := range periods {
			if periods == 1 {
				stamps = append(stamps, start)

				break
			}

			frac := float64(i) / float64(periods-1)
			off := time.Duration(math.Round(frac * float64(end.Sub(start))))
			stamps = append(stamps, start.Add(off))
		}

	case hasStart && hasEnd:
		for t := start; !t.After(end) && step > 0; t = t.Add(step) {
			stamps = append(stamps, t)
		}

		for t := start; !t.Before(end) && step < 0; t = t.Add(step) {
			stamps = append(stamps, t)
		}

	case hasStart && periods >= 0:
		for i := range periods {
			stamps = append(stamps, start.Add(time.Duration(i)*step))
		}

	case hasEnd && periods >= 0:
		for i := periods - 1; i >= 0; i-- {
			stamps = append(stamps, end.Add(-time.Duration(i)*step))
		}

	default:
		return lang.Null(), lang.ErrArgumentCount.With(
			slog.String("function", p.fn),
			slog.String("reason", "of start, end, periods and freq, exactly three must be specified"),
		)
	}

	out := make([]lang.Value, len(stamps))
	for i, t := range stamps {
		out[i] = lang.Time(t)
	}

	return lang.ColumnValue(NewColumn(name, out)), nil
}
