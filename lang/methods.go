package lang

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
	"unicode"
)

// vectorMethods may only be invoked on columns and tables.
var vectorMethods = map[string]struct{}{
	"apply":    {},
	"quantile": {},
}

type (
	scalarMethod   func(recv Value, args Arguments) (Value, error)
	scalarProperty func(recv Value) Value
)

// method returns the callable bound to name on recv.
func method(recv Value, name string) (Callable, error) {
	if _, ok := vectorMethods[name]; ok && !recv.IsVector() {
		return nil, ErrInvalidReceiverType.With(
			slog.String("method", name),
			slog.String("receiver", recv.TypeName()),
		)
	}

	if caps, ok := recv.Capabilities(); ok {
		if fn, ok := caps.Method(name); ok {
			return fn, nil
		}
	} else if m, ok := scalarMethods[recv.kind][name]; ok {
		return NewFunc(name, func(_ context.Context, args Arguments) (Value, error) {
			return m(recv, args)
		}), nil
	}

	return nil, ErrUnknownCapability.With(
		slog.String("method", name),
		slog.String("receiver", recv.TypeName()),
	)
}

// property returns the named property of recv.
func property(recv Value, name string) (Value, error) {
	if caps, ok := recv.Capabilities(); ok {
		if v, ok := caps.Property(name); ok {
			return v, nil
		}
	} else if p, ok := scalarProperties[recv.kind][name]; ok {
		return p(recv), nil
	}

	return Null(), ErrUnknownCapability.With(
		slog.String("property", name),
		slog.String("receiver", recv.TypeName()),
	)
}

// Methods returns the names of the methods available on values of kind k
// that are implemented by this package.
func Methods(k Kind) []string { return sortedKeys(scalarMethods[k]) }

// Properties returns the names of the properties available on values of
// kind k that are implemented by this package.
func Properties(k Kind) []string { return sortedKeys(scalarProperties[k]) }

// Members returns the method and property names reachable on v. Host
// capabilities contribute names when they implement Members() []string.
func Members(v Value) []string {
	var caps any

	switch v.kind {
	case KindColumn:
		caps = v.col
	case KindTable:
		caps = v.tab
	case KindObject:
		caps = v.obj
	default:
		names := append(Methods(v.kind), Properties(v.kind)...)
		slices.Sort(names)

		return slices.Compact(names)
	}

	if m, ok := caps.(interface{ Members() []string }); ok {
		return m.Members()
	}

	return nil
}

var scalarMethods = map[Kind]map[string]scalarMethod{
	KindString: {
		"lower":      stringUnary(strings.ToLower),
		"upper":      stringUnary(strings.ToUpper),
		"title":      stringUnary(Title),
		"capitalize": stringUnary(capitalize),
		"strip":      stringTrim(strings.Trim, strings.TrimSpace),
		"lstrip":     stringTrim(strings.TrimLeft, func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }),
		"rstrip":     stringTrim(strings.TrimRight, func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }),
		"startswith": stringPredicate("startswith", "prefix", strings.HasPrefix),
		"endswith":   stringPredicate("endswith", "suffix", strings.HasSuffix),
		"find":       stringFind,
		"count":      stringCount,
		"replace":    stringReplace,
		"split":      stringSplit,
		"join":       stringJoin,
		"isdigit":    stringClass(unicode.IsDigit),
		"isalpha":    stringClass(unicode.IsLetter),
		"isspace":    stringClass(unicode.IsSpace),
	},
	KindInt: {
		"bit_length": func(recv Value, args Arguments) (Value, error) {
			if err := args.Expect("bit_length", 0, 0); err != nil {
				return Null(), err
			}

			n := recv.i
			if n < 0 {
				n = -n
			}

			bits := 0
			for ; n > 0; n >>= 1 {
				bits++
			}

			return Int(int64(bits)), nil
		},
		"conjugate": identity("conjugate"),
	},
	KindFloat: {
		"is_integer": func(recv Value, args Arguments) (Value, error) {
			if err := args.Expect("is_integer", 0, 0); err != nil {
				return Null(), err
			}

			return Bool(!math.IsInf(recv.f, 0) && recv.f == math.Trunc(recv.f)), nil
		},
		"conjugate": identity("conjugate"),
	},
	KindComplex: {
		"conjugate": func(recv Value, args Arguments) (Value, error) {
			if err := args.Expect("conjugate", 0, 0); err != nil {
				return Null(), err
			}

			return Complex(complex(real(recv.c), -imag(recv.c))), nil
		},
	},
	KindTime: {
		"weekday": func(recv Value, args Arguments) (Value, error) {
			if err := args.Expect("weekday", 0, 0); err != nil {
				return Null(), err
			}

			return Int(Weekday(recv.t)), nil
		},
		"isoformat": func(recv Value, args Arguments) (Value, error) {
			if err := args.Expect("isoformat", 0, 0); err != nil {
				return Null(), err
			}

			return String(recv.t.Format("2006-01-02T15:04:05")), nil
		},
		"date": func(recv Value, args Arguments) (Value, error) {
			if err := args.Expect("date", 0, 0); err != nil {
				return Null(), err
			}

			y, m, d := recv.t.Date()

			return Time(time.Date(y, m, d, 0, 0, 0, 0, recv.t.Location())), nil
		},
	},
	KindSequence: {
		"tolist": func(recv Value, args Arguments) (Value, error) {
			if err := args.Expect("tolist", 0, 0); err != nil {
				return Null(), err
			}

			return Seq(slices.Clone(recv.seq)...), nil
		},
		"count": func(recv Value, args Arguments) (Value, error) {
			if err := args.Expect("count", 1, 1); err != nil {
				return Null(), err
			}

			x, _ := args.Lookup(0, "value")
			n := 0

			for _, e := range recv.seq {
				if e.Equal(x) {
					n++
				}
			}

			return Int(int64(n)), nil
		},
		"index": func(recv Value, args Arguments) (Value, error) {
			if err := args.Expect("index", 1, 1); err != nil {
				return Null(), err
			}

			x, _ := args.Lookup(0, "value")

			for i, e := range recv.seq {
				if e.Equal(x) {
					return Int(int64(i)), nil
				}
			}

			return Null(), ErrOperandType.With(
				slog.String("method", "index"),
				slog.String("reason", x.Repr()+" is not in list"),
			)
		},
	},
}

var scalarProperties = map[Kind]map[string]scalarProperty{
	KindInt: {
		"real": func(v Value) Value { return v },
		"imag": func(Value) Value { return Int(0) },
	},
	KindFloat: {
		"real": func(v Value) Value { return v },
		"imag": func(Value) Value { return Float(0) },
	},
	KindComplex: {
		"real": func(v Value) Value { return Float(real(v.c)) },
		"imag": func(v Value) Value { return Float(imag(v.c)) },
	},
	KindTime: {
		"year":      func(v Value) Value { return Int(int64(v.t.Year())) },
		"month":     func(v Value) Value { return Int(int64(v.t.Month())) },
		"day":       func(v Value) Value { return Int(int64(v.t.Day())) },
		"hour":      func(v Value) Value { return Int(int64(v.t.Hour())) },
		"minute":    func(v Value) Value { return Int(int64(v.t.Minute())) },
		"second":    func(v Value) Value { return Int(int64(v.t.Second())) },
		"dayofweek": func(v Value) Value { return Int(Weekday(v.t)) },
		"dayofyear": func(v Value) Value { return Int(int64(v.t.YearDay())) },
	},
}

// Weekday returns the day of the week of t with Monday as 0.
func Weekday(t time.Time) int64 { return int64((t.Weekday() + 6) % 7) }

// Title upper-cases the first letter of every word and lower-cases the rest.
func Title(s string) string {
	var sb strings.Builder

	prev := false

	for _, r := range s {
		if unicode.IsLetter(r) {
			if prev {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}

			prev = true

			continue
		}

		prev = false

		sb.WriteRune(r)
	}

	return sb.String()
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + strings.ToLower(s[i+len(string(r)):])
	}

	return s
}

func identity(name string) scalarMethod {
	return func(recv Value, args Arguments) (Value, error) {
		if err := args.Expect(name, 0, 0); err != nil {
			return Null(), err
		}

		return recv, nil
	}
}

func stringUnary(fn func(string) string) scalarMethod {
	return func(recv Value, args Arguments) (Value, error) {
		if err := args.Expect("str", 0, 0); err != nil {
			return Null(), err
		}

		return String(fn(recv.s)), nil
	}
}

func stringTrim(
	cutset func(string, string) string,
	space func(string) string,
) scalarMethod {
	return func(recv Value, args Arguments) (Value, error) {
		if err := args.Expect("strip", 0, 1); err != nil {
			return Null(), err
		}

		chars, ok := args.Lookup(0, "chars")
		if !ok || chars.IsNull() {
			return String(space(recv.s)), nil
		}

		s, ok := chars.AsString()
		if !ok {
			return Null(), operandError("strip", chars)
		}

		return String(cutset(recv.s, s)), nil
	}
}

func stringArg(fn string, args Arguments, pos int, name string) (string, error) {
	v, ok := args.Lookup(pos, name)
	if !ok {
		return "", ErrArgumentCount.With(
			slog.String("method", fn),
			slog.String("missing", name),
		)
	}

	s, ok := v.AsString()
	if !ok {
		return "", operandError(fn, v)
	}

	return s, nil
}

func stringPredicate(
	fn, param string,
	pred func(string, string) bool,
) scalarMethod {
	return func(recv Value, args Arguments) (Value, error) {
		if err := args.Expect(fn, 1, 1); err != nil {
			return Null(), err
		}

		s, err := stringArg(fn, args, 0, param)
		if err != nil {
			return Null(), err
		}

		return Bool(pred(recv.s, s)), nil
	}
}

func stringFind(recv Value, args Arguments) (Value, error) {
	if err := args.Expect("find", 1, 1); err != nil {
		return Null(), err
	}

	sub, err := stringArg("find", args, 0, "sub")
	if err != nil {
		return Null(), err
	}

	i := strings.Index(recv.s, sub)
	if i > 0 {
		i = len([]rune(recv.s[:i]))
	}

	return Int(int64(i)), nil
}

func stringCount(recv Value, args Arguments) (Value, error) {
	if err := args.Expect("count", 1, 1); err != nil {
		return Null(), err
	}

	sub, err := stringArg("count", args, 0, "sub")
	if err != nil {
		return Null(), err
	}

	return Int(int64(strings.Count(recv.s, sub))), nil
}

func stringReplace(recv Value, args Arguments) (Value, error) {
	if err := args.Expect("replace", 2, 3); err != nil {
		return Null(), err
	}

	old, err := stringArg("replace", args, 0, "old")
	if err != nil {
		return Null(), err
	}

	repl, err := stringArg("replace", args, 1, "new")
	if err != nil {
		return Null(), err
	}

	n := int64(-1)

	if v, ok := args.Lookup(2, "count"); ok {
		if n, ok = v.AsInt(); !ok {
			return Null(), operandError("replace", v)
		}
	}

	return String(strings.Replace(recv.s, old, repl, int(n))), nil
}

func stringSplit(recv Value, args Arguments) (Value, error) {
	if err := args.Expect("split", 0, 1); err != nil {
		return Null(), err
	}

	var parts []string

	if sep, ok := args.Lookup(0, "sep"); ok && !sep.IsNull() {
		s, ok := sep.AsString()
		if !ok || s == "" {
			return Null(), operandError("split", sep)
		}

		parts = strings.Split(recv.s, s)
	} else {
		parts = strings.Fields(recv.s)
	}

	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = String(p)
	}

	return Seq(out...), nil
}

func stringJoin(recv Value, args Arguments) (Value, error) {
	if err := args.Expect("join", 1, 1); err != nil {
		return Null(), err
	}

	v, _ := args.Lookup(0, "iterable")

	vals, ok := Iterate(v)
	if !ok {
		return Null(), notIterable("join", v)
	}

	parts := make([]string, len(vals))

	for i, e := range vals {
		s, ok := e.AsString()
		if !ok {
			return Null(), operandError("join", e)
		}

		parts[i] = s
	}

	return String(strings.Join(parts, recv.s)), nil
}

func stringClass(class func(rune) bool) scalarMethod {
	return func(recv Value, args Arguments) (Value, error) {
		if err := args.Expect("str", 0, 0); err != nil {
			return Null(), err
		}

		if recv.s == "" {
			return Bool(false), nil
		}

		for _, r := range recv.s {
			if !class(r) {
				return Bool(false), nil
			}
		}

		return Bool(true), nil
	}
}
