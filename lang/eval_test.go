package lang

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		// Precedence and associativity
		{"precedence", "1 + 2 * 3", "7"},
		{"grouping", "(1 + 2) * 3", "9"},
		{"power right assoc", "2 ** 3 ** 2", "512"},
		{"signed literal", "-2 ** 2", "4"},
		{"subtract negative", "2 - -1", "3"},
		{"left assoc", "10 - 4 - 3", "3"},
		{"bitwise", "6 & 3 | 8", "10"},
		{"xor", "5 ^ 1", "4"},
		{"comparison binds loosest", "1 + 1 == 2", "True"},
		{"membership", "3 in [1, 2, 3]", "True"},
		{"substring", "'b' in 'abc'", "True"},
		{"invert bool", "~True", "False"},
		{"invert int", "~5", "-6"},

		// Arithmetic
		{"true division", "7 / 2", "3.5"},
		{"floor division", "-7 // 2", "-4"},
		{"modulo", "-7 % 3", "2"},
		{"leading point", "0.5 + .25", "0.75"},
		{"exponent", "1e3", "1000.0"},
		{"imaginary", "2j * 2j", "(-4+0j)"},
		{"mixed equality", "1 == 1.0", "True"},
		{"string concat", "'a' + \"b\"", "'ab'"},
		{"string repeat", "'ab' * 2", "'abab'"},
		{"list concat", "[1, 2] + [3]", "[1, 2, 3]"},
		{"nested list", "[[1, 'a'], None, True]", "[[1, 'a'], None, True]"},
		{"none", "None", "None"},

		// Primitives
		{"list literal", "[1,2,3,4]", "[1, 2, 3, 4]"},
		{"range", "range(6)", "[0, 1, 2, 3, 4, 5]"},
		{"range step", "range(6, 13, 3)", "[6, 9, 12]"},
		{"range negative", "range(3, 0, -1)", "[3, 2, 1]"},
		{"map", "map(lambda x, y: x + 2 + y, [1,2], [10, 20])", "[13, 24]"},
		{"list map", "list(map(lambda x, y: x + 2 + y, [1,2], [10, 20]))", "[13, 24]"},
		{"filter", "filter(lambda x: x % 2 == 0, [0,1,2,3,4,5])", "[0, 2, 4]"},
		{"filter none", "filter(None, [0, 1, '', 'a'])", "[1, 'a']"},
		{"list string", "list('ab')", "['a', 'b']"},
		{"int", "int('42') + 1", "43"},
		{"int truncates", "int(-2.7)", "-2"},
		{"float", "float('1.5')", "1.5"},
		{"str", "str(12) + 'a'", "'12a'"},
		{"bool", "bool([])", "False"},
		{"complex", "complex(1, 2)", "(1+2j)"},
		{"complex string", "complex('1+2j')", "(1+2j)"},

		// Scalar methods and properties
		{"upper", "'Hello'.upper()", "'HELLO'"},
		{"title", "'hello wORLD'.title()", "'Hello World'"},
		{"chained", "' a b '.strip().upper()", "'A B'"},
		{"is_integer", "(1.5).is_integer()", "False"},
		{"imag", "(3+4j).imag", "4.0"},

		// Numeric namespace
		{"np mean", "np.mean(list(range(100)))", "49.5"},
		{"numpy mean", "numpy.mean([1, 2, 3, 4])", "2.5"},
		{"np sum", "np.sum([1, 2, 3])", "6"},
		{"np abs", "np.abs([-1, 2])", "[1, 2]"},
		{"np axis none", "np.max([3, 9, 4], axis=None)", "9"},

		// Conditionals
		{"ternary then", "1 if True else 2", "1"},
		{"ternary else", "1 if 0 else 2", "2"},
		{"ternary no else", "1 if False", "None"},
		{"ternary lazy", "1 if True else 1 / 0", "1"},
		{"ternary in group", "(0 if 1 > 2 else 5) * 2", "10"},
	}

	e := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := e.Evaluate(t.Context(), tt.expr)
			if err != nil {
				t.Fatalf("Evaluate(%q) failed: %v", tt.expr, err)
			}

			if got := v.Repr(); got != tt.want {
				t.Errorf("Evaluate(%q) = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Ternary(t *testing.T) {
	tests := []struct {
		expr string
		v    int64
		want string
	}{
		{"0 if v < 9 else 10", 5, "0"},
		{"2 if v < 2 else (0 if v < 8 else 1) | (v == 5)", 1, "2"},
		{"2 if v < 2 else (0 if v < 8 else 1) | (v == 5)", 7, "0"},
		{"2 if v < 2 else (0 if v < 8 else 1) | (v == 5)", 5, "1"},
		{"2 if v < 2 else (0 if v < 8 else 1 & (v == 10))", 10, "1"},
		{"2 if v < 2 else (0 if v < 8 else 1 & (v == 10))", 9, "0"},
		{"2 if v < 2 else (0 if v < 8 else 1 & v == 10)", 10, "False"},
		{"0 if v < 2 else (1 if v < 3 else 2)", 1, "0"},
	}

	e := New()

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := e.Evaluate(t.Context(), tt.expr, WithLocal("v", Int(tt.v)))
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}

			if got := v.Repr(); got != tt.want {
				t.Errorf("v=%d: got %s, want %s", tt.v, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want *Error
	}{
		{"forbidden call", "eval(2 + 2)", ErrUnsupportedFunction},
		{"unknown identifier", "os", ErrUnsupportedFunction},
		{"unknown namespace member", "np.frobnicate([1])", ErrUnsupportedFunction},
		{"missing operand", "1 +", ErrStackUnderflow},
		{"leading operator", "* 2", ErrStackUnderflow},
		{"two operands", "1 2", ErrAmbiguousResult},
		{"empty", "", ErrEmptyExpression},
		{"blank", "   ", ErrEmptyExpression},
		{"unclosed", "(1 + 2", ErrBracketMismatch},
		{"unopened", "1 + 2)", ErrBracketMismatch},
		{"unclosed call", "int(1", ErrBracketMismatch},
		{"division by zero", "1 / 0", ErrArithmetic},
		{"range step zero", "range(0, 5, 0)", ErrArithmetic},
		{"int overflow", "int(1e300)", ErrArithmetic},
		{"int negative overflow", "int(-1e19)", ErrArithmetic},
		{"range too long", "range(10 ** 12)", ErrArithmetic},
		{"repeat too long", "'ab' * 10 ** 9", ErrArithmetic},
		{"type mismatch", "'a' - 1", ErrOperandType},
		{"ordering mismatch", "'a' < 1", ErrOperandType},
		{"unterminated string", "'abc", ErrLex},
		{"bad character", "1 @ 2", ErrLex},
		{"bad lambda", "lambda 1: 2", ErrLex},
		{"empty argument", "int(1,,2)", ErrLex},
		{"argument order", "np.mean(a=[1], None)", ErrArgumentOrder},
		{"too many arguments", "range(1, 2, 3, 4)", ErrArgumentCount},
		{"unexpected keyword", "np.mean([1], weights=2)", ErrArgumentCount},
		{"axis", "np.mean([1], axis=0)", ErrOperandType},
		{"receiver type", "(1).apply(lambda x: x)", ErrInvalidReceiverType},
		{"unknown method", "'a'.frobnicate()", ErrUnknownCapability},
		{"unknown property", "(1).year", ErrUnknownCapability},
		{"no table", "${col1}", ErrNoTable},
		{"callable operand", "1 + int", ErrAmbiguousResult},
	}

	e := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(t.Context(), tt.expr)
			if err == nil {
				t.Fatalf("Evaluate(%q) succeeded, want %v", tt.expr, tt.want)
			}

			if !errors.Is(err, tt.want) {
				t.Errorf("Evaluate(%q) error = %v, want %v", tt.expr, err, tt.want)
			}
		})
	}
}

func TestEvaluate_Position(t *testing.T) {
	_, err := New().Evaluate(t.Context(), "1 + 2)")

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}

	pos, ok := e.Attr("position")
	if !ok || pos.Int64() != 5 {
		t.Errorf("expected position 5, got %v", pos)
	}

	ctx, ok := e.Attr("context")
	if !ok || !strings.Contains(ctx.String(), "--> ) <--") {
		t.Errorf("expected context pointing at ')', got %q", ctx.String())
	}
}

func TestEvaluate_Locals(t *testing.T) {
	double := NewFunc("double", func(_ context.Context, args Arguments) (Value, error) {
		if err := args.Expect("double", 1, 1); err != nil {
			return Null(), err
		}

		return Binary("*", args.Positional[0], Int(2))
	})

	tests := []struct {
		name   string
		expr   string
		locals map[string]Value
		want   string
	}{
		{"variable", "x * 2", map[string]Value{"x": Int(5)}, "10"},
		{"variable method", "s.upper()", map[string]Value{"s": String("hi")}, "'HI'"},
		{"variable property", "z.real", map[string]Value{"z": Complex(3 + 4i)}, "3.0"},
		{"local as argument", "list(xs)", map[string]Value{"xs": Seq(Int(1), Int(2))}, "[1, 2]"},
		{"captured", "map(lambda y: x + y, [1, 2])", map[string]Value{"x": Int(10)}, "[11, 12]"},
		{"shadowed", "map(lambda x: x * 2, [1, 2])", map[string]Value{"x": Int(10)}, "[2, 4]"},
		{"lambda local", "list(map(f, [1, 2]))", map[string]Value{"f": CallableValue(double)}, "[2, 4]"},
	}

	e := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := e.Evaluate(t.Context(), tt.expr, WithLocals(tt.locals))
			if err != nil {
				t.Fatalf("Evaluate(%q) failed: %v", tt.expr, err)
			}

			if got := v.Repr(); got != tt.want {
				t.Errorf("Evaluate(%q) = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluate_LocalCallRejected(t *testing.T) {
	double := NewFunc("double", func(_ context.Context, args Arguments) (Value, error) {
		return Binary("*", args.Positional[0], Int(2))
	})

	e := New()

	tests := []struct {
		name   string
		expr   string
		locals map[string]Value
	}{
		{"host callable", "double(21)", map[string]Value{"double": CallableValue(double)}},
		{"not callable", "x(1)", map[string]Value{"x": Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(t.Context(), tt.expr, WithLocals(tt.locals))
			if !errors.Is(err, ErrUnsupportedFunction) {
				t.Errorf("Evaluate(%q): expected ErrUnsupportedFunction, got %v", tt.expr, err)
			}
		})
	}

	t.Run("lambda local", func(t *testing.T) {
		lam, err := e.Evaluate(t.Context(), "lambda y: y * 10")
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}

		_, err = e.Evaluate(t.Context(), "f(3)", WithLocal("f", lam))
		if !errors.Is(err, ErrUnsupportedFunction) {
			t.Errorf("expected ErrUnsupportedFunction, got %v", err)
		}
	})
}

func TestClosure(t *testing.T) {
	e := New()

	compile := func(t *testing.T, expr string) Callable {
		t.Helper()

		v, err := e.Evaluate(t.Context(), expr)
		if err != nil {
			t.Fatalf("Evaluate(%q) failed: %v", expr, err)
		}

		fn, ok := v.AsCallable()
		if !ok {
			t.Fatalf("Evaluate(%q) = %s, want callable", expr, v.TypeName())
		}

		return fn
	}

	t.Run("positional", func(t *testing.T) {
		fn := compile(t, "lambda a, b, c, d: a + b - c * d")

		v, err := fn.Call(t.Context(), Args(Int(1), Int(2), Int(3), Int(4)))
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}

		if v.Repr() != "-9" {
			t.Errorf("expected -9, got %s", v.Repr())
		}
	})

	numbers := make([]Value, 100)
	for i := range numbers {
		numbers[i] = Int(int64(i))
	}

	for _, expr := range []string{
		"lambda a, axis: np.mean(a=a, axis=axis)",
		"lambda a, axis: np.mean(a, axis)",
		"lambda a, axis: np.mean(a, axis=axis)",
	} {
		t.Run(expr, func(t *testing.T) {
			v, err := compile(t, expr).Call(t.Context(), Args(Seq(numbers...), Null()))
			if err != nil {
				t.Fatalf("Call failed: %v", err)
			}

			if v.Repr() != "49.5" {
				t.Errorf("expected 49.5, got %s", v.Repr())
			}
		})
	}

	t.Run("argument order", func(t *testing.T) {
		fn := compile(t, "lambda a, axis: np.mean(a=a, axis)")

		_, err := fn.Call(t.Context(), Args(Seq(numbers...), Null()))
		if !errors.Is(err, ErrArgumentOrder) {
			t.Errorf("expected ErrArgumentOrder, got %v", err)
		}
	})

	t.Run("keyword", func(t *testing.T) {
		fn := compile(t, "lambda a, b: a - b")

		v, err := fn.Call(t.Context(), Args(Int(1)).WithKeyword("a", Int(10)))
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}

		if v.Repr() != "9" {
			t.Errorf("expected 9, got %s", v.Repr())
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := compile(t, "lambda a, b: a").Call(t.Context(), Args(Int(1)))
		if !errors.Is(err, ErrArgumentCount) {
			t.Errorf("expected ErrArgumentCount, got %v", err)
		}
	})

	t.Run("extra", func(t *testing.T) {
		_, err := compile(t, "lambda a: a").Call(t.Context(), Args(Int(1), Int(2)))
		if !errors.Is(err, ErrArgumentCount) {
			t.Errorf("expected ErrArgumentCount, got %v", err)
		}
	})

	t.Run("keyword over captured", func(t *testing.T) {
		v, err := e.Evaluate(t.Context(), "lambda y: x + y", WithLocal("x", Int(1)))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}

		fn, _ := v.AsCallable()

		got, err := fn.Call(t.Context(), Args(Int(0)).WithKeyword("x", Int(2)))
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}

		if got.Repr() != "2" {
			t.Errorf("expected 2, got %s", got.Repr())
		}

		got, err = fn.Call(t.Context(), Args(Int(0)))
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}

		if got.Repr() != "1" {
			t.Errorf("expected captured 1, got %s", got.Repr())
		}
	})

	t.Run("keyword parameter", func(t *testing.T) {
		v, err := compile(t, "lambda x: x").Call(t.Context(), Args().WithKeyword("x", Int(2)))
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}

		if v.Repr() != "2" {
			t.Errorf("expected 2, got %s", v.Repr())
		}
	})

	t.Run("string", func(t *testing.T) {
		fn := compile(t, "lambda x,y:  x+y")
		if s := fn.(*Closure).String(); s != "lambda x, y: x+y" {
			t.Errorf("unexpected rendering %q", s)
		}
	})
}

func TestEvaluate_Limits(t *testing.T) {
	t.Run("depth", func(t *testing.T) {
		e := New(WithMaxDepth(2))

		if _, err := e.Evaluate(t.Context(), "int(1)"); err != nil {
			t.Fatalf("expected depth 2 to suffice, got %v", err)
		}

		_, err := e.Evaluate(t.Context(), "int(int(int(1)))")
		if !errors.Is(err, ErrMaxDepthExceeded) {
			t.Errorf("expected ErrMaxDepthExceeded, got %v", err)
		}
	})

	t.Run("length", func(t *testing.T) {
		_, err := New(WithMaxLength(5)).Evaluate(t.Context(), "1 + 2 + 3")
		if !errors.Is(err, ErrExpressionTooLong) {
			t.Errorf("expected ErrExpressionTooLong, got %v", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := New().Evaluate(ctx, "1 + 1")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestCheck(t *testing.T) {
	e := New()

	tokens, err := e.Check(t.Context(), "x + int('2')", "x")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	want := []TokenKind{TokenVariable, TokenOperator, TokenFunction}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}

	for i, k := range want {
		if tokens[i].Kind != k {
			t.Errorf("token %d: expected %s, got %s", i, k, tokens[i].Kind)
		}
	}

	if _, err := e.Check(t.Context(), "(x", "x"); !errors.Is(err, ErrBracketMismatch) {
		t.Errorf("expected ErrBracketMismatch, got %v", err)
	}
}

func TestNames(t *testing.T) {
	p, err := PolicyConfig{
		Allowed:           []string{"int"},
		NamespacePrefixes: []string{"np"},
		Forbidden:         []string{"np.std"},
	}.Policy()
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}

	names := New(WithPolicy(p)).Names()

	has := func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}

		return false
	}

	for _, name := range []string{"int", "np.mean"} {
		if !has(name) {
			t.Errorf("expected %q in names", name)
		}
	}

	for _, name := range []string{"range", "np.std", "numpy.mean"} {
		if has(name) {
			t.Errorf("expected %q to be excluded", name)
		}
	}
}

func TestLookup(t *testing.T) {
	e := New()

	tests := []struct {
		name   string
		params []string
	}{
		{"range", []string{"start", "stop", "step"}},
		{"np.round", []string{"a", "decimals"}},
		{"str", []string{"object"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := e.Lookup(t.Context(), tt.name)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}

			if got := Params(fn); !slices.Equal(got, tt.params) {
				t.Errorf("expected params %v, got %v", tt.params, got)
			}
		})
	}

	if _, err := e.Lookup(t.Context(), "eval"); !errors.Is(err, ErrUnsupportedFunction) {
		t.Errorf("expected ErrUnsupportedFunction, got %v", err)
	}
}
