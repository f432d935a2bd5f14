package lang

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestBinary(t *testing.T) {
	tests := []struct {
		op   string
		a, b Value
		want string
	}{
		{"+", Int(1), Int(2), "3"},
		{"+", Int(math.MaxInt64), Int(1), "9.223372036854776e+18"},
		{"+", Int(1), Float(0.5), "1.5"},
		{"+", Bool(true), Bool(true), "2"},
		{"+", String("a"), String("b"), "'ab'"},
		{"+", Seq(Int(1)), Seq(Int(2)), "[1, 2]"},
		{"-", Float(1), Complex(1i), "(1-1j)"},
		{"*", Int(3), String("ab"), "'ababab'"},
		{"*", Seq(Int(0)), Int(-1), "[]"},
		{"/", Int(1), Int(4), "0.25"},
		{"//", Int(7), Int(-2), "-4"},
		{"//", Float(7), Float(2), "3.0"},
		{"%", Int(7), Int(-3), "-2"},
		{"%", Float(-1), Float(3), "2.0"},
		{"**", Int(2), Int(-1), "0.5"},
		{"**", Int(2), Int(64), "1.8446744073709552e+19"},
		{"**", Float(4), Float(0.5), "2.0"},
		{"&", Bool(true), Bool(false), "False"},
		{"|", Int(4), Bool(true), "5"},
		{"^", Bool(true), Bool(true), "False"},
		{"==", Int(1), Float(1), "True"},
		{"==", Int(1), String("1"), "False"},
		{"!=", Null(), Null(), "False"},
		{"<", String("a"), String("b"), "True"},
		{"<", Float(math.NaN()), Int(1), "False"},
		{">=", Float(math.NaN()), Float(math.NaN()), "False"},
		{"<", Seq(Int(1), Int(2)), Seq(Int(1), Int(3)), "True"},
		{">", Time(time.Unix(1, 0)), Time(time.Unix(0, 0)), "True"},
		{"in", String("b"), String("abc"), "True"},
		{"in", Int(2), Seq(Int(1), Float(2)), "True"},
		{"in", Null(), Seq(Int(1)), "False"},
	}

	for _, tt := range tests {
		t.Run(tt.a.Repr()+" "+tt.op+" "+tt.b.Repr(), func(t *testing.T) {
			v, err := Binary(tt.op, tt.a, tt.b)
			if err != nil {
				t.Fatalf("Binary failed: %v", err)
			}

			if got := v.Repr(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestBinary_Errors(t *testing.T) {
	tests := []struct {
		op   string
		a, b Value
		want *Error
	}{
		{"/", Int(1), Int(0), ErrArithmetic},
		{"//", Float(1), Float(0), ErrArithmetic},
		{"%", Int(1), Int(0), ErrArithmetic},
		{"**", Int(0), Int(-1), ErrArithmetic},
		{"/", Complex(1), Complex(0), ErrArithmetic},
		{"-", String("a"), String("b"), ErrOperandType},
		{"<", Int(1), String("a"), ErrOperandType},
		{"&", Float(1), Int(1), ErrOperandType},
		{"%", Complex(1), Complex(1), ErrOperandType},
		{"in", Int(1), Int(1), ErrOperandType},
		{"~", Int(1), Int(1), ErrOperandType},
		{"@", Int(1), Int(1), ErrOperandType},
	}

	for _, tt := range tests {
		t.Run(tt.a.Repr()+" "+tt.op+" "+tt.b.Repr(), func(t *testing.T) {
			_, err := Binary(tt.op, tt.a, tt.b)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUnary(t *testing.T) {
	tests := []struct {
		v    Value
		want string
		err  *Error
	}{
		{Bool(true), "False", nil},
		{Bool(false), "True", nil},
		{Int(0), "-1", nil},
		{Int(-6), "5", nil},
		{Float(1), "", ErrOperandType},
		{String("a"), "", ErrOperandType},
	}

	for _, tt := range tests {
		t.Run(tt.v.Repr(), func(t *testing.T) {
			v, err := Unary("~", tt.v)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("expected %v, got %v", tt.err, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("Unary failed: %v", err)
			}

			if got := v.Repr(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := Unary("+", Int(1)); !errors.Is(err, ErrOperandType) {
		t.Errorf("expected ErrOperandType for non-unary operator, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Value
		want int
	}{
		{Int(1), Int(2), -1},
		{Float(2), Int(2), 0},
		{Bool(true), Int(0), 1},
		{String("b"), String("a"), 1},
		{Seq(Int(1)), Seq(Int(1), Int(0)), -1},
	}

	for _, tt := range tests {
		t.Run(tt.a.Repr()+" "+tt.b.Repr(), func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Compare failed: %v", err)
			}

			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}

	if _, err := Compare(Float(math.NaN()), Int(1)); !errors.Is(err, ErrOperandType) {
		t.Errorf("expected NaN to be unordered, got %v", err)
	}
}

func TestPrecedence(t *testing.T) {
	order := []string{"in", "<", "|", "^", "&", "+", "*", "~", "**"}

	for i := 1; i < len(order); i++ {
		if Precedence(order[i-1]) >= Precedence(order[i]) {
			t.Errorf("expected %q to bind looser than %q", order[i-1], order[i])
		}
	}

	if Precedence("//") != Precedence("%") || Precedence("==") != Precedence(">=") {
		t.Error("expected operators of a group to share precedence")
	}

	if Precedence("and") != -1 {
		t.Errorf("expected -1 for non-operator, got %d", Precedence("and"))
	}
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		str  string
		repr string
		name string
	}{
		{Null(), "None", "None", "NoneType"},
		{Int(-3), "-3", "-3", "int"},
		{Float(2), "2.0", "2.0", "float"},
		{Float(0.1), "0.1", "0.1", "float"},
		{Float(math.NaN()), "nan", "nan", "float"},
		{Float(math.Inf(-1)), "-inf", "-inf", "float"},
		{Float(1e17), "1e+17", "1e+17", "float"},
		{Bool(true), "True", "True", "bool"},
		{String("x"), "x", "'x'", "str"},
		{Complex(-2i), "-2j", "-2j", "complex"},
		{Complex(1 + 2i), "(1+2j)", "(1+2j)", "complex"},
		{Time(time.Date(2022, 11, 11, 8, 30, 0, 0, time.UTC)), "2022-11-11 08:30:00", "2022-11-11 08:30:00", "datetime"},
		{Seq(String("a"), Seq(Int(1))), "['a', [1]]", "['a', [1]]", "list"},
	}

	for _, tt := range tests {
		t.Run(tt.repr, func(t *testing.T) {
			if got := tt.v.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}

			if got := tt.v.Repr(); got != tt.repr {
				t.Errorf("Repr() = %q, want %q", got, tt.repr)
			}

			if got := tt.v.TypeName(); got != tt.name {
				t.Errorf("TypeName() = %q, want %q", got, tt.name)
			}
		})
	}
}

func TestValue_Truthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Null(), false},
		{Int(0), false},
		{Float(0.1), true},
		{Complex(0), false},
		{String(""), false},
		{String("0"), true},
		{Seq(), false},
		{Seq(Null()), true},
		{Time(time.Time{}), true},
	}

	for _, tt := range tests {
		t.Run(tt.v.Repr(), func(t *testing.T) {
			if got := tt.v.Truthy(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFromNative(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "None"},
		{3, "3"},
		{uint8(7), "7"},
		{float32(0.5), "0.5"},
		{"s", "'s'"},
		{[]any{1, "a", nil}, "[1, 'a', None]"},
		{[]int{1, 2}, "[1, 2]"},
		{[]string{"a"}, "['a']"},
		{complex64(1i), "1j"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			v, err := FromNative(tt.in)
			if err != nil {
				t.Fatalf("FromNative failed: %v", err)
			}

			if got := v.Repr(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := FromNative(struct{}{}); !errors.Is(err, ErrOperandType) {
		t.Errorf("expected ErrOperandType, got %v", err)
	}
}

func TestIsMissing(t *testing.T) {
	if !IsMissing(Null()) || !IsMissing(Float(math.NaN())) {
		t.Error("expected None and NaN to be missing")
	}

	if IsMissing(Int(0)) || IsMissing(String("")) {
		t.Error("expected zero values to be present")
	}
}
