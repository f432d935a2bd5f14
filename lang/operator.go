package lang

import (
	"log/slog"
	"math"
	"math/cmplx"
	"strings"
)

// MaxSequenceLength bounds the sequences and strings that repetition and
// range may produce.
const MaxSequenceLength = 1 << 24

// operator describes one entry of the operator table.
type operator struct {
	symbol string
	prec   int
	right  bool // right-associative
	unary  bool
}

// operators is the operator table ordered by ascending precedence.
var operators = map[string]operator{
	"in": {symbol: "in", prec: 1},
	"==": {symbol: "==", prec: 2},
	"!=": {symbol: "!=", prec: 2},
	">=": {symbol: ">=", prec: 2},
	">":  {symbol: ">", prec: 2},
	"<":  {symbol: "<", prec: 2},
	"<=": {symbol: "<=", prec: 2},
	"|":  {symbol: "|", prec: 3},
	"^":  {symbol: "^", prec: 4},
	"&":  {symbol: "&", prec: 5},
	"+":  {symbol: "+", prec: 6},
	"-":  {symbol: "-", prec: 6},
	"*":  {symbol: "*", prec: 7},
	"/":  {symbol: "/", prec: 7},
	"//": {symbol: "//", prec: 7},
	"%":  {symbol: "%", prec: 7},
	"~":  {symbol: "~", prec: 8, right: true, unary: true},
	"**": {symbol: "**", prec: 9, right: true},
}

// Precedence returns the binding strength of an operator symbol, or -1 for
// anything that is not an operator.
func Precedence(symbol string) int {
	if op, ok := operators[symbol]; ok {
		return op.prec
	}

	return -1
}

// yields reports whether an operator already on the stack must be applied
// before next is pushed.
func (op operator) yields(next operator) bool {
	if next.right {
		return op.prec > next.prec
	}

	return op.prec >= next.prec
}

func operandError(symbol string, operands ...Value) *Error {
	attrs := []slog.Attr{slog.String("operator", symbol)}
	keys := []string{"left", "right"}

	if len(operands) == 1 {
		keys = []string{"operand"}
	}

	for i, v := range operands {
		attrs = append(attrs, slog.String(keys[i], v.TypeName()))
	}

	return ErrOperandType.With(attrs...)
}

func arithmeticError(symbol, reason string) *Error {
	return ErrArithmetic.With(
		slog.String("operator", symbol),
		slog.String("reason", reason),
	)
}

// applyUnary evaluates a unary operator.
func applyUnary(symbol string, v Value) (Value, error) {
	if c, ok := v.AsColumn(); ok {
		out := make([]Value, c.Len())

		for i := range out {
			r, err := applyUnary(symbol, c.At(i))
			if err != nil {
				return Null(), err
			}

			out[i] = r
		}

		return ColumnValue(c.Derive(out)), nil
	}

	switch v.kind {
	case KindBool:
		return Bool(v.i == 0), nil
	case KindInt:
		return Int(^v.i), nil
	}

	return Null(), operandError(symbol, v)
}

// applyBinary evaluates a binary operator, broadcasting over columns.
func applyBinary(symbol string, a, b Value) (Value, error) {
	if symbol == "in" {
		return contains(a, b)
	}

	ca, aok := a.AsColumn()
	cb, bok := b.AsColumn()

	if !aok && !bok {
		return scalarBinary(symbol, a, b)
	}

	base := ca
	if !aok {
		base = cb
	}

	n := base.Len()

	left := func(int) Value { return a }
	right := func(int) Value { return b }

	switch {
	case aok:
		left = ca.At
	case a.kind == KindSequence:
		if len(a.seq) != n {
			return Null(), lengthError(symbol, len(a.seq), n)
		}

		left = func(i int) Value { return a.seq[i] }
	}

	switch {
	case bok:
		if cb.Len() != n {
			return Null(), lengthError(symbol, n, cb.Len())
		}

		right = cb.At
	case b.kind == KindSequence:
		if len(b.seq) != n {
			return Null(), lengthError(symbol, n, len(b.seq))
		}

		right = func(i int) Value { return b.seq[i] }
	}

	out := make([]Value, n)

	for i := range out {
		r, err := scalarBinary(symbol, left(i), right(i))
		if err != nil {
			return Null(), err
		}

		out[i] = r
	}

	return ColumnValue(base.Derive(out)), nil
}

func lengthError(symbol string, left, right int) *Error {
	return ErrOperandType.With(
		slog.String("operator", symbol),
		slog.String("reason", "lengths must match"),
		slog.Int("left", left),
		slog.Int("right", right),
	)
}

// contains implements "item in container".
func contains(item, container Value) (Value, error) {
	if c, ok := item.AsColumn(); ok {
		out := make([]Value, c.Len())

		for i := range out {
			r, err := contains(c.At(i), container)
			if err != nil {
				return Null(), err
			}

			out[i] = r
		}

		return ColumnValue(c.Derive(out)), nil
	}

	switch container.kind {
	case KindString:
		s, ok := item.AsString()
		if !ok {
			return Null(), operandError("in", item, container)
		}

		return Bool(strings.Contains(container.s, s)), nil

	case KindSequence, KindColumn:
		vals, _ := container.Elements()
		for _, e := range vals {
			if e.Equal(item) {
				return Bool(true), nil
			}
		}

		return Bool(false), nil

	case KindTable:
		s, ok := item.AsString()
		if !ok {
			return Bool(false), nil
		}

		_, found := container.tab.Column(s)

		return Bool(found), nil
	}

	return Null(), operandError("in", item, container)
}

// numericRank returns the widest numeric kind of a and b, or KindNull if
// either is not numeric.
func numericRank(a, b Value) Kind {
	if !a.IsNumeric() || !b.IsNumeric() {
		return KindNull
	}

	switch {
	case a.kind == KindComplex || b.kind == KindComplex:
		return KindComplex
	case a.kind == KindFloat || b.kind == KindFloat:
		return KindFloat
	}

	return KindInt
}

func scalarBinary(symbol string, a, b Value) (Value, error) {
	switch symbol {
	case "==":
		return Bool(a.Equal(b)), nil
	case "!=":
		return Bool(!a.Equal(b)), nil
	case "<", "<=", ">", ">=":
		return compare(symbol, a, b)
	case "&", "|", "^":
		return bitwise(symbol, a, b)
	case "+":
		return add(a, b)
	case "-", "*", "/", "//", "%", "**":
		return arithmetic(symbol, a, b)
	}

	return Null(), operandError(symbol, a, b)
}

func compare(symbol string, a, b Value) (Value, error) {
	c, err := order(symbol, a, b)
	if err != nil {
		return Null(), err
	}

	if c == 2 {
		return Bool(false), nil
	}

	switch symbol {
	case "<":
		return Bool(c < 0), nil
	case "<=":
		return Bool(c <= 0), nil
	case ">":
		return Bool(c > 0), nil
	}

	return Bool(c >= 0), nil
}

// order returns -1, 0 or +1 comparing a to b. NaN compares unordered and
// makes every relation false, which callers get by treating it as +2.
func order(symbol string, a, b Value) (int, error) {
	switch rank := numericRank(a, b); rank {
	case KindInt:
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		}

		return 0, nil

	case KindFloat:
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()

		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		case x == y:
			return 0, nil
		}

		return 2, nil
	}

	if a.kind != b.kind {
		return 0, operandError(symbol, a, b)
	}

	switch a.kind {
	case KindString:
		return strings.Compare(a.s, b.s), nil

	case KindTime:
		return a.t.Compare(b.t), nil

	case KindSequence:
		for i := 0; i < len(a.seq) && i < len(b.seq); i++ {
			if a.seq[i].Equal(b.seq[i]) {
				continue
			}

			return order(symbol, a.seq[i], b.seq[i])
		}

		switch {
		case len(a.seq) < len(b.seq):
			return -1, nil
		case len(a.seq) > len(b.seq):
			return 1, nil
		}

		return 0, nil
	}

	return 0, operandError(symbol, a, b)
}

func bitwise(symbol string, a, b Value) (Value, error) {
	if a.kind == KindBool && b.kind == KindBool {
		x, y := a.i != 0, b.i != 0

		switch symbol {
		case "&":
			return Bool(x && y), nil
		case "|":
			return Bool(x || y), nil
		}

		return Bool(x != y), nil
	}

	x, xok := a.AsInt()
	y, yok := b.AsInt()

	if !xok || !yok {
		return Null(), operandError(symbol, a, b)
	}

	switch symbol {
	case "&":
		return Int(x & y), nil
	case "|":
		return Int(x | y), nil
	}

	return Int(x ^ y), nil
}

func add(a, b Value) (Value, error) {
	switch {
	case a.kind == KindString && b.kind == KindString:
		return String(a.s + b.s), nil

	case a.kind == KindSequence && b.kind == KindSequence:
		out := make([]Value, 0, len(a.seq)+len(b.seq))

		return Seq(append(append(out, a.seq...), b.seq...)...), nil
	}

	return arithmetic("+", a, b)
}

func repeat(symbol string, a, b Value) (Value, error) {
	n, ok := b.AsInt()
	if !ok {
		return Null(), operandError(symbol, a, b)
	}

	n = max(n, 0)

	if size := max(len(a.s), len(a.seq)); size > 0 && n > MaxSequenceLength/int64(size) {
		return Null(), arithmeticError(symbol, "repeated sequence too long")
	}

	if a.kind == KindString {
		return String(strings.Repeat(a.s, int(n))), nil
	}

	out := make([]Value, 0, len(a.seq)*int(n))
	for range n {
		out = append(out, a.seq...)
	}

	return Seq(out...), nil
}

func arithmetic(symbol string, a, b Value) (Value, error) {
	if symbol == "*" {
		switch {
		case a.kind == KindString || a.kind == KindSequence:
			return repeat(symbol, a, b)
		case b.kind == KindString || b.kind == KindSequence:
			return repeat(symbol, b, a)
		}
	}

	switch numericRank(a, b) {
	case KindInt:
		return intArithmetic(symbol, a.i, b.i)

	case KindFloat:
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()

		return floatArithmetic(symbol, x, y)

	case KindComplex:
		x, _ := a.AsComplex()
		y, _ := b.AsComplex()

		return complexArithmetic(symbol, x, y)
	}

	return Null(), operandError(symbol, a, b)
}

func intArithmetic(symbol string, x, y int64) (Value, error) {
	switch symbol {
	case "+":
		r := x + y
		if (x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0) {
			return Float(float64(x) + float64(y)), nil
		}

		return Int(r), nil

	case "-":
		r := x - y
		if (x >= 0 && y < 0 && r < 0) || (x < 0 && y > 0 && r >= 0) {
			return Float(float64(x) - float64(y)), nil
		}

		return Int(r), nil

	case "*":
		r := x * y
		if x != 0 && (r/x != y || (x == -1 && y == math.MinInt64)) {
			return Float(float64(x) * float64(y)), nil
		}

		return Int(r), nil

	case "/":
		if y == 0 {
			return Null(), arithmeticError(symbol, "division by zero")
		}

		return Float(float64(x) / float64(y)), nil

	case "//":
		if y == 0 {
			return Null(), arithmeticError(symbol, "integer division or modulo by zero")
		}

		if x == math.MinInt64 && y == -1 {
			return Float(-float64(x)), nil
		}

		q := x / y
		if x%y != 0 && (x < 0) != (y < 0) {
			q--
		}

		return Int(q), nil

	case "%":
		if y == 0 {
			return Null(), arithmeticError(symbol, "integer division or modulo by zero")
		}

		if y == -1 {
			return Int(0), nil
		}

		r := x % y
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}

		return Int(r), nil

	case "**":
		if y < 0 {
			if x == 0 {
				return Null(), arithmeticError(symbol, "zero cannot be raised to a negative power")
			}

			return Float(math.Pow(float64(x), float64(y))), nil
		}

		if r, ok := intPow(x, y); ok {
			return Int(r), nil
		}

		return Float(math.Pow(float64(x), float64(y))), nil
	}

	return Null(), operandError(symbol, Int(x), Int(y))
}

// intPow computes x**y by repeated squaring and reports false on overflow.
func intPow(x, y int64) (int64, bool) {
	result := int64(1)

	for y > 0 {
		if y&1 == 1 {
			r := result * x
			if x != 0 && r/x != result {
				return 0, false
			}

			result = r
		}

		y >>= 1
		if y == 0 {
			break
		}

		sq := x * x
		if x != 0 && sq/x != x {
			return 0, false
		}

		x = sq
	}

	return result, true
}

func floatArithmetic(symbol string, x, y float64) (Value, error) {
	switch symbol {
	case "+":
		return Float(x + y), nil

	case "-":
		return Float(x - y), nil

	case "*":
		return Float(x * y), nil

	case "/":
		if y == 0 {
			return Null(), arithmeticError(symbol, "float division by zero")
		}

		return Float(x / y), nil

	case "//":
		if y == 0 {
			return Null(), arithmeticError(symbol, "float floor division by zero")
		}

		return Float(math.Floor(x / y)), nil

	case "%":
		if y == 0 {
			return Null(), arithmeticError(symbol, "float modulo")
		}

		r := math.Mod(x, y)
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}

		return Float(r), nil

	case "**":
		if x == 0 && y < 0 {
			return Null(), arithmeticError(symbol, "zero cannot be raised to a negative power")
		}

		if x < 0 && y != math.Trunc(y) {
			return Complex(cmplx.Pow(complex(x, 0), complex(y, 0))), nil
		}

		return Float(math.Pow(x, y)), nil
	}

	return Null(), operandError(symbol, Float(x), Float(y))
}

func complexArithmetic(symbol string, x, y complex128) (Value, error) {
	switch symbol {
	case "+":
		return Complex(x + y), nil
	case "-":
		return Complex(x - y), nil
	case "*":
		return Complex(x * y), nil
	case "/":
		if y == 0 {
			return Null(), arithmeticError(symbol, "complex division by zero")
		}

		return Complex(x / y), nil
	case "**":
		if x == 0 && real(y) < 0 {
			return Null(), arithmeticError(symbol, "zero cannot be raised to a negative or complex power")
		}

		return Complex(cmplx.Pow(x, y)), nil
	}

	return Null(), operandError(symbol, Complex(x), Complex(y))
}

// Binary applies the binary operator symbol to a and b with the same
// semantics as an expression.
func Binary(symbol string, a, b Value) (Value, error) {
	if op, ok := operators[symbol]; !ok || op.unary {
		return Null(), operandError(symbol, a, b)
	}

	return applyBinary(symbol, a, b)
}

// Unary applies the unary operator symbol to v.
func Unary(symbol string, v Value) (Value, error) {
	if op, ok := operators[symbol]; !ok || !op.unary {
		return Null(), operandError(symbol, v)
	}

	return applyUnary(symbol, v)
}

// Compare orders a and b, returning -1, 0 or +1. Values that cannot be
// ordered, including NaN, report ErrOperandType.
func Compare(a, b Value) (int, error) {
	c, err := order("<", a, b)
	if err != nil {
		return 0, err
	}

	if c == 2 {
		return 0, operandError("<", a, b).With(slog.String("reason", "unordered"))
	}

	return c, nil
}

// IsMissing reports whether v is None or a float NaN.
func IsMissing(v Value) bool {
	return v.kind == KindNull || (v.kind == KindFloat && math.IsNaN(v.f))
}
