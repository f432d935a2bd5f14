package lang

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// lexer scans a single expression into tokens.
type lexer struct {
	eval   *Evaluator
	locals map[string]struct{}
	src    string
	tokens []Token
	pos    int
}

// Tokens lexes expr into its token sequence. Names in locals are lexed as
// variable references; every other identifier must resolve to a callable
// permitted by the evaluator's policy.
func (e *Evaluator) Tokens(
	ctx context.Context,
	expr string,
	locals ...string,
) ([]Token, error) {
	names := make(map[string]struct{}, len(locals))
	for _, name := range locals {
		names[name] = struct{}{}
	}

	return e.lex(ctx, expr, names)
}

func (e *Evaluator) lex(
	ctx context.Context,
	src string,
	locals map[string]struct{},
) ([]Token, error) {
	l := &lexer{eval: e, locals: locals, src: src}

	for l.pos < len(l.src) {
		if isSpace(l.src[l.pos]) {
			l.pos++

			continue
		}

		if err := l.next(ctx); err != nil {
			e.logger.TraceContext(ctx, "lex failed",
				slog.Int("position", l.pos),
				slog.Any("error", err),
			)

			return nil, err
		}
	}

	e.logger.TraceContext(ctx, "lex complete",
		slog.Int("token_count", len(l.tokens)),
		slog.Int("length", len(src)),
	)

	return l.tokens, nil
}

func (l *lexer) emit(t Token) {
	t.Pos = l.pos
	l.tokens = append(l.tokens, t)
}

func (l *lexer) errorAt(pos int) *Error {
	return ErrLex.WithPosition(pos, pointAt(l.src, pos))
}

func (l *lexer) peek(offset int) byte {
	if i := l.pos + offset; i < len(l.src) {
		return l.src[i]
	}

	return 0
}

// operandExpected reports whether the next token begins an operand, which
// is the case at the start of input, after an operator and after "(".
func (l *lexer) operandExpected() bool {
	if len(l.tokens) == 0 {
		return true
	}

	last := l.tokens[len(l.tokens)-1]

	return last.Kind == TokenOperator || last.IsOpen()
}

// next scans one token starting at l.pos. The alternatives are tried in a
// fixed priority order.
func (l *lexer) next(ctx context.Context) error {
	if ok, err := l.ternary(); ok || err != nil {
		return err
	}

	c := l.src[l.pos]

	switch {
	case c == '(' || c == ')':
		l.emit(Token{Kind: TokenBracket, Text: string(c)})
		l.pos++

		return nil

	case c == l.eval.policy.Sigil():
		return l.column()

	case c == '.' && !isDigit(l.peek(1)):
		return l.member()

	case isIdentStart(c):
		if ok, err := l.call(); ok || err != nil {
			return err
		}

	case c == '\'' || c == '"':
		return l.quoted()

	case c == '[':
		return l.list()
	}

	if (c == '-' || c == '+') && l.operandExpected() &&
		(isDigit(l.peek(1)) || (l.peek(1) == '.' && isDigit(l.peek(2)))) {
		return l.number()
	}

	if l.operator() {
		return nil
	}

	if isDigit(c) || (c == '.' && isDigit(l.peek(1))) {
		return l.number()
	}

	if isIdentStart(c) {
		return l.identifier(ctx)
	}

	return l.errorAt(l.pos)
}

// ternary recognizes "then if cond else alt" beginning at l.pos.
func (l *lexer) ternary() (bool, error) {
	span, ok := findTernary(l.src[l.pos:])
	if !ok {
		return false, nil
	}

	if span.then == "" || span.cond == "" || (span.hasElse && span.alt == "") {
		return true, l.errorAt(l.pos + span.ifAt)
	}

	l.emit(Token{
		Kind:    TokenTernary,
		Then:    span.then,
		Cond:    span.cond,
		Else:    span.alt,
		HasElse: span.hasElse,
	})
	l.pos += span.end

	return true, nil
}

type ternarySpan struct {
	then, cond, alt string
	ifAt, end       int
	hasElse         bool
}

// findTernary locates a conditional expression at bracket depth zero at the
// start of s. The text before "if" may not cross a lambda header colon or the
// parenthesis closing an enclosing group; the else branch extends to the end
// of the enclosing group so nested groups are captured whole.
func findTernary(s string) (ternarySpan, bool) {
	var span ternarySpan

	span.ifAt = -1
	depth := 0

scan:
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"':
			i = skipQuoted(s, i)
		case isOpener(c):
			depth++
		case isCloser(c):
			if depth--; depth < 0 {
				return span, false
			}
		case depth == 0 && c == ':':
			return span, false
		case depth == 0 && keywordAt(s, i, "if"):
			span.ifAt = i

			break scan
		}
	}

	if span.ifAt <= 0 {
		return span, false
	}

	elseAt := -1
	span.end = len(s)
	depth = 0

	for i := span.ifAt + 2; i < len(s) && span.end == len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"':
			i = skipQuoted(s, i)
		case isOpener(c):
			depth++
		case isCloser(c):
			if depth--; depth < 0 {
				span.end = i
			}
		case depth == 0 && elseAt < 0 && keywordAt(s, i, "else"):
			elseAt = i
		}
	}

	span.then = strings.TrimSpace(s[:span.ifAt])

	if elseAt < 0 {
		span.cond = strings.TrimSpace(s[span.ifAt+2 : span.end])
	} else {
		span.hasElse = true
		span.cond = strings.TrimSpace(s[span.ifAt+2 : elseAt])
		span.alt = strings.TrimSpace(s[elseAt+4 : span.end])
	}

	return span, true
}

// keywordAt reports whether the keyword kw occurs at s[i:] delimited by
// non-identifier characters on both sides. A keyword at the very start of s
// never matches.
func keywordAt(s string, i int, kw string) bool {
	if i == 0 || !strings.HasPrefix(s[i:], kw) || isIdentChar(s[i-1]) {
		return false
	}

	if j := i + len(kw); j < len(s) && isIdentChar(s[j]) {
		return false
	}

	return true
}

func (l *lexer) column() error {
	name, n, ok := l.eval.policy.matchColumn(l.src[l.pos:])
	if !ok {
		return l.errorAt(l.pos)
	}

	if name == l.eval.policy.SelfName() {
		l.emit(Token{Kind: TokenTable, Text: name})
	} else {
		l.emit(Token{Kind: TokenColumn, Text: name})
	}

	l.pos += n

	return nil
}

// member scans ".name(args)" or ".name".
func (l *lexer) member() error {
	start := l.pos + 1
	end := start

	for end < len(l.src) && isIdentChar(l.src[end]) && l.src[end] != '.' {
		end++
	}

	if end == start {
		return l.errorAt(l.pos)
	}

	name := l.src[start:end]

	if end < len(l.src) && l.src[end] == '(' {
		inner, close, err := balanced(l.src, end)
		if err != nil {
			return err
		}

		l.emit(Token{Kind: TokenMethod, Text: name, Args: inner})
		l.pos = close + 1

		return nil
	}

	l.emit(Token{Kind: TokenProperty, Text: name})
	l.pos = end

	return nil
}

// call scans a bare "name(args)" where name may be dotted.
func (l *lexer) call() (bool, error) {
	end := l.pos
	for end < len(l.src) && isIdentChar(l.src[end]) {
		end++
	}

	name := l.src[l.pos:end]
	if end >= len(l.src) || l.src[end] != '(' || isKeyword(name) {
		return false, nil
	}

	// A method call on a local is a variable followed by a member.
	if head, _, dotted := strings.Cut(name, "."); dotted {
		if _, ok := l.locals[head]; ok {
			return false, nil
		}
	}

	inner, close, err := balanced(l.src, end)
	if err != nil {
		return true, err
	}

	l.emit(Token{Kind: TokenFunction, Text: name, Args: inner})
	l.pos = close + 1

	return true, nil
}

// balanced returns the text between the parenthesis at s[open] and its
// matching close, along with the index of the close.
func balanced(s string, open int) (string, int, error) {
	depth := 0

	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			i = skipQuoted(s, i)
		case '(':
			depth++
		case ')':
			if depth--; depth == 0 {
				return s[open+1 : i], i, nil
			}
		}
	}

	return "", 0, ErrBracketMismatch.WithPosition(open, pointAt(s, open))
}

func (l *lexer) quoted() error {
	end := strings.IndexByte(l.src[l.pos+1:], l.src[l.pos])
	if end < 0 {
		return l.errorAt(l.pos)
	}

	l.emit(Token{Kind: TokenLiteral, Value: String(l.src[l.pos+1 : l.pos+1+end])})
	l.pos += end + 2

	return nil
}

// list scans a bracketed list of literal scalars.
func (l *lexer) list() error {
	v, n, err := parseList(l.src[l.pos:])
	if err != nil {
		return l.errorAt(l.pos + n)
	}

	l.emit(Token{Kind: TokenLiteral, Value: v})
	l.pos += n

	return nil
}

// operator scans a two-character operator or "in", then a single-character
// operator.
func (l *lexer) operator() bool {
	if l.pos+1 < len(l.src) {
		two := l.src[l.pos : l.pos+2]

		if two == "in" {
			if c := l.peek(2); c == ' ' || c == '(' {
				l.emit(Token{Kind: TokenOperator, Text: two})
				l.pos += 2

				return true
			}
		} else if _, ok := operators[two]; ok {
			l.emit(Token{Kind: TokenOperator, Text: two})
			l.pos += 2

			return true
		}
	}

	one := l.src[l.pos : l.pos+1]
	if _, ok := operators[one]; ok {
		l.emit(Token{Kind: TokenOperator, Text: one})
		l.pos++

		return true
	}

	return false
}

func (l *lexer) number() error {
	v, n, ok := scanNumber(l.src[l.pos:])
	if !ok {
		return l.errorAt(l.pos)
	}

	l.emit(Token{Kind: TokenLiteral, Value: v})
	l.pos += n

	return nil
}

// scanNumber parses a signed decimal literal at the start of s. A decimal
// point or exponent yields a float and a trailing j yields an imaginary
// number.
func scanNumber(s string) (Value, int, bool) {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}

	digits := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}

	isFloat := false

	if i+1 < len(s) && s[i] == '.' && isDigit(s[i+1]) {
		isFloat = true
		i++

		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}

	if i == digits {
		return Null(), 0, false
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '-' || s[j] == '+') {
			j++
		}

		if j < len(s) && isDigit(s[j]) {
			isFloat = true

			for i = j; i < len(s) && isDigit(s[i]); i++ {
			}
		}
	}

	text := s[:i]

	if i < len(s) && (s[i] == 'j' || s[i] == 'J') {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Null(), 0, false
		}

		return Complex(complex(0, f)), i + 1, true
	}

	if !isFloat {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Int(n), i, true
		}
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Null(), 0, false
	}

	return Float(f), i, true
}

// identifier handles keywords, lambda headers and the identifier fallback.
func (l *lexer) identifier(ctx context.Context) error {
	end := l.pos
	for end < len(l.src) && isIdentChar(l.src[end]) {
		end++
	}

	word := l.src[l.pos:end]
	head, _, _ := strings.Cut(word, ".")

	switch word {
	case "True", "False":
		l.emit(Token{Kind: TokenLiteral, Value: Bool(word == "True")})
		l.pos = end

		return nil

	case "None":
		l.emit(Token{Kind: TokenLiteral, Value: Null()})
		l.pos = end

		return nil
	}

	if head == "lambda" {
		return l.lambda()
	}

	if _, ok := l.locals[head]; ok {
		l.emit(Token{Kind: TokenVariable, Text: head})
		l.pos += len(head)

		return nil
	}

	fn, err := l.eval.resolve(ctx, word)
	if err != nil {
		return l.errorAt(l.pos).Wrap(err)
	}

	l.emit(Token{Kind: TokenCallable, Text: word, Value: CallableValue(fn)})
	l.pos = end

	return nil
}

// lambda scans "lambda p1, p2: body"; the body is the rest of the input.
func (l *lexer) lambda() error {
	start := l.pos + len("lambda")

	colon := strings.IndexByte(l.src[start:], ':')
	if colon < 0 || (start < len(l.src) && !isSpace(l.src[start]) && l.src[start] != ':') {
		return l.errorAt(l.pos)
	}

	var params []string

	if header := strings.TrimSpace(l.src[start : start+colon]); header != "" {
		for p := range strings.SplitSeq(header, ",") {
			p = strings.TrimSpace(p)
			if !isIdentifier(p) {
				return l.errorAt(start)
			}

			params = append(params, p)
		}
	}

	l.emit(Token{
		Kind:   TokenLambda,
		Params: params,
		Body:   strings.TrimSpace(l.src[start+colon+1:]),
	})
	l.pos = len(l.src)

	return nil
}

// parseList parses "[a, b, ...]" at the start of s into a sequence of
// literal scalars (or nested lists). It returns the number of bytes
// consumed, or the offset of the failure.
func parseList(s string) (Value, int, error) {
	depth := 0
	end := -1

	for i := 0; i < len(s) && end < 0; i++ {
		switch s[i] {
		case '\'', '"':
			i = skipQuoted(s, i)
		case '[':
			depth++
		case ']':
			if depth--; depth == 0 {
				end = i
			}
		}
	}

	if end < 0 {
		return Null(), 0, ErrLex
	}

	var out []Value

	offset := 1

	for _, part := range splitTopLevel(s[1:end]) {
		text := strings.TrimSpace(part)
		if text == "" {
			offset += len(part) + 1

			continue
		}

		v, err := parseLiteral(text)
		if err != nil {
			return Null(), offset, err
		}

		out = append(out, v)
		offset += len(part) + 1
	}

	return Seq(out...), end + 1, nil
}

// parseLiteral parses a single scalar literal or nested list.
func parseLiteral(s string) (Value, error) {
	switch {
	case s == "True" || s == "False":
		return Bool(s == "True"), nil

	case s == "None":
		return Null(), nil

	case len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0]:
		inner := s[1 : len(s)-1]
		if strings.IndexByte(inner, s[0]) >= 0 {
			return Null(), ErrLex
		}

		return String(inner), nil

	case s[0] == '[':
		v, n, err := parseList(s)
		if err != nil || n != len(s) {
			return Null(), ErrLex
		}

		return v, nil
	}

	v, n, ok := scanNumber(s)
	if !ok || n != len(s) {
		return Null(), ErrLex
	}

	return v, nil
}

// splitTopLevel splits s on commas that are outside brackets and quotes.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		prev  int
	)

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"':
			i = skipQuoted(s, i)
		case isOpener(c):
			depth++
		case isCloser(c):
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[prev:i])
			prev = i + 1
		}
	}

	return append(parts, s[prev:])
}

// skipQuoted returns the index of the quote closing the one at s[i], or the
// last index of s when it is unterminated.
func skipQuoted(s string, i int) int {
	if j := strings.IndexByte(s[i+1:], s[i]); j >= 0 {
		return i + 1 + j
	}

	return len(s) - 1
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isIdentChar accepts the characters of a possibly dotted identifier.
func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) || c == '.' }

func isOpener(c byte) bool { return c == '(' || c == '[' || c == '{' }

func isCloser(c byte) bool { return c == ')' || c == ']' || c == '}' }

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}

	for i := 1; i < len(s); i++ {
		if !isIdentStart(s[i]) && !isDigit(s[i]) {
			return false
		}
	}

	return !isKeyword(s)
}

func isKeyword(s string) bool {
	switch s {
	case "if", "else", "in", "lambda", "True", "False", "None",
		"and", "or", "not":
		return true
	}

	return false
}
