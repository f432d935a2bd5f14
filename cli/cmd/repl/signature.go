package repl

import (
	"context"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ardnew/safeval/lang"
)

// signatureHintStyle styles for parameter hints.
var (
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6")).
				Bold(true)
	currentParamStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)
)

// functionCall represents a detected function call in the input.
type functionCall struct {
	name     string // callee text, e.g. "np.round" or "${a}.str.upper"
	argIndex int    // current argument index (0-based)
	inCall   bool   // true if cursor is inside parameter list
}

// detectFunctionCall analyzes the input to determine if the cursor is inside
// a call's argument list, skipping over string literals and nested calls.
func detectFunctionCall(input string, cursor int) functionCall {
	cursor = min(cursor, len(input))

	// Forward scan: the innermost unclosed '(' before the cursor, with the
	// comma count of each open level.
	type level struct{ open, args int }

	var (
		stack []level
		quote byte
	)

	for i := 0; i < cursor; i++ {
		c := input[i]

		if quote != 0 {
			if c == quote {
				quote = 0
			}

			continue
		}

		switch c {
		case '\'', '"':
			quote = c
		case '(':
			stack = append(stack, level{open: i})
		case ')':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			if len(stack) > 0 {
				stack[len(stack)-1].args++
			}
		}
	}

	if len(stack) == 0 {
		return functionCall{}
	}

	top := stack[len(stack)-1]

	name := receiverText(input[:top.open]+".", top.open+1)
	if name == "" {
		return functionCall{}
	}

	return functionCall{name: name, argIndex: top.args, inCall: true}
}

// signature returns the display signature of the callee named by name and
// its parameter names. Dotted names resolve through a namespace when the
// prefix is one, and otherwise as a method of the evaluated receiver.
func (s *Session) signature(ctx context.Context, name string) (string, []string, bool) {
	if strings.IndexByte(name, s.Policy().Sigil()) < 0 {
		if fn, err := s.eval.Lookup(ctx, name); err == nil {
			return formatSignature(name, lang.Params(fn)), lang.Params(fn), true
		}
	}

	recv, method, ok := cutLast(name, ".")
	if !ok {
		return "", nil, false
	}

	v, ok := s.receiver(ctx, recv)
	if !ok {
		return "", nil, false
	}

	var caps lang.Capabilities

	switch v.Kind() {
	case lang.KindColumn:
		caps, _ = v.AsColumn()
	case lang.KindTable:
		caps, _ = v.AsTable()
	case lang.KindObject:
		caps, _ = v.AsObject()
	default:
		for _, m := range lang.Methods(v.Kind()) {
			if m == method {
				return method + "(...)", nil, true
			}
		}

		return "", nil, false
	}

	fn, ok := caps.Method(method)
	if !ok {
		return "", nil, false
	}

	return formatSignature(method, lang.Params(fn)), lang.Params(fn), true
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}

	return s[:i], s[i+len(sep):], true
}

// formatSignature formats a function signature with parameter names.
func formatSignature(name string, params []string) string {
	return name + "(" + strings.Join(params, ", ") + ")"
}

// renderSignatureHint renders the function signature with the current
// parameter highlighted. Signatures with unknown parameters render as is.
func renderSignatureHint(signature string, params []string, currentArgIdx int) string {
	open := strings.IndexByte(signature, '(')
	if open < 0 || len(params) == 0 {
		return signatureStyle.Render(signature)
	}

	var b strings.Builder

	b.WriteString(signatureNameStyle.Render(signature[:open]))
	b.WriteString(signatureStyle.Render("("))

	for i, param := range params {
		if i > 0 {
			b.WriteString(signatureStyle.Render(", "))
		}

		if i == currentArgIdx {
			b.WriteString(currentParamStyle.Render(param))
		} else {
			b.WriteString(signatureStyle.Render(param))
		}
	}

	b.WriteString(signatureStyle.Render(")"))

	return b.String()
}
