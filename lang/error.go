package lang

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values).
//
// Every error returned by this package wraps exactly one of these, so callers
// can classify failures with [errors.Is].
var (
	ErrLex                 = NewError("wrong expression")
	ErrBracketMismatch     = NewError("excess parenthesis")
	ErrUnknownColumn       = NewError("table does not contain column")
	ErrUnknownVariable     = NewError("variable does not exist")
	ErrUnsupportedFunction = NewError("unsupported function")
	ErrUnknownCapability   = NewError("method does not exist")
	ErrInvalidReceiverType = NewError("method cannot be applied to receiver")
	ErrArgumentOrder       = NewError("positional argument follows keyword argument")
	ErrArgumentCount       = NewError("wrong number of arguments")
	ErrStackUnderflow      = NewError("operation cannot be applied to nothing")
	ErrAmbiguousResult     = NewError("2 or more elements left without operations")
	ErrEmptyExpression     = NewError("empty expression")
	ErrOperandType         = NewError("unsupported operand type")
	ErrArithmetic          = NewError("arithmetic error")
	ErrMaxDepthExceeded    = NewError("maximum evaluation depth exceeded")
	ErrExpressionTooLong   = NewError("expression exceeds maximum length")
	ErrNoTable             = NewError("no table bound to evaluation")
	ErrInvalidPolicy       = NewError("invalid policy")
	ErrReadInput           = NewError("failed to read input")
)

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error       // wrapped cause
	kind  *Error      // sentinel this error was derived from
	attrs []slog.Attr // attributes for structured logging
}

// NewError creates a new sentinel Error with a message.
func NewError(msg string) *Error {
	e := &Error{msg: msg}
	e.kind = e

	return e
}

// Error implements the error interface.
//
// The rendered form is "<msg>[ (key=value, ...)][: <cause>]".
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(e.msg)

	if len(e.attrs) > 0 {
		sb.WriteString(" (")

		for i, a := range e.attrs {
			if i > 0 {
				sb.WriteString(", ")
			}

			sb.WriteString(a.Key)
			sb.WriteByte('=')
			sb.WriteString(strconv.Quote(a.Value.String()))
		}

		sb.WriteByte(')')
	}

	if e.err != nil {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}

		sb.WriteString(e.err.Error())
	}

	return sb.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the sentinel this error was derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && e.kind != nil && e.kind == t.kind
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Attr returns the value of the attribute with the given key.
func (e *Error) Attr(key string) (slog.Value, bool) {
	for _, a := range e.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}

	return slog.Value{}, false
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:   e.msg,
		err:   err,
		kind:  e.kind,
		attrs: e.attrs, // share attrs
	}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		msg:   e.msg,
		err:   e.err,
		kind:  e.kind,
		attrs: newAttrs,
	}
}

// WithPosition attaches the offending position and its rendered context.
func (e *Error) WithPosition(pos int, context string) *Error {
	return e.With(slog.Int("position", pos), slog.String("context", context))
}

// Sentinel returns the sentinel error that err was derived from, or nil if err
// does not originate from this package.
func Sentinel(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}

	return nil
}

// pointAt renders the text surrounding position pos as "prev --> c <-- next".
func pointAt(s string, pos int) string {
	if pos < 0 || pos >= len(s) {
		return s + " --> <-- "
	}

	return s[:pos] + " --> " + s[pos:pos+1] + " <-- " + s[pos+1:]
}
