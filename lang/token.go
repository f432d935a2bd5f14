package lang

//go:generate go tool stringer --linecomment --type TokenKind --output token_string.go

import (
	"strings"
)

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokenBracket  TokenKind = iota // bracket
	TokenOperator                  // operator
	TokenLiteral                   // literal
	TokenColumn                    // column
	TokenTable                     // table
	TokenVariable                  // variable
	TokenMethod                    // method
	TokenProperty                  // property
	TokenFunction                  // function
	TokenCallable                  // callable
	TokenLambda                    // lambda
	TokenTernary                   // ternary
)

// Token is a single lexed element of an expression.
//
// Which fields are meaningful depends on Kind:
//
//	TokenBracket   Text is "(" or ")"
//	TokenOperator  Text is the operator symbol
//	TokenLiteral   Value holds the literal
//	TokenColumn    Text is the column name
//	TokenVariable  Text is the local name
//	TokenMethod    Text is the method name, Args the raw argument text
//	TokenProperty  Text is the property name
//	TokenFunction  Text is the (possibly dotted) function name, Args as above
//	TokenCallable  Text is the resolved name, Value holds the callable
//	TokenLambda    Params and Body
//	TokenTernary   Then, Cond, Else and HasElse
type Token struct {
	Value   Value
	Text    string
	Args    string
	Body    string
	Then    string
	Cond    string
	Else    string
	Params  []string
	Pos     int
	Kind    TokenKind
	HasElse bool
}

// IsOpen reports whether t is an opening parenthesis.
func (t Token) IsOpen() bool { return t.Kind == TokenBracket && t.Text == "(" }

// IsClose reports whether t is a closing parenthesis.
func (t Token) IsClose() bool { return t.Kind == TokenBracket && t.Text == ")" }

// String renders t approximately as it appeared in the source.
func (t Token) String() string {
	switch t.Kind {
	case TokenBracket, TokenOperator, TokenVariable:
		return t.Text
	case TokenLiteral:
		return t.Value.Repr()
	case TokenColumn:
		return "${" + t.Text + "}"
	case TokenTable:
		return "${" + t.Text + "}"
	case TokenMethod:
		return "." + t.Text + "(" + t.Args + ")"
	case TokenProperty:
		return "." + t.Text
	case TokenFunction:
		return t.Text + "(" + t.Args + ")"
	case TokenCallable:
		return t.Text
	case TokenLambda:
		return "lambda " + strings.Join(t.Params, ", ") + ": " + t.Body
	case TokenTernary:
		s := t.Then + " if " + t.Cond
		if t.HasElse {
			s += " else " + t.Else
		}

		return s
	}

	return "?"
}

// renderTokens renders tokens around index pos as "prev --> tok <-- next".
func renderTokens(tokens []Token, pos int) string {
	var sb strings.Builder

	for i, t := range tokens {
		if i == pos {
			sb.WriteString(" --> ")
		}

		sb.WriteString(t.String())

		if i == pos {
			sb.WriteString(" <-- ")
		}
	}

	return sb.String()
}
