// Package lang evaluates a small, restricted Python-like expression language
// over tabular data.
//
// An expression is lexed into tokens, checked for balanced parentheses, and
// reduced by a two-stack (shunting-yard) machine. Every function an
// expression names must pass the evaluator's [Policy] before it is resolved,
// so expressions can only reach the primitives and namespaces the host
// registered and the policy permits.
//
// # Grammar
//
// Informal summary:
//
//	Expr      → Operand (BinaryOp Operand)*
//	Operand   → '~'* Primary Member*
//	Primary   → Literal | List | Column | Local | Call | Lambda | '(' Expr ')'
//	Member    → '.' Identifier | '.' Identifier '(' Args ')'
//	Call      → DottedName '(' Args ')'
//	Args      → (Expr (',' Expr)*)? (',' Name '=' Expr)*
//	Lambda    → 'lambda' Params ':' Expr
//	Ternary   → Expr 'if' Expr ('else' Expr)?
//	Column    → '${' Name '}'
//
// Literals are integers, floats, imaginary numbers (2j), quoted strings
// without escapes, True, False and None. Lists hold literals only.
//
// # Operators
//
// From loosest to tightest binding: in; comparisons; |; ^; &; + -;
// * / // %; unary ~; **. The operators ~ and ** associate to the right. A
// sign directly in front of a number is part of the literal, so -2 ** 2 is 4.
//
// Operators broadcast over columns: an operand that is a column is combined
// element by element with the other operand, and the result is a column
// sharing the column's index.
//
// # Example
//
//	e := lang.New(frame.Options()...)
//
//	v, err := e.Evaluate(ctx, "${price}.apply(lambda p: p * 1.2 if p > 10 else p)",
//		lang.WithTable(table))
//
// # Host data
//
// Columns and tables are supplied by the host through the [Column] and
// [Table] interfaces. Method and property access on them is dispatched
// through [Capabilities]; scalars carry a fixed set of Python-style methods.
package lang
