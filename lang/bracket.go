package lang

// Validate checks that the parentheses among tokens are balanced. An
// unclosed parenthesis is reported at the first one left open. Ternary,
// call and lambda tokens carry their own inner text and are not inspected.
func Validate(tokens []Token) error {
	var open []int

	for i, t := range tokens {
		switch {
		case t.IsOpen():
			open = append(open, i)
		case t.IsClose():
			if len(open) == 0 {
				return ErrBracketMismatch.WithPosition(t.Pos, renderTokens(tokens, i))
			}

			open = open[:len(open)-1]
		}
	}

	if len(open) > 0 {
		i := open[0]

		return ErrBracketMismatch.WithPosition(tokens[i].Pos, renderTokens(tokens, i))
	}

	return nil
}
