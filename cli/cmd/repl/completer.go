package repl

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

// ctrlCommands are the available control-mode commands.
var ctrlCommands = []string{
	"help", "list", "names", "policy", "set", "tokens", "edit", "clear", "quit",
}

// isWordBoundary returns true if the rune is a word delimiter for completion
// purposes: whitespace, the member-access dot, operators, punctuation, quotes
// and the column reference delimiters.
func isWordBoundary(r rune) bool {
	switch r {
	case '.', ' ', '\t',
		'(', ')', '[', ']', '{', '}', '$',
		'+', '-', '*', '/', '%', '~', '^', '@',
		'<', '>', '=', '!', '&', '|',
		',', ':', '\'', '"':
		return true
	}

	return false
}

// wordBounds returns the current word at the cursor position and its byte
// boundaries within input. Returns an empty word when the cursor sits on a
// boundary.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(cursor, len(input))

	start = cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor
	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// completionContext classifies the position of the word being completed.
type completionContext int

const (
	contextTop      completionContext = iota // start of an operand
	contextMember                            // after "receiver."
	contextColumn                            // inside "${"
)

// receiverText returns the receiver chain preceding the word at wordStart:
// for "x + ${a}.str.lo" with the word "lo" it is "${a}.str". The chain may
// contain identifiers, dots and column references. Returns "" when the word
// does not follow a dot.
func receiverText(input string, wordStart int) string {
	prefix := input[:wordStart]
	if !strings.HasSuffix(prefix, ".") {
		return ""
	}

	prefix = strings.TrimSuffix(prefix, ".")
	pos := len(prefix)

	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(prefix[:pos])

		if r == '}' {
			open := strings.LastIndex(prefix[:pos], "${")
			if open < 0 {
				return ""
			}

			pos = open

			continue
		}

		if r != '.' && r != '_' && !isAlnum(r) {
			break
		}

		pos -= size
	}

	return strings.TrimLeft(prefix[pos:], ".")
}

func isAlnum(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

// classify determines the completion context of the word at wordStart.
func classify(input string, wordStart int) (completionContext, string) {
	prefix := input[:wordStart]

	if open := strings.LastIndex(prefix, "${"); open >= 0 && !strings.Contains(prefix[open:], "}") {
		return contextColumn, ""
	}

	if recv := receiverText(input, wordStart); recv != "" {
		return contextMember, recv
	}

	return contextTop, ""
}

// candidates returns the completion candidates for the word at wordStart in
// eval mode.
func (s *Session) candidates(
	ctx context.Context,
	input string,
	wordStart int,
) (completionContext, []string) {
	kind, recv := classify(input, wordStart)

	switch kind {
	case contextColumn:
		return kind, append(s.Columns(), s.Policy().SelfName())
	case contextMember:
		return kind, s.members(ctx, recv)
	}

	return kind, s.topLevel()
}

// computeMatches calculates the fuzzy match results for the word at the cursor.
// It returns the matches (ranked best-first), the candidate list, and the word
// boundaries. An empty word only lists candidates after a dot or "${", so the
// hint text stays visible at the start of an operand.
func (m model) computeMatches() (
	matches fuzzy.Matches,
	candidates []string,
	wordStart, wordEnd int,
) {
	input := m.input.Value()

	word, wordStart, wordEnd := wordBounds(input, m.input.Position())

	kind := contextTop

	if m.mode == modeCtrl {
		if word == "" || strings.Contains(input[:wordStart], " ") {
			return nil, nil, wordStart, wordEnd
		}

		candidates = ctrlCommands
	} else {
		kind, candidates = m.session.candidates(m.ctxFunc(), input, wordStart)
	}

	if len(candidates) == 0 {
		return nil, nil, wordStart, wordEnd
	}

	if word == "" {
		if kind == contextTop {
			return nil, nil, wordStart, wordEnd
		}

		matches = make(fuzzy.Matches, len(candidates))
		for i, c := range candidates {
			matches[i] = fuzzy.Match{Str: c, Index: i}
		}

		return matches, candidates, wordStart, wordEnd
	}

	return fuzzy.Find(word, candidates), candidates, wordStart, wordEnd
}

// renderCandidateBar builds the single-line completion bar, ellipsized to fit
// within the given terminal width. The selected candidate (when tabbing) uses
// the selected style.
func renderCandidateBar(
	matches fuzzy.Matches,
	suggIdx int,
	tabActive bool,
	width int,
	isFunction func(string) bool,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	sepWidth := lipgloss.Width(sep)
	ellipsis := hintStyle.Render("...")
	ellipsisWidth := lipgloss.Width(ellipsis)

	var b strings.Builder

	used := 0

	for i, match := range matches {
		rendered := renderCandidate(match, tabActive && i == suggIdx, isFunction(match.Str))

		entryWidth := lipgloss.Width(rendered)
		if i > 0 {
			entryWidth += sepWidth
		}

		if i > 0 && used+entryWidth+ellipsisWidth > width {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += entryWidth
	}

	return b.String()
}

// renderCandidate renders a single candidate with matched characters
// highlighted. Functions are displayed with a "()" suffix.
func renderCandidate(match fuzzy.Match, selected, function bool) string {
	base, highlight := suggestionStyle, matchStyle
	if selected {
		base, highlight = selectedStyle, selectedMatchStyle
	}

	matched := make(map[int]bool, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matched[idx] = true
	}

	var b strings.Builder

	for i, r := range match.Str {
		if matched[i] {
			b.WriteString(highlight.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}

	if function {
		b.WriteString(base.Render("()"))
	}

	return b.String()
}
