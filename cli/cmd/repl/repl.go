package repl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/safeval/frame"
	"github.com/ardnew/safeval/lang"
	"github.com/ardnew/safeval/log"
)

// editDoneMsg is sent when an edited expression evaluated successfully.
type editDoneMsg struct {
	expr   string
	result lang.Value
}

// editCancelledMsg is sent when the user cleared the editor content.
type editCancelledMsg struct{}

// editDeclinedMsg is sent when the user declined to re-edit after an error.
type editDeclinedMsg struct{}

// editErrorMsg is sent when the editor itself failed.
type editErrorMsg struct{ err error }

const (
	evalPrompt = "➜ "
	ctrlPrompt = " :"
)

const helpMessage = `
: Commands (press Esc to toggle mode):

  help              Print this cruft
  list              List local variables and table columns
  names             List every function the policy admits
  policy            Print the active policy
  set NAME EXPR     Evaluate EXPR and bind the result to NAME
  tokens EXPR       Print the tokens of EXPR
  edit              Edit the current expression in external $EDITOR
  clear             Clear screen
  quit              Exit REPL

Usage:
  Type an expression to evaluate it against the loaded table
  Reference columns with ${name}, the whole table with ${self}
  Completions appear automatically as you type
  Press Tab / Shift-Tab to cycle through candidates
  Press Space to accept the current candidate
  Press Esc to toggle between eval and command modes
  Use Up/Down arrows for history navigation (mode switches automatically)
  Use Shift+Up/Shift+Down for history navigation within current mode only
  Use Alt+Up/Alt+Down to switch to command mode and navigate command history
    (restores original mode when reaching end of history)
  Press Ctrl+C on empty line or Ctrl+D to exit`

// inputMode represents the current input mode.
type inputMode int

const (
	modeEval inputMode = iota
	modeCtrl
)

// Styles.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	ctrlPromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)
	inputStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	matchStyle      = suggestionStyle.Bold(true)
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
	selectedMatchStyle = selectedStyle.Bold(true)
)

// echo formats the submitted line with the prompt of mode.
func echo(mode inputMode, input string) string {
	if mode == modeCtrl {
		return ctrlPromptStyle.Render(ctrlPrompt) + inputStyle.Render(input)
	}

	return promptStyle.Render(evalPrompt) + inputStyle.Render(input)
}

// model is the Bubble Tea model for the REPL.
type model struct {
	ctxFunc    func() context.Context
	input      textinput.Model
	session    *Session
	logger     log.Logger
	history    *History
	historyIdx int
	matches    fuzzy.Matches // current fuzzy match results
	candidates []string      // backing candidate list
	wordStart  int           // byte offset of current word start
	wordEnd    int           // byte offset of current word end
	suggIdx    int           // selected candidate index
	tabActive  bool          // whether user is tab-cycling
	preTab     snapshot      // input before tab-cycling began
	altNav     bool          // whether user is in Alt+Up/Down navigation
	altOrig    snapshot      // input before Alt navigation began
	altMode    inputMode     // mode before Alt navigation began
	width      int           // terminal width for ellipsization
	quitting   bool
	mode       inputMode
	saved      [2]snapshot // per-mode input, indexed by inputMode
}

// snapshot is the text and cursor of the input line.
type snapshot struct {
	text   string
	cursor int
}

// Run starts the REPL over session. History persists under cacheDir unless
// it is empty.
func Run(
	ctx context.Context,
	session *Session,
	cacheDir string,
	logger log.Logger,
) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	logger.TraceContext(
		ctx,
		"repl start",
		slog.String("cache_dir", cacheDir),
		slog.Int("columns", len(session.Columns())),
		slog.Int("locals", len(session.Locals())),
	)

	var path string
	if cacheDir != "" {
		path = filepath.Join(cacheDir, baseHistory)
	}

	history := NewHistory(path)
	if err := history.Load(); err != nil {
		logger.WarnContext(ctx, "could not load history", slog.Any("error", err))
	}

	logger.TraceContext(
		ctx,
		"repl history loaded",
		slog.Int("entry_count", history.Len()),
	)

	p := tea.NewProgram(newModel(ctx, session, history, logger), tea.WithContext(ctx))
	_, err = p.Run()

	return err
}

const defaultWidth = 80

func newModel(
	ctx context.Context,
	session *Session,
	history *History,
	logger log.Logger,
) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(evalPrompt)
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = defaultWidth

	return model{
		ctxFunc:    func() context.Context { return ctx },
		input:      ti,
		session:    session,
		logger:     logger,
		history:    history,
		historyIdx: history.Len(),
		suggIdx:    -1,
		width:      defaultWidth,
		mode:       modeEval,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - len(evalPrompt) - 2

		return m, nil

	case editDoneMsg:
		_ = m.history.Add(msg.expr, modeEval)
		m.historyIdx = m.history.Len()

		return m, tea.Sequence(
			tea.Println(echo(modeEval, msg.expr)),
			tea.Println(formatResult(msg.result)),
		)

	case editCancelledMsg:
		return m, tea.Println(hintStyle.Render("edit cancelled"))

	case editDeclinedMsg:
		return m, tea.Println(hintStyle.Render("edit discarded"))

	case editErrorMsg:
		return m, tea.Println(errorStyle.Render("error: " + msg.err.Error()))
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.hintLine())
	b.WriteString("\n")

	return b.String()
}

// hintLine renders the line below the input: the history position, a usage
// hint, the signature of the enclosing call or the completion bar.
func (m model) hintLine() string {
	input := m.input.Value()

	if m.historyIdx < m.history.Len() {
		return hintStyle.Render(fmt.Sprintf("%s/%d",
			lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(m.historyIdx+1)),
			m.history.Len()))
	}

	if strings.TrimSpace(input) == "" {
		if m.mode == modeEval {
			return hintStyle.Render("Type an expression or press Esc for commands")
		}

		return hintStyle.Render("Type: " + strings.Join(ctrlCommands, ", ") + " (press Esc to return)")
	}

	if m.mode == modeEval && len(m.matches) == 0 {
		call := detectFunctionCall(input, m.input.Position())
		if call.inCall {
			if sig, params, ok := m.session.signature(m.ctxFunc(), call.name); ok {
				return renderSignatureHint(sig, params, call.argIndex)
			}
		}
	}

	return renderCandidateBar(m.matches, m.suggIdx, m.tabActive, m.width, m.session.IsFunction)
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(
		m.ctxFunc(),
		"repl keypress",
		slog.String("key", msg.String()),
		slog.Int("type", int(msg.Type)),
	)

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.tabActive = false
		m.altNav = false
		m.historyIdx = m.history.Len()
		refreshMatches(&m, false)

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		m.altNav = false

		if !m.tabActive || len(m.matches) == 0 {
			return m.executeInput()
		}

		// Lock in the current tab candidate without executing.
		m.tabActive = false
		refreshMatches(&m, true)

		return m, nil

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		if msg.Alt {
			return m.historyCtrl(-1), nil
		}

		return m.historyStep(-1, false), nil

	case tea.KeyDown:
		if msg.Alt {
			return m.historyCtrl(1), nil
		}

		return m.historyStep(1, false), nil

	case tea.KeyShiftUp:
		return m.historyStep(-1, true), nil

	case tea.KeyShiftDown:
		return m.historyStep(1, true), nil

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.restore(m.preTab)
			refreshMatches(&m, false)

			return m, nil
		}

		m.altNav = false

		return m.switchToMode(1 - m.mode), nil

	case tea.KeyRunes:
		// Space accepts the candidate being cycled.
		if m.tabActive && msg.String() == " " {
			m.tabActive = false
		}

		var cmd tea.Cmd

		m.historyIdx = m.history.Len()
		m.input, cmd = m.input.Update(msg)
		refreshMatches(&m, true)

		return m, cmd
	}

	// Deletion and cursor movement never auto-confirm.
	var cmd tea.Cmd

	m.tabActive = false
	m.altNav = false
	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	refreshMatches(&m, false)

	return m, cmd
}

// cycle moves the tab selection by step, wrapping at either end. A sole
// candidate is completed and confirmed immediately.
func (m model) cycle(step int) model {
	n := len(m.matches)
	if n == 0 {
		return m
	}

	if n == 1 {
		replaceCurrentWord(&m, m.matches[0].Str)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil

		return m
	}

	if m.tabActive {
		m.suggIdx = (m.suggIdx + step + n) % n
	} else {
		m.tabActive = true
		m.preTab = m.current()
		m.suggIdx = 0

		if step < 0 {
			m.suggIdx = n - 1
		}
	}

	replaceCurrentWord(&m, m.matches[m.suggIdx].Str)

	return m
}

// replaceCurrentWord replaces the current word boundaries in the input with
// the given replacement text and repositions the cursor.
func replaceCurrentWord(m *model, replacement string) {
	input := m.input.Value()

	m.restore(snapshot{
		text:   input[:m.wordStart] + replacement + input[m.wordEnd:],
		cursor: m.wordStart + len(replacement),
	})
	m.wordEnd = m.wordStart + len(replacement)
}

// refreshMatches recomputes fuzzy matches for the current input state.
// With autoConfirm, a sole candidate equal to the typed word is confirmed.
func refreshMatches(m *model, autoConfirm bool) {
	m.matches, m.candidates, m.wordStart, m.wordEnd = m.computeMatches()

	if !m.tabActive {
		m.suggIdx = -1
	}

	if !autoConfirm || len(m.matches) != 1 {
		return
	}

	if candidate := m.matches[0].Str; m.input.Value()[m.wordStart:m.wordEnd] == candidate {
		replaceCurrentWord(m, candidate)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil
	}
}

func (m model) current() snapshot {
	return snapshot{text: m.input.Value(), cursor: m.input.Position()}
}

func (m *model) restore(s snapshot) {
	m.input.SetValue(s.text)
	m.input.SetCursor(s.cursor)
}

func (m model) executeInput() (model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	if input == "" {
		return m, nil
	}

	mode := m.mode
	m.saved = [2]snapshot{}
	m.input.SetValue("")
	refreshMatches(&m, false)

	if err := m.history.Add(input, mode); err != nil {
		m.logger.DebugContext(m.ctxFunc(), "history write failed", slog.Any("error", err))
	}

	m.historyIdx = m.history.Len()

	m.logger.TraceContext(
		m.ctxFunc(),
		"repl submit",
		slog.String("input", input),
		slog.Bool("command", mode == modeCtrl),
	)

	if mode == modeCtrl {
		return m.executeCommand(input)
	}

	result, err := m.session.Evaluate(m.ctxFunc(), input)

	return m, tea.Sequence(tea.Println(echo(modeEval, input)), printResult(result, err))
}

// printResult prints result, or err when it is non-nil.
func printResult(result lang.Value, err error) tea.Cmd {
	if err != nil {
		return tea.Println(errorStyle.Render("error: " + err.Error()))
	}

	return tea.Println(formatResult(result))
}

// formatResult renders tables and columns as YAML and everything else by its
// repr.
func formatResult(v lang.Value) string {
	switch v.Kind() {
	case lang.KindTable, lang.KindColumn:
		var buf bytes.Buffer
		if err := frame.EncodeYAML(&buf, v); err == nil {
			return resultStyle.Render(strings.TrimRight(buf.String(), "\n"))
		}
	}

	return resultStyle.Render(v.Repr())
}

func (m model) executeCommand(input string) (model, tea.Cmd) {
	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	echoCmd := tea.Println(echo(modeCtrl, input))

	m.logger.TraceContext(
		m.ctxFunc(),
		"repl exec command",
		slog.String("command", cmd),
		slog.String("args", rest),
	)

	switch cmd {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echoCmd, tea.Quit)

	case "h", "help":
		return m, tea.Sequence(echoCmd, tea.Println(helpMessage))

	case "l", "list":
		return m, tea.Sequence(echoCmd, tea.Println(m.listLocals()))

	case "n", "names":
		return m, tea.Sequence(echoCmd, tea.Println(m.listNames()))

	case "p", "policy":
		return m, tea.Sequence(echoCmd, tea.Println(m.describePolicy()))

	case "s", "set":
		name, expr := parseBinding(rest)
		result, err := m.session.Set(m.ctxFunc(), name, expr)

		return m, tea.Sequence(echoCmd, printResult(result, err))

	case "t", "tokens":
		toks, err := m.session.Tokens(m.ctxFunc(), rest)
		if err != nil {
			return m, tea.Sequence(echoCmd, printResult(lang.Null(), err))
		}

		return m, tea.Sequence(echoCmd, tea.Println(formatTokens(toks)))

	case "c", "clear":
		return m, tea.ClearScreen

	case "e", "edit":
		return m, tea.Sequence(echoCmd, m.edit())

	default:
		return m, tea.Println(
			errorStyle.Render("Unknown command: " + cmd + " (try 'help')"),
		)
	}
}

// parseBinding splits the argument of "set" into a name and an expression.
// Both "NAME EXPR" and "NAME = EXPR" are accepted.
func parseBinding(s string) (name, expr string) {
	s = strings.TrimSpace(s)

	end := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '=' })
	if end < 0 {
		return s, ""
	}

	name, expr = s[:end], strings.TrimSpace(s[end:])
	if rest, ok := strings.CutPrefix(expr, "="); ok && !strings.HasPrefix(rest, "=") {
		expr = strings.TrimSpace(rest)
	}

	return name, expr
}

// edit opens the external editor seeded with the pending eval input, or the
// most recent evaluated expression.
func (m model) edit() tea.Cmd {
	seed := m.saved[modeEval].text

	for i := m.history.Len() - 1; seed == "" && i >= 0; i-- {
		if entry, err := m.history.Entry(i); err == nil && entry.Mode == modeEval {
			seed = entry.Line
		}
	}

	cmd := &editExprCommand{
		session: m.session,
		ctxFunc: m.ctxFunc,
		expr:    seed,
		logger:  m.logger,
	}

	return tea.Exec(cmd, func(err error) tea.Msg {
		switch {
		case errors.Is(err, ErrEditDeclined):
			return editDeclinedMsg{}
		case err != nil:
			return editErrorMsg{err: err}
		case cmd.edited == "":
			return editCancelledMsg{}
		}

		return editDoneMsg{expr: cmd.edited, result: cmd.result}
	})
}

func (m model) listLocals() string {
	var b strings.Builder

	for _, name := range m.session.Locals() {
		v, _ := m.session.Local(name)
		fmt.Fprintf(&b, "  %s %s\n", name, hintStyle.Render(v.Repr()))
	}

	for _, name := range m.session.Columns() {
		fmt.Fprintf(&b, "  ${%s} %s\n", name, hintStyle.Render("column"))
	}

	if b.Len() == 0 {
		return hintStyle.Render("  no locals or columns")
	}

	return b.String()
}

func (m model) listNames() string {
	var b strings.Builder

	for _, name := range m.session.Functions() {
		fmt.Fprintf(&b, "  %s\n", name)
	}

	return b.String()
}

func (m model) describePolicy() string {
	p := m.session.Policy()

	var b strings.Builder

	fmt.Fprintf(&b, "  allowed    %s\n", strings.Join(p.Allowed(), ", "))
	fmt.Fprintf(&b, "  namespaces %s\n", strings.Join(p.NamespacePrefixes(), ", "))
	fmt.Fprintf(&b, "  self       %s\n", p.SelfName())

	return b.String()
}

func formatTokens(toks []lang.Token) string {
	var b strings.Builder

	for _, tok := range toks {
		fmt.Fprintf(&b, "  %4d %-10s %s\n", tok.Pos, tok.Kind, tok.Text)
	}

	return b.String()
}

// historyStep moves through history by dir. With inMode, entries of the
// other mode are skipped; otherwise the mode follows the entry. Stepping
// past the newest entry clears the input.
func (m model) historyStep(dir int, inMode bool) model {
	for i := m.historyIdx + dir; i >= 0 && i < m.history.Len(); i += dir {
		entry, err := m.history.Entry(i)
		if err != nil || (inMode && entry.Mode != m.mode) {
			continue
		}

		m.historyIdx = i

		return m.load(entry)
	}

	if dir > 0 && m.historyIdx < m.history.Len() {
		m.historyIdx = m.history.Len()
		m.input.SetValue("")
		refreshMatches(&m, false)
	}

	return m
}

// historyCtrl navigates command history only, switching to command mode on
// the first step and restoring the original input once history runs out.
func (m model) historyCtrl(dir int) model {
	if !m.altNav {
		m.altNav = true
		m.altMode = m.mode
		m.altOrig = m.current()
		m = m.switchToMode(modeCtrl)
	}

	for i := m.historyIdx + dir; i >= 0 && i < m.history.Len(); i += dir {
		if entry, err := m.history.Entry(i); err == nil && entry.Mode == modeCtrl {
			m.historyIdx = i

			return m.load(entry)
		}
	}

	m.altNav = false
	m = m.switchToMode(m.altMode)
	m.restore(m.altOrig)
	m.historyIdx = m.history.Len()
	refreshMatches(&m, false)

	return m
}

// load places entry in the input, switching to its mode.
func (m model) load(entry HistoryEntry) model {
	if m.mode != entry.Mode {
		m = m.switchToMode(entry.Mode)
	}

	m.restore(snapshot{text: entry.Line, cursor: len(entry.Line)})
	refreshMatches(&m, false)

	return m
}

// switchToMode switches to mode, saving and restoring each mode's input.
func (m model) switchToMode(mode inputMode) model {
	m.saved[m.mode] = m.current()
	m.mode = mode

	if mode == modeEval {
		m.input.Prompt = promptStyle.Render(evalPrompt)
	} else {
		m.input.Prompt = ctrlPromptStyle.Render(ctrlPrompt)
	}

	m.restore(m.saved[mode])
	refreshMatches(&m, false)

	return m
}
