package repl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ardnew/safeval/lang"
	"github.com/ardnew/safeval/log"
)

const defaultEditor = "vi"

// editExprCommand implements [tea.ExecCommand] for the edit-evaluate-retry
// loop. It writes an expression to a temp file, opens the user's editor, and
// evaluates the result. On error the user is prompted to re-edit; declining
// returns [ErrEditDeclined].
type editExprCommand struct {
	session *Session
	ctxFunc func() context.Context
	expr    string
	logger  log.Logger
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer

	// Set by Run on success.
	edited string
	result lang.Value
}

// SetStdin sets the stdin reader for the command.
func (c *editExprCommand) SetStdin(r io.Reader) { c.stdin = r }

// SetStdout sets the stdout writer for the command.
func (c *editExprCommand) SetStdout(w io.Writer) { c.stdout = w }

// SetStderr sets the stderr writer for the command.
func (c *editExprCommand) SetStderr(w io.Writer) { c.stderr = w }

// Run executes the edit-evaluate-retry loop. An emptied file cancels the
// edit without error.
func (c *editExprCommand) Run() error {
	ctx := c.ctxFunc()

	f, err := os.CreateTemp(os.TempDir(), "safeval-repl-*.py")
	if err != nil {
		return err
	}

	tmpPath := f.Name()

	defer os.Remove(tmpPath)

	if err := f.Chmod(0o600); err != nil {
		f.Close()

		return err
	}

	f.Close()

	content := c.expr

	for {
		if err := os.WriteFile(tmpPath, []byte(content), 0o600); err != nil {
			return err
		}

		data, err := runEditor(ctx, c.stdin, c.stdout, c.stderr, tmpPath)
		if err != nil {
			return err
		}

		expr := strings.TrimSpace(string(data))
		if expr == "" {
			return nil
		}

		v, evalErr := c.session.Evaluate(ctx, expr)
		c.logger.TraceContext(
			ctx,
			"editor evaluate attempt",
			slog.Int("content_length", len(data)),
			slog.Bool("success", evalErr == nil),
		)

		if evalErr == nil {
			c.edited, c.result = expr, v

			return nil
		}

		fmt.Fprintf(c.stderr, "\nError: %s\n", evalErr)
		fmt.Fprintf(c.stdout, "Re-edit? [Y/n] ")

		scanner := bufio.NewScanner(c.stdin)
		if !scanner.Scan() {
			return ErrEditDeclined
		}

		response := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if response == "n" || response == "no" {
			return ErrEditDeclined
		}

		content = string(data)
	}
}

// editorCommand returns the user's editor split into program and arguments.
func editorCommand() (string, []string) {
	fields := strings.Fields(os.Getenv("EDITOR"))
	if len(fields) == 0 {
		return defaultEditor, nil
	}

	return fields[0], fields[1:]
}

// runEditor launches the user's editor on the given file path and returns the
// edited file content.
func runEditor(
	ctx context.Context,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	path string,
) ([]byte, error) {
	name, args := editorCommand()

	cmd := exec.CommandContext(ctx, name, append(args, path)...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return bytes.TrimRight(data, "\n"), nil
}
