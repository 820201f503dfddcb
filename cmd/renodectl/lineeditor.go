package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	historyFileName = ".renodectl_history"
	historySize     = 500
)

// LineEditor reads one line of input at a time, using ergochat/readline's
// Emacs-style editing and persistent history when stdin is a TTY, and a
// plain bufio.Scanner otherwise (piped input, CI logs, Emacs comint).
type LineEditor struct {
	interactive bool
	rl          *readline.Instance
	scanner     *bufio.Scanner
}

// NewLineEditor detects whether stdin is a terminal and builds the
// matching backend.
func NewLineEditor() *LineEditor {
	isInteractive := term.IsTerminal(int(os.Stdin.Fd())) && os.Getenv("INSIDE_EMACS") == ""
	if !isInteractive {
		return &LineEditor{scanner: bufio.NewScanner(os.Stdin)}
	}

	historyPath := filepath.Join(homeDir(), historyFileName)
	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyPath,
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: readline init failed (%v), falling back to basic input\n", err)
		return &LineEditor{scanner: bufio.NewScanner(os.Stdin)}
	}
	return &LineEditor{interactive: true, rl: rl}
}

// GetLine reads one line, displaying prompt. It returns io.EOF on Ctrl-D
// or Ctrl-C in interactive mode, or on exhausted piped input.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)
	line, err := le.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	fmt.Print(prompt)
	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Close releases editor resources (readline's history file handle). Safe
// to call more than once.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether this editor backs onto a real terminal.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
