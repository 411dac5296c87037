package usecase

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Branch identifies which dispatch branch handled an admin command
type Branch string

const (
	BranchCommand Branch = "command"
	BranchShell   Branch = "shell"
	BranchGrammar Branch = "grammar"
)

// shellPrefix marks admin text to be run by the shell
const shellPrefix = "!"

// okReply is sent when an admin action produces no output
const okReply = "[OK]"

// Command is an entry in the admin command table
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context) Output
}

// Action is a dispatched admin command. Output runs when iterated.
type Action struct {
	Branch Branch
	Name   string
	Output Output
}

// ShellConfig contains shell escape configuration
type ShellConfig struct {
	Shell   string
	Timeout time.Duration
}

// DefaultShellConfig returns the default shell configuration
func DefaultShellConfig() ShellConfig {
	return ShellConfig{
		Shell:   "sh",
		Timeout: 30 * time.Second,
	}
}

// CommandUsecase turns authorized admin text into an action.
// Priority: exact command table match, then shell escape, then the grammar.
type CommandUsecase struct {
	commands map[string]Command
	grammar  *Grammar
	shell    ShellConfig
	logger   zerolog.Logger
}

// NewCommandUsecase creates a new command usecase
func NewCommandUsecase(commands []Command, grammar *Grammar, shell ShellConfig, logger zerolog.Logger) *CommandUsecase {
	table := make(map[string]Command, len(commands))
	for _, c := range commands {
		table[c.Name] = c
	}
	if shell.Shell == "" {
		shell.Shell = "sh"
	}
	return &CommandUsecase{
		commands: table,
		grammar:  grammar,
		shell:    shell,
		logger:   logger,
	}
}

// Dispatch resolves text to an action. Text matching no branch returns an error
// wrapping domain.ErrMalformedCommand. The caller must already have authorized the sender.
func (uc *CommandUsecase) Dispatch(ctx context.Context, text string) (*Action, error) {
	trimmed := strings.TrimSpace(text)

	if cmd, ok := uc.commands[trimmed]; ok {
		uc.logger.Info().Str("command", cmd.Name).Msg("executing command")
		return &Action{Branch: BranchCommand, Name: cmd.Name, Output: cmd.Run(ctx)}, nil
	}

	// The shell escape must be the very first character of the raw text
	if strings.HasPrefix(text, shellPrefix) {
		cmdline := strings.TrimSpace(strings.TrimPrefix(text, shellPrefix))
		uc.logger.Info().Str("shell", cmdline).Msg("executing shell")
		return &Action{Branch: BranchShell, Name: cmdline, Output: uc.runShell(ctx, cmdline)}, nil
	}

	inv, err := uc.grammar.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	uc.logger.Info().Str("verb", inv.Verb.Name).Str("text", trimmed).Msg("executing")
	return &Action{Branch: BranchGrammar, Name: inv.Verb.Name, Output: inv.Verb.Run(ctx, inv.Args)}, nil
}

// runShell runs cmdline and yields its combined output as one line.
// A non-zero exit is reported through the output, not as an error.
func (uc *CommandUsecase) runShell(ctx context.Context, cmdline string) Output {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, uc.shell.Timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, uc.shell.Shell, "-c", cmdline)
		cmd.WaitDelay = time.Second
		out, err := cmd.CombinedOutput()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			yield("", fmt.Errorf("run shell: %w", err))
			return
		}

		text := strings.TrimRight(string(out), "\n")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			text = strings.TrimSpace(text + "\n[timeout after " + uc.shell.Timeout.String() + "]")
		}
		if text == "" {
			text = okReply
		}
		yield(text, nil)
	}
}

// lines yields fixed lines
func lines(ss ...string) Output {
	return func(yield func(string, error) bool) {
		for _, s := range ss {
			if !yield(s, nil) {
				return
			}
		}
	}
}

// fail yields a single error
func fail(err error) Output {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}
