// Package repl is the interactive elab shell. A story file is loaded once
// and then analyzed, diffed and elaborated repeatedly while it is edited in
// another window.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/elab/internal/pipeline"
	"github.com/steveyegge/elab/internal/storyfile"
)

// REPL represents the interactive shell
type REPL struct {
	runner   *pipeline.Runner
	rl       *readline.Instance
	ctx      context.Context
	out      io.Writer
	history  string
	commands map[string]CommandHandler

	// path and doc are the loaded story file; doc is re-read before each
	// command so edits are picked up
	path string
	doc  *storyfile.Document

	// last is the most recent analysis of doc
	last *pipeline.Analysis
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Runner *pipeline.Runner

	// Out receives all output. Default: os.Stdout
	Out io.Writer

	// HistoryFile persists input history. Empty keeps it in memory.
	HistoryFile string

	// StoryFile is loaded before the first prompt when set
	StoryFile string
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg == nil || cfg.Runner == nil {
		return nil, fmt.Errorf("pipeline runner is required")
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		runner:   cfg.Runner,
		ctx:      context.Background(),
		out:      out,
		history:  cfg.HistoryFile,
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()

	if cfg.StoryFile != "" {
		if err := r.cmdLoad([]string{cfg.StoryFile}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            r.prompt(),
		HistoryFile:       r.history,
		AutoComplete:      newCompleter(r.commandNames()),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdout:            r.out,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			} else if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
		rl.SetPrompt(r.prompt())
	}
}

func (r *REPL) prompt() string {
	cyan := color.New(color.FgCyan).SprintFunc()
	if r.doc != nil {
		return cyan(fmt.Sprintf("elab[%s]> ", r.doc.Story.ID))
	}
	return cyan("elab> ")
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	if handler, ok := r.commands[command]; ok {
		return handler(args)
	}
	return fmt.Errorf("unknown command %q (type 'help' for available commands)", parts[0])
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit

	r.commands["load"] = r.cmdLoad
	r.commands["show"] = r.cmdShow
	r.commands["analyze"] = r.cmdAnalyze
	r.commands["gaps"] = r.cmdGaps
	r.commands["readiness"] = r.cmdReadiness
	r.commands["diff"] = r.cmdDiff
	r.commands["elaborate"] = r.cmdElaborate
	r.commands["history"] = r.cmdHistory
	r.commands["events"] = r.cmdEvents
	r.commands["prune"] = r.cmdPrune
}

func (r *REPL) commandNames() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		if name != "?" {
			names = append(names, name)
		}
	}
	return names
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("elab - story elaboration shell"))
	if r.doc != nil {
		fmt.Fprintf(r.out, "Loaded %s from %s\n", r.doc.Story.ID, r.path)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))
	commands := []struct {
		name string
		desc string
	}{
		{"load <file>", "Load a story file (YAML or JSON)"},
		{"show", "Show the loaded story"},
		{"analyze", "Generate, rank and score gaps for the story"},
		{"gaps [n]", "List the ranked gaps of the last analysis"},
		{"readiness", "Show the readiness verdict of the last analysis"},
		{"diff [file]", "Compare with a previous version (file or last elaborated)"},
		{"elaborate [file]", "Run a full elaboration against a previous version"},
		{"history [story-id]", "Show stored runs and state for a story"},
		{"events [n]", "Show the n most recent events (default 20)"},
		{"prune", "Apply the event retention policy"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the REPL"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n", green(fmt.Sprintf("%-20s", cmd.name)), cmd.desc)
	}
	fmt.Fprintf(r.out, "\n%s\n\n", gray("The story file is re-read before each command."))
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	if r.rl != nil {
		r.rl.Close()
	}
	return io.EOF
}
