// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// procsh is a small command shell. It reads shell source, or command
// trees in their typed JSON form, and evaluates them.
package main

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"
	"mvdan.cc/sh/v3/syntax"

	"github.com/procsh/procsh/internal/logger"
	"github.com/procsh/procsh/internal/rc"
	"github.com/procsh/procsh/interp"
	"github.com/procsh/procsh/parse"
	"github.com/procsh/procsh/tree/typedjson"
)

const usage = `Usage: procsh [flags] [file...]

Evaluates the given files, the command given with -c, or standard input.
If standard input is a terminal and nothing else is given, procsh prompts
for commands interactively.

With --json, each line of input is a command tree in its typed JSON form,
such as:

  {"Type":"Simple","Args":["echo","hi"]}

Options:
`

// statusSyntax is the status for input that cannot be evaluated at all.
const statusSyntax = 2

func main() { os.Exit(main1()) }

func main1() int {
	flags := pflag.NewFlagSet("procsh", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	var (
		command    = flags.StringP("command", "c", "", "Evaluates the given command.")
		jsonInput  = flags.Bool("json", false, "Reads typed JSON command trees, one per line.")
		verbose    = flags.BoolP("verbose", "v", false, "Prints each command before it is started.")
		color      = flags.Bool("color", false, "Colors error messages and the verbose trace.")
		dir        = flags.StringP("dir", "d", "", "Sets the directory the shell starts in.")
		configPath = flags.String("config", "", "Reads the given configuration file.")
		initConfig = flags.Bool("init-config", false, "Writes a default configuration file.")
	)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return statusSyntax
	}

	home, _ := os.UserHomeDir()
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if *initConfig {
		path := *configPath
		switch {
		case path != "":
		case xdg != "":
			path = filepath.Join(xdg, "procsh", "config.yml")
		default:
			path = filepath.Join(home, ".procshrc.yml")
		}
		if err := rc.Init(path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "procsh: wrote %s\n", path)
		return 0
	}

	cfg := &rc.Config{}
	if path := cmp.Or(*configPath, rc.Find(home, xdg)); path != "" {
		var err error
		if cfg, err = rc.Read(path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	// Flags override the configuration file.
	if flags.Changed("verbose") || cfg.Verbose == nil {
		cfg.Verbose = verbose
	}
	if flags.Changed("color") || cfg.Color == nil {
		cfg.Color = color
	}
	if *dir != "" {
		cfg.Dir = *dir
	}

	env, err := cfg.Environ(os.Environ())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	opts := []interp.SessionOption{
		interp.Env(env),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.Logger(&logger.Logger{
			Stdout:  os.Stdout,
			Stderr:  os.Stderr,
			Verbose: *cfg.Verbose,
			Color:   *cfg.Color,
		}),
	}
	if cfg.Dir != "" {
		opts = append(opts, interp.Dir(cfg.Dir))
	}
	if cfg.TempDir != "" {
		opts = append(opts, interp.TempDir(cfg.TempDir))
	}
	if cfg.KillTimeout != nil {
		opts = append(opts, interp.KillTimeout(*cfg.KillTimeout))
	}
	session, err := interp.New(opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	sh := &shell{session: session, parser: parse.NewParser(), stderr: os.Stderr}
	status := sh.runAll(context.Background(), flags, *command, *jsonInput)

	// Report the background commands still running before exiting.
	session.Wait()
	session.Evaluate(context.Background(), nil)
	return status
}

// shell drives a session with input read from files or a terminal.
type shell struct {
	session *interp.Session
	parser  *syntax.Parser
	stderr  io.Writer

	// status is that of the last evaluation.
	status int
}

func (sh *shell) runAll(ctx context.Context, flags *pflag.FlagSet, command string, jsonInput bool) int {
	run := sh.runSource
	if jsonInput {
		run = sh.runJSON
	}
	if command != "" {
		return run(ctx, strings.NewReader(command), "")
	}
	if flags.NArg() == 0 {
		if !jsonInput && term.IsTerminal(int(os.Stdin.Fd())) {
			return sh.interactive(ctx, os.Stdin, os.Stdout)
		}
		return run(ctx, os.Stdin, "")
	}
	for _, path := range flags.Args() {
		if status := sh.runPath(ctx, run, path); status == statusSyntax {
			return status
		}
	}
	return sh.status
}

func (sh *shell) runPath(ctx context.Context, run func(context.Context, io.Reader, string) int, path string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(sh.stderr, err)
		return statusSyntax
	}
	defer f.Close()
	return run(ctx, f, path)
}

func (sh *shell) evaluate(ctx context.Context, stmts ...*syntax.Stmt) bool {
	node, err := parse.Stmts(sh.session.Expander(), stmts...)
	if err != nil {
		fmt.Fprintln(sh.stderr, err)
		sh.status = statusSyntax
		return false
	}
	if node != nil {
		sh.status = sh.session.Evaluate(ctx, node)
	}
	return true
}

// runSource evaluates a script one top-level statement at a time, so that
// each statement is expanded after the previous one has run.
func (sh *shell) runSource(ctx context.Context, r io.Reader, name string) int {
	err := sh.parser.Stmts(r, func(stmt *syntax.Stmt) bool {
		return sh.evaluate(ctx, stmt)
	})
	if err != nil {
		if name != "" {
			fmt.Fprintf(sh.stderr, "%s:", name)
		}
		fmt.Fprintln(sh.stderr, err)
		return statusSyntax
	}
	return sh.status
}

// runJSON evaluates one typed JSON tree per non-empty line.
func (sh *shell) runJSON(ctx context.Context, r io.Reader, name string) int {
	if name == "" {
		name = "<stdin>"
	}
	opts := typedjson.DecodeOptions{Validate: true}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<20)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		node, err := opts.Decode(strings.NewReader(text))
		if err != nil {
			fmt.Fprintf(sh.stderr, "%s:%d: %v\n", name, line, err)
			return statusSyntax
		}
		sh.status = sh.session.Evaluate(ctx, node)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(sh.stderr, err)
		return statusSyntax
	}
	return sh.status
}

// interactive prompts for lines of input, evaluating each complete line as
// one command tree. A line which cannot be converted is reported, and the
// prompt carries on.
func (sh *shell) interactive(ctx context.Context, r io.Reader, w io.Writer) int {
	fmt.Fprint(w, "$ ")
	fn := func(stmts []*syntax.Stmt) bool {
		if sh.parser.Incomplete() {
			fmt.Fprint(w, "> ")
			return true
		}
		sh.evaluate(ctx, stmts...)
		fmt.Fprint(w, "$ ")
		return true
	}
	if err := sh.parser.Interactive(r, fn); err != nil {
		fmt.Fprintln(sh.stderr, err)
		return statusSyntax
	}
	return sh.status
}
