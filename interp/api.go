// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package interp implements the execution core of a Unix shell: it evaluates
// command trees from package tree by spawning programs, wiring pipes and
// redirections, sequencing commands, and running the cd, pushd and popd
// built-ins.
//
// Commands run against a [Session], which owns the state of one shell: its
// current directory, environment, directory stack, and background jobs.
// Subshells and pipeline stages run in the same process, on copies of the
// session, so that they can never modify their parent.
package interp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"mvdan.cc/sh/v3/expand"

	"github.com/procsh/procsh/internal/logger"
	"github.com/procsh/procsh/tree"
)

// A Session evaluates command trees. It can be reused, but it is not safe for
// concurrent use. Use [New] to build a new Session.
//
// Note that writes to Stdout and Stderr may be concurrent if pipelines or
// background commands are used. If you plan on using an [io.Writer]
// implementation that isn't safe for concurrent use, consider a workaround
// like hiding writes behind a mutex.
type Session struct {
	// dir is the session's current directory, which is always absolute.
	// Programs are started in it; the process's own directory never changes.
	dir string

	env     *environ
	dirs    *DirStack
	tempDir string

	// execHandler is responsible for executing programs. It must not be nil.
	execHandler ExecHandlerFunc

	// execMiddlewares grows with calls to [ExecHandlers],
	// and is used to construct execHandler in [New].
	// The slice is needed to preserve the relative order of middlewares.
	execMiddlewares []func(ExecHandlerFunc) ExecHandlerFunc

	// openHandler is a function responsible for opening files. It must not be nil.
	openHandler OpenHandlerFunc

	killTimeout time.Duration

	stdin  *os.File // e.g. the read end of a pipe
	stdout io.Writer
	stderr io.Writer

	log  *logger.Logger
	mask *interruptMask // shared with all copies of the session
	jobs jobTable

	// background is set on copies running a background command;
	// their waits do not mask interrupts.
	background bool
}

// New creates a new Session, applying a number of options. If applying any of
// the options results in an error, it is returned.
//
// Any unset options fall back to their defaults. For example, not supplying the
// environment falls back to the process's environment, and not supplying the
// standard output writer means that the output will be discarded.
func New(opts ...SessionOption) (*Session, error) {
	s := &Session{
		openHandler: DefaultOpenHandler(),
		killTimeout: 2 * time.Second,
		dirs:        new(DirStack),
		mask:        new(interruptMask),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	// Set the default fallbacks, if necessary.
	if s.env == nil {
		if err := Env(nil)(s); err != nil {
			return nil, err
		}
	}
	if s.dir == "" {
		if err := Dir("")(s); err != nil {
			return nil, err
		}
	}
	if s.stdout == nil || s.stderr == nil {
		if err := StdIO(s.stdin, s.stdout, s.stderr)(s); err != nil {
			return nil, err
		}
	}
	if s.tempDir == "" {
		if dir := s.env.lookup("TMPDIR"); filepath.IsAbs(dir) {
			s.tempDir = dir
		} else {
			s.tempDir = os.TempDir()
		}
	}
	if s.log == nil {
		s.log = &logger.Logger{Stdout: s.stdout, Stderr: s.stderr}
	}

	s.execHandler = DefaultExecHandler(s.killTimeout)
	for i := len(s.execMiddlewares) - 1; i >= 0; i-- {
		s.execHandler = s.execMiddlewares[i](s.execHandler)
	}

	if s.env.lookup("HOME") == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.env.Set("HOME", home)
		}
	}
	s.env.Set("PWD", s.dir)
	return s, nil
}

// SessionOption can be passed to [New] to alter a [Session]'s behaviour.
type SessionOption func(*Session) error

// Env sets the session's environment from a list of "name=value" pairs. If
// nil, a copy of the current process's environment is used.
func Env(list []string) SessionOption {
	return func(s *Session) error {
		if list == nil {
			list = os.Environ()
		}
		env, err := envFromList(list)
		if err != nil {
			return err
		}
		s.env = env
		return nil
	}
}

// Dir sets the session's working directory. If empty, the process's current
// directory is used.
func Dir(path string) SessionOption {
	return func(s *Session) error {
		if path == "" {
			path, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("could not get current dir: %w", err)
			}
			s.dir = path
			return nil
		}
		path, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("could not get absolute dir: %w", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("could not stat: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		s.dir = path
		return nil
	}
}

// TempDir sets the directory in which here-documents are materialised.
// If unset, $TMPDIR is used if it is an absolute path, and [os.TempDir]
// otherwise.
func TempDir(path string) SessionOption {
	return func(s *Session) error {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("could not stat: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		s.tempDir = path
		return nil
	}
}

// ExecHandlers appends middlewares to handle command execution.
// The middlewares are chained from first to last, and the first is called by the session.
// Each middleware is expected to call the "next" middleware at most once.
//
// For example, a middleware may implement only some commands.
// For those commands, it can run its logic and avoid calling "next".
// For any other commands, it can call "next" with the original parameters.
//
// The last exec handler is always [DefaultExecHandler], with the timeout
// set by [KillTimeout].
func ExecHandlers(middlewares ...func(next ExecHandlerFunc) ExecHandlerFunc) SessionOption {
	return func(s *Session) error {
		s.execMiddlewares = append(s.execMiddlewares, middlewares...)
		return nil
	}
}

// OpenHandler sets file open handler. See [OpenHandlerFunc] for more info.
func OpenHandler(f OpenHandlerFunc) SessionOption {
	return func(s *Session) error {
		s.openHandler = f
		return nil
	}
}

// KillTimeout sets how long programs get to stop after being interrupted
// when the context is cancelled, before they are killed. It defaults to two
// seconds.
func KillTimeout(d time.Duration) SessionOption {
	return func(s *Session) error {
		s.killTimeout = d
		return nil
	}
}

// Logger sets the logger used for error messages, the verbose trace, and the
// diagnostics of background commands. By default, a logger without color
// writes to the standard error set by [StdIO].
func Logger(l *logger.Logger) SessionOption {
	return func(s *Session) error {
		s.log = l
		return nil
	}
}

func stdinFile(r io.Reader) (*os.File, error) {
	switch r := r.(type) {
	case *os.File:
		return r, nil
	case nil:
		return nil, nil
	default:
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, err
		}
		go func() {
			io.Copy(pw, r)
			pw.Close()
		}()
		return pr, nil
	}
}

// StdIO configures a session's standard input, standard output, and
// standard error. If out or err are nil, they default to a writer that discards
// the output.
//
// Note that providing a non-nil standard input other than [*os.File] will require
// an [os.Pipe] and spawning a goroutine to copy into it,
// as an [os.File] is the only way to share a reader with subprocesses.
// This may cause the session to consume the entire reader.
// See [os/exec.Cmd.Stdin].
func StdIO(in io.Reader, out, err io.Writer) SessionOption {
	return func(s *Session) error {
		stdin, _err := stdinFile(in)
		if _err != nil {
			return _err
		}
		s.stdin = stdin
		if out == nil {
			out = io.Discard
		}
		s.stdout = out
		if err == nil {
			err = io.Discard
		}
		s.stderr = err
		return nil
	}
}

// ExitStatus is a non-zero status code resulting from running a shell node.
type ExitStatus uint8

func (s ExitStatus) Error() string { return fmt.Sprintf("exit status %d", s) }

// Run evaluates a node like [Session.Evaluate]. If the resulting status is
// non-zero, it is returned as an [ExitStatus] error.
func (s *Session) Run(ctx context.Context, node tree.Node) error {
	if code := s.Evaluate(ctx, node); code != 0 {
		return ExitStatus(code)
	}
	return nil
}

// Wait blocks until every background job launched by the session has
// finished. The jobs are not reported; the next evaluation does that.
func (s *Session) Wait() { s.jobs.wait() }

// Dir returns the session's current directory.
func (s *Session) Dir() string { return s.dir }

// Getenv returns the value of an environment variable,
// or the empty string if it is unset.
func (s *Session) Getenv(name string) string { return s.env.lookup(name) }

// Environ returns the session's environment as "name=value" pairs,
// in the order in which the variables were first set.
func (s *Session) Environ() []string { return s.env.list() }

// Dirs returns the session's directory stack, from the top to the bottom.
func (s *Session) Dirs() []string { return s.dirs.Entries() }

// Expander returns a read-only view of the session's environment,
// suitable to expand words before building command trees.
func (s *Session) Expander() expand.Environ { return s.env }

// subshell makes a copy of the given [Session], suitable for use concurrently
// with the original. The copy has the same directory, environment and
// directory stack, but they can all be modified without affecting the
// original. It starts with no background jobs of its own.
func (s *Session) subshell() *Session {
	// Keep in sync with the Session type. Manually copy fields,
	// to not share the job table, and to do deep copies.
	return &Session{
		dir:         s.dir,
		env:         s.env.clone(),
		dirs:        s.dirs.Clone(),
		tempDir:     s.tempDir,
		execHandler: s.execHandler,
		openHandler: s.openHandler,
		killTimeout: s.killTimeout,
		stdin:       s.stdin,
		stdout:      s.stdout,
		stderr:      s.stderr,
		log:         s.log,
		mask:        s.mask,
		background:  s.background,
	}
}
