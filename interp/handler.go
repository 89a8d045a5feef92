// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mvdan.cc/sh/v3/expand"
)

// HandlerCtx returns HandlerContext value stored in ctx.
// It panics if ctx has no HandlerContext stored.
func HandlerCtx(ctx context.Context) HandlerContext {
	hc, ok := ctx.Value(handlerCtxKey{}).(HandlerContext)
	if !ok {
		panic("interp.HandlerCtx: no HandlerContext in ctx")
	}
	return hc
}

type handlerCtxKey struct{}

// HandlerContext is the data passed to all the handler functions via [context.WithValue].
// It contains the command frame that the [Session] prepared for a command.
type HandlerContext struct {
	// Env is a read-only version of the command's environment: the
	// session's environment plus the command's local bindings.
	Env expand.Environ

	// Dir is the session's current directory.
	Dir string

	// Stdin is the command's standard input.
	// It is either nil or an [*os.File], such as the read end of a pipe.
	Stdin io.Reader
	// Stdout is the command's standard output writer.
	Stdout io.Writer
	// Stderr is the command's standard error writer.
	Stderr io.Writer

	// Background is set when the command is launched in the background.
	// The session does not wait for it, and does not mask interrupts.
	Background bool

	started func(pid int)
}

// Started must be called by an exec handler once the program is running,
// with its process ID. The session announces background commands with it.
//
// A handler which runs a command without starting a process does not call
// it. Launching such a command in the background blocks until the handler
// returns, and the job is announced with an ID like "g1" instead.
func (hc HandlerContext) Started(pid int) {
	if hc.started != nil {
		hc.started(pid)
	}
}

// ExecHandlerFunc is a handler which executes simple commands.
// It is called for all [tree.Simple] nodes which are not built-ins.
//
// Returning a nil error means a zero exit status.
// Other exit statuses can be set by returning an [ExitStatus].
// Any other error is printed to the session's standard error, and the
// command's status is its code as per [Error].
type ExecHandlerFunc func(ctx context.Context, args []string) error

// DefaultExecHandler returns the [ExecHandlerFunc] used by default.
// It finds binaries in PATH and executes them.
// When context is cancelled, an interrupt signal is sent to running processes.
// killTimeout is a duration to wait before sending the kill signal.
// A negative value means that a kill signal will be sent immediately.
//
// A program killed by a signal results in an exit status of 128 plus the
// signal number. A program which cannot be found or started results in an
// [*ExecError], whose code is the OS error number, such as ENOENT.
//
// [Session] defaults to a killTimeout of 2 seconds.
func DefaultExecHandler(killTimeout time.Duration) ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		hc := HandlerCtx(ctx)
		path, err := LookPathDir(hc.Dir, hc.Env, args[0])
		if err != nil {
			return &ExecError{Name: args[0], Err: err}
		}
		cmd := exec.Cmd{
			Path:   path,
			Args:   args,
			Env:    execEnv(hc.Env),
			Dir:    hc.Dir,
			Stdin:  hc.Stdin,
			Stdout: hc.Stdout,
			Stderr: hc.Stderr,
		}

		if err := cmd.Start(); err != nil {
			return &ExecError{Name: args[0], Err: err}
		}
		hc.Started(cmd.Process.Pid)

		stopf := context.AfterFunc(ctx, func() {
			signal := func(sig os.Signal) {
				err := cmd.Process.Signal(sig)
				if err != nil && !errors.Is(err, os.ErrProcessDone) {
					fmt.Fprintln(hc.Stderr, &SignalError{Signal: sig, Err: err})
				}
			}
			if killTimeout <= 0 {
				signal(os.Kill)
				return
			}
			signal(os.Interrupt)
			// TODO: don't sleep in this goroutine if the program
			// stops itself with the interrupt above.
			time.Sleep(killTimeout)
			signal(os.Kill)
		})
		defer stopf()

		err = cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &exitErr):
			return exitStatus(exitErr)
		default:
			return &WaitError{Name: args[0], Err: err}
		}
	}
}

func checkStat(dir, file string) (string, error) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}
	info, err := os.Stat(file)
	if err != nil {
		return "", err
	}
	m := info.Mode()
	if m.IsDir() || m&0o111 == 0 {
		return "", &fs.PathError{Op: "exec", Path: file, Err: syscall.EACCES}
	}
	return file, nil
}

// LookPathDir is similar to [os/exec.LookPath], with the difference that it uses the
// provided environment. env is used to fetch the PATH variable, and names
// containing a slash are resolved against cwd instead.
//
// If no error is returned, the returned path must be valid. Otherwise, the
// error wraps an OS error number: ENOENT if nothing was found, or EACCES if
// a file was found but is not an executable.
func LookPathDir(cwd string, env expand.Environ, file string) (string, error) {
	if strings.Contains(file, "/") {
		return checkStat(cwd, file)
	}
	pathList := filepath.SplitList(env.Get("PATH").String())
	if len(pathList) == 0 {
		pathList = []string{""}
	}
	var firstErr error
	for _, elem := range pathList {
		var path string
		switch elem {
		case "", ".":
			// otherwise "foo" won't be "./foo"
			path = "." + string(filepath.Separator) + file
		default:
			path = filepath.Join(elem, file)
		}
		f, err := checkStat(cwd, path)
		if err == nil {
			return f, nil
		}
		if firstErr == nil && errors.Is(err, syscall.EACCES) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return "", firstErr
	}
	return "", &fs.PathError{Op: "lookup", Path: file, Err: syscall.ENOENT}
}

// OpenHandlerFunc is a handler which opens files.
// It is called for all files that are opened directly by the shell,
// such as in redirects. Here-documents and files opened by executed programs
// are not included.
//
// The path parameter may be relative to the current directory,
// which can be fetched via [HandlerCtx].
//
// The returned error is printed to the session's standard error, and the
// command's status is the OS error number it wraps.
//
// Note that implementations which do not return [os.File] will cause
// extra files and goroutines for input redirections; see [StdIO].
type OpenHandlerFunc func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error)

// DefaultOpenHandler returns the [OpenHandlerFunc] used by default.
// It uses [os.OpenFile] to open files.
func DefaultOpenHandler() OpenHandlerFunc {
	return func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
		mc := HandlerCtx(ctx)
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(mc.Dir, path)
		}
		return os.OpenFile(path, flag, perm)
	}
}
