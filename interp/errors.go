// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// Error extends the standard error interface with a Code method. The code
// is the status that the failing command evaluates to.
//
// Codes are the OS error number behind the failure when there is one,
// such as ENOENT for a missing file. Otherwise, usage errors use 1 and all
// other errors use EINVAL, unless documented otherwise.
type Error interface {
	error
	Code() int
}

var (
	_ Error = (*SpawnError)(nil)
	_ Error = (*ExecError)(nil)
	_ Error = (*RedirectError)(nil)
	_ Error = (*WaitError)(nil)
	_ Error = (*SignalError)(nil)
	_ Error = (*UsageError)(nil)
	_ Error = (*BuiltinError)(nil)
	_ Error = (*StackEmptyError)(nil)
	_ Error = (*DiagnosticError)(nil)
)

// errnoCode returns the OS error number wrapped by err, or fallback.
func errnoCode(err error, fallback int) int {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return int(errno)
	}
	return fallback
}

// reason formats an error for the end of a "<context> error: <reason>"
// message, dropping the operation names that [os] adds to its errors.
func reason(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Path + ": " + reason(pathErr.Err)
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return reason(sysErr.Err)
	}
	return err.Error()
}

// errorCode returns the status for any error returned while evaluating.
func errorCode(err error) int {
	var es ExitStatus
	var ierr Error
	switch {
	case err == nil:
		return 0
	case errors.As(err, &es):
		return int(es)
	case errors.As(err, &ierr):
		return ierr.Code()
	}
	return errnoCode(err, 1)
}

// SpawnError is returned when the shell cannot set up a command, such as
// when it cannot create a pipe.
type SpawnError struct {
	Op  string // e.g. "pipe"
	Err error
}

func (err *SpawnError) Error() string {
	return fmt.Sprintf("%s error: %s", err.Op, reason(err.Err))
}

func (err *SpawnError) Code() int     { return errnoCode(err.Err, int(syscall.EINVAL)) }
func (err *SpawnError) Unwrap() error { return err.Err }

// ExecError is returned when a program cannot be found or started.
// The path in Err names the program, so Name is not repeated in the message.
type ExecError struct {
	Name string
	Err  error
}

func (err *ExecError) Error() string {
	return fmt.Sprintf("exec error: %s", reason(err.Err))
}

func (err *ExecError) Code() int     { return errnoCode(err.Err, int(syscall.EINVAL)) }
func (err *ExecError) Unwrap() error { return err.Err }

// RedirectError is returned when a redirection cannot be installed.
type RedirectError struct {
	Op  string // "open" or "heredoc"
	Err error
}

func (err *RedirectError) Error() string {
	return fmt.Sprintf("%s error: %s", err.Op, reason(err.Err))
}

func (err *RedirectError) Code() int     { return errnoCode(err.Err, int(syscall.EINVAL)) }
func (err *RedirectError) Unwrap() error { return err.Err }

// WaitError is returned when waiting for a started program fails for any
// reason other than the program exiting with a non-zero status.
type WaitError struct {
	Name string
	Err  error
}

func (err *WaitError) Error() string {
	return fmt.Sprintf("wait error: %s: %s", err.Name, reason(err.Err))
}

func (err *WaitError) Code() int     { return errnoCode(err.Err, int(syscall.EINVAL)) }
func (err *WaitError) Unwrap() error { return err.Err }

// SignalError is returned when a signal cannot be delivered to a program,
// such as when interrupting it after its context is cancelled.
type SignalError struct {
	Signal os.Signal
	Err    error
}

func (err *SignalError) Error() string {
	return fmt.Sprintf("signal error: %v: %s", err.Signal, reason(err.Err))
}

func (err *SignalError) Code() int     { return errnoCode(err.Err, int(syscall.EINVAL)) }
func (err *SignalError) Unwrap() error { return err.Err }

// UsageError is returned when a built-in is called with the wrong
// arguments. Its code is always 1.
type UsageError struct {
	Builtin string
	Msg     string
}

func (err *UsageError) Error() string {
	return fmt.Sprintf("%s error: %s", err.Builtin, err.Msg)
}

func (err *UsageError) Code() int { return 1 }

// BuiltinError is returned when a built-in fails for an OS reason, such as
// a directory that does not exist.
type BuiltinError struct {
	Builtin string
	Err     error
}

func (err *BuiltinError) Error() string {
	return fmt.Sprintf("%s error: %s", err.Builtin, reason(err.Err))
}

func (err *BuiltinError) Code() int     { return errnoCode(err.Err, int(syscall.EINVAL)) }
func (err *BuiltinError) Unwrap() error { return err.Err }

// StackEmptyError is returned by popd when the directory stack is empty.
// Its code is always 1.
type StackEmptyError struct {
	Builtin string
}

func (err *StackEmptyError) Error() string {
	return fmt.Sprintf("%s error: directory stack empty", err.Builtin)
}

func (err *StackEmptyError) Code() int { return 1 }

// DiagnosticError is returned when a diagnostic line cannot be written,
// such as "Completed: 123 (0)". Without an OS error number, its code is EIO.
type DiagnosticError struct {
	Err error
}

func (err *DiagnosticError) Error() string {
	return fmt.Sprintf("diagnostic error: %s", reason(err.Err))
}

func (err *DiagnosticError) Code() int     { return errnoCode(err.Err, int(syscall.EIO)) }
func (err *DiagnosticError) Unwrap() error { return err.Err }
