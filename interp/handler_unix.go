// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package interp

import (
	"os/exec"
	"syscall"
)

// exitStatus decodes the status of a program which did not exit cleanly:
// its exit code, or 128 plus the signal number if a signal killed it.
func exitStatus(err *exec.ExitError) ExitStatus {
	if status, ok := err.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return ExitStatus(128 + status.Signal())
	}
	return ExitStatus(err.ExitCode())
}
