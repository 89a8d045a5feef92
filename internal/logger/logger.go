// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information
//
// Parts of this file are adapted from Task (github.com/go-task/task),
// Copyright (c) 2016 Andrey Nering, under the MIT License.

// Package logger prints the shell's own messages: errors, the verbose trace
// of spawned commands, and the job diagnostics of background commands.
package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/fatih/color"
)

type (
	Color     func() PrintFunc
	PrintFunc func(io.Writer, string, ...any)
)

func Default() PrintFunc {
	return color.New(envColor("PROCSH_COLOR_RESET", color.Reset)).FprintfFunc()
}

func Cyan() PrintFunc {
	return color.New(envColor("PROCSH_COLOR_CYAN", color.FgCyan)).FprintfFunc()
}

func Yellow() PrintFunc {
	return color.New(envColor("PROCSH_COLOR_YELLOW", color.FgYellow)).FprintfFunc()
}

func Red() PrintFunc {
	return color.New(envColor("PROCSH_COLOR_RED", color.FgRed)).FprintfFunc()
}

func envColor(env string, defaultColor color.Attribute) color.Attribute {
	override, err := strconv.Atoi(os.Getenv(env))
	if err == nil {
		return color.Attribute(override)
	}
	return defaultColor
}

// Logger is just a wrapper that prints stuff to Stdout or Stderr,
// with optional color.
//
// A Logger is safe for concurrent use; each message is written as a whole.
type Logger struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Verbose bool
	Color   bool

	mu sync.Mutex
}

// Outf prints stuff to Stdout.
func (l *Logger) Outf(color Color, s string, args ...any) {
	l.FOutf(l.Stdout, color, s+"\n", args...)
}

// FOutf prints stuff to the given writer.
func (l *Logger) FOutf(w io.Writer, color Color, s string, args ...any) {
	if len(args) == 0 {
		s, args = "%s", []any{s}
	}
	if !l.Color {
		color = Default
	}
	print := color()
	l.mu.Lock()
	defer l.mu.Unlock()
	print(w, s, args...)
}

// VerboseOutf prints stuff to Stdout if verbose mode is enabled.
func (l *Logger) VerboseOutf(color Color, s string, args ...any) {
	if l.Verbose {
		l.Outf(color, s, args...)
	}
}

// Errf prints stuff to Stderr.
func (l *Logger) Errf(color Color, s string, args ...any) {
	l.FOutf(l.Stderr, color, s+"\n", args...)
}

// VerboseErrf prints stuff to Stderr if verbose mode is enabled.
func (l *Logger) VerboseErrf(color Color, s string, args ...any) {
	if l.Verbose {
		l.Errf(color, s, args...)
	}
}

// Diagf prints a diagnostic line to Stderr, never colored so that its text
// is exact. Unlike the other methods, it reports a failed write.
func (l *Logger) Diagf(s string, args ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.Stderr, s+"\n", args...)
	return err
}
