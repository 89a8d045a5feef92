// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/procsh/procsh/tree"
)

// isBuiltin reports whether name runs inside the shell rather than as a
// program, as it changes the state of the session.
func isBuiltin(name string) bool {
	switch name {
	case "cd", "pushd", "popd":
		return true
	}
	return false
}

// builtin runs a built-in on the session itself. Its local bindings are
// written to the session's environment and stay there. Its redirections
// only apply to its own output, while it runs.
func (s *Session) builtin(ctx context.Context, node *tree.Simple) int {
	for _, b := range node.Bindings {
		s.env.Set(b.Name, b.Value)
	}
	fr, err := s.redirect(ctx, node.In, node.Out)
	if err != nil {
		return s.fail(err)
	}
	defer fr.Close()

	s.trace(node)
	if err := s.builtinCode(fr.stdout, node.Args); err != nil {
		return s.fail(err)
	}
	return 0
}

func (s *Session) builtinCode(stdout io.Writer, args []string) error {
	name := args[0]
	switch name {
	case "cd":
		var path string
		switch len(args) {
		case 1:
			path = s.env.lookup("HOME")
			if path == "" {
				return &UsageError{Builtin: name, Msg: "HOME not set"}
			}
		case 2:
			path = args[1]
		default:
			return &UsageError{Builtin: name, Msg: "Too many arguments"}
		}
		return s.changeDir(name, path)
	case "pushd":
		if len(args) != 2 {
			return &UsageError{Builtin: name, Msg: "exactly one directory argument required"}
		}
		s.dirs.Push(s.dir)
		if err := s.changeDir(name, args[1]); err != nil {
			s.dirs.Pop()
			return err
		}
		var sb strings.Builder
		sb.WriteString(s.dir)
		for _, dir := range s.dirs.Entries() {
			sb.WriteByte(' ')
			sb.WriteString(dir)
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(stdout, sb.String()); err != nil {
			return &BuiltinError{Builtin: name, Err: err}
		}
	case "popd":
		if len(args) > 1 {
			return &UsageError{Builtin: name, Msg: "Too many arguments"}
		}
		if s.dirs.Len() == 0 {
			return &StackEmptyError{Builtin: name}
		}
		var sb strings.Builder
		for _, dir := range s.dirs.Entries() {
			sb.WriteString(dir)
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(stdout, sb.String()); err != nil {
			return &BuiltinError{Builtin: name, Err: err}
		}
		top, _ := s.dirs.Pop()
		return s.changeDir(name, top)
	default:
		panic("unhandled builtin: " + name)
	}
	return nil
}

// changeDir makes path the session's current directory, updating PWD and
// OLDPWD. A relative path is resolved against the current directory.
func (s *Session) changeDir(builtin, path string) error {
	path = s.absPath(path)
	info, err := os.Stat(path)
	if err != nil {
		return &BuiltinError{Builtin: builtin, Err: err}
	}
	if !info.IsDir() {
		return &BuiltinError{Builtin: builtin, Err: &fs.PathError{Op: "chdir", Path: path, Err: syscall.ENOTDIR}}
	}
	if !hasPermissionToDir(path) {
		return &BuiltinError{Builtin: builtin, Err: &fs.PathError{Op: "chdir", Path: path, Err: syscall.EACCES}}
	}
	s.dir = path
	s.env.Set("OLDPWD", s.env.lookup("PWD"))
	s.env.Set("PWD", path)
	return nil
}

func (s *Session) absPath(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	return filepath.Clean(path)
}
