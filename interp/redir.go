// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/procsh/procsh/tree"
)

// frame is the standard input and output a command runs with.
// It owns every file opened to build it, until it is closed.
type frame struct {
	stdin  *os.File
	stdout io.Writer

	owned []io.Closer
}

// Close closes every file owned by the frame.
// It is safe to call more than once.
func (fr *frame) Close() error {
	var errs []error
	for _, c := range fr.owned {
		errs = append(errs, c.Close())
	}
	fr.owned = nil
	return errors.Join(errs...)
}

// redirect builds the frame for a command: the session's own standard
// input and output, with in and then out installed on top. On error, every
// file opened so far is closed.
func (s *Session) redirect(ctx context.Context, in, out tree.Redirect) (*frame, error) {
	fr := &frame{stdin: s.stdin, stdout: s.stdout}
	if err := s.redirectIn(ctx, fr, in); err != nil {
		fr.Close()
		return nil, err
	}
	if err := s.redirectOut(ctx, fr, out); err != nil {
		fr.Close()
		return nil, err
	}
	return fr, nil
}

func (s *Session) redirectIn(ctx context.Context, fr *frame, rd tree.Redirect) error {
	switch rd.Kind {
	case tree.RedirNone:
		return nil
	case tree.FromFile:
		f, err := s.open(ctx, fr, rd.Target, os.O_RDONLY, 0)
		if err != nil {
			return err
		}
		fr.owned = append(fr.owned, f)
		stdin, err := stdinFile(f)
		if err != nil {
			return &RedirectError{Op: "open", Err: err}
		}
		if stdin != f {
			fr.owned = append(fr.owned, stdin)
		}
		fr.stdin = stdin
		return nil
	case tree.HereDoc:
		f, err := s.hereDoc(rd.Target)
		if err != nil {
			return &RedirectError{Op: "heredoc", Err: err}
		}
		fr.owned = append(fr.owned, f)
		fr.stdin = f
		return nil
	}
	return &RedirectError{Op: "open", Err: errors.New("unsupported input redirection " + rd.Kind.String())}
}

func (s *Session) redirectOut(ctx context.Context, fr *frame, rd tree.Redirect) error {
	var flag int
	switch rd.Kind {
	case tree.RedirNone:
		return nil
	case tree.ToFileTrunc:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case tree.ToFileAppend:
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return &RedirectError{Op: "open", Err: errors.New("unsupported output redirection " + rd.Kind.String())}
	}
	// Only the owner may read, write or execute created files.
	f, err := s.open(ctx, fr, rd.Target, flag, 0o700)
	if err != nil {
		return err
	}
	fr.owned = append(fr.owned, f)
	fr.stdout = f
	return nil
}

func (s *Session) open(ctx context.Context, fr *frame, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	f, err := s.openHandler(s.handlerContext(ctx, nil, fr), path, flag, perm)
	if err != nil {
		return nil, &RedirectError{Op: "open", Err: err}
	}
	return f, nil
}

// hereDoc materialises a here-document body as a file positioned at its
// start. The file is unlinked right away, so it disappears once closed.
func (s *Session) hereDoc(body string) (*os.File, error) {
	f, err := os.CreateTemp(s.tempDir, "tmp_*")
	if err != nil {
		return nil, err
	}
	if err := fillHereDoc(f, body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func fillHereDoc(f *os.File, body string) error {
	if _, err := io.WriteString(f, body); err != nil {
		return err
	}
	_, err := f.Seek(0, io.SeekStart)
	return err
}
