// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/procsh/procsh/internal/logger"
	"github.com/procsh/procsh/tree"
)

// Evaluate runs a command tree and returns its exit status.
//
// Before anything else, background jobs of the session which have finished
// are reported on standard error as "Completed: <id> (<status>)", in launch
// order. A nil node then evaluates to 0. Finally, the status is published
// as the "?" environment variable.
//
// Evaluate can be called multiple times synchronously to evaluate trees
// incrementally, like an interactive shell does. Errors never stop the
// session; they are printed to standard error, and their code becomes the
// status.
func (s *Session) Evaluate(ctx context.Context, node tree.Node) int {
	if err := s.reap(); err != nil {
		status := s.fail(err)
		s.setStatus(status)
		return status
	}
	return s.run(ctx, node)
}

// run evaluates a node and publishes its status. Unlike Evaluate, it does
// not report finished jobs, which only happens between top-level trees.
func (s *Session) run(ctx context.Context, node tree.Node) int {
	status := s.eval(ctx, node)
	s.setStatus(status)
	return status
}

func (s *Session) setStatus(status int) { s.env.Set("?", strconv.Itoa(status)) }

func (s *Session) reap() error {
	return s.jobs.reap(func(j *job) error {
		if err := s.log.Diagf("Completed: %s (%d)", j.id, j.status); err != nil {
			return &DiagnosticError{Err: err}
		}
		return nil
	})
}

func (s *Session) eval(ctx context.Context, node tree.Node) int {
	switch node := node.(type) {
	case nil:
		return 0
	case *tree.Simple:
		if isBuiltin(node.Name()) {
			return s.builtin(ctx, node)
		}
		return s.call(ctx, node)
	case *tree.Pipe:
		return s.pipe(ctx, node)
	case *tree.And:
		if status := s.run(ctx, node.Left); status != 0 {
			return status
		}
		return s.run(ctx, node.Right)
	case *tree.Or:
		if s.run(ctx, node.Left) == 0 {
			return 0
		}
		return s.run(ctx, node.Right)
	case *tree.Seq:
		status := s.run(ctx, node.Left)
		if node.Right != nil {
			return s.run(ctx, node.Right)
		}
		return status
	case *tree.Subshell:
		return s.subshellCmd(ctx, node)
	case *tree.Bg:
		status := s.runBackground(ctx, node.Left)
		if node.Right != nil {
			status = firstFailure(status, s.run(ctx, node.Right))
		}
		return status
	default:
		panic(fmt.Sprintf("unhandled node: %T", node))
	}
}

// firstFailure returns the leftmost non-zero status.
func firstFailure(left, right int) int {
	if left != 0 {
		return left
	}
	return right
}

// fail prints err and returns its code.
func (s *Session) fail(err error) int {
	s.log.Errf(logger.Red, "%v", err)
	return errorCode(err)
}

// handlerStatus returns the status of an exec handler's result,
// printing any error other than an exit status.
func (s *Session) handlerStatus(err error) int {
	if _, ok := err.(ExitStatus); err != nil && !ok {
		return s.fail(err)
	}
	return errorCode(err)
}

func (s *Session) trace(node tree.Node) {
	s.log.VerboseErrf(logger.Cyan, "+ %s", node)
}

// handlerContext returns ctx carrying the HandlerContext for a command
// running in the given frame.
func (s *Session) handlerContext(ctx context.Context, bindings []tree.Binding, fr *frame) context.Context {
	env := s.env
	if len(bindings) > 0 {
		env = env.clone()
		for _, b := range bindings {
			env.Set(b.Name, b.Value)
		}
	}
	hc := HandlerContext{
		Env:        env,
		Dir:        s.dir,
		Stdout:     fr.stdout,
		Stderr:     s.stderr,
		Background: s.background,
	}
	if fr.stdin != nil {
		// A nil *os.File must not become a non-nil io.Reader.
		hc.Stdin = fr.stdin
	}
	return context.WithValue(ctx, handlerCtxKey{}, hc)
}

// call runs a program in the foreground and waits for it.
// Its local bindings are only visible to the program.
func (s *Session) call(ctx context.Context, node *tree.Simple) int {
	fr, err := s.redirect(ctx, node.In, node.Out)
	if err != nil {
		return s.fail(err)
	}
	defer fr.Close()

	s.trace(node)
	if !s.background {
		defer s.mask.hold().Close()
	}
	err = s.execHandler(s.handlerContext(ctx, node.Bindings, fr), node.Args)
	return s.handlerStatus(err)
}

// pipe runs both sides of a pipeline concurrently, each on its own copy of
// the session, and waits for both.
func (s *Session) pipe(ctx context.Context, node *tree.Pipe) int {
	pr, pw, err := os.Pipe()
	if err != nil {
		return s.fail(&SpawnError{Op: "pipe", Err: err})
	}
	left, right := s.subshell(), s.subshell()
	left.stdout = pw
	right.stdin = pr

	if !s.background {
		defer s.mask.hold().Close()
	}
	var leftStatus, rightStatus int
	var g errgroup.Group
	g.Go(func() error {
		// The reader sees EOF once every writer is gone.
		defer pw.Close()
		leftStatus = left.run(ctx, node.Left)
		return nil
	})
	g.Go(func() error {
		// Writers get EPIPE once the reader is gone.
		defer pr.Close()
		rightStatus = right.run(ctx, node.Right)
		return nil
	})
	g.Wait()
	if rightStatus != 0 {
		return rightStatus
	}
	return leftStatus
}

// subshellCmd runs a subshell on a copy of the session, with the bindings
// and redirections installed on the copy only.
func (s *Session) subshellCmd(ctx context.Context, node *tree.Subshell) int {
	s2 := s.subshell()
	for _, b := range node.Bindings {
		s2.env.Set(b.Name, b.Value)
	}
	fr, err := s2.redirect(ctx, node.In, node.Out)
	if err != nil {
		return s.fail(err)
	}
	defer fr.Close()
	s2.stdin, s2.stdout = fr.stdin, fr.stdout
	return s2.run(ctx, node.Child)
}

// runBackground walks the left side of a Bg node. Programs are launched
// without waiting for them, while built-ins and the left side of a Seq run
// right away, as their effects must happen. The leftmost non-zero status
// wins.
func (s *Session) runBackground(ctx context.Context, node tree.Node) int {
	switch node := node.(type) {
	case nil:
		return 0
	case *tree.Bg:
		status := s.runBackground(ctx, node.Left)
		if node.Right != nil {
			status = firstFailure(status, s.runBackground(ctx, node.Right))
		}
		return status
	case *tree.Seq:
		status := s.run(ctx, node.Left)
		if node.Right != nil {
			return s.runBackground(ctx, node.Right)
		}
		return status
	case *tree.Simple:
		if isBuiltin(node.Name()) {
			return s.builtin(ctx, node)
		}
		return s.launch(ctx, node)
	default:
		return s.launchShell(ctx, node)
	}
}

// launch starts a program in the background, announcing it with its
// process ID.
func (s *Session) launch(ctx context.Context, node *tree.Simple) int {
	// Background jobs outlive the evaluation which started them.
	ctx = context.WithoutCancel(ctx)
	fr, err := s.redirect(ctx, node.In, node.Out)
	if err != nil {
		return s.fail(err)
	}
	s2 := s.subshell()
	s2.background = true

	j := newJob()
	started := make(chan int, 1)
	hctx := s2.handlerContext(ctx, node.Bindings, fr)
	hc := HandlerCtx(hctx)
	hc.started = func(pid int) { started <- pid }
	hctx = context.WithValue(hctx, handlerCtxKey{}, hc)

	s.trace(node)
	var herr error
	go func() {
		defer close(j.done)
		herr = s2.execHandler(hctx, node.Args)
		fr.Close()
		j.status = s2.handlerStatus(herr)
	}()

	select {
	case pid := <-started:
		j.id = strconv.Itoa(pid)
	case <-j.done:
		select {
		case pid := <-started:
			j.id = strconv.Itoa(pid)
		default:
			if _, ok := herr.(ExitStatus); herr != nil && !ok {
				// The program never started; the error is already printed.
				return j.status
			}
			// A handler ran the command without a process.
			j.id = s.jobs.nextShellID()
		}
	}
	s.jobs.add(j)
	if err := s.log.Diagf("Backgrounded: %s", j.id); err != nil {
		return s.fail(&DiagnosticError{Err: err})
	}
	return 0
}

// launchShell runs any other command in the background on a copy of the
// session. There is no single process to identify it, so it is announced
// with an ID like "g1".
func (s *Session) launchShell(ctx context.Context, node tree.Node) int {
	ctx = context.WithoutCancel(ctx)
	s2 := s.subshell()
	s2.background = true

	j := newJob()
	j.id = s.jobs.nextShellID()
	s.trace(node)
	go func() {
		defer close(j.done)
		j.status = s2.run(ctx, node)
		s2.Wait()
	}()
	s.jobs.add(j)
	if err := s.log.Diagf("Backgrounded: %s", j.id); err != nil {
		return s.fail(&DiagnosticError{Err: err})
	}
	return 0
}
